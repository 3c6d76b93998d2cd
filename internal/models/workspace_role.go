package models

import (
	"errors"
	"strings"
)

// WorkspaceRole is a member's privilege level inside one workspace.
type WorkspaceRole string

// Roles ordered from highest to lowest privilege.
const (
	RoleOwner  WorkspaceRole = "owner"
	RoleAdmin  WorkspaceRole = "admin"
	RoleMember WorkspaceRole = "member"
	RoleViewer WorkspaceRole = "viewer"
)

// ErrInvalidWorkspaceRole is returned when a role string is not recognised.
var ErrInvalidWorkspaceRole = errors.New("invalid workspace role")

// ParseWorkspaceRole parses a role name, ignoring case and surrounding whitespace.
func ParseWorkspaceRole(s string) (WorkspaceRole, error) {
	role := WorkspaceRole(strings.ToLower(strings.TrimSpace(s)))
	if !role.Valid() {
		return "", ErrInvalidWorkspaceRole
	}
	return role, nil
}

// Rank returns the role's position in the hierarchy; unknown roles rank 0.
func (r WorkspaceRole) Rank() int {
	switch r {
	case RoleOwner:
		return 4
	case RoleAdmin:
		return 3
	case RoleMember:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is one of the four known roles.
func (r WorkspaceRole) Valid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether r is a known role at or above min.
func (r WorkspaceRole) AtLeast(min WorkspaceRole) bool {
	return r.Valid() && r.Rank() >= min.Rank()
}

// Invitable reports whether the role may be granted through an invitation.
func (r WorkspaceRole) Invitable() bool {
	return r.Valid() && r != RoleOwner
}

func (r WorkspaceRole) String() string {
	return string(r)
}
