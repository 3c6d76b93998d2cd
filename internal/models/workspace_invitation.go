package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// InvitationStatus tracks where an invitation is in its lifecycle.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRevoked  InvitationStatus = "revoked"
	InvitationExpired  InvitationStatus = "expired"
)

// Valid reports whether s is a known status.
func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationRevoked, InvitationExpired:
		return true
	default:
		return false
	}
}

// WorkspaceInvitation is a pending offer to join a workspace under a role.
//
// PendingEmail mirrors Email only while the invitation is pending. The unique
// index over (workspace_id, pending_email) therefore allows at most one
// pending invitation per address; resolved rows carry NULL and never collide.
type WorkspaceInvitation struct {
	BaseModel

	WorkspaceID  string           `gorm:"size:36;not null;uniqueIndex:idx_workspace_invitations_pending" json:"workspace_id"`
	Email        string           `gorm:"size:320;not null;index" json:"email"`
	PendingEmail *string          `gorm:"size:320;uniqueIndex:idx_workspace_invitations_pending" json:"-"`
	Role         WorkspaceRole    `gorm:"size:16;not null" json:"role"`
	InvitedBy    string           `gorm:"size:36;not null" json:"invited_by"`
	TokenHash    string           `gorm:"size:64;not null;uniqueIndex" json:"-"`
	Status       InvitationStatus `gorm:"size:16;not null;index" json:"status"`
	ExpiresAt    time.Time        `gorm:"index" json:"expires_at"`
	RespondedAt  *time.Time       `json:"responded_at"`

	Workspace *Workspace `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeSave normalises the email and keeps PendingEmail aligned with Status.
func (i *WorkspaceInvitation) BeforeSave(tx *gorm.DB) error {
	i.Email = NormalizeEmail(i.Email)
	if i.Status == "" {
		i.Status = InvitationPending
	}
	i.PendingEmail = nil
	if i.Status == InvitationPending {
		email := i.Email
		i.PendingEmail = &email
	}
	return nil
}

// ResolveColumns returns the column updates that move an invitation out of pending.
func ResolveColumns(status InvitationStatus, at time.Time) map[string]any {
	return map[string]any{
		"status":        status,
		"pending_email": nil,
		"responded_at":  at,
	}
}

// IsPending reports whether the invitation can still be accepted at now.
func (i *WorkspaceInvitation) IsPending(now time.Time) bool {
	return i.Status == InvitationPending && now.Before(i.ExpiresAt)
}

// NormalizeEmail trims and lowercases an address for comparison and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
