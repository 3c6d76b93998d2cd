package permissions

import (
	"github.com/charlesng35/adboard/internal/models"
	apperrors "github.com/charlesng35/adboard/pkg/errors"
	"github.com/charlesng35/adboard/pkg/metrics"
)

// Forbidden codes surfaced to API clients.
const (
	CodeNotMember         = "WORKSPACE_NOT_MEMBER"
	CodeInsufficientRole  = "WORKSPACE_INSUFFICIENT_ROLE"
	CodeOwnerProtected    = "WORKSPACE_OWNER_PROTECTED"
	CodeOwnerAssignment   = "WORKSPACE_OWNER_ASSIGNMENT"
	CodeOwnerSelfDemotion = "WORKSPACE_OWNER_SELF_DEMOTION"
	CodePersonalWorkspace = "WORKSPACE_PERSONAL"
)

// Request captures one authorization question. Actor is empty when the
// caller holds no membership in the workspace.
type Request struct {
	Action Action
	Actor  models.WorkspaceRole

	// Target is the current role of the member being acted upon.
	Target models.WorkspaceRole
	// Assign is the role requested by a role change.
	Assign models.WorkspaceRole
	// Self is set when the actor is the target member.
	Self bool
	// Personal is set when the workspace is a personal workspace.
	Personal bool
}

// Authorize decides whether the request is permitted. Denials match
// apperrors.ErrForbidden; an unknown role to assign is a validation error.
// Unknown actions and empty actor roles are always denied.
func Authorize(req Request) error {
	err := decide(req)
	result := "allow"
	if err != nil {
		result = "deny"
	}
	metrics.PermissionChecks.WithLabelValues(string(req.Action), result).Inc()
	return err
}

func decide(req Request) error {
	if !req.Actor.Valid() {
		return apperrors.NewForbidden(CodeNotMember, "You are not a member of this workspace")
	}

	def, ok := Get(req.Action)
	if !ok {
		return apperrors.NewForbidden("", "Unknown workspace action")
	}

	switch req.Action {
	case ActionRemoveMember:
		return decideRemoval(req)
	case ActionChangeRole:
		if err := requireRole(req.Actor, def.MinRole); err != nil {
			return err
		}
		return decideRoleChange(req)
	case ActionDeleteWorkspace:
		if err := requireRole(req.Actor, def.MinRole); err != nil {
			return err
		}
		if req.Personal {
			return apperrors.NewForbidden(CodePersonalWorkspace, "Personal workspaces cannot be deleted")
		}
		return nil
	default:
		return requireRole(req.Actor, def.MinRole)
	}
}

func requireRole(actor, min models.WorkspaceRole) error {
	if actor.AtLeast(min) {
		return nil
	}
	return apperrors.NewForbidden(CodeInsufficientRole, "Your role does not allow this action")
}

func decideRemoval(req Request) error {
	if req.Target == models.RoleOwner {
		return apperrors.NewForbidden(CodeOwnerProtected, "The workspace owner cannot be removed; transfer ownership first")
	}
	if req.Self {
		return nil
	}
	return requireRole(req.Actor, models.RoleAdmin)
}

func decideRoleChange(req Request) error {
	if !req.Assign.Valid() {
		return apperrors.NewValidation("INVALID_ROLE", "Unknown workspace role")
	}

	if req.Self && req.Actor == models.RoleOwner {
		if req.Assign == models.RoleOwner {
			return nil
		}
		return apperrors.NewForbidden(CodeOwnerSelfDemotion, "Owners cannot demote themselves; transfer ownership instead")
	}

	if req.Actor == models.RoleOwner {
		return nil
	}

	// admin from here on
	if req.Target == models.RoleOwner {
		return apperrors.NewForbidden(CodeOwnerProtected, "Only the owner can change the owner's role")
	}
	if req.Assign == models.RoleOwner {
		return apperrors.NewForbidden(CodeOwnerAssignment, "Only the owner can transfer ownership")
	}
	return nil
}
