package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/adboard/pkg/errors"
)

// Domain errors returned by the workspace services. They are AppErrors so the
// HTTP layer can render them directly.
var (
	ErrWorkspaceNotFound     = apperrors.New("WORKSPACE_NOT_FOUND", "Workspace not found", http.StatusNotFound)
	ErrWorkspaceNameMissing  = apperrors.NewValidation("WORKSPACE_NAME_REQUIRED", "Workspace name is required")
	ErrWorkspaceNameTooLong  = apperrors.NewValidation("WORKSPACE_NAME_TOO_LONG", "Workspace name must be at most 128 characters")
	ErrWorkspaceFieldTooLong = apperrors.NewValidation("WORKSPACE_FIELD_TOO_LONG", "Workspace description or logo URL is too long")
	ErrWorkspaceIDMissing    = apperrors.NewValidation("WORKSPACE_ID_REQUIRED", "Workspace id is required")
	ErrMemberNotFound        = apperrors.New("MEMBER_NOT_FOUND", "Member not found", http.StatusNotFound)
	ErrInvalidRole           = apperrors.NewValidation("INVALID_ROLE", "Role must be one of owner, admin, member or viewer")

	ErrInvalidEmail            = apperrors.NewValidation("INVALID_EMAIL", "A valid email address is required")
	ErrOwnerInvitation         = apperrors.NewValidation("INVITATION_OWNER_ROLE", "Ownership cannot be granted by invitation")
	ErrInvalidInvitationStatus = apperrors.NewValidation("INVALID_INVITATION_STATUS", "Unknown invitation status")
	ErrInvitationPending       = apperrors.NewConflict("INVITATION_PENDING", "A pending invitation already exists for this email")
	ErrInvitationNotFound      = apperrors.New("INVITATION_NOT_FOUND", "Invitation not found", http.StatusNotFound)
	ErrInvitationNotPending    = apperrors.NewValidation("INVITATION_NOT_PENDING", "Invitation is no longer pending")
	ErrInvitationExpired       = apperrors.NewValidation("INVITATION_EXPIRED", "Invitation has expired")
	ErrInvitationTokenMissing  = apperrors.NewValidation("INVITATION_TOKEN_REQUIRED", "Invitation token is required")
	ErrInvitationEmailMismatch = apperrors.NewForbidden("INVITATION_EMAIL_MISMATCH", "Invitation was issued to a different email address")
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") || strings.Contains(lower, "duplicate")
}
