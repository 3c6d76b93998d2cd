package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/charlesng35/adboard/internal/models"
	"github.com/charlesng35/adboard/internal/permissions"
	"github.com/charlesng35/adboard/pkg/metrics"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadMembership returns the user's membership with its workspace preloaded,
// or permissions.ErrNotMember.
func loadMembership(ctx context.Context, roles *permissions.Checker, workspaceID, userID string) (*models.WorkspaceMember, error) {
	return roles.Membership(ctx, workspaceID, userID)
}

// actorRole returns the role of a possibly missing membership.
func actorRole(member *models.WorkspaceMember) models.WorkspaceRole {
	if member == nil {
		return ""
	}
	return member.Role
}

// optionalMembership is loadMembership that maps ErrNotMember to a nil membership.
func optionalMembership(ctx context.Context, roles *permissions.Checker, workspaceID, userID string) (*models.WorkspaceMember, error) {
	member, err := loadMembership(ctx, roles, workspaceID, userID)
	if errors.Is(err, permissions.ErrNotMember) {
		return nil, nil
	}
	return member, err
}

// clearProfilePointers nulls current_workspace_id for profiles pointing at the
// workspace, optionally restricted to a single user.
func clearProfilePointers(tx *gorm.DB, workspaceID string, userIDs ...string) error {
	query := tx.Model(&models.Profile{}).Where("current_workspace_id = ?", workspaceID)
	if len(userIDs) > 0 {
		query = query.Where("id IN ?", userIDs)
	}
	return query.Update("current_workspace_id", nil).Error
}

func recordOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.WorkspaceOperations.WithLabelValues(operation, result).Inc()
}
