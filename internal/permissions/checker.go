package permissions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/adboard/internal/models"
)

// ErrNotMember is returned when the user holds no membership in the workspace.
var ErrNotMember = errors.New("permissions: not a workspace member")

// Checker resolves workspace roles from the store.
type Checker struct {
	db *gorm.DB
}

// NewChecker constructs a role checker backed by the provided database.
func NewChecker(db *gorm.DB) (*Checker, error) {
	if db == nil {
		return nil, errors.New("permission checker: db is required")
	}
	return &Checker{db: db}, nil
}

// RoleOf returns the user's role in the workspace or ErrNotMember.
func (c *Checker) RoleOf(ctx context.Context, workspaceID, userID string) (models.WorkspaceRole, error) {
	member, err := c.Membership(ctx, workspaceID, userID)
	if err != nil {
		return "", err
	}
	return member.Role, nil
}

// Membership returns the membership row, with its workspace loaded, joining
// the user to the workspace or ErrNotMember.
func (c *Checker) Membership(ctx context.Context, workspaceID, userID string) (*models.WorkspaceMember, error) {
	ctx = ensureContext(ctx)

	workspaceID = strings.TrimSpace(workspaceID)
	userID = strings.TrimSpace(userID)
	if workspaceID == "" || userID == "" {
		return nil, ErrNotMember
	}

	var member models.WorkspaceMember
	err := c.db.WithContext(ctx).
		Preload("Workspace").
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Take(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotMember
		}
		return nil, fmt.Errorf("permission checker: load membership: %w", err)
	}
	if member.Workspace == nil {
		return nil, ErrNotMember
	}
	return &member, nil
}

// Authorize resolves the actor's role and evaluates req with it. A missing
// membership is reported as a denial, never as a store error.
func (c *Checker) Authorize(ctx context.Context, workspaceID, actorID string, req Request) (*models.WorkspaceMember, error) {
	member, err := c.Membership(ctx, workspaceID, actorID)
	if err != nil && !errors.Is(err, ErrNotMember) {
		return nil, err
	}
	if member != nil {
		req.Actor = member.Role
	} else {
		req.Actor = ""
	}
	if err := Authorize(req); err != nil {
		return nil, err
	}
	return member, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
