package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/adboard/internal/models"
	"github.com/charlesng35/adboard/internal/permissions"
	"github.com/charlesng35/adboard/pkg/crypto"
	apperrors "github.com/charlesng35/adboard/pkg/errors"
)

const (
	slugSuffixLength  = 6
	slugCreateRetries = 3
	defaultSlugBase   = "workspace"
)

var slugSeparator = regexp.MustCompile(`[^a-z0-9]+`)

var errSlugTaken = errors.New("workspace service: slug already taken")

// CreateWorkspaceInput describes the payload for creating a workspace.
type CreateWorkspaceInput struct {
	Name        string
	Description *string
}

// UpdateWorkspaceInput is a partial update; fields left unset are untouched.
type UpdateWorkspaceInput struct {
	Name        Optional[string]         `json:"name"`
	Description Optional[string]         `json:"description"`
	LogoURL     Optional[string]         `json:"logo_url"`
	Settings    Optional[datatypes.JSON] `json:"settings"`
}

// WorkspaceMembership pairs a workspace with the caller's membership in it.
type WorkspaceMembership struct {
	Workspace  models.Workspace       `json:"workspace"`
	Membership models.WorkspaceMember `json:"membership"`
}

// WorkspaceOption customises WorkspaceService behaviour.
type WorkspaceOption func(*WorkspaceService)

// WithWorkspaceClock injects a custom clock primarily for testing.
func WithWorkspaceClock(clock func() time.Time) WorkspaceOption {
	return func(s *WorkspaceService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSlugSuffix overrides the random slug suffix generator.
func WithSlugSuffix(fn func() (string, error)) WorkspaceOption {
	return func(s *WorkspaceService) {
		if fn != nil {
			s.suffix = fn
		}
	}
}

// WorkspaceService creates, updates, deletes and switches workspaces.
type WorkspaceService struct {
	db     *gorm.DB
	roles  *permissions.Checker
	now    func() time.Time
	suffix func() (string, error)
}

// NewWorkspaceService constructs a WorkspaceService.
func NewWorkspaceService(db *gorm.DB, opts ...WorkspaceOption) (*WorkspaceService, error) {
	if db == nil {
		return nil, errors.New("workspace service: db is required")
	}

	roles, err := permissions.NewChecker(db)
	if err != nil {
		return nil, err
	}

	svc := &WorkspaceService{
		db:    db,
		roles: roles,
		now:   time.Now,
		suffix: func() (string, error) {
			return crypto.RandomString(crypto.LowerAlphanumeric, slugSuffixLength)
		},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Slugify lowercases name and collapses every run of characters outside
// [a-z0-9] into a single hyphen, trimming hyphens at both ends.
func Slugify(name string) string {
	slug := slugSeparator.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return defaultSlugBase
	}
	return slug
}

// Create inserts a workspace together with its owner membership. Both rows are
// written in one transaction, so a failed membership insert leaves no workspace.
func (s *WorkspaceService) Create(ctx context.Context, creatorID string, input CreateWorkspaceInput) (result *WorkspaceMembership, err error) {
	ctx = ensureContext(ctx)
	defer func() { recordOperation("create", err) }()

	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrWorkspaceNameMissing
	}
	if utf8.RuneCountInString(name) > models.WorkspaceNameMaxLength {
		return nil, ErrWorkspaceNameTooLong
	}
	description := normalizeOptionalText(input.Description)
	if tooLong(description, models.WorkspaceDescriptionMaxLength) {
		return nil, ErrWorkspaceFieldTooLong
	}
	base := Slugify(name)

	for attempt := 0; attempt < slugCreateRetries; attempt++ {
		suffix, err := s.suffix()
		if err != nil {
			return nil, fmt.Errorf("workspace service: generate slug: %w", err)
		}

		result, err = s.createOnce(ctx, creatorID, name, base+"-"+suffix, description)
		if errors.Is(err, errSlugTaken) {
			continue
		}
		return result, err
	}
	return nil, fmt.Errorf("workspace service: no free slug for %q after %d attempts", base, slugCreateRetries)
}

func (s *WorkspaceService) createOnce(ctx context.Context, creatorID, name, slug string, description *string) (*WorkspaceMembership, error) {
	workspace := models.Workspace{
		Name:        name,
		Slug:        slug,
		Description: description,
	}
	member := models.WorkspaceMember{
		UserID:   creatorID,
		Role:     models.RoleOwner,
		JoinedAt: s.now().UTC(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&workspace).Error; err != nil {
			if isUniqueConstraintError(err) {
				return errSlugTaken
			}
			return fmt.Errorf("workspace service: create workspace: %w", err)
		}

		member.WorkspaceID = workspace.ID
		if err := tx.Create(&member).Error; err != nil {
			return fmt.Errorf("workspace service: create owner membership: %w", err)
		}

		if err := tx.Model(&models.Profile{}).
			Where("id = ?", creatorID).
			Update("current_workspace_id", workspace.ID).Error; err != nil {
			return fmt.Errorf("workspace service: set current workspace: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	member.Workspace = nil
	return &WorkspaceMembership{Workspace: workspace, Membership: member}, nil
}

// List returns the user's memberships with their workspaces, default first and
// then by join time. Workspaces that have no owner are skipped.
func (s *WorkspaceService) List(ctx context.Context, userID string) ([]WorkspaceMembership, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	owned := s.db.Model(&models.WorkspaceMember{}).
		Select("workspace_id").
		Where("role = ?", models.RoleOwner)

	var members []models.WorkspaceMember
	if err := s.db.WithContext(ctx).
		Preload("Workspace").
		Where("user_id = ?", userID).
		Where("workspace_id IN (?)", owned).
		Order("is_default DESC").
		Order("joined_at ASC").
		Order("id ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("workspace service: list memberships: %w", err)
	}

	out := make([]WorkspaceMembership, 0, len(members))
	for _, member := range members {
		if member.Workspace == nil {
			continue
		}
		workspace := *member.Workspace
		member.Workspace = nil
		out = append(out, WorkspaceMembership{Workspace: workspace, Membership: member})
	}
	return out, nil
}

// Get returns the workspace and the caller's membership. Missing workspaces
// and workspaces the caller does not belong to are both reported as not found.
func (s *WorkspaceService) Get(ctx context.Context, workspaceID, userID string) (*WorkspaceMembership, error) {
	ctx = ensureContext(ctx)

	member, err := loadMembership(ctx, s.roles, workspaceID, userID)
	if err != nil {
		if errors.Is(err, permissions.ErrNotMember) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("workspace service: %w", err)
	}
	if err := permissions.Authorize(permissions.Request{Action: permissions.ActionViewWorkspace, Actor: member.Role}); err != nil {
		return nil, err
	}
	return splitMembership(member), nil
}

// Update applies a partial update. The caller must be an admin or the owner.
func (s *WorkspaceService) Update(ctx context.Context, workspaceID, actorID string, input UpdateWorkspaceInput) (workspace *models.Workspace, err error) {
	ctx = ensureContext(ctx)
	defer func() { recordOperation("update", err) }()

	member, err := optionalMembership(ctx, s.roles, workspaceID, actorID)
	if err != nil {
		return nil, fmt.Errorf("workspace service: %w", err)
	}
	if err := permissions.Authorize(permissions.Request{Action: permissions.ActionUpdateWorkspace, Actor: actorRole(member)}); err != nil {
		return nil, err
	}

	updates, err := workspaceUpdates(input)
	if err != nil {
		return nil, err
	}

	workspace = member.Workspace
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(workspace).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("workspace service: update workspace: %w", err)
		}
	}

	var fresh models.Workspace
	if err := s.db.WithContext(ctx).Take(&fresh, "id = ?", workspace.ID).Error; err != nil {
		return nil, fmt.Errorf("workspace service: reload workspace: %w", err)
	}
	return &fresh, nil
}

func workspaceUpdates(input UpdateWorkspaceInput) (map[string]any, error) {
	updates := make(map[string]any)

	if input.Name.Set {
		if input.Name.Value == nil || strings.TrimSpace(*input.Name.Value) == "" {
			return nil, ErrWorkspaceNameMissing
		}
		name := strings.TrimSpace(*input.Name.Value)
		if utf8.RuneCountInString(name) > models.WorkspaceNameMaxLength {
			return nil, ErrWorkspaceNameTooLong
		}
		updates["name"] = name
	}
	if input.Description.Set {
		description := normalizeOptionalText(input.Description.Value)
		if tooLong(description, models.WorkspaceDescriptionMaxLength) {
			return nil, ErrWorkspaceFieldTooLong
		}
		updates["description"] = description
	}
	if input.LogoURL.Set {
		logo := normalizeOptionalText(input.LogoURL.Value)
		if tooLong(logo, models.WorkspaceLogoURLMaxLength) {
			return nil, ErrWorkspaceFieldTooLong
		}
		updates["logo_url"] = logo
	}
	if input.Settings.Set {
		if input.Settings.Value == nil {
			updates["settings"] = nil
		} else {
			updates["settings"] = *input.Settings.Value
		}
	}
	return updates, nil
}

func tooLong(value *string, limit int) bool {
	return value != nil && utf8.RuneCountInString(*value) > limit
}

// Delete removes a workspace with its members and invitations. Only the owner
// may delete, and personal workspaces are never deleted.
func (s *WorkspaceService) Delete(ctx context.Context, workspaceID, actorID string) (err error) {
	ctx = ensureContext(ctx)
	defer func() { recordOperation("delete", err) }()

	member, err := optionalMembership(ctx, s.roles, workspaceID, actorID)
	if err != nil {
		return fmt.Errorf("workspace service: %w", err)
	}
	req := permissions.Request{Action: permissions.ActionDeleteWorkspace, Actor: actorRole(member)}
	if member != nil {
		req.Personal = member.Workspace.IsPersonal
	}
	if err := permissions.Authorize(req); err != nil {
		return err
	}

	id := member.WorkspaceID
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := clearProfilePointers(tx, id); err != nil {
			return fmt.Errorf("workspace service: clear profile pointers: %w", err)
		}
		if err := tx.Where("workspace_id = ?", id).Delete(&models.WorkspaceInvitation{}).Error; err != nil {
			return fmt.Errorf("workspace service: delete invitations: %w", err)
		}
		if err := tx.Where("workspace_id = ?", id).Delete(&models.WorkspaceMember{}).Error; err != nil {
			return fmt.Errorf("workspace service: delete members: %w", err)
		}
		if err := tx.Delete(&models.Workspace{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("workspace service: delete workspace: %w", err)
		}
		return nil
	})
}

// Switch points the user's profile at a workspace they belong to. The pointer
// is left untouched when the user is not a member.
func (s *WorkspaceService) Switch(ctx context.Context, userID, workspaceID string) (result *WorkspaceMembership, err error) {
	ctx = ensureContext(ctx)
	defer func() { recordOperation("switch", err) }()

	if strings.TrimSpace(workspaceID) == "" {
		return nil, ErrWorkspaceIDMissing
	}

	member, err := loadMembership(ctx, s.roles, workspaceID, userID)
	if err != nil {
		if errors.Is(err, permissions.ErrNotMember) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("workspace service: %w", err)
	}

	if err := s.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", member.UserID).
		Update("current_workspace_id", member.WorkspaceID).Error; err != nil {
		return nil, fmt.Errorf("workspace service: set current workspace: %w", err)
	}
	return splitMembership(member), nil
}

// SetDefault marks the membership as the user's preferred workspace, clearing
// any previous default in the same transaction.
func (s *WorkspaceService) SetDefault(ctx context.Context, userID, workspaceID string) (result *WorkspaceMembership, err error) {
	ctx = ensureContext(ctx)
	defer func() { recordOperation("set_default", err) }()

	member, err := loadMembership(ctx, s.roles, workspaceID, userID)
	if err != nil {
		if errors.Is(err, permissions.ErrNotMember) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("workspace service: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.WorkspaceMember{}).
			Where("user_id = ? AND is_default = ? AND id <> ?", member.UserID, true, member.ID).
			Updates(models.DefaultColumns(member.UserID, false)).Error; err != nil {
			return fmt.Errorf("workspace service: clear default: %w", err)
		}
		return tx.Model(&models.WorkspaceMember{}).
			Where("id = ?", member.ID).
			Updates(models.DefaultColumns(member.UserID, true)).Error
	})
	if err != nil {
		return nil, err
	}

	member.IsDefault = true
	return splitMembership(member), nil
}

func splitMembership(member *models.WorkspaceMember) *WorkspaceMembership {
	workspace := *member.Workspace
	m := *member
	m.Workspace = nil
	return &WorkspaceMembership{Workspace: workspace, Membership: m}
}

func normalizeOptionalText(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
