package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/adboard/internal/models"
	"github.com/charlesng35/adboard/internal/permissions"
	apperrors "github.com/charlesng35/adboard/pkg/errors"
)

// MemberProfile is the display data joined onto a membership.
type MemberProfile struct {
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
	JobTitle  string `json:"job_title"`
}

// MemberWithProfile is a membership row plus the member's profile, when one exists.
type MemberWithProfile struct {
	models.WorkspaceMember
	Profile *MemberProfile `json:"profile,omitempty"`
}

// MemberService lists members, changes roles and removes members.
type MemberService struct {
	db    *gorm.DB
	roles *permissions.Checker
}

// NewMemberService constructs a MemberService.
func NewMemberService(db *gorm.DB) (*MemberService, error) {
	if db == nil {
		return nil, errors.New("member service: db is required")
	}
	roles, err := permissions.NewChecker(db)
	if err != nil {
		return nil, err
	}
	return &MemberService{db: db, roles: roles}, nil
}

// List returns the workspace's members with profile data. Only admins and the
// owner may list members.
func (s *MemberService) List(ctx context.Context, workspaceID, actorID string) ([]MemberWithProfile, error) {
	ctx = ensureContext(ctx)

	actor, err := optionalMembership(ctx, s.roles, workspaceID, actorID)
	if err != nil {
		return nil, fmt.Errorf("member service: %w", err)
	}
	if err := permissions.Authorize(permissions.Request{Action: permissions.ActionListMembers, Actor: actorRole(actor)}); err != nil {
		return nil, err
	}

	var members []models.WorkspaceMember
	if err := s.db.WithContext(ctx).
		Where("workspace_id = ?", actor.WorkspaceID).
		Order("joined_at ASC").
		Order("id ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("member service: list members: %w", err)
	}

	profiles, err := s.profilesByUser(ctx, members)
	if err != nil {
		return nil, err
	}

	out := make([]MemberWithProfile, 0, len(members))
	for _, member := range members {
		out = append(out, MemberWithProfile{WorkspaceMember: member, Profile: profiles[member.UserID]})
	}
	return out, nil
}

func (s *MemberService) profilesByUser(ctx context.Context, members []models.WorkspaceMember) (map[string]*MemberProfile, error) {
	lookup := make(map[string]*MemberProfile, len(members))
	if len(members) == 0 {
		return lookup, nil
	}

	ids := make([]string, 0, len(members))
	for _, member := range members {
		ids = append(ids, member.UserID)
	}

	var profiles []models.Profile
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("member service: load profiles: %w", err)
	}
	for _, profile := range profiles {
		lookup[profile.ID] = &MemberProfile{
			Email:     profile.Email,
			FullName:  profile.FullName,
			AvatarURL: profile.AvatarURL,
			JobTitle:  profile.JobTitle,
		}
	}
	return lookup, nil
}

// UpdateRole changes a member's role. Assigning owner transfers ownership: the
// current owner is demoted to admin and the target promoted in one transaction.
func (s *MemberService) UpdateRole(ctx context.Context, workspaceID, memberID, actorID, role string) (result *models.WorkspaceMember, err error) {
	ctx = ensureContext(ctx)
	operation := "update_role"
	defer func() { recordOperation(operation, err) }()

	actor, target, err := s.loadActorAndTarget(ctx, workspaceID, memberID, actorID, permissions.ActionChangeRole)
	if err != nil {
		return nil, err
	}

	// An unparseable role stays empty; Authorize rejects it only after the
	// actor's own rights have been checked.
	assign, parseErr := models.ParseWorkspaceRole(role)

	if err := permissions.Authorize(permissions.Request{
		Action: permissions.ActionChangeRole,
		Actor:  actor.Role,
		Target: target.Role,
		Assign: assign,
		Self:   actor.ID == target.ID,
	}); err != nil {
		if parseErr != nil && apperrors.Is(err, apperrors.ErrBadRequest) {
			return nil, ErrInvalidRole
		}
		return nil, err
	}

	if target.Role == assign {
		return target, nil
	}

	if assign == models.RoleOwner {
		operation = "transfer_ownership"
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// Demote first: the owner slot index admits a single owner row.
			if err := tx.Model(&models.WorkspaceMember{}).
				Where("workspace_id = ? AND role = ?", target.WorkspaceID, models.RoleOwner).
				Updates(models.RoleColumns(target.WorkspaceID, models.RoleAdmin)).Error; err != nil {
				return fmt.Errorf("member service: demote owner: %w", err)
			}
			if err := tx.Model(&models.WorkspaceMember{}).
				Where("id = ?", target.ID).
				Updates(models.RoleColumns(target.WorkspaceID, models.RoleOwner)).Error; err != nil {
				return fmt.Errorf("member service: promote owner: %w", err)
			}
			return nil
		})
	} else {
		err = s.db.WithContext(ctx).
			Model(&models.WorkspaceMember{}).
			Where("id = ?", target.ID).
			Updates(models.RoleColumns(target.WorkspaceID, assign)).Error
		if err != nil {
			err = fmt.Errorf("member service: update role: %w", err)
		}
	}
	if err != nil {
		return nil, err
	}

	var fresh models.WorkspaceMember
	if err := s.db.WithContext(ctx).Take(&fresh, "id = ?", target.ID).Error; err != nil {
		return nil, fmt.Errorf("member service: reload member: %w", err)
	}
	return &fresh, nil
}

// Remove deletes a membership. Admins and the owner may remove others, any
// member may leave, and the owner can never be removed.
func (s *MemberService) Remove(ctx context.Context, workspaceID, memberID, actorID string) (err error) {
	ctx = ensureContext(ctx)
	defer func() { recordOperation("remove_member", err) }()

	actor, target, err := s.loadActorAndTarget(ctx, workspaceID, memberID, actorID, permissions.ActionRemoveMember)
	if err != nil {
		return err
	}

	if err := permissions.Authorize(permissions.Request{
		Action: permissions.ActionRemoveMember,
		Actor:  actor.Role,
		Target: target.Role,
		Self:   actor.ID == target.ID,
	}); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The role guard stops a concurrent ownership transfer from removing the new owner.
		res := tx.Where("id = ? AND role <> ?", target.ID, models.RoleOwner).Delete(&models.WorkspaceMember{})
		if res.Error != nil {
			return fmt.Errorf("member service: delete member: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrMemberNotFound
		}
		if err := clearProfilePointers(tx, target.WorkspaceID, target.UserID); err != nil {
			return fmt.Errorf("member service: clear profile pointer: %w", err)
		}
		return nil
	})
}

// loadActorAndTarget resolves both memberships. A caller without membership is
// denied before the target is looked up, so target existence never leaks.
func (s *MemberService) loadActorAndTarget(ctx context.Context, workspaceID, memberID, actorID string, action permissions.Action) (*models.WorkspaceMember, *models.WorkspaceMember, error) {
	actor, err := optionalMembership(ctx, s.roles, workspaceID, actorID)
	if err != nil {
		return nil, nil, fmt.Errorf("member service: %w", err)
	}
	if actor == nil {
		return nil, nil, permissions.Authorize(permissions.Request{Action: action})
	}

	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, nil, ErrMemberNotFound
	}

	var target models.WorkspaceMember
	if err := s.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", memberID, actor.WorkspaceID).
		Take(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrMemberNotFound
		}
		return nil, nil, fmt.Errorf("member service: load member: %w", err)
	}
	return actor, &target, nil
}
