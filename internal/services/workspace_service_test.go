package services

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/adboard/internal/models"
	apperrors "github.com/charlesng35/adboard/pkg/errors"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Acme Co":              "acme-co",
		"  --Hello,  World!-- ": "hello-world",
		"Café 2024":            "caf-2024",
		"!!!":                  "workspace",
		"":                     "workspace",
	}
	for input, expected := range cases {
		require.Equal(t, expected, Slugify(input), input)
	}
}

func TestWorkspaceCreateListsCreatorAsOwner(t *testing.T) {
	fx := newServiceFixture(t)
	user := fx.profile(t, "u@acme.com")

	created := fx.createWorkspace(t, user.ID, "Acme Co")
	require.Regexp(t, regexp.MustCompile(`^acme-co-[a-z0-9]{6}$`), created.Workspace.Slug)
	require.False(t, created.Workspace.IsPersonal)
	require.Equal(t, models.RoleOwner, created.Membership.Role)
	require.False(t, created.Membership.IsDefault)

	list, err := fx.workspaces.List(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, created.Workspace.ID, list[0].Workspace.ID)
	require.Equal(t, models.RoleOwner, list[0].Membership.Role)

	current := fx.currentWorkspace(t, user.ID)
	require.NotNil(t, current)
	require.Equal(t, created.Workspace.ID, *current)
}

func TestWorkspaceCreateValidatesName(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.workspaces.Create(context.Background(), "user-1", CreateWorkspaceInput{Name: "   "})
	require.ErrorIs(t, err, ErrWorkspaceNameMissing)

	_, err = fx.workspaces.Create(context.Background(), "", CreateWorkspaceInput{Name: "Acme"})
	require.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestWorkspaceCreateRetriesSlugCollision(t *testing.T) {
	fx := newServiceFixture(t)
	suffixes := []string{"aaaaaa", "aaaaaa", "bbbbbb"}
	svc, err := NewWorkspaceService(fx.db, WithSlugSuffix(func() (string, error) {
		next := suffixes[0]
		suffixes = suffixes[1:]
		return next, nil
	}))
	require.NoError(t, err)

	first, err := svc.Create(context.Background(), "user-1", CreateWorkspaceInput{Name: "Acme"})
	require.NoError(t, err)
	require.Equal(t, "acme-aaaaaa", first.Workspace.Slug)

	second, err := svc.Create(context.Background(), "user-1", CreateWorkspaceInput{Name: "Acme"})
	require.NoError(t, err)
	require.Equal(t, "acme-bbbbbb", second.Workspace.Slug)
}

func TestWorkspaceCreateRollsBackWhenOwnerInsertFails(t *testing.T) {
	fx := newServiceFixture(t)

	boom := errors.New("membership insert failed")
	require.NoError(t, fx.db.Callback().Create().Before("gorm:create").Register("test:fail_members", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "workspace_members" {
			_ = tx.AddError(boom)
		}
	}))

	_, err := fx.workspaces.Create(context.Background(), "user-1", CreateWorkspaceInput{Name: "Doomed"})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, fx.db.Model(&models.Workspace{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestWorkspaceListOrdersDefaultFirstAndSkipsOwnerless(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	first := fx.createWorkspace(t, "owner", "First")
	second := fx.createWorkspace(t, "owner", "Second")
	fx.addMember(t, first.Workspace.ID, "user", models.RoleViewer)
	fx.addMember(t, second.Workspace.ID, "user", models.RoleMember)

	orphan := &models.Workspace{Name: "Orphan", Slug: "orphan-zzzzzz"}
	require.NoError(t, fx.db.Create(orphan).Error)
	fx.addMember(t, orphan.ID, "user", models.RoleAdmin)

	_, err := fx.workspaces.SetDefault(ctx, "user", second.Workspace.ID)
	require.NoError(t, err)

	list, err := fx.workspaces.List(ctx, "user")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.Workspace.ID, list[0].Workspace.ID)
	require.True(t, list[0].Membership.IsDefault)
	require.Equal(t, first.Workspace.ID, list[1].Workspace.ID)
}

func TestWorkspaceSetDefaultKeepsSingleDefault(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	first := fx.createWorkspace(t, "user", "First")
	second := fx.createWorkspace(t, "user", "Second")

	_, err := fx.workspaces.SetDefault(ctx, "user", first.Workspace.ID)
	require.NoError(t, err)
	_, err = fx.workspaces.SetDefault(ctx, "user", second.Workspace.ID)
	require.NoError(t, err)

	var defaults []models.WorkspaceMember
	require.NoError(t, fx.db.Where("user_id = ? AND is_default = ?", "user", true).Find(&defaults).Error)
	require.Len(t, defaults, 1)
	require.Equal(t, second.Workspace.ID, defaults[0].WorkspaceID)
}

func TestWorkspaceGetHidesNonMembership(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	ws := fx.createWorkspace(t, "owner", "Acme")

	got, err := fx.workspaces.Get(ctx, ws.Workspace.ID, "owner")
	require.NoError(t, err)
	require.Equal(t, "Acme", got.Workspace.Name)

	_, err = fx.workspaces.Get(ctx, ws.Workspace.ID, "stranger")
	require.ErrorIs(t, err, ErrWorkspaceNotFound)

	_, err = fx.workspaces.Get(ctx, "missing", "owner")
	require.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestWorkspaceUpdatePartial(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	description := "Original"
	created, err := fx.workspaces.Create(ctx, "owner", CreateWorkspaceInput{Name: "Acme", Description: &description})
	require.NoError(t, err)
	id := created.Workspace.ID
	fx.addMember(t, id, "admin", models.RoleAdmin)
	fx.addMember(t, id, "member", models.RoleMember)

	updated, err := fx.workspaces.Update(ctx, id, "admin", UpdateWorkspaceInput{
		LogoURL:  Some("https://cdn.example.com/logo.png"),
		Settings: Some(datatypes.JSON(`{"currency":"EUR"}`)),
	})
	require.NoError(t, err)
	require.Equal(t, "Acme", updated.Name)
	require.NotNil(t, updated.Description)
	require.Equal(t, "Original", *updated.Description)
	require.NotNil(t, updated.LogoURL)
	require.JSONEq(t, `{"currency":"EUR"}`, string(updated.Settings))

	updated, err = fx.workspaces.Update(ctx, id, "owner", UpdateWorkspaceInput{
		Name:        Some("  Acme Ads "),
		Description: Some(""),
		LogoURL:     Null[string](),
	})
	require.NoError(t, err)
	require.Equal(t, "Acme Ads", updated.Name)
	require.Nil(t, updated.Description)
	require.Nil(t, updated.LogoURL)

	_, err = fx.workspaces.Update(ctx, id, "owner", UpdateWorkspaceInput{Name: Some(" ")})
	require.ErrorIs(t, err, ErrWorkspaceNameMissing)

	_, err = fx.workspaces.Update(ctx, id, "owner", UpdateWorkspaceInput{Name: Some(strings.Repeat("a", models.WorkspaceNameMaxLength+1))})
	require.ErrorIs(t, err, ErrWorkspaceNameTooLong)

	_, err = fx.workspaces.Update(ctx, id, "owner", UpdateWorkspaceInput{Description: Some(strings.Repeat("d", models.WorkspaceDescriptionMaxLength+1))})
	require.ErrorIs(t, err, ErrWorkspaceFieldTooLong)

	maxName := strings.Repeat("é", models.WorkspaceNameMaxLength)
	updated, err = fx.workspaces.Update(ctx, id, "owner", UpdateWorkspaceInput{Name: Some(maxName)})
	require.NoError(t, err)
	require.Equal(t, maxName, updated.Name)

	long := strings.Repeat("d", models.WorkspaceDescriptionMaxLength+1)
	_, err = fx.workspaces.Create(ctx, "owner", CreateWorkspaceInput{Name: "Other", Description: &long})
	require.ErrorIs(t, err, ErrWorkspaceFieldTooLong)

	_, err = fx.workspaces.Update(ctx, id, "member", UpdateWorkspaceInput{Name: Some("Hijack")})
	require.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = fx.workspaces.Update(ctx, id, "stranger", UpdateWorkspaceInput{Name: Some("Hijack")})
	require.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestUpdateWorkspaceInputDecodesPresence(t *testing.T) {
	var input UpdateWorkspaceInput
	require.NoError(t, json.Unmarshal([]byte(`{"description":null,"name":"New"}`), &input))

	require.True(t, input.Name.Set)
	require.Equal(t, "New", *input.Name.Value)
	require.True(t, input.Description.Set)
	require.Nil(t, input.Description.Value)
	require.False(t, input.LogoURL.Set)
	require.False(t, input.Settings.Set)
}

func TestWorkspaceDelete(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	owner := fx.profile(t, "owner@acme.com")
	admin := fx.profile(t, "admin@acme.com")
	ws := fx.createWorkspace(t, owner.ID, "Acme")
	fx.addMember(t, ws.Workspace.ID, admin.ID, models.RoleAdmin)
	_, err := fx.workspaces.Switch(ctx, admin.ID, ws.Workspace.ID)
	require.NoError(t, err)
	_, err = fx.invitations.Invite(ctx, ws.Workspace.ID, owner.ID, "jane@acme.com", "")
	require.NoError(t, err)

	err = fx.workspaces.Delete(ctx, ws.Workspace.ID, admin.ID)
	require.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	require.NoError(t, fx.workspaces.Delete(ctx, ws.Workspace.ID, owner.ID))

	for _, model := range []any{&models.Workspace{}, &models.WorkspaceMember{}, &models.WorkspaceInvitation{}} {
		var count int64
		require.NoError(t, fx.db.Model(model).Count(&count).Error)
		require.Zero(t, count, "%T", model)
	}
	require.Nil(t, fx.currentWorkspace(t, owner.ID))
	require.Nil(t, fx.currentWorkspace(t, admin.ID))
}

func TestWorkspaceDeletePersonalForbiddenForOwner(t *testing.T) {
	fx := newServiceFixture(t)

	personal := &models.Workspace{Name: "Me", Slug: "me-personal", IsPersonal: true}
	require.NoError(t, fx.db.Create(personal).Error)
	fx.addMember(t, personal.ID, "owner", models.RoleOwner)

	err := fx.workspaces.Delete(context.Background(), personal.ID, "owner")
	require.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	var count int64
	require.NoError(t, fx.db.Model(&models.Workspace{}).Where("id = ?", personal.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestWorkspaceSwitchValidatesMembership(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	user := fx.profile(t, "u@acme.com")
	mine := fx.createWorkspace(t, user.ID, "Mine")
	theirs := fx.createWorkspace(t, "someone-else", "Theirs")

	_, err := fx.workspaces.Switch(ctx, user.ID, theirs.Workspace.ID)
	require.ErrorIs(t, err, ErrWorkspaceNotFound)
	require.Equal(t, mine.Workspace.ID, *fx.currentWorkspace(t, user.ID))

	_, err = fx.workspaces.Switch(ctx, user.ID, " ")
	require.ErrorIs(t, err, ErrWorkspaceIDMissing)

	second := fx.createWorkspace(t, "someone-else", "Shared")
	fx.addMember(t, second.Workspace.ID, user.ID, models.RoleViewer)

	switched, err := fx.workspaces.Switch(ctx, user.ID, second.Workspace.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoleViewer, switched.Membership.Role)
	require.Equal(t, second.Workspace.ID, *fx.currentWorkspace(t, user.ID))
}
