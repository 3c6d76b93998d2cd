package permissions

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/adboard/internal/models"
	apperrors "github.com/charlesng35/adboard/pkg/errors"
)

func TestAuthorizeMinimumRoles(t *testing.T) {
	cases := []struct {
		action  Action
		allowed []models.WorkspaceRole
		denied  []models.WorkspaceRole
	}{
		{ActionViewWorkspace, []models.WorkspaceRole{models.RoleOwner, models.RoleAdmin, models.RoleMember, models.RoleViewer}, nil},
		{ActionUpdateWorkspace, []models.WorkspaceRole{models.RoleOwner, models.RoleAdmin}, []models.WorkspaceRole{models.RoleMember, models.RoleViewer}},
		{ActionInvite, []models.WorkspaceRole{models.RoleOwner, models.RoleAdmin}, []models.WorkspaceRole{models.RoleMember, models.RoleViewer}},
		{ActionListMembers, []models.WorkspaceRole{models.RoleOwner, models.RoleAdmin}, []models.WorkspaceRole{models.RoleMember, models.RoleViewer}},
		{ActionRevokeInvite, []models.WorkspaceRole{models.RoleOwner, models.RoleAdmin}, []models.WorkspaceRole{models.RoleMember}},
		{ActionDeleteWorkspace, []models.WorkspaceRole{models.RoleOwner}, []models.WorkspaceRole{models.RoleAdmin, models.RoleMember, models.RoleViewer}},
	}

	for _, tc := range cases {
		for _, role := range tc.allowed {
			require.NoError(t, Authorize(Request{Action: tc.action, Actor: role}), "%s as %s", tc.action, role)
		}
		for _, role := range tc.denied {
			err := Authorize(Request{Action: tc.action, Actor: role})
			require.True(t, apperrors.Is(err, apperrors.ErrForbidden), "%s as %s", tc.action, role)
		}
	}
}

func TestAuthorizeFailsClosedForNonMembers(t *testing.T) {
	for _, def := range All() {
		err := Authorize(Request{Action: def.Action})
		require.True(t, apperrors.Is(err, apperrors.ErrForbidden), string(def.Action))
	}

	err := Authorize(Request{Action: Action("campaign.launch"), Actor: models.RoleOwner})
	require.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestAuthorizeDeletePersonalWorkspace(t *testing.T) {
	err := Authorize(Request{Action: ActionDeleteWorkspace, Actor: models.RoleOwner, Personal: true})
	require.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, CodePersonalWorkspace, appErr.Code)
}

func TestAuthorizeOwnerNeverRemovable(t *testing.T) {
	for _, actor := range []models.WorkspaceRole{models.RoleOwner, models.RoleAdmin, models.RoleMember, models.RoleViewer} {
		for _, self := range []bool{true, false} {
			err := Authorize(Request{Action: ActionRemoveMember, Actor: actor, Target: models.RoleOwner, Self: self})
			require.True(t, apperrors.Is(err, apperrors.ErrForbidden), "actor %s self %v", actor, self)
		}
	}
}

func TestAuthorizeRemoval(t *testing.T) {
	require.NoError(t, Authorize(Request{Action: ActionRemoveMember, Actor: models.RoleAdmin, Target: models.RoleAdmin}))
	require.NoError(t, Authorize(Request{Action: ActionRemoveMember, Actor: models.RoleOwner, Target: models.RoleViewer}))
	require.NoError(t, Authorize(Request{Action: ActionRemoveMember, Actor: models.RoleViewer, Target: models.RoleViewer, Self: true}))
	require.NoError(t, Authorize(Request{Action: ActionRemoveMember, Actor: models.RoleAdmin, Target: models.RoleAdmin, Self: true}))

	err := Authorize(Request{Action: ActionRemoveMember, Actor: models.RoleMember, Target: models.RoleViewer})
	require.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestAuthorizeRoleChangeEscalationGuard(t *testing.T) {
	err := Authorize(Request{Action: ActionChangeRole, Actor: models.RoleAdmin, Target: models.RoleMember, Assign: models.RoleOwner})
	require.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	err = Authorize(Request{Action: ActionChangeRole, Actor: models.RoleAdmin, Target: models.RoleOwner, Assign: models.RoleAdmin})
	require.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	require.NoError(t, Authorize(Request{Action: ActionChangeRole, Actor: models.RoleAdmin, Target: models.RoleMember, Assign: models.RoleAdmin}))
	require.NoError(t, Authorize(Request{Action: ActionChangeRole, Actor: models.RoleAdmin, Target: models.RoleAdmin, Assign: models.RoleViewer}))
	require.NoError(t, Authorize(Request{Action: ActionChangeRole, Actor: models.RoleOwner, Target: models.RoleMember, Assign: models.RoleOwner}))

	err = Authorize(Request{Action: ActionChangeRole, Actor: models.RoleMember, Target: models.RoleViewer, Assign: models.RoleMember})
	require.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestAuthorizeOwnerSelfDemotion(t *testing.T) {
	err := Authorize(Request{Action: ActionChangeRole, Actor: models.RoleOwner, Target: models.RoleOwner, Assign: models.RoleAdmin, Self: true})
	require.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, CodeOwnerSelfDemotion, appErr.Code)
}

func TestAuthorizeRejectsUnknownAssignment(t *testing.T) {
	err := Authorize(Request{Action: ActionChangeRole, Actor: models.RoleOwner, Target: models.RoleMember, Assign: "superuser"})
	require.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestRegisterRejectsDuplicatesAndInvalidRoles(t *testing.T) {
	const action Action = "test.unique.action"
	require.NoError(t, Register(Definition{Action: action, MinRole: models.RoleMember}))
	t.Cleanup(func() { unregister(action) })

	require.Error(t, Register(Definition{Action: action, MinRole: models.RoleMember}))
	require.Error(t, Register(Definition{Action: "test.bad.role", MinRole: "root"}))
	require.Error(t, Register(Definition{MinRole: models.RoleMember}))

	def, ok := Get(action)
	require.True(t, ok)
	require.Equal(t, models.RoleMember, def.MinRole)
}
