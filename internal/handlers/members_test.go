package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/adboard/internal/handlers/testutil"
	"github.com/charlesng35/adboard/internal/models"
	"github.com/charlesng35/adboard/internal/permissions"
	"github.com/charlesng35/adboard/internal/services"
)

func inviteMember(t *testing.T, env *testutil.Env, workspaceID string, inviter testutil.User, email, role string) services.InvitationResult {
	t.Helper()

	body := map[string]any{"email": email}
	if role != "" {
		body["role"] = role
	}
	resp := env.Request(http.MethodPost, "/api/workspaces/"+workspaceID+"/members", body, inviter.Token)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var result services.InvitationResult
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &result)
	return result
}

func joinWorkspace(t *testing.T, env *testutil.Env, workspaceID string, inviter, invitee testutil.User, role string) models.WorkspaceMember {
	t.Helper()

	invitation := inviteMember(t, env, workspaceID, inviter, invitee.Profile.Email, role)
	resp := env.Request(http.MethodPost, "/api/invitations/accept", map[string]any{"token": invitation.Token}, invitee.Token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var member models.WorkspaceMember
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &member)
	return member
}

func TestMemberHandlerList(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.CreateUser("alice@example.com")
	bob := env.CreateUser("bob@example.com")
	created := createWorkspace(t, env, alice, "Acme")
	joinWorkspace(t, env, created.Workspace.ID, alice, bob, "viewer")

	resp := env.Request(http.MethodGet, "/api/workspaces/"+created.Workspace.ID+"/members", nil, alice.Token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var members []services.MemberWithProfile
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &members)
	require.Len(t, members, 2)
	require.Equal(t, alice.ID(), members[0].UserID)
	require.Equal(t, models.RoleOwner, members[0].Role)
	require.NotNil(t, members[1].Profile)
	require.Equal(t, "bob@example.com", members[1].Profile.Email)
	require.Equal(t, models.RoleViewer, members[1].Role)

	resp = env.Request(http.MethodGet, "/api/workspaces/"+created.Workspace.ID+"/members", nil, bob.Token)
	testutil.RequireError(t, resp, http.StatusForbidden, permissions.CodeInsufficientRole)
}

func TestMemberHandlerInvite(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.CreateUser("alice@example.com")
	bob := env.CreateUser("bob@example.com")
	created := createWorkspace(t, env, alice, "Acme")
	path := "/api/workspaces/" + created.Workspace.ID + "/members"

	result := inviteMember(t, env, created.Workspace.ID, alice, "  Carol@Example.com ", "")
	require.NotEmpty(t, result.Token)
	require.Equal(t, "carol@example.com", result.Invitation.Email)
	require.Equal(t, models.RoleMember, result.Invitation.Role)
	require.Equal(t, models.InvitationPending, result.Invitation.Status)
	require.Contains(t, result.Link, "https://app.example.com/invitations/accept?token=")

	resp := env.Request(http.MethodPost, path, map[string]any{"email": "carol@example.com"}, alice.Token)
	testutil.RequireError(t, resp, http.StatusConflict, "INVITATION_PENDING")

	resp = env.Request(http.MethodPost, path, map[string]any{"email": "not-an-email"}, alice.Token)
	testutil.RequireError(t, resp, http.StatusBadRequest, "INVALID_EMAIL")

	resp = env.Request(http.MethodPost, path, map[string]any{"email": "dave@example.com", "role": "owner"}, alice.Token)
	testutil.RequireError(t, resp, http.StatusBadRequest, "INVITATION_OWNER_ROLE")

	resp = env.Request(http.MethodPost, path, map[string]any{"email": "dave@example.com", "role": "superuser"}, alice.Token)
	testutil.RequireError(t, resp, http.StatusBadRequest, "INVALID_ROLE")

	// Outsiders are denied before their input is judged.
	resp = env.Request(http.MethodPost, path, map[string]any{"email": "not-an-email"}, bob.Token)
	testutil.RequireError(t, resp, http.StatusForbidden, permissions.CodeNotMember)
}

func TestMemberHandlerUpdateRole(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.CreateUser("alice@example.com")
	bob := env.CreateUser("bob@example.com")
	carol := env.CreateUser("carol@example.com")
	created := createWorkspace(t, env, alice, "Acme")
	bobMember := joinWorkspace(t, env, created.Workspace.ID, alice, bob, "member")
	carolMember := joinWorkspace(t, env, created.Workspace.ID, alice, carol, "viewer")
	base := "/api/workspaces/" + created.Workspace.ID + "/members/"

	resp := env.Request(http.MethodPatch, base+bobMember.ID, map[string]any{"role": "admin"}, alice.Token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var updated models.WorkspaceMember
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &updated)
	require.Equal(t, models.RoleAdmin, updated.Role)

	resp = env.Request(http.MethodPatch, base+carolMember.ID, map[string]any{"role": "admin"}, carol.Token)
	testutil.RequireError(t, resp, http.StatusForbidden, permissions.CodeInsufficientRole)

	resp = env.Request(http.MethodPatch, base+created.Membership.ID, map[string]any{"role": "member"}, bob.Token)
	testutil.RequireError(t, resp, http.StatusForbidden, permissions.CodeOwnerProtected)

	resp = env.Request(http.MethodPatch, base+created.Membership.ID, map[string]any{"role": "admin"}, alice.Token)
	testutil.RequireError(t, resp, http.StatusForbidden, permissions.CodeOwnerSelfDemotion)

	resp = env.Request(http.MethodPatch, base+carolMember.ID, map[string]any{"role": "emperor"}, alice.Token)
	testutil.RequireError(t, resp, http.StatusBadRequest, "INVALID_ROLE")

	mallory := env.CreateUser("mallory@example.com")
	resp = env.Request(http.MethodPatch, base+carolMember.ID, map[string]any{"role": "emperor"}, mallory.Token)
	testutil.RequireError(t, resp, http.StatusForbidden, permissions.CodeNotMember)

	resp = env.Request(http.MethodPatch, base+bobMember.ID, map[string]any{"role": "emperor"}, carol.Token)
	testutil.RequireError(t, resp, http.StatusForbidden, permissions.CodeInsufficientRole)

	resp = env.Request(http.MethodPatch, base+"missing", map[string]any{"role": "admin"}, alice.Token)
	testutil.RequireError(t, resp, http.StatusNotFound, "MEMBER_NOT_FOUND")
}

func TestMemberHandlerTransferOwnership(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.CreateUser("alice@example.com")
	bob := env.CreateUser("bob@example.com")
	created := createWorkspace(t, env, alice, "Acme")
	bobMember := joinWorkspace(t, env, created.Workspace.ID, alice, bob, "admin")
	base := "/api/workspaces/" + created.Workspace.ID + "/members/"

	resp := env.Request(http.MethodPatch, base+bobMember.ID, map[string]any{"role": "owner"}, alice.Token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var members []models.WorkspaceMember
	require.NoError(t, env.DB.Where("workspace_id = ?", created.Workspace.ID).Order("joined_at ASC").Find(&members).Error)
	require.Len(t, members, 2)
	require.Equal(t, models.RoleAdmin, members[0].Role)
	require.Equal(t, models.RoleOwner, members[1].Role)
	require.Equal(t, bob.ID(), members[1].UserID)

	// The new owner may now delete; the former owner may not.
	resp = env.Request(http.MethodDelete, "/api/workspaces/"+created.Workspace.ID, nil, alice.Token)
	testutil.RequireError(t, resp, http.StatusForbidden, permissions.CodeInsufficientRole)
}

func TestMemberHandlerRemove(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.CreateUser("alice@example.com")
	bob := env.CreateUser("bob@example.com")
	carol := env.CreateUser("carol@example.com")
	created := createWorkspace(t, env, alice, "Acme")
	bobMember := joinWorkspace(t, env, created.Workspace.ID, alice, bob, "member")
	carolMember := joinWorkspace(t, env, created.Workspace.ID, alice, carol, "member")
	base := "/api/workspaces/" + created.Workspace.ID + "/members/"

	resp := env.Request(http.MethodDelete, base+carolMember.ID, nil, bob.Token)
	testutil.RequireError(t, resp, http.StatusForbidden, permissions.CodeInsufficientRole)

	resp = env.Request(http.MethodDelete, base+created.Membership.ID, nil, alice.Token)
	testutil.RequireError(t, resp, http.StatusForbidden, permissions.CodeOwnerProtected)

	// Leaving is always allowed.
	resp = env.Request(http.MethodDelete, base+bobMember.ID, nil, bob.Token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodDelete, base+carolMember.ID, nil, alice.Token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodDelete, base+carolMember.ID, nil, alice.Token)
	testutil.RequireError(t, resp, http.StatusNotFound, "MEMBER_NOT_FOUND")

	var count int64
	require.NoError(t, env.DB.Model(&models.WorkspaceMember{}).Where("workspace_id = ?", created.Workspace.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}
