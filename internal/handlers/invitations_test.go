package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/adboard/internal/handlers/testutil"
	"github.com/charlesng35/adboard/internal/models"
	"github.com/charlesng35/adboard/internal/permissions"
)

func TestInvitationHandlerListAndRevoke(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.CreateUser("alice@example.com")
	bob := env.CreateUser("bob@example.com")
	created := createWorkspace(t, env, alice, "Acme")
	base := "/api/workspaces/" + created.Workspace.ID + "/invitations"

	pending := inviteMember(t, env, created.Workspace.ID, alice, "carol@example.com", "member")
	joinWorkspace(t, env, created.Workspace.ID, alice, bob, "viewer")

	resp := env.Request(http.MethodGet, base, nil, alice.Token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var invitations []models.WorkspaceInvitation
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &invitations)
	require.Len(t, invitations, 2)

	resp = env.Request(http.MethodGet, base+"?status=pending", nil, alice.Token)
	require.Equal(t, http.StatusOK, resp.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &invitations)
	require.Len(t, invitations, 1)
	require.Equal(t, pending.Invitation.ID, invitations[0].ID)

	resp = env.Request(http.MethodGet, base+"?status=bogus", nil, alice.Token)
	testutil.RequireError(t, resp, http.StatusBadRequest, "INVALID_INVITATION_STATUS")

	resp = env.Request(http.MethodGet, base, nil, bob.Token)
	testutil.RequireError(t, resp, http.StatusForbidden, permissions.CodeInsufficientRole)

	resp = env.Request(http.MethodDelete, base+"/"+pending.Invitation.ID, nil, bob.Token)
	testutil.RequireError(t, resp, http.StatusForbidden, permissions.CodeInsufficientRole)

	resp = env.Request(http.MethodDelete, base+"/"+pending.Invitation.ID, nil, alice.Token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var revoked models.WorkspaceInvitation
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &revoked)
	require.Equal(t, models.InvitationRevoked, revoked.Status)

	resp = env.Request(http.MethodDelete, base+"/missing", nil, alice.Token)
	testutil.RequireError(t, resp, http.StatusNotFound, "INVITATION_NOT_FOUND")

	// A revoked address can be invited again.
	inviteMember(t, env, created.Workspace.ID, alice, "carol@example.com", "member")
}

func TestInvitationHandlerAccept(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.CreateUser("alice@example.com")
	bob := env.CreateUser("bob@example.com")
	mallory := env.CreateUser("mallory@example.com")
	created := createWorkspace(t, env, alice, "Acme")
	invitation := inviteMember(t, env, created.Workspace.ID, alice, "bob@example.com", "admin")

	resp := env.Request(http.MethodPost, "/api/invitations/accept", map[string]any{"token": ""}, bob.Token)
	testutil.RequireError(t, resp, http.StatusBadRequest, "INVITATION_TOKEN_REQUIRED")

	resp = env.Request(http.MethodPost, "/api/invitations/accept", map[string]any{"token": "unknown"}, bob.Token)
	testutil.RequireError(t, resp, http.StatusNotFound, "INVITATION_NOT_FOUND")

	resp = env.Request(http.MethodPost, "/api/invitations/accept", map[string]any{"token": invitation.Token}, mallory.Token)
	testutil.RequireError(t, resp, http.StatusForbidden, "INVITATION_EMAIL_MISMATCH")

	resp = env.Request(http.MethodPost, "/api/invitations/accept", map[string]any{"token": invitation.Token}, bob.Token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var member models.WorkspaceMember
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &member)
	require.Equal(t, bob.ID(), member.UserID)
	require.Equal(t, models.RoleAdmin, member.Role)
	require.Equal(t, created.Workspace.ID, member.WorkspaceID)

	resp = env.Request(http.MethodPost, "/api/invitations/accept", map[string]any{"token": invitation.Token}, bob.Token)
	testutil.RequireError(t, resp, http.StatusBadRequest, "INVITATION_NOT_PENDING")

	resp = env.Request(http.MethodGet, "/api/workspaces/"+created.Workspace.ID, nil, bob.Token)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestInvitationHandlerAcceptRequiresAuthentication(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodPost, "/api/invitations/accept", map[string]any{"token": "abc"}, "")
	testutil.RequireError(t, resp, http.StatusUnauthorized, "UNAUTHORIZED")
}
