package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/adboard/internal/models"
	apperrors "github.com/charlesng35/adboard/pkg/errors"
)

type recordingNotifier struct {
	calls []string
	err   error
}

func (n *recordingNotifier) InvitationCreated(_ context.Context, invitation models.WorkspaceInvitation, token, link string) error {
	n.calls = append(n.calls, invitation.Email+"|"+token+"|"+link)
	return n.err
}

func TestInvitationInviteDefaultsAndNormalises(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	fx := newServiceFixture(t,
		WithInvitationNotifier(notifier),
		WithInvitationBaseURL("https://app.example.com/"),
		WithInvitationTTL(48*time.Hour),
	)
	ctx := context.Background()

	ws := fx.createWorkspace(t, "owner", "Acme")

	result, err := fx.invitations.Invite(ctx, ws.Workspace.ID, "owner", "  Jane@Acme.COM ", "")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Contains(t, result.Link, "https://app.example.com/invitations/accept?token=")
	require.Equal(t, "jane@acme.com", result.Invitation.Email)
	require.Equal(t, models.RoleMember, result.Invitation.Role)
	require.Equal(t, "owner", result.Invitation.InvitedBy)
	require.Equal(t, models.InvitationPending, result.Invitation.Status)
	require.Equal(t, fx.now.Add(48*time.Hour), result.Invitation.ExpiresAt)
	require.NotEqual(t, result.Token, result.Invitation.TokenHash)
	require.Len(t, notifier.calls, 1)
}

func TestInvitationInviteValidation(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	ws := fx.createWorkspace(t, "owner", "Acme")
	id := ws.Workspace.ID
	fx.addMember(t, id, "member", models.RoleMember)

	_, err := fx.invitations.Invite(ctx, id, "owner", "jane@acme.com", "owner")
	require.ErrorIs(t, err, ErrOwnerInvitation)

	_, err = fx.invitations.Invite(ctx, id, "owner", "jane@acme.com", "root")
	require.ErrorIs(t, err, ErrInvalidRole)

	_, err = fx.invitations.Invite(ctx, id, "owner", "not-an-email", "viewer")
	require.ErrorIs(t, err, ErrInvalidEmail)

	_, err = fx.invitations.Invite(ctx, id, "member", "jane@acme.com", "viewer")
	require.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = fx.invitations.Invite(ctx, id, "stranger", "jane@acme.com", "viewer")
	require.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestInvitationDedupAndReinviteAfterResolution(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	ws := fx.createWorkspace(t, "owner", "Acme")
	id := ws.Workspace.ID

	first, err := fx.invitations.Invite(ctx, id, "owner", "a@x.com", "member")
	require.NoError(t, err)

	_, err = fx.invitations.Invite(ctx, id, "owner", "A@X.com", "viewer")
	require.ErrorIs(t, err, ErrInvitationPending)
	require.True(t, apperrors.Is(err, apperrors.ErrConflict))

	revoked, err := fx.invitations.Revoke(ctx, id, first.Invitation.ID, "owner")
	require.NoError(t, err)
	require.Equal(t, models.InvitationRevoked, revoked.Status)

	_, err = fx.invitations.Revoke(ctx, id, first.Invitation.ID, "owner")
	require.ErrorIs(t, err, ErrInvitationNotPending)

	second, err := fx.invitations.Invite(ctx, id, "owner", "a@x.com", "viewer")
	require.NoError(t, err)
	require.NotEqual(t, first.Invitation.ID, second.Invitation.ID)

	other := fx.createWorkspace(t, "owner", "Other")
	_, err = fx.invitations.Invite(ctx, other.Workspace.ID, "owner", "a@x.com", "viewer")
	require.NoError(t, err)
}

func TestInvitationIsNotMembershipUntilAccepted(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	owner := fx.profile(t, "owner@acme.com")
	jane := fx.profile(t, "jane@acme.com")
	ws := fx.createWorkspace(t, owner.ID, "Acme")
	id := ws.Workspace.ID

	invite, err := fx.invitations.Invite(ctx, id, owner.ID, "jane@acme.com", "member")
	require.NoError(t, err)

	members, err := fx.members.List(ctx, id, owner.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)

	member, err := fx.invitations.Accept(ctx, invite.Token, jane.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoleMember, member.Role)
	require.Equal(t, id, member.WorkspaceID)

	members, err = fx.members.List(ctx, id, owner.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	pending, err := fx.invitations.List(ctx, id, owner.ID, "pending")
	require.NoError(t, err)
	require.Empty(t, pending)

	accepted, err := fx.invitations.List(ctx, id, owner.ID, "accepted")
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	require.NotNil(t, accepted[0].RespondedAt)

	_, err = fx.invitations.Accept(ctx, invite.Token, jane.ID)
	require.ErrorIs(t, err, ErrInvitationNotPending)
}

func TestInvitationAcceptRejections(t *testing.T) {
	fx := newServiceFixture(t, WithInvitationTTL(time.Hour))
	ctx := context.Background()

	ws := fx.createWorkspace(t, "owner", "Acme")
	id := ws.Workspace.ID
	mallory := fx.profile(t, "mallory@evil.com")
	jane := fx.profile(t, "jane@acme.com")

	invite, err := fx.invitations.Invite(ctx, id, "owner", "jane@acme.com", "viewer")
	require.NoError(t, err)

	_, err = fx.invitations.Accept(ctx, "", jane.ID)
	require.ErrorIs(t, err, ErrInvitationTokenMissing)

	_, err = fx.invitations.Accept(ctx, "bogus", jane.ID)
	require.ErrorIs(t, err, ErrInvitationNotFound)

	_, err = fx.invitations.Accept(ctx, invite.Token, mallory.ID)
	require.ErrorIs(t, err, ErrInvitationEmailMismatch)

	fx.now = fx.now.Add(2 * time.Hour)
	_, err = fx.invitations.Accept(ctx, invite.Token, jane.ID)
	require.ErrorIs(t, err, ErrInvitationExpired)

	var stored models.WorkspaceInvitation
	require.NoError(t, fx.db.Take(&stored, "id = ?", invite.Invitation.ID).Error)
	require.Equal(t, models.InvitationExpired, stored.Status)
	require.Nil(t, stored.PendingEmail)
}

func TestInvitationAcceptKeepsExistingMembership(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	jane := fx.profile(t, "jane@acme.com")
	ws := fx.createWorkspace(t, "owner", "Acme")
	existing := fx.addMember(t, ws.Workspace.ID, jane.ID, models.RoleAdmin)

	invite, err := fx.invitations.Invite(ctx, ws.Workspace.ID, "owner", "jane@acme.com", "viewer")
	require.NoError(t, err)

	member, err := fx.invitations.Accept(ctx, invite.Token, jane.ID)
	require.NoError(t, err)
	require.Equal(t, existing.ID, member.ID)
	require.Equal(t, models.RoleAdmin, member.Role)
}

func TestInvitationListAndExpirePending(t *testing.T) {
	fx := newServiceFixture(t, WithInvitationTTL(time.Hour))
	ctx := context.Background()

	ws := fx.createWorkspace(t, "owner", "Acme")
	id := ws.Workspace.ID
	fx.addMember(t, id, "viewer", models.RoleViewer)

	_, err := fx.invitations.Invite(ctx, id, "owner", "a@x.com", "")
	require.NoError(t, err)
	_, err = fx.invitations.Invite(ctx, id, "owner", "b@x.com", "")
	require.NoError(t, err)

	_, err = fx.invitations.List(ctx, id, "viewer", "")
	require.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = fx.invitations.List(ctx, id, "owner", "bogus")
	require.ErrorIs(t, err, ErrInvalidInvitationStatus)

	expired, err := fx.invitations.ExpirePending(ctx, fx.now.Add(30*time.Minute))
	require.NoError(t, err)
	require.Zero(t, expired)

	expired, err = fx.invitations.ExpirePending(ctx, fx.now.Add(2*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 2, expired)

	all, err := fx.invitations.List(ctx, id, "owner", "expired")
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = fx.invitations.Invite(ctx, id, "owner", "a@x.com", "")
	require.NoError(t, err)
}
