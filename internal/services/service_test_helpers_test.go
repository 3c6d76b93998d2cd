package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/adboard/internal/database/testutil"
	"github.com/charlesng35/adboard/internal/models"
)

type serviceFixture struct {
	db          *gorm.DB
	workspaces  *WorkspaceService
	members     *MemberService
	invitations *InvitationService
	now         time.Time
}

func newServiceFixture(t *testing.T, opts ...InvitationOption) *serviceFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	fx := &serviceFixture{db: db, now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return fx.now }

	var err error
	fx.workspaces, err = NewWorkspaceService(db, WithWorkspaceClock(clock))
	require.NoError(t, err)
	fx.members, err = NewMemberService(db)
	require.NoError(t, err)
	fx.invitations, err = NewInvitationService(db, append([]InvitationOption{WithInvitationClock(clock)}, opts...)...)
	require.NoError(t, err)

	return fx
}

// createWorkspace creates a workspace owned by ownerID and returns it.
func (fx *serviceFixture) createWorkspace(t *testing.T, ownerID, name string) *WorkspaceMembership {
	t.Helper()

	created, err := fx.workspaces.Create(context.Background(), ownerID, CreateWorkspaceInput{Name: name})
	require.NoError(t, err)
	return created
}

// addMember inserts a membership directly, bypassing invitations.
func (fx *serviceFixture) addMember(t *testing.T, workspaceID, userID string, role models.WorkspaceRole) *models.WorkspaceMember {
	t.Helper()

	fx.now = fx.now.Add(time.Minute)
	member := &models.WorkspaceMember{WorkspaceID: workspaceID, UserID: userID, Role: role, JoinedAt: fx.now}
	require.NoError(t, fx.db.Create(member).Error)
	return member
}

func (fx *serviceFixture) profile(t *testing.T, email string) *models.Profile {
	t.Helper()
	return testutil.MustCreateProfile(t, fx.db, email)
}

func (fx *serviceFixture) ownerCount(t *testing.T, workspaceID string) int64 {
	t.Helper()

	var count int64
	require.NoError(t, fx.db.Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND role = ?", workspaceID, models.RoleOwner).
		Count(&count).Error)
	return count
}

func (fx *serviceFixture) currentWorkspace(t *testing.T, userID string) *string {
	t.Helper()

	var profile models.Profile
	require.NoError(t, fx.db.Take(&profile, "id = ?", userID).Error)
	return profile.CurrentWorkspaceID
}
