package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/adboard/internal/models"
	"github.com/charlesng35/adboard/internal/permissions"
	"github.com/charlesng35/adboard/pkg/crypto"
	"github.com/charlesng35/adboard/pkg/logger"
	"github.com/charlesng35/adboard/pkg/metrics"
	"github.com/charlesng35/adboard/pkg/validator"
)

const (
	defaultInvitationTTL        = 7 * 24 * time.Hour
	defaultInvitationTokenBytes = 32
)

// InvitationNotifier delivers a freshly created invitation to its recipient.
// It runs after the invitation is committed and cannot fail the invite.
type InvitationNotifier interface {
	InvitationCreated(ctx context.Context, invitation models.WorkspaceInvitation, token, link string) error
}

// InvitationResult is returned once per invite and is the only place the raw
// token is ever exposed.
type InvitationResult struct {
	Invitation models.WorkspaceInvitation `json:"invitation"`
	Token      string                     `json:"token"`
	Link       string                     `json:"link,omitempty"`
}

// InvitationOption customises InvitationService behaviour.
type InvitationOption func(*InvitationService)

// WithInvitationTTL overrides how long an invitation stays acceptable.
func WithInvitationTTL(d time.Duration) InvitationOption {
	return func(s *InvitationService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithInvitationTokenSize adjusts the random token length in bytes.
func WithInvitationTokenSize(size int) InvitationOption {
	return func(s *InvitationService) {
		if size > 0 {
			s.tokenLength = size
		}
	}
}

// WithInvitationBaseURL configures the base URL used to build accept links.
func WithInvitationBaseURL(base string) InvitationOption {
	return func(s *InvitationService) {
		s.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	}
}

// WithInvitationNotifier registers the delivery collaborator.
func WithInvitationNotifier(notifier InvitationNotifier) InvitationOption {
	return func(s *InvitationService) {
		s.notifier = notifier
	}
}

// WithInvitationClock injects a custom clock primarily for testing.
func WithInvitationClock(clock func() time.Time) InvitationOption {
	return func(s *InvitationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// InvitationService creates, lists, revokes, accepts and expires workspace invitations.
type InvitationService struct {
	db          *gorm.DB
	roles       *permissions.Checker
	notifier    InvitationNotifier
	baseURL     string
	ttl         time.Duration
	tokenLength int
	now         func() time.Time
}

// NewInvitationService constructs an InvitationService.
func NewInvitationService(db *gorm.DB, opts ...InvitationOption) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}

	roles, err := permissions.NewChecker(db)
	if err != nil {
		return nil, err
	}

	svc := &InvitationService{
		db:          db,
		roles:       roles,
		ttl:         defaultInvitationTTL,
		tokenLength: defaultInvitationTokenBytes,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Invite records a pending invitation. A second pending invitation for the
// same address is rejected by the store's unique index, not by a pre-check.
func (s *InvitationService) Invite(ctx context.Context, workspaceID, actorID, email, role string) (*InvitationResult, error) {
	ctx = ensureContext(ctx)

	actor, err := optionalMembership(ctx, s.roles, workspaceID, actorID)
	if err != nil {
		return nil, fmt.Errorf("invitation service: %w", err)
	}
	if err := permissions.Authorize(permissions.Request{Action: permissions.ActionInvite, Actor: actorRole(actor)}); err != nil {
		return nil, err
	}

	email = models.NormalizeEmail(email)
	if err := validator.ValidateVar(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}

	assign := models.RoleMember
	if strings.TrimSpace(role) != "" {
		parsed, err := models.ParseWorkspaceRole(role)
		if err != nil {
			return nil, ErrInvalidRole
		}
		assign = parsed
	}
	if !assign.Invitable() {
		return nil, ErrOwnerInvitation
	}

	token, err := crypto.GenerateToken(s.tokenLength)
	if err != nil {
		return nil, fmt.Errorf("invitation service: generate token: %w", err)
	}

	now := s.now().UTC()
	invitation := models.WorkspaceInvitation{
		WorkspaceID: actor.WorkspaceID,
		Email:       email,
		Role:        assign,
		InvitedBy:   actor.UserID,
		TokenHash:   crypto.HashToken(token),
		Status:      models.InvitationPending,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(&invitation).Error; err != nil {
		if isUniqueConstraintError(err) {
			metrics.Invitations.WithLabelValues("conflict").Inc()
			return nil, ErrInvitationPending
		}
		return nil, fmt.Errorf("invitation service: create invitation: %w", err)
	}
	metrics.Invitations.WithLabelValues("created").Inc()

	result := &InvitationResult{Invitation: invitation, Token: token, Link: s.acceptLink(token)}

	if s.notifier != nil {
		if err := s.notifier.InvitationCreated(ctx, invitation, token, result.Link); err != nil {
			logger.WithModule("invitations").Warn("invitation notifier failed",
				zap.String("invitation_id", invitation.ID),
				zap.String("workspace_id", invitation.WorkspaceID),
				zap.Error(err),
			)
		}
	}

	return result, nil
}

func (s *InvitationService) acceptLink(token string) string {
	if s.baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/invitations/accept?token=%s", s.baseURL, url.QueryEscape(token))
}

// List returns the workspace's invitations, newest first, optionally filtered by status.
func (s *InvitationService) List(ctx context.Context, workspaceID, actorID, status string) ([]models.WorkspaceInvitation, error) {
	ctx = ensureContext(ctx)

	actor, err := optionalMembership(ctx, s.roles, workspaceID, actorID)
	if err != nil {
		return nil, fmt.Errorf("invitation service: %w", err)
	}
	if err := permissions.Authorize(permissions.Request{Action: permissions.ActionListInvitations, Actor: actorRole(actor)}); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Where("workspace_id = ?", actor.WorkspaceID)
	if status = strings.ToLower(strings.TrimSpace(status)); status != "" {
		if !models.InvitationStatus(status).Valid() {
			return nil, ErrInvalidInvitationStatus
		}
		query = query.Where("status = ?", status)
	}

	var invitations []models.WorkspaceInvitation
	if err := query.Order("created_at DESC").Order("id ASC").Find(&invitations).Error; err != nil {
		return nil, fmt.Errorf("invitation service: list invitations: %w", err)
	}
	return invitations, nil
}

// Revoke moves a pending invitation to revoked.
func (s *InvitationService) Revoke(ctx context.Context, workspaceID, invitationID, actorID string) (*models.WorkspaceInvitation, error) {
	ctx = ensureContext(ctx)

	actor, err := optionalMembership(ctx, s.roles, workspaceID, actorID)
	if err != nil {
		return nil, fmt.Errorf("invitation service: %w", err)
	}
	if err := permissions.Authorize(permissions.Request{Action: permissions.ActionRevokeInvite, Actor: actorRole(actor)}); err != nil {
		return nil, err
	}

	var invitation models.WorkspaceInvitation
	if err := s.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", strings.TrimSpace(invitationID), actor.WorkspaceID).
		Take(&invitation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("invitation service: load invitation: %w", err)
	}

	if err := s.resolve(s.db.WithContext(ctx), &invitation, models.InvitationRevoked); err != nil {
		return nil, err
	}
	metrics.Invitations.WithLabelValues("revoked").Inc()
	return &invitation, nil
}

// Accept converts a pending invitation into a membership for the user whose
// profile email matches the invitation. A user who is already a member keeps
// their existing membership.
func (s *InvitationService) Accept(ctx context.Context, token, userID string) (*models.WorkspaceMember, error) {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvitationTokenMissing
	}

	var invitation models.WorkspaceInvitation
	if err := s.db.WithContext(ctx).Where("token_hash = ?", crypto.HashToken(token)).Take(&invitation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("invitation service: load invitation: %w", err)
	}

	switch invitation.Status {
	case models.InvitationPending:
	case models.InvitationExpired:
		return nil, ErrInvitationExpired
	default:
		return nil, ErrInvitationNotPending
	}

	now := s.now().UTC()
	if !invitation.IsPending(now) {
		if err := s.resolve(s.db.WithContext(ctx), &invitation, models.InvitationExpired); err == nil {
			metrics.Invitations.WithLabelValues("expired").Inc()
		}
		return nil, ErrInvitationExpired
	}

	var profile models.Profile
	if err := s.db.WithContext(ctx).Take(&profile, "id = ?", strings.TrimSpace(userID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationEmailMismatch
		}
		return nil, fmt.Errorf("invitation service: load profile: %w", err)
	}
	if models.NormalizeEmail(profile.Email) != invitation.Email {
		return nil, ErrInvitationEmailMismatch
	}

	var member models.WorkspaceMember
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.resolve(tx, &invitation, models.InvitationAccepted); err != nil {
			return err
		}

		err := tx.Where("workspace_id = ? AND user_id = ?", invitation.WorkspaceID, profile.ID).Take(&member).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("invitation service: load membership: %w", err)
		}

		member = models.WorkspaceMember{
			WorkspaceID: invitation.WorkspaceID,
			UserID:      profile.ID,
			Role:        invitation.Role,
			JoinedAt:    now,
		}
		if err := tx.Create(&member).Error; err != nil {
			return fmt.Errorf("invitation service: create membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Invitations.WithLabelValues("accepted").Inc()
	return &member, nil
}

// ExpirePending marks every pending invitation whose expiry has passed as expired.
func (s *InvitationService) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	res := s.db.WithContext(ctx).
		Model(&models.WorkspaceInvitation{}).
		Where("status = ? AND expires_at <= ?", models.InvitationPending, now.UTC()).
		Updates(models.ResolveColumns(models.InvitationExpired, now.UTC()))
	if res.Error != nil {
		return 0, fmt.Errorf("invitation service: expire invitations: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		metrics.Invitations.WithLabelValues("expired").Add(float64(res.RowsAffected))
	}
	return res.RowsAffected, nil
}

// resolve moves a pending invitation to status with a compare-and-update on
// the pending status, so concurrent resolutions cannot both succeed.
func (s *InvitationService) resolve(db *gorm.DB, invitation *models.WorkspaceInvitation, status models.InvitationStatus) error {
	now := s.now().UTC()
	res := db.Model(&models.WorkspaceInvitation{}).
		Where("id = ? AND status = ?", invitation.ID, models.InvitationPending).
		Updates(models.ResolveColumns(status, now))
	if res.Error != nil {
		return fmt.Errorf("invitation service: update invitation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvitationNotPending
	}

	invitation.Status = status
	invitation.PendingEmail = nil
	invitation.RespondedAt = &now
	return nil
}
