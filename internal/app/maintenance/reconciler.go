package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/adboard/internal/cache"
	"github.com/charlesng35/adboard/internal/models"
	"github.com/charlesng35/adboard/internal/services"
	"github.com/charlesng35/adboard/pkg/logger"
	"github.com/charlesng35/adboard/pkg/metrics"
)

const (
	defaultSchedule            = "@every 15m"
	defaultOrphanGracePeriod   = 10 * time.Minute
	defaultInvitationRetention = 30 * 24 * time.Hour
)

// Stats counts the rows each repair touched during one sweep.
type Stats struct {
	ExpiredInvitations int64
	PromotedOwners     int64
	DeletedWorkspaces  int64
	ClearedPointers    int64
	PurgedInvitations  int64
	PurgedCacheEntries int64
}

// Reconciler repairs membership data that escaped the request path: stale
// invitations, workspaces left without an owner and profile pointers that
// no longer match a membership.
type Reconciler struct {
	db          *gorm.DB
	invitations *services.InvitationService
	cacheStore  *cache.DatabaseStore
	cron        *cron.Cron
	now         func() time.Time
	log         *zap.Logger

	schedule    string
	orphanGrace time.Duration
	retention   time.Duration
}

// Option customises the Reconciler.
type Option func(*Reconciler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Reconciler) {
		if c != nil {
			r.cron = c
		}
	}
}

// WithNow overrides the clock used for age comparisons.
func WithNow(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSchedule overrides the cron specification for the sweep.
func WithSchedule(spec string) Option {
	return func(r *Reconciler) {
		if spec != "" {
			r.schedule = spec
		}
	}
}

// WithOrphanGracePeriod sets how old an empty ownerless workspace must be
// before it is deleted.
func WithOrphanGracePeriod(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.orphanGrace = d
		}
	}
}

// WithInvitationRetention sets how long resolved invitations are kept.
func WithInvitationRetention(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.retention = d
		}
	}
}

// WithCacheStore enables purging of expired database cache entries.
func WithCacheStore(store *cache.DatabaseStore) Option {
	return func(r *Reconciler) {
		r.cacheStore = store
	}
}

// NewReconciler constructs a Reconciler with sensible defaults.
func NewReconciler(db *gorm.DB, invitations *services.InvitationService, opts ...Option) (*Reconciler, error) {
	if db == nil {
		return nil, errors.New("reconciler: db is required")
	}
	if invitations == nil {
		return nil, errors.New("reconciler: invitation service is required")
	}

	r := &Reconciler{
		db:          db,
		invitations: invitations,
		now:         time.Now,
		log:         logger.WithModule("maintenance"),
		schedule:    defaultSchedule,
		orphanGrace: defaultOrphanGracePeriod,
		retention:   defaultInvitationRetention,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cron == nil {
		r.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return r, nil
}

// Start registers the sweep with the scheduler and launches it.
func (r *Reconciler) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, func() {
		stats, err := r.RunOnce(context.Background())
		if err != nil {
			r.log.Warn("reconciliation sweep failed", zap.Error(err))
		}
		r.log.Debug("reconciliation sweep finished", zap.Any("stats", stats))
	}); err != nil {
		return fmt.Errorf("reconciler: schedule %q: %w", r.schedule, err)
	}

	r.cron.Start()
	return nil
}

// Stop halts the underlying scheduler; the returned context is done once any
// running sweep completes.
func (r *Reconciler) Stop() context.Context {
	if r.cron == nil {
		return context.Background()
	}
	return r.cron.Stop()
}

// RunOnce executes every repair. A failing repair does not stop the others;
// their errors are combined.
func (r *Reconciler) RunOnce(ctx context.Context) (Stats, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	now := r.now().UTC()

	var (
		stats Stats
		errs  error
		err   error
	)

	stats.ExpiredInvitations, err = r.invitations.ExpirePending(ctx, now)
	errs = multierr.Append(errs, err)

	stats.PromotedOwners, stats.DeletedWorkspaces, err = r.RepairOwnership(ctx, now)
	errs = multierr.Append(errs, err)

	stats.ClearedPointers, err = r.RepairProfilePointers(ctx)
	errs = multierr.Append(errs, err)

	stats.PurgedInvitations, err = r.PurgeInvitations(ctx, now)
	errs = multierr.Append(errs, err)

	if r.cacheStore != nil {
		stats.PurgedCacheEntries, err = r.cacheStore.PurgeExpired(ctx, now)
		errs = multierr.Append(errs, err)
	}

	record("owner_promoted", stats.PromotedOwners)
	record("orphan_deleted", stats.DeletedWorkspaces)
	record("pointer_cleared", stats.ClearedPointers)
	record("invitation_purged", stats.PurgedInvitations)
	return stats, errs
}

// RepairOwnership restores the single-owner rule. An ownerless workspace with
// members gets its highest-ranked, earliest-joined member promoted. One with
// no members is deleted once it is older than the grace period.
func (r *Reconciler) RepairOwnership(ctx context.Context, now time.Time) (promoted, deleted int64, err error) {
	var orphans []models.Workspace
	owners := r.db.Table("workspace_members").
		Select("1").
		Where("workspace_members.workspace_id = workspaces.id AND workspace_members.role = ?", models.RoleOwner)
	if err := r.db.WithContext(ctx).
		Where("NOT EXISTS (?)", owners).
		Find(&orphans).Error; err != nil {
		return 0, 0, fmt.Errorf("reconciler: find ownerless workspaces: %w", err)
	}

	var errs error
	for _, workspace := range orphans {
		var members []models.WorkspaceMember
		if err := r.db.WithContext(ctx).Where("workspace_id = ?", workspace.ID).Find(&members).Error; err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconciler: load members of %s: %w", workspace.ID, err))
			continue
		}

		if len(members) == 0 {
			if workspace.CreatedAt.After(now.Add(-r.orphanGrace)) {
				continue
			}
			ok, err := r.deleteEmptyWorkspace(ctx, workspace.ID)
			if err != nil {
				errs = multierr.Append(errs, err)
			} else if ok {
				deleted++
				r.log.Info("deleted empty ownerless workspace", zap.String("workspace_id", workspace.ID))
			}
			continue
		}

		successor := successorOf(members)
		ok, err := r.promote(ctx, successor)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else if ok {
			promoted++
			r.log.Info("promoted member to owner",
				zap.String("workspace_id", workspace.ID),
				zap.String("member_id", successor.ID),
				zap.String("previous_role", string(successor.Role)),
			)
		}
	}
	return promoted, deleted, errs
}

// successorOf picks the highest-ranked member, earliest join first.
func successorOf(members []models.WorkspaceMember) models.WorkspaceMember {
	sorted := make([]models.WorkspaceMember, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Role.Rank() != b.Role.Rank() {
			return a.Role.Rank() > b.Role.Rank()
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.ID < b.ID
	})
	return sorted[0]
}

func (r *Reconciler) promote(ctx context.Context, member models.WorkspaceMember) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.WorkspaceMember{}).
		Where("id = ? AND role <> ?", member.ID, models.RoleOwner).
		Updates(models.RoleColumns(member.WorkspaceID, models.RoleOwner))
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		// Another writer installed an owner since the scan.
		return false, nil
	}
	if res.Error != nil {
		return false, fmt.Errorf("reconciler: promote %s: %w", member.ID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *Reconciler) deleteEmptyWorkspace(ctx context.Context, workspaceID string) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		members := tx.Table("workspace_members").Select("1").Where("workspace_members.workspace_id = workspaces.id")
		res := tx.Where("id = ? AND NOT EXISTS (?)", workspaceID, members).Delete(&models.Workspace{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true

		if err := tx.Where("workspace_id = ?", workspaceID).Delete(&models.WorkspaceInvitation{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Profile{}).
			Where("current_workspace_id = ?", workspaceID).
			Update("current_workspace_id", nil).Error
	})
	if err != nil {
		return false, fmt.Errorf("reconciler: delete workspace %s: %w", workspaceID, err)
	}
	return deleted, nil
}

// RepairProfilePointers clears current_workspace_id wherever the user has no
// membership in the referenced workspace.
func (r *Reconciler) RepairProfilePointers(ctx context.Context) (int64, error) {
	membership := r.db.Table("workspace_members").
		Select("1").
		Where("workspace_members.workspace_id = profiles.current_workspace_id AND workspace_members.user_id = profiles.id")

	res := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("current_workspace_id IS NOT NULL AND NOT EXISTS (?)", membership).
		Update("current_workspace_id", nil)
	if res.Error != nil {
		return 0, fmt.Errorf("reconciler: repair profile pointers: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// PurgeInvitations deletes resolved invitations older than the retention window.
func (r *Reconciler) PurgeInvitations(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status <> ? AND responded_at < ?", models.InvitationPending, now.Add(-r.retention)).
		Delete(&models.WorkspaceInvitation{})
	if res.Error != nil {
		return 0, fmt.Errorf("reconciler: purge invitations: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func record(kind string, n int64) {
	if n > 0 {
		metrics.ReconcileRepairs.WithLabelValues(kind).Add(float64(n))
	}
}
