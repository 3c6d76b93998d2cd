package workspacectx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/charlesng35/adboard/internal/services"
	"github.com/charlesng35/adboard/pkg/logger"
)

// State is the synchronizer lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// AuthEvent is a change in the signed-in identity.
type AuthEvent int

const (
	SignedIn AuthEvent = iota
	SignedOut
)

var (
	// ErrNotReady is returned by Switch before memberships have been loaded.
	ErrNotReady = errors.New("workspacectx: memberships not loaded")
	// ErrUnknownWorkspace is returned by Switch for an id outside the loaded set.
	ErrUnknownWorkspace = errors.New("workspacectx: workspace is not among the loaded memberships")
	// ErrSignedOut is returned when a load finishes after a sign-out.
	ErrSignedOut = errors.New("workspacectx: signed out during load")
)

// Snapshot is a copy of the synchronizer state.
type Snapshot struct {
	State      State
	Workspaces []services.WorkspaceMembership
	CurrentID  string
}

// Current returns the membership for CurrentID.
func (s Snapshot) Current() (*services.WorkspaceMembership, bool) {
	m := find(s.Workspaces, s.CurrentID)
	return m, m != nil
}

// Option customises a Synchronizer.
type Option func(*Synchronizer)

// WithLogger overrides the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Synchronizer) {
		if log != nil {
			s.log = log
		}
	}
}

// WithPersistTimeout bounds each asynchronous pointer write.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

// Synchronizer keeps the client's current workspace consistent between the
// local cache and the server-side profile pointer. The two are independent
// stores; Resolve reconciles them on every load and the local cache wins
// between loads.
type Synchronizer struct {
	remote         Remote
	local          LocalStore
	log            *zap.Logger
	persistTimeout time.Duration

	mu         sync.Mutex
	state      State
	workspaces []services.WorkspaceMembership
	currentID  string
	generation uint64
	// selection counts changes to currentID made by loads and switches.
	selection uint64

	localMu   sync.Mutex
	persistMu sync.Mutex
	group     singleflight.Group
	pending   sync.WaitGroup
}

// NewSynchronizer builds an uninitialised synchronizer.
func NewSynchronizer(remote Remote, local LocalStore, opts ...Option) (*Synchronizer, error) {
	if remote == nil {
		return nil, errors.New("workspacectx: remote is required")
	}
	if local == nil {
		return nil, errors.New("workspacectx: local store is required")
	}

	s := &Synchronizer{
		remote:         remote,
		local:          local,
		log:            logger.WithModule("workspacectx"),
		persistTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Mount performs the initial load.
func (s *Synchronizer) Mount(ctx context.Context) (Snapshot, error) {
	return s.Refresh(ctx)
}

// HandleAuthEvent reloads on sign-in and resets everything on sign-out.
func (s *Synchronizer) HandleAuthEvent(ctx context.Context, event AuthEvent) (Snapshot, error) {
	if event == SignedOut {
		s.mu.Lock()
		s.generation++
		s.selection++
		s.state = StateUninitialized
		s.workspaces = nil
		s.currentID = ""
		s.mu.Unlock()

		s.localMu.Lock()
		if err := s.local.Clear(); err != nil {
			s.log.Warn("clear local workspace cache", zap.Error(err))
		}
		s.localMu.Unlock()
		return s.Snapshot(), nil
	}
	return s.Refresh(ctx)
}

// Refresh loads memberships and resolves the current workspace. Concurrent
// calls within one sign-in share a single load.
func (s *Synchronizer) Refresh(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	gen := s.generation
	if s.state == StateUninitialized {
		s.state = StateLoading
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(fmt.Sprintf("refresh-%d", gen), func() (any, error) {
		return s.load(ctx, gen)
	})
	if err != nil {
		return s.Snapshot(), err
	}
	return v.(Snapshot), nil
}

func (s *Synchronizer) load(ctx context.Context, gen uint64) (Snapshot, error) {
	s.mu.Lock()
	startSelection := s.selection
	s.mu.Unlock()

	memberships, err := s.remote.Memberships(ctx)
	if err != nil {
		s.mu.Lock()
		if s.generation == gen && s.state == StateLoading {
			s.state = StateUninitialized
		}
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("workspacectx: load memberships: %w", err)
	}

	cached, err := s.local.Load()
	if err != nil {
		s.log.Warn("read local workspace cache", zap.Error(err))
		cached = ""
	}

	res := Resolve(memberships, cached)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return Snapshot{}, ErrSignedOut
	}
	s.state = StateReady
	s.workspaces = memberships
	// A Switch that landed while memberships were loading wins over the
	// cache value read before it, as long as it is still a membership.
	switched := s.selection != startSelection && contains(memberships, s.currentID)
	if !switched {
		s.currentID = res.CurrentID
		s.selection++
	}
	selection := s.selection
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.writeLocal(res.DropCache)
	if !switched {
		s.persistCurrent(ctx, selection)
	}

	s.log.Debug("workspaces resolved",
		zap.Int("count", len(memberships)),
		zap.String("current", snap.CurrentID),
		zap.String("source", string(res.Source)),
		zap.Bool("switched_during_load", switched),
	)
	return snap, nil
}

// Switch makes workspaceID current. The id must be in the loaded set. Memory
// and the local cache change before Switch returns; the profile pointer is
// written in the background and a failure there is logged, not rolled back.
func (s *Synchronizer) Switch(ctx context.Context, workspaceID string) (Snapshot, error) {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return s.Snapshot(), ErrNotReady
	}
	if !contains(s.workspaces, workspaceID) {
		s.mu.Unlock()
		return s.Snapshot(), ErrUnknownWorkspace
	}
	s.currentID = workspaceID
	s.selection++
	selection := s.selection
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.writeLocal(false)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
		defer cancel()
		s.persistCurrent(persistCtx, selection)
	}()

	return snap, nil
}

// writeLocal copies the in-memory current id to the local cache. Writes are
// serialised and always read memory under the lock, so the cache converges on
// the latest selection whichever writer runs last.
func (s *Synchronizer) writeLocal(dropStale bool) {
	s.localMu.Lock()
	defer s.localMu.Unlock()

	s.mu.Lock()
	id, ready := s.currentID, s.state == StateReady
	s.mu.Unlock()
	if !ready {
		return
	}

	if id == "" {
		if dropStale {
			if err := s.local.Clear(); err != nil {
				s.log.Warn("drop stale workspace cache", zap.Error(err))
			}
		}
		return
	}
	if err := s.local.Save(id); err != nil {
		s.log.Warn("write local workspace cache", zap.String("workspace_id", id), zap.Error(err))
	}
}

// persistCurrent writes the profile pointer for selection. It is skipped once
// a newer selection exists; that selection writes its own pointer.
func (s *Synchronizer) persistCurrent(ctx context.Context, selection uint64) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	id := s.currentID
	latest := s.selection == selection && s.state == StateReady
	s.mu.Unlock()
	if !latest || id == "" {
		return
	}

	if err := s.remote.SetCurrentWorkspace(ctx, id); err != nil {
		s.log.Warn("persist current workspace", zap.String("workspace_id", id), zap.Error(err))
	}
}

// CreateWorkspace creates a workspace on the server and reloads so it appears
// with its owner membership.
func (s *Synchronizer) CreateWorkspace(ctx context.Context, name string, description *string) (*services.WorkspaceMembership, Snapshot, error) {
	created, err := s.remote.CreateWorkspace(ctx, name, description)
	if err != nil {
		return nil, s.Snapshot(), err
	}
	snap, err := s.Refresh(ctx)
	return created, snap, err
}

// Snapshot returns a copy of the current state.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Synchronizer) snapshotLocked() Snapshot {
	workspaces := make([]services.WorkspaceMembership, len(s.workspaces))
	copy(workspaces, s.workspaces)
	return Snapshot{State: s.state, Workspaces: workspaces, CurrentID: s.currentID}
}

// Flush waits for background pointer writes started by Switch.
func (s *Synchronizer) Flush() {
	s.pending.Wait()
}
