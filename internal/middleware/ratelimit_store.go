package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/charlesng35/adboard/internal/cache"
)

// RateStore counts requests for a key within a fixed window.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

const (
	defaultRateWindow = time.Minute
	memorySweepEvery  = time.Minute
	sharedKeyPrefix   = "ratelimit:"
)

// memoryRateStore keeps counters for a single process. Expired windows are
// swept lazily from Increment.
type memoryRateStore struct {
	mu        sync.Mutex
	windows   map[string]rateWindow
	nextSweep time.Time
	now       func() time.Time
}

type rateWindow struct {
	count int
	ends  time.Time
}

// NewMemoryRateStore returns a process-local RateStore.
func NewMemoryRateStore() RateStore {
	return newMemoryRateStore(time.Now)
}

func newMemoryRateStore(now func() time.Time) *memoryRateStore {
	return &memoryRateStore{windows: make(map[string]rateWindow), now: now}
}

func (s *memoryRateStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = defaultRateWindow
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.After(s.nextSweep) {
		for k, w := range s.windows {
			if !now.Before(w.ends) {
				delete(s.windows, k)
			}
		}
		s.nextSweep = now.Add(memorySweepEvery)
	}

	w, ok := s.windows[key]
	if !ok || !now.Before(w.ends) {
		w = rateWindow{ends: now.Add(window)}
	}
	w.count++
	s.windows[key] = w

	return w.count, w.ends.Sub(now), nil
}

func (s *memoryRateStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// sharedRateStore keeps counters in a cache.Store visible to every replica.
type sharedRateStore struct {
	store cache.Store
}

// NewSharedRateStore counts through store, namespacing keys so they cannot
// collide with other users of the same Redis or cache table. A nil store
// yields nil.
func NewSharedRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return &sharedRateStore{store: store}
}

func (s *sharedRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = defaultRateWindow
	}
	count, ttl, err := s.store.IncrementWithTTL(ctx, sharedKeyPrefix+key, window)
	return int(count), ttl, err
}
