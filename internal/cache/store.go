package cache

import (
	"context"
	"time"
)

// Store is the shared counter backend behind request throttling.
type Store interface {
	// IncrementWithTTL bumps the counter for key, opening a fresh window when
	// none is active, and reports the count and the time left in the window.
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Delete(ctx context.Context, keys ...string) error
}
