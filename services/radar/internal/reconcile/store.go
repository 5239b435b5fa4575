// Package reconcile owns the durable list of comment records.
//
// Backends: Redis (env REDIS_URL), guarded by WATCH/MULTI so several radar
// processes can share one list. Without REDIS_URL an in-memory store is used
// (development only).
package reconcile

import (
	"context"
	"errors"

	"github.com/example/comment-radar/services/radar/internal/comment"
)

// ErrConflict is returned when a mutation kept losing optimistic races.
var ErrConflict = errors.New("reconcile: storage conflict, retries exhausted")

// MutateFunc receives the current list and returns the replacement and
// whether anything changed. It may be called more than once.
type MutateFunc func(records []comment.Record) ([]comment.Record, bool)

// Store persists the record list.
type Store interface {
	Load(ctx context.Context) ([]comment.Record, error)
	// Update applies fn atomically. When fn reports no change nothing is written.
	Update(ctx context.Context, fn MutateFunc) (changed bool, err error)
}

// NewStore creates the best available store: Redis > in-memory (dev fallback).
// When isProd is true the in-memory fallback is refused.
func NewStore(redisURL, key string, retries int, isProd bool) (Store, error) {
	if redisURL != "" {
		return newRedisStore(redisURL, key, retries)
	}
	if isProd {
		return nil, errors.New("production requires REDIS_URL for the record store; in-memory store is not allowed")
	}
	return NewMemoryStore(), nil
}
