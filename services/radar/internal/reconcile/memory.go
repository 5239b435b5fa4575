package reconcile

import (
	"context"
	"sync"

	"github.com/example/comment-radar/services/radar/internal/comment"
)

// MemoryStore is a development-only store.
// WARNING: state is lost on restart and is not shared between processes.
type MemoryStore struct {
	mu      sync.Mutex
	records []comment.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) ([]comment.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecords(s.records), nil
}

func (s *MemoryStore) Update(_ context.Context, fn MutateFunc) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, changed := fn(cloneRecords(s.records))
	if changed {
		s.records = next
	}
	return changed, nil
}

func cloneRecords(in []comment.Record) []comment.Record {
	out := make([]comment.Record, len(in))
	copy(out, in)
	return out
}
