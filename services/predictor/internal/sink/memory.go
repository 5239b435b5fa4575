package sink

import (
	"context"
	"sync"
	"time"
)

// InMemorySink keeps rows in process memory (development and tests).
type InMemorySink struct {
	mu   sync.Mutex
	rows []Entry
}

func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

func (s *InMemorySink) Insert(_ context.Context, e Entry) error {
	e = Normalize(e)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.rows = append(s.rows, e)
	s.mu.Unlock()
	return nil
}

// Rows returns a copy of everything inserted so far.
func (s *InMemorySink) Rows() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.rows...)
}
