// Package ratelimit holds the two throttles the services use: a ticker that
// paces outbound calls and a per-client token bucket for inbound HTTP.
package ratelimit

import (
	"context"
	"time"
)

type Limiter struct {
	t *time.Ticker
}

// NewInterval paces operations at least d apart. d <= 0 disables pacing.
func NewInterval(d time.Duration) *Limiter {
	if d <= 0 {
		return &Limiter{}
	}
	return &Limiter{t: time.NewTicker(d)}
}

func (l *Limiter) Stop() {
	if l != nil && l.t != nil {
		l.t.Stop()
	}
}

func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.t == nil {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.t.C:
		return nil
	}
}
