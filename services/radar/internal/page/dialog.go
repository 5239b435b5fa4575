package page

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DialogEventKind tells whether the native report dialog appeared or went away.
type DialogEventKind string

const (
	DialogOpened DialogEventKind = "dialog_opened"
	DialogClosed DialogEventKind = "dialog_closed"
)

type DialogEvent struct {
	Kind DialogEventKind
	At   time.Time
}

// DialogProbe reports whether the report dialog is currently rendered.
type DialogProbe func(ctx context.Context) (bool, error)

// WatchDialog polls probe every interval and emits an event on each change of
// state. The first observation only sets the baseline. The channel is closed
// when ctx ends.
func WatchDialog(ctx context.Context, probe DialogProbe, interval time.Duration, log *zap.Logger) <-chan DialogEvent {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	out := make(chan DialogEvent, 4)
	go func() {
		defer close(out)
		t := time.NewTicker(interval)
		defer t.Stop()

		known := false
		open := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			now, err := probe(ctx)
			if err != nil {
				log.Debug("dialog probe failed", zap.Error(err))
				continue
			}
			if known && now != open {
				kind := DialogClosed
				if now {
					kind = DialogOpened
				}
				select {
				case out <- DialogEvent{Kind: kind, At: time.Now()}:
				case <-ctx.Done():
					return
				}
			}
			known, open = true, now
		}
	}()
	return out
}
