package reconcile

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/comment-radar/internal/platform/notify"
	"github.com/example/comment-radar/services/radar/internal/comment"
)

// MaxRecords caps the stored list; the oldest records are evicted first.
const MaxRecords = 200

// Reconciler is the only writer of the record store. Mutations from this
// process are serialized; the store guards against other processes.
type Reconciler struct {
	mu    sync.Mutex
	store Store
	pub   *notify.Publisher
	log   *zap.Logger
	now   func() time.Time
}

func New(store Store, pub *notify.Publisher, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{store: store, pub: pub, log: log, now: time.Now}
}

type logsUpdated struct {
	Count       int    `json:"count"`
	Fingerprint string `json:"commentId,omitempty"`
	Change      string `json:"change"`
}

// Persist stores rec. A stored record with the same fingerprint is replaced
// unless it was already reported, in which case Persist is a no-op.
func (r *Reconciler) Persist(ctx context.Context, rec comment.Record) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int
	changed, err := r.store.Update(ctx, func(records []comment.Record) ([]comment.Record, bool) {
		next, ok := upsert(records, rec)
		count = len(next)
		return next, ok
	})
	if err != nil {
		r.log.Error("persist record failed", zap.String("fingerprint", rec.Fingerprint), zap.Error(err))
		return false, err
	}
	if changed {
		r.notify(logsUpdated{Count: count, Fingerprint: rec.Fingerprint, Change: "persisted"})
	}
	return changed, nil
}

func upsert(records []comment.Record, rec comment.Record) ([]comment.Record, bool) {
	out := make([]comment.Record, 0, min(len(records)+1, MaxRecords))
	out = append(out, rec)
	for _, existing := range records {
		if existing.Fingerprint == rec.Fingerprint {
			if existing.Reported {
				return records, false
			}
			continue
		}
		out = append(out, existing)
	}
	if len(out) > MaxRecords {
		out = out[:MaxRecords]
	}
	return out, true
}

// MarkReported flags the record with fingerprint as reported. Missing
// records are ignored.
func (r *Reconciler) MarkReported(ctx context.Context, fingerprint string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	var count int
	changed, err := r.store.Update(ctx, func(records []comment.Record) ([]comment.Record, bool) {
		count = len(records)
		for i := range records {
			if records[i].Fingerprint != fingerprint {
				continue
			}
			if records[i].Reported {
				return records, false
			}
			records[i].Reported = true
			records[i].ReportedAt = &now
			return records, true
		}
		return records, false
	})
	if err != nil {
		r.log.Error("mark reported failed", zap.String("fingerprint", fingerprint), zap.Error(err))
		return false, err
	}
	if changed {
		r.notify(logsUpdated{Count: count, Fingerprint: fingerprint, Change: "reported"})
	}
	return changed, nil
}

// IsReported reports whether the stored record with fingerprint is reported.
func (r *Reconciler) IsReported(ctx context.Context, fingerprint string) (bool, error) {
	records, err := r.store.Load(ctx)
	if err != nil {
		return false, err
	}
	for _, rec := range records {
		if rec.Fingerprint == fingerprint {
			return rec.Reported, nil
		}
	}
	return false, nil
}

// Clear drops every record.
func (r *Reconciler) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed, err := r.store.Update(ctx, func(records []comment.Record) ([]comment.Record, bool) {
		return []comment.Record{}, len(records) > 0
	})
	if err != nil {
		return err
	}
	if changed {
		r.notify(logsUpdated{Change: "cleared"})
	}
	return nil
}

// Records returns the stored list, most recent first.
func (r *Reconciler) Records(ctx context.Context) ([]comment.Record, error) {
	return r.store.Load(ctx)
}

// Stats summarises the stored list.
type Stats struct {
	Total    int `json:"total"`
	Spam     int `json:"spam"`
	Safe     int `json:"safe"`
	Reported int `json:"reported"`
}

func (r *Reconciler) Stats(ctx context.Context) (Stats, error) {
	records, err := r.store.Load(ctx)
	if err != nil {
		return Stats{}, err
	}
	var s Stats
	for _, rec := range records {
		s.Total++
		if rec.IsSpam() {
			s.Spam++
		} else {
			s.Safe++
		}
		if rec.Reported {
			s.Reported++
		}
	}
	return s, nil
}

func (r *Reconciler) notify(ev logsUpdated) {
	r.pub.Publish(notify.EventLogsUpdated, ev)
}
