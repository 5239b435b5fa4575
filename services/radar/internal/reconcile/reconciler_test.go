package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/comment-radar/internal/platform/notify"
	"github.com/example/comment-radar/internal/platform/notify/notifytest"
	"github.com/example/comment-radar/services/radar/internal/comment"
)

func newTestReconciler(store Store) (*Reconciler, *notifytest.Recorder) {
	rec := &notifytest.Recorder{}
	return New(store, notify.New(rec, "radar", nil), nil), rec
}

func record(fp string, label comment.Label, conf float64) comment.Record {
	return comment.New(fp, "text of "+fp, "budi", "vid", label, conf, time.Now())
}

func TestPersistDeduplicates(t *testing.T) {
	r, events := newTestReconciler(NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := r.Persist(ctx, record("c1", comment.LabelSafe, 10)); err != nil {
			t.Fatalf("persist: %v", err)
		}
	}
	got, _ := r.Records(ctx)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if events.Count(notify.EventLogsUpdated) == 0 {
		t.Fatalf("expected logsUpdated notifications")
	}
}

func TestPersistNewestWins(t *testing.T) {
	r, _ := newTestReconciler(NewMemoryStore())
	ctx := context.Background()

	_, _ = r.Persist(ctx, record("c1", comment.LabelSafe, 10))
	_, _ = r.Persist(ctx, record("c2", comment.LabelSafe, 10))
	_, _ = r.Persist(ctx, record("c1", comment.LabelSpam, 90))

	got, _ := r.Records(ctx)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Fingerprint != "c1" || got[0].Label != comment.LabelSpam || got[0].Confidence != 90 {
		t.Fatalf("expected newest c1 first, got %+v", got[0])
	}
}

func TestPersistKeepsReportedRecord(t *testing.T) {
	r, _ := newTestReconciler(NewMemoryStore())
	ctx := context.Background()

	_, _ = r.Persist(ctx, record("c1", comment.LabelSpam, 90))
	if ok, err := r.MarkReported(ctx, "c1"); err != nil || !ok {
		t.Fatalf("mark reported: ok=%v err=%v", ok, err)
	}
	changed, err := r.Persist(ctx, record("c1", comment.LabelSafe, 1))
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if changed {
		t.Fatalf("reported record must not be overwritten")
	}
	got, _ := r.Records(ctx)
	if !got[0].Reported || got[0].Label != comment.LabelSpam || got[0].ReportedAt == nil {
		t.Fatalf("unexpected record %+v", got[0])
	}
}

func TestPersistCapsAtMaxRecords(t *testing.T) {
	r, _ := newTestReconciler(NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < MaxRecords+1; i++ {
		if _, err := r.Persist(ctx, record(fmt.Sprintf("c%d", i), comment.LabelSafe, 0)); err != nil {
			t.Fatalf("persist %d: %v", i, err)
		}
	}
	got, _ := r.Records(ctx)
	if len(got) != MaxRecords {
		t.Fatalf("expected %d records, got %d", MaxRecords, len(got))
	}
	if got[0].Fingerprint != fmt.Sprintf("c%d", MaxRecords) {
		t.Fatalf("expected most recent first, got %s", got[0].Fingerprint)
	}
	for _, rec := range got {
		if rec.Fingerprint == "c0" {
			t.Fatalf("oldest record should have been evicted")
		}
	}
}

func TestMarkReportedMissingIsNoop(t *testing.T) {
	r, events := newTestReconciler(NewMemoryStore())
	ok, err := r.MarkReported(context.Background(), "nope")
	if err != nil || ok {
		t.Fatalf("expected no-op, got ok=%v err=%v", ok, err)
	}
	if events.Count(notify.EventLogsUpdated) != 0 {
		t.Fatalf("no-op must not notify")
	}
}

func TestIsReportedAndStats(t *testing.T) {
	r, _ := newTestReconciler(NewMemoryStore())
	ctx := context.Background()
	_, _ = r.Persist(ctx, record("a", comment.LabelSpam, 80))
	_, _ = r.Persist(ctx, record("b", comment.LabelSafe, 5))
	_, _ = r.MarkReported(ctx, "a")

	if rep, _ := r.IsReported(ctx, "a"); !rep {
		t.Fatalf("expected a reported")
	}
	if rep, _ := r.IsReported(ctx, "b"); rep {
		t.Fatalf("expected b not reported")
	}
	s, err := r.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s != (Stats{Total: 2, Spam: 1, Safe: 1, Reported: 1}) {
		t.Fatalf("unexpected stats %+v", s)
	}

	if err := r.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got, _ := r.Records(ctx); len(got) != 0 {
		t.Fatalf("expected empty store after clear, got %d", len(got))
	}
}

func TestConcurrentPersistSerializes(t *testing.T) {
	r, _ := newTestReconciler(NewMemoryStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = r.Persist(ctx, record(fmt.Sprintf("c%d", i%10), comment.LabelSafe, 0))
		}(i)
	}
	wg.Wait()
	got, _ := r.Records(ctx)
	if len(got) != 10 {
		t.Fatalf("expected 10 distinct records, got %d", len(got))
	}
}

type failingStore struct{ MemoryStore }

func (s *failingStore) Update(context.Context, MutateFunc) (bool, error) {
	return false, ErrConflict
}

func TestPersistSurfacesConflict(t *testing.T) {
	r, events := newTestReconciler(&failingStore{})
	_, err := r.Persist(context.Background(), record("c1", comment.LabelSafe, 0))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if events.Count(notify.EventLogsUpdated) != 0 {
		t.Fatalf("failed mutation must not notify")
	}
}

func TestNewStoreRefusesMemoryInProduction(t *testing.T) {
	if _, err := NewStore("", "logs", 0, true); err == nil {
		t.Fatalf("expected error in production without redis")
	}
	s, err := NewStore("", "logs", 0, false)
	if err != nil {
		t.Fatalf("dev store: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", s)
	}
}

// Runs against a real server when RADAR_TEST_REDIS_URL is set.
func TestRedisStoreRoundTrip(t *testing.T) {
	url := os.Getenv("RADAR_TEST_REDIS_URL")
	if url == "" {
		t.Skip("RADAR_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	key := fmt.Sprintf("radar:test:%d", time.Now().UnixNano())
	store := NewRedisStore(redis.NewClient(opts), key, 3)
	defer store.Close()
	ctx := context.Background()
	defer store.client.Del(ctx, key)

	r, _ := newTestReconciler(store)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = r.Persist(ctx, record(fmt.Sprintf("c%d", i), comment.LabelSafe, 0))
		}(i)
	}
	wg.Wait()
	if _, err := r.MarkReported(ctx, "c3"); err != nil {
		t.Fatalf("mark reported: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("expected 20 records, got %d", len(got))
	}
	if rep, _ := r.IsReported(ctx, "c3"); !rep {
		t.Fatalf("expected c3 reported")
	}
}
