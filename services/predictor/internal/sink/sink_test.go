package sink

import (
	"context"
	"os"
	"testing"

	"github.com/example/comment-radar/internal/platform/db"
)

func TestInMemorySinkDefaults(t *testing.T) {
	s := NewInMemorySink()
	if err := s.Insert(context.Background(), Entry{Comment: "slot gacor", Label: "SPAM JUDI", Confidence: 91}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rows := s.Rows()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].VideoID != "unknown" || rows[0].Username != "Anonymous" {
		t.Fatalf("defaults not applied: %+v", rows[0])
	}
	if rows[0].CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}
}

func TestNormalizeKeepsValues(t *testing.T) {
	e := Normalize(Entry{VideoID: "abc", Username: "@budi"})
	if e.VideoID != "abc" || e.Username != "@budi" {
		t.Fatalf("unexpected %+v", e)
	}
}

func TestPostgresSink(t *testing.T) {
	dsn := os.Getenv("PREDICTOR_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PREDICTOR_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer pool.Close()

	s := NewPostgresSink(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	if err := s.Insert(ctx, Entry{Comment: "test row", Label: "SAFE", Confidence: 12.5}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var user string
	err = pool.QueryRow(ctx, `SELECT username FROM comment_log WHERE comment = 'test row' ORDER BY id DESC LIMIT 1`).Scan(&user)
	if err != nil || user != "Anonymous" {
		t.Fatalf("expected Anonymous row, got %q err=%v", user, err)
	}
}
