package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `CREATE TABLE IF NOT EXISTS comment_log (
	id         BIGSERIAL PRIMARY KEY,
	video_id   TEXT NOT NULL,
	username   TEXT NOT NULL,
	comment    TEXT NOT NULL,
	label      TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresSink writes rows to the comment_log table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

// EnsureSchema creates comment_log when it does not exist yet.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure comment_log: %w", err)
	}
	return nil
}

func (s *PostgresSink) Insert(ctx context.Context, e Entry) error {
	e = Normalize(e)
	const q = `INSERT INTO comment_log (video_id, username, comment, label, confidence)
	           VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, q, e.VideoID, e.Username, e.Comment, e.Label, e.Confidence); err != nil {
		return fmt.Errorf("insert comment_log: %w", err)
	}
	return nil
}
