// Package sink records every successful prediction in the comment log.
package sink

import (
	"context"
	"time"
)

// Entry is one comment_log row.
type Entry struct {
	VideoID    string    `json:"video_id"`
	Username   string    `json:"username"`
	Comment    string    `json:"comment"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// Sink defines the contract for log persistence.
type Sink interface {
	Insert(ctx context.Context, e Entry) error
}

// Normalize applies the row defaults for missing request fields.
func Normalize(e Entry) Entry {
	if e.VideoID == "" {
		e.VideoID = "unknown"
	}
	if e.Username == "" {
		e.Username = "Anonymous"
	}
	return e
}
