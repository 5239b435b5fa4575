// Package comment holds the records the radar produces for scanned comments.
package comment

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Label is the classification outcome stored with a record.
type Label string

const (
	LabelSafe  Label = "SAFE"
	LabelSpam  Label = "SPAM"
	LabelError Label = "ERROR"
)

// WireSpamLabel is the label the classification boundary returns for spam.
const WireSpamLabel = "SPAM JUDI"

// MaxTextLen bounds the stored comment body, in runes.
const MaxTextLen = 500

// ParseLabel maps a boundary label onto a Label. Unknown values read as SAFE.
func ParseLabel(s string) Label {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case WireSpamLabel, string(LabelSpam):
		return LabelSpam
	case string(LabelError):
		return LabelError
	default:
		return LabelSafe
	}
}

// Record is one scanned comment as kept in durable storage.
type Record struct {
	ID           int64      `json:"id"`
	Fingerprint  string     `json:"commentId"`
	Text         string     `json:"text"`
	Label        Label      `json:"label"`
	Confidence   float64    `json:"confidence"`
	Author       string     `json:"user"`
	VideoContext string     `json:"videoId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	Reported     bool       `json:"reported"`
	ReportedAt   *time.Time `json:"reportedAt,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// IsSpam reports whether the record was classified as spam.
func (r Record) IsSpam() bool { return r.Label == LabelSpam }

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// ClampConfidence forces c into [0,100].
func ClampConfidence(c float64) float64 {
	switch {
	case c != c: // NaN
		return 0
	case c < 0:
		return 0
	case c > 100:
		return 100
	default:
		return c
	}
}

var (
	idMu   sync.Mutex
	lastID int64
)

// NextID returns a process-local identifier derived from the current time in
// milliseconds. Identifiers are strictly increasing within the process.
func NextID(now time.Time) int64 {
	idMu.Lock()
	defer idMu.Unlock()
	id := now.UnixMilli()
	if id <= lastID {
		id = lastID + 1
	}
	lastID = id
	return id
}

// New builds a record for a freshly classified comment.
func New(fingerprint, text, author, videoID string, label Label, confidence float64, now time.Time) Record {
	if strings.TrimSpace(author) == "" {
		author = "Anonymous"
	}
	return Record{
		ID:           NextID(now),
		Fingerprint:  fingerprint,
		Text:         Truncate(text, MaxTextLen),
		Label:        label,
		Confidence:   ClampConfidence(confidence),
		Author:       author,
		VideoContext: videoID,
		CreatedAt:    now.UTC(),
	}
}
