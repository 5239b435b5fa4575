// Package notify is the best-effort outbound notification channel.
//
// Delivery is at-most-once with no retry: events go out on core NATS subjects
// and nobody acknowledges them. Publishing never blocks the caller on a
// subscriber and never returns an error; failures are logged as warnings.
package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event names. The values match the action names the popup listens for.
const (
	EventScanCompleted      = "scanCompleted"
	EventReportMenuOpened   = "reportMenuOpened"
	EventContentScriptReady = "contentScriptReady"
	EventLogsUpdated        = "logsUpdated"
)

// DefaultPrefix is prepended to the event name to form the NATS subject.
const DefaultPrefix = "radar.events."

// Envelope is the payload sent on every subject.
type Envelope struct {
	EventID    string    `json:"event_id"`
	Action     string    `json:"action"`
	Source     string    `json:"source,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data,omitempty"`
}

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subj string, data []byte) error
}

// Publisher publishes notifications. The zero value and a nil pointer are both
// safe no-op stubs.
type Publisher struct {
	conn   Conn
	prefix string
	source string
	log    *zap.Logger
}

// New creates a Publisher. Pass conn=nil to get a no-op stub (useful in tests
// and when NATS is unavailable).
func New(conn Conn, source string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{conn: conn, prefix: DefaultPrefix, source: source, log: log}
}

// Subject returns the subject used for action.
func (p *Publisher) Subject(action string) string {
	prefix := DefaultPrefix
	if p != nil && p.prefix != "" {
		prefix = p.prefix
	}
	return prefix + action
}

// Publish sends one notification, fire-and-forget.
func (p *Publisher) Publish(action string, data any) {
	if p == nil || p.conn == nil {
		return
	}
	ev := Envelope{
		EventID:    uuid.NewString(),
		Action:     action,
		Source:     p.source,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	b, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("notify: marshal failed", zap.String("action", action), zap.Error(err))
		return
	}
	if err := p.conn.Publish(p.Subject(action), b); err != nil {
		p.log.Warn("notify: publish failed", zap.String("action", action), zap.Error(err))
	}
}
