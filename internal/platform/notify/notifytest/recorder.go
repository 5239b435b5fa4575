// Package notifytest records notifications for assertions.
package notifytest

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/example/comment-radar/internal/platform/notify"
)

// Recorder is a notify.Conn that keeps every published envelope.
type Recorder struct {
	mu     sync.Mutex
	events []notify.Envelope
	raw    []json.RawMessage
}

func (r *Recorder) Publish(subj string, data []byte) error {
	var env struct {
		notify.Envelope
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if env.Action == "" {
		env.Action = strings.TrimPrefix(subj, notify.DefaultPrefix)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, env.Envelope)
	r.raw = append(r.raw, env.Data)
	return nil
}

// Actions lists the published actions in order.
func (r *Recorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Action
	}
	return out
}

// Count returns how many events with action were published.
func (r *Recorder) Count(action string) int {
	n := 0
	for _, a := range r.Actions() {
		if a == action {
			n++
		}
	}
	return n
}

// Last decodes the data of the most recent event with action into v.
func (r *Recorder) Last(action string, v any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Action == action {
			return json.Unmarshal(r.raw[i], v) == nil
		}
	}
	return false
}

var _ notify.Conn = (*Recorder)(nil)
