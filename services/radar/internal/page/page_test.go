package page

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestAuthorOrDefault(t *testing.T) {
	cases := map[string]string{
		"":                "Anonymous",
		"   ":             "Anonymous",
		"@budi":           "budi",
		"  @Siti   Nur  ": "Siti Nur",
		"@abcdefghijklmnopqrstuvwxyz0123456789": "abcdefghijklmnopqrstuvwxyz0123",
	}
	for in, want := range cases {
		if got := (Node{Author: in}).AuthorOrDefault(); got != want {
			t.Fatalf("AuthorOrDefault(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAttrNilMap(t *testing.T) {
	if got := (Node{}).Attr("data-id"); got != "" {
		t.Fatalf("expected empty attr, got %q", got)
	}
}

type scriptedProbe struct {
	mu     sync.Mutex
	states []bool
	err    error
}

func (p *scriptedProbe) probe(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		err := p.err
		p.err = nil
		return false, err
	}
	if len(p.states) == 0 {
		return false, nil
	}
	s := p.states[0]
	if len(p.states) > 1 {
		p.states = p.states[1:]
	}
	return s, nil
}

func TestWatchDialogEmitsTransitions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &scriptedProbe{states: []bool{false, false, true, true, false}, err: errors.New("eval failed")}
	events := WatchDialog(ctx, p.probe, time.Millisecond, nil)

	want := []DialogEventKind{DialogOpened, DialogClosed}
	for _, kind := range want {
		select {
		case ev := <-events:
			if ev.Kind != kind {
				t.Fatalf("expected %s, got %s", kind, ev.Kind)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", kind)
		}
	}

	cancel()
	for range events {
	}
}

func TestWatchDialogBaselineIsSilent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &scriptedProbe{states: []bool{true}}
	events := WatchDialog(ctx, p.probe, time.Millisecond, nil)

	select {
	case ev, ok := <-events:
		if ok {
			t.Fatalf("unexpected event %s for an unchanged dialog", ev.Kind)
		}
	case <-time.After(30 * time.Millisecond):
	}
	cancel()
	for range events {
	}
}
