// Package pagetest provides an in-memory page.Tab for tests.
package pagetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/comment-radar/services/radar/internal/page"
)

// Tab is a scripted page.Tab. The zero value is an empty page.
type Tab struct {
	mu sync.Mutex

	PageInfo page.Info
	nodes    []page.Node
	spam     map[string]float64
	calls    []string

	// Per-step failures, keyed by node handle. An empty key fails every node.
	FailMenu       map[string]bool
	FailReportItem bool
	DialogRenders  bool
	// Block, when set, makes OpenMenu wait on it (or ctx).
	Block chan struct{}
}

// New returns a Tab holding nodes. Handles are filled in when empty.
func New(nodes ...page.Node) *Tab {
	t := &Tab{DialogRenders: true}
	for _, n := range nodes {
		t.Add(n)
	}
	return t
}

// Add appends a rendered node.
func (t *Tab) Add(n page.Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n.Handle == "" {
		n.Handle = fmt.Sprintf("h%d", len(t.nodes)+1)
	}
	n.Index = len(t.nodes)
	t.nodes = append(t.nodes, n)
}

// Calls lists the actions performed so far, in order.
func (t *Tab) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

// Spam returns the confidence badge applied to handle.
func (t *Tab) Spam(handle string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.spam[handle]
	return c, ok
}

// Node returns the current state of the node with handle.
func (t *Tab) Node(handle string) (page.Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range t.nodes {
		if n.Handle == handle {
			return n, true
		}
	}
	return page.Node{}, false
}

func (t *Tab) record(format string, args ...any) {
	t.calls = append(t.calls, fmt.Sprintf(format, args...))
}

func (t *Tab) find(handle string) int {
	for i, n := range t.nodes {
		if n.Handle == handle {
			return i
		}
	}
	return -1
}

func (t *Tab) Info(ctx context.Context) (page.Info, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	info := t.PageInfo
	info.CommentsCount = len(t.nodes)
	return info, nil
}

func (t *Tab) Comments(ctx context.Context) ([]page.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]page.Node, len(t.nodes))
	copy(out, t.nodes)
	return out, nil
}

func (t *Tab) MarkScanned(ctx context.Context, handle, fingerprint string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.find(handle)
	if i < 0 {
		return page.ErrNodeNotFound
	}
	t.nodes[i].Scanned = true
	t.nodes[i].RadarID = fingerprint
	return nil
}

func (t *Tab) MarkSpam(ctx context.Context, handle string, confidence float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.find(handle) < 0 {
		return page.ErrNodeNotFound
	}
	if t.spam == nil {
		t.spam = make(map[string]float64)
	}
	t.spam[handle] = confidence
	return nil
}

func (t *Tab) ScrollIntoView(ctx context.Context, handle string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.find(handle) < 0 {
		return page.ErrNodeNotFound
	}
	t.record("scroll %s", handle)
	return nil
}

func (t *Tab) Highlight(ctx context.Context, handle, color string, ttl time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record("highlight %s", handle)
	return nil
}

func (t *Tab) ClearHighlight(ctx context.Context, fingerprint string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record("clear-highlight %s", fingerprint)
	return nil
}

func (t *Tab) OpenMenu(ctx context.Context, handle string) error {
	t.mu.Lock()
	block := t.Block
	fail := t.FailMenu[handle] || t.FailMenu[""]
	t.record("menu %s", handle)
	t.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail {
		return page.ErrMenuNotFound
	}
	return nil
}

func (t *Tab) ClickReportItem(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record("report-item")
	if t.FailReportItem {
		return page.ErrReportItemNotFound
	}
	return nil
}

func (t *Tab) DecorateDialog(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record("decorate-dialog")
	return t.DialogRenders, nil
}

func (t *Tab) ClearDialog(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record("clear-dialog")
	return nil
}

func (t *Tab) ShowOverlay(ctx context.Context, message string, ttl time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record("overlay")
	return nil
}

func (t *Tab) RemoveOverlay(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record("remove-overlay")
	return nil
}

var _ page.Tab = (*Tab)(nil)
