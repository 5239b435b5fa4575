package reportq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/example/comment-radar/internal/platform/notify"
	"github.com/example/comment-radar/internal/platform/notify/notifytest"
	"github.com/example/comment-radar/services/radar/internal/page"
	"github.com/example/comment-radar/services/radar/internal/page/pagetest"
)

type recordingMarker struct {
	mu  sync.Mutex
	fps []string
}

func (m *recordingMarker) MarkReported(_ context.Context, fp string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fps = append(m.fps, fp)
	return true, nil
}

func (m *recordingMarker) marked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fps...)
}

type fixture struct {
	q      *Queue
	tab    *pagetest.Tab
	marker *recordingMarker
	events *notifytest.Recorder
	logs   *observer.ObservedLogs
	cancel context.CancelFunc
	done   chan error
}

func node(handle, fp, author, text string) page.Node {
	return page.Node{Handle: handle, RadarID: fp, Author: author, Text: text, Visible: true}
}

func start(t *testing.T, opts Options, dialogs <-chan page.DialogEvent, nodes ...page.Node) *fixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	f := &fixture{
		tab:    pagetest.New(nodes...),
		marker: &recordingMarker{},
		events: &notifytest.Recorder{},
		logs:   logs,
		done:   make(chan error, 1),
	}
	if opts.AdvanceDelay == 0 {
		opts.AdvanceDelay = 5 * time.Millisecond
	}
	f.q = New(f.tab, f.marker, notify.New(f.events, "radar", nil), zap.New(core), opts)
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() { f.done <- f.q.Run(ctx, dialogs) }()
	t.Cleanup(func() {
		cancel()
		<-f.done
	})
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (f *fixture) snapshot(t *testing.T) Snapshot {
	t.Helper()
	s, err := f.q.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return s
}

func (f *fixture) currentIs(t *testing.T, fp string, status Status) func() bool {
	return func() bool {
		s := f.snapshot(t)
		return s.Current != nil && s.Current.Fingerprint == fp && s.Current.Status == status
	}
}

func (f *fixture) enqueue(t *testing.T, fp, author, text string) int {
	t.Helper()
	pos, _, err := f.q.Enqueue(context.Background(), Request{Fingerprint: fp, Author: author, Text: text, Confidence: 90})
	if err != nil {
		t.Fatalf("enqueue %s: %v", fp, err)
	}
	return pos
}

func TestQueueServesOneAtATimeInOrder(t *testing.T) {
	f := start(t, Options{}, nil,
		node("hA", "A", "budi", "slot gacor"),
		node("hB", "B", "siti", "judi online"),
	)

	if pos := f.enqueue(t, "A", "budi", "slot gacor"); pos != 1 {
		t.Fatalf("A position = %d", pos)
	}
	if pos := f.enqueue(t, "B", "siti", "judi online"); pos != 2 {
		t.Fatalf("B position = %d", pos)
	}

	waitFor(t, "A menu_opened", f.currentIs(t, "A", StatusMenuOpened))
	s := f.snapshot(t)
	if !s.IsReporting || s.QueueLength != 2 || s.Queue[1].Status != StatusPending {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if !f.q.Busy() {
		t.Fatalf("queue should be busy while awaiting confirmation")
	}

	next, err := f.q.Complete(context.Background())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if next == nil || next.Fingerprint != "B" {
		t.Fatalf("expected B next, got %+v", next)
	}

	waitFor(t, "B menu_opened", f.currentIs(t, "B", StatusMenuOpened))
	waitFor(t, "A marked reported", func() bool {
		m := f.marker.marked()
		return len(m) == 1 && m[0] == "A"
	})

	s = f.snapshot(t)
	if s.QueueLength != 1 || s.Queue[0].Fingerprint != "B" {
		t.Fatalf("completed head should be dropped on advance, got %+v", s.Queue)
	}

	menus := 0
	for _, c := range f.tab.Calls() {
		if c == "menu hA" || c == "menu hB" {
			menus++
		}
		if c == "menu hB" && menus == 1 {
			t.Fatalf("B opened before A")
		}
	}
	if f.events.Count(notify.EventReportMenuOpened) != 2 {
		t.Fatalf("expected two reportMenuOpened events, got %v", f.events.Actions())
	}
	var payload map[string]string
	f.events.Last(notify.EventReportMenuOpened, &payload)
	if payload["commentId"] != "B" || payload["username"] != "siti" || payload["step"] != "menu_opened" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestCancelRemovesEntryAndAdvances(t *testing.T) {
	f := start(t, Options{}, nil,
		node("hA", "A", "budi", "slot gacor"),
		node("hB", "B", "siti", "judi online"),
	)
	f.enqueue(t, "A", "budi", "slot gacor")
	f.enqueue(t, "B", "siti", "judi online")
	waitFor(t, "A menu_opened", f.currentIs(t, "A", StatusMenuOpened))

	ok, err := f.q.Cancel(context.Background())
	if err != nil || !ok {
		t.Fatalf("cancel: ok=%v err=%v", ok, err)
	}
	s := f.snapshot(t)
	for _, e := range s.Queue {
		if e.Fingerprint == "A" {
			t.Fatalf("cancelled entry still queued")
		}
	}
	waitFor(t, "B processing or menu_opened", func() bool {
		s := f.snapshot(t)
		return s.Current != nil && s.Current.Fingerprint == "B"
	})
	if len(f.marker.marked()) != 0 {
		t.Fatalf("cancel must not mark reported")
	}
	waitFor(t, "highlight cleared", func() bool {
		for _, c := range f.tab.Calls() {
			if c == "clear-highlight A" {
				return true
			}
		}
		return false
	})
}

func TestCancelAbortsInFlightOpen(t *testing.T) {
	f := start(t, Options{}, nil, node("hA", "A", "budi", "slot gacor"))
	f.tab.Block = make(chan struct{})

	f.enqueue(t, "A", "budi", "slot gacor")
	waitFor(t, "menu click in flight", func() bool {
		for _, c := range f.tab.Calls() {
			if c == "menu hA" {
				return true
			}
		}
		return false
	})
	if s := f.snapshot(t); s.Current == nil || s.Current.Status != StatusProcessing {
		t.Fatalf("expected A processing, got %+v", s.Current)
	}

	if ok, _ := f.q.Cancel(context.Background()); !ok {
		t.Fatalf("expected cancel to find the active entry")
	}
	time.Sleep(20 * time.Millisecond)
	s := f.snapshot(t)
	if s.Current != nil || s.QueueLength != 0 {
		t.Fatalf("expected empty queue, got %+v", s)
	}
	if f.events.Count(notify.EventReportMenuOpened) != 0 {
		t.Fatalf("aborted open must not publish")
	}
}

func TestLookupFailureIsTerminalForEntryOnly(t *testing.T) {
	f := start(t, Options{}, nil, node("hA", "A", "budi", "slot gacor"))

	f.enqueue(t, "missing", "ghost", "nowhere to be found")
	f.enqueue(t, "A", "budi", "slot gacor")

	waitFor(t, "A menu_opened", f.currentIs(t, "A", StatusMenuOpened))
	s := f.snapshot(t)
	if s.QueueLength != 1 {
		t.Fatalf("failed entry should be dropped, got %+v", s.Queue)
	}
	if f.logs.FilterMessage("report menu not opened").Len() != 1 {
		t.Fatalf("expected one failure warning")
	}
}

func TestMenuFailureFailsEntry(t *testing.T) {
	f := start(t, Options{}, nil,
		node("hA", "A", "budi", "slot gacor"),
		node("hB", "B", "siti", "judi online"),
	)
	f.tab.FailMenu = map[string]bool{"hA": true}

	f.enqueue(t, "A", "budi", "slot gacor")
	f.enqueue(t, "B", "siti", "judi online")
	waitFor(t, "B menu_opened", f.currentIs(t, "B", StatusMenuOpened))

	entries := f.logs.FilterMessage("report menu not opened").All()
	if len(entries) != 1 {
		t.Fatalf("expected one failure, got %d", len(entries))
	}
	if err, _ := entries[0].ContextMap()["error"].(string); err != page.ErrMenuNotFound.Error() {
		t.Fatalf("unexpected error field %q", err)
	}
}

func TestFindNodeByAuthorAndText(t *testing.T) {
	hidden := node("h1", "", "budi", "slot gacor maxwin")
	hidden.Visible = false
	nodes := []page.Node{
		hidden,
		node("h2", "", "@budi", "slot gacor maxwin hari ini"),
	}
	n, ok := findNode(nodes, Request{Fingerprint: "comment_abc", Author: "budi", Text: "slot gacor maxwin"})
	if !ok || n.Handle != "h2" {
		t.Fatalf("expected visible author/text match, got %+v ok=%v", n, ok)
	}

	nodes = append(nodes, page.Node{Handle: "h3", ElementID: "comment-Ugx123-thread"})
	n, ok = findNode(nodes, Request{Fingerprint: "Ugx123"})
	if !ok || n.Handle != "h3" {
		t.Fatalf("expected element id substring match, got %+v", n)
	}
}

func TestEnqueueDuplicateIsNoop(t *testing.T) {
	f := start(t, Options{}, nil, node("hA", "A", "budi", "slot gacor"))
	f.enqueue(t, "A", "budi", "slot gacor")

	pos, added, err := f.q.Enqueue(context.Background(), Request{Fingerprint: "A"})
	if err != nil || added || pos != 1 {
		t.Fatalf("expected existing position, got pos=%d added=%v err=%v", pos, added, err)
	}
	if _, _, err := f.q.Enqueue(context.Background(), Request{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestCompleteRequiresMenuOpened(t *testing.T) {
	f := start(t, Options{}, nil)
	if _, err := f.q.Complete(context.Background()); !errors.Is(err, ErrNoActiveReport) {
		t.Fatalf("expected ErrNoActiveReport, got %v", err)
	}
	if ok, err := f.q.Cancel(context.Background()); ok || err != nil {
		t.Fatalf("cancel on idle queue: ok=%v err=%v", ok, err)
	}
}

func TestMenuTimeoutFailsEntry(t *testing.T) {
	f := start(t, Options{MenuTimeout: 20 * time.Millisecond}, nil,
		node("hA", "A", "budi", "slot gacor"),
		node("hB", "B", "siti", "judi online"),
	)
	f.enqueue(t, "A", "budi", "slot gacor")
	f.enqueue(t, "B", "siti", "judi online")

	waitFor(t, "B menu_opened after A times out", f.currentIs(t, "B", StatusMenuOpened))
	if f.logs.FilterMessage("report not confirmed in time").Len() == 0 {
		t.Fatalf("expected a timeout warning")
	}
}

func TestClearDropsEverything(t *testing.T) {
	f := start(t, Options{}, nil,
		node("hA", "A", "budi", "slot gacor"),
		node("hB", "B", "siti", "judi online"),
	)
	f.enqueue(t, "A", "budi", "slot gacor")
	f.enqueue(t, "B", "siti", "judi online")
	waitFor(t, "A menu_opened", f.currentIs(t, "A", StatusMenuOpened))

	if err := f.q.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	s := f.snapshot(t)
	if s.QueueLength != 0 || s.Current != nil || s.IsReporting || f.q.Busy() {
		t.Fatalf("expected reset queue, got %+v", s)
	}
}

func TestDialogClosedOnlyWarns(t *testing.T) {
	dialogs := make(chan page.DialogEvent, 1)
	f := start(t, Options{}, dialogs, node("hA", "A", "budi", "slot gacor"))
	f.enqueue(t, "A", "budi", "slot gacor")
	waitFor(t, "A menu_opened", f.currentIs(t, "A", StatusMenuOpened))

	dialogs <- page.DialogEvent{Kind: page.DialogClosed, At: time.Now()}
	waitFor(t, "dialog warning", func() bool {
		return f.logs.FilterMessage("report dialog closed without confirmation").Len() == 1
	})
	if s := f.snapshot(t); s.Current == nil || s.Current.Status != StatusMenuOpened {
		t.Fatalf("dialog close must not advance, got %+v", s.Current)
	}
}

func TestStoppedQueueRejectsCalls(t *testing.T) {
	f := start(t, Options{}, nil)
	f.cancel()
	<-f.done
	f.done <- nil // let cleanup drain

	if _, _, err := f.q.Enqueue(context.Background(), Request{Fingerprint: "A"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestReenqueueDuringSettleIsQueued(t *testing.T) {
	f := start(t, Options{AdvanceDelay: 100 * time.Millisecond}, nil, node("hA", "A", "budi", "slot gacor"))
	f.enqueue(t, "A", "budi", "slot gacor")
	waitFor(t, "A menu_opened", f.currentIs(t, "A", StatusMenuOpened))

	if _, err := f.q.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	// the completed head is still in the queue until the settle delay ends
	pos, added, err := f.q.Enqueue(context.Background(), Request{Fingerprint: "A", Author: "budi", Text: "slot gacor"})
	if err != nil || !added || pos != 2 {
		t.Fatalf("expected a fresh entry at position 2, got pos=%d added=%v err=%v", pos, added, err)
	}

	waitFor(t, "A reopened", f.currentIs(t, "A", StatusMenuOpened))
	s := f.snapshot(t)
	if s.QueueLength != 1 || s.Current.Attempts != 1 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
}
