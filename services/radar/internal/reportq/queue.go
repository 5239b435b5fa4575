// Package reportq serializes manual report requests.
//
// At most one entry is active (processing or menu_opened) at a time. The
// queue opens the platform's native report dialog for the head entry and then
// waits, indefinitely by default, for the operator to confirm or cancel. All
// state is owned by the goroutine running Run; the exported methods send it
// messages.
package reportq

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/example/comment-radar/internal/platform/notify"
	"github.com/example/comment-radar/services/radar/internal/page"
)

// Marker records that a comment was reported.
type Marker interface {
	MarkReported(ctx context.Context, fingerprint string) (bool, error)
}

type Options struct {
	ScrollSettle time.Duration
	MenuSettle   time.Duration
	DialogWait   time.Duration
	HighlightTTL time.Duration
	OverlayTTL   time.Duration
	// AdvanceDelay separates a finished entry from the next one.
	AdvanceDelay time.Duration
	// MenuTimeout fails an entry left in menu_opened for longer. Zero waits forever.
	MenuTimeout    time.Duration
	CleanupTimeout time.Duration
}

// DefaultOptions are the settle delays of the interactive flow.
func DefaultOptions() Options {
	return Options{
		ScrollSettle:   time.Second,
		MenuSettle:     1500 * time.Millisecond,
		DialogWait:     2 * time.Second,
		HighlightTTL:   10 * time.Second,
		OverlayTTL:     30 * time.Second,
		AdvanceDelay:   time.Second,
		CleanupTimeout: 5 * time.Second,
	}
}

type flight struct {
	gen    uint64
	cancel context.CancelFunc
}

type flightResult struct {
	gen    uint64
	handle string
	err    error
}

type Queue struct {
	tab    page.Tab
	marker Marker
	pub    *notify.Publisher
	log    *zap.Logger
	opts   Options

	ops     chan func()
	results chan flightResult
	stopped chan struct{}
	busy    atomic.Bool

	// owned by Run
	runCtx         context.Context
	entries        []*Entry
	current        *Entry
	flight         *flight
	gen            uint64
	advanceTimer   *time.Timer
	advancePending bool
	menuTimer      *time.Timer
	now            func() time.Time
}

func New(tab page.Tab, marker Marker, pub *notify.Publisher, log *zap.Logger, opts Options) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.CleanupTimeout <= 0 {
		opts.CleanupTimeout = 5 * time.Second
	}
	return &Queue{
		tab:     tab,
		marker:  marker,
		pub:     pub,
		log:     log,
		opts:    opts,
		ops:     make(chan func()),
		results: make(chan flightResult),
		stopped: make(chan struct{}),
		now:     time.Now,
	}
}

// Run owns the queue until ctx ends. Dialog events may be nil.
func (q *Queue) Run(ctx context.Context, dialogs <-chan page.DialogEvent) error {
	q.runCtx = ctx
	defer close(q.stopped)
	defer q.stopTimers()
	defer q.cancelFlight()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-q.ops:
			fn()
		case r := <-q.results:
			q.onFlightDone(r)
		case ev, ok := <-dialogs:
			if !ok {
				dialogs = nil
				continue
			}
			q.onDialog(ev)
		}
	}
}

// do runs fn on the owning goroutine and waits for it.
func (q *Queue) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case q.ops <- func() { fn(); close(done) }:
	case <-q.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}

// post queues fn from a timer without waiting.
func (q *Queue) post(fn func()) {
	select {
	case q.ops <- fn:
	case <-q.stopped:
	}
}

// Enqueue appends req and starts processing when idle. A fingerprint already
// queued is not added again; its position is returned with added=false.
func (q *Queue) Enqueue(ctx context.Context, req Request) (position int, added bool, err error) {
	req.Fingerprint = strings.TrimSpace(req.Fingerprint)
	if err := req.Validate(); err != nil {
		return 0, false, err
	}
	err = q.do(ctx, func() {
		for i, e := range q.entries {
			// finished heads wait for lazy removal and do not count
			if e.Status == StatusCompleted || e.Status == StatusFailed {
				continue
			}
			if e.Fingerprint == req.Fingerprint {
				position = i + 1
				return
			}
		}
		q.entries = append(q.entries, &Entry{Request: req, Status: StatusPending, EnqueuedAt: q.now().UTC()})
		position, added = len(q.entries), true
		q.log.Info("report queued", zap.String("fingerprint", req.Fingerprint), zap.String("author", req.Author), zap.Int("position", position))
		if !q.advancePending {
			q.advance()
		}
	})
	return position, added, err
}

// Complete confirms the entry awaiting the operator and returns the next
// entry that will be processed, if any.
func (q *Queue) Complete(ctx context.Context) (next *Entry, err error) {
	if derr := q.do(ctx, func() {
		cur := q.current
		if cur == nil || cur.Status != StatusMenuOpened {
			err = ErrNoActiveReport
			return
		}
		now := q.now().UTC()
		cur.Status = StatusCompleted
		cur.CompletedAt = &now
		q.current = nil
		q.busy.Store(false)
		q.stopMenuTimer()
		q.log.Info("report completed", zap.String("fingerprint", cur.Fingerprint), zap.String("author", cur.Author))

		fp := cur.Fingerprint
		go q.clearAffordances(fp)
		go q.markReported(fp)
		q.scheduleAdvance()

		for _, e := range q.entries {
			if e.Status == StatusPending {
				c := *e
				next = &c
				break
			}
		}
	}); derr != nil {
		return nil, derr
	}
	return next, err
}

// Cancel drops the active entry, aborting its in-flight steps. It reports
// whether there was anything to cancel.
func (q *Queue) Cancel(ctx context.Context) (cancelled bool, err error) {
	err = q.do(ctx, func() {
		cur := q.current
		if cur == nil {
			return
		}
		q.cancelFlight()
		q.stopMenuTimer()
		q.remove(cur)
		q.current = nil
		q.busy.Store(false)
		cancelled = true
		q.log.Info("report cancelled", zap.String("fingerprint", cur.Fingerprint), zap.String("author", cur.Author))

		go q.clearAffordances(cur.Fingerprint)
		q.scheduleAdvance()
	})
	return cancelled, err
}

// Clear drops every entry and aborts the active one.
func (q *Queue) Clear(ctx context.Context) error {
	return q.do(ctx, func() {
		q.cancelFlight()
		q.stopTimers()
		if cur := q.current; cur != nil {
			go q.clearAffordances(cur.Fingerprint)
		}
		n := len(q.entries)
		q.entries = nil
		q.current = nil
		q.busy.Store(false)
		q.log.Info("queue cleared", zap.Int("dropped", n))
	})
}

// Snapshot returns a copy of the queue state.
func (q *Queue) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := q.do(ctx, func() {
		s.Queue = make([]Entry, len(q.entries))
		for i, e := range q.entries {
			s.Queue[i] = *e
		}
		s.QueueLength = len(q.entries)
		if q.current != nil {
			c := *q.current
			s.Current = &c
			s.IsReporting = true
		}
	})
	return s, err
}

// Busy reports whether an entry is processing or awaiting confirmation.
func (q *Queue) Busy() bool {
	return q.busy.Load()
}

// advance starts the head entry when idle. Completed heads are dropped.
func (q *Queue) advance() {
	if q.current != nil || q.runCtx == nil {
		return
	}
	for len(q.entries) > 0 {
		head := q.entries[0]
		if head.Status == StatusCompleted || head.Status == StatusFailed {
			q.entries = q.entries[1:]
			continue
		}
		head.Status = StatusProcessing
		head.Attempts++
		q.current = head
		q.busy.Store(true)

		q.gen++
		ctx, cancel := context.WithCancel(q.runCtx)
		q.flight = &flight{gen: q.gen, cancel: cancel}
		go q.runFlight(ctx, q.gen, head.Request)
		q.log.Info("processing report", zap.String("fingerprint", head.Fingerprint), zap.String("author", head.Author))
		return
	}
}

func (q *Queue) runFlight(ctx context.Context, gen uint64, req Request) {
	handle, err := q.openMenu(ctx, req)
	select {
	case q.results <- flightResult{gen: gen, handle: handle, err: err}:
	case <-q.stopped:
	}
}

func (q *Queue) onFlightDone(r flightResult) {
	if q.flight == nil || r.gen != q.flight.gen {
		return
	}
	q.flight.cancel()
	q.flight = nil
	cur := q.current
	if cur == nil {
		return
	}

	if r.err != nil {
		cur.Status = StatusFailed
		cur.LastError = r.err.Error()
		q.log.Warn("report menu not opened", zap.String("fingerprint", cur.Fingerprint), zap.String("author", cur.Author), zap.Error(r.err))
		q.remove(cur)
		q.current = nil
		q.busy.Store(false)
		q.advance()
		return
	}

	cur.Status = StatusMenuOpened
	q.log.Info("report menu opened, waiting for operator", zap.String("fingerprint", cur.Fingerprint), zap.String("author", cur.Author))
	q.pub.Publish(notify.EventReportMenuOpened, map[string]string{
		"commentId": cur.Fingerprint,
		"username":  cur.Author,
		"text":      cur.Text,
		"step":      string(StatusMenuOpened),
	})
	q.armMenuTimer(r.gen)
}

func (q *Queue) onDialog(ev page.DialogEvent) {
	cur := q.current
	if cur == nil || cur.Status != StatusMenuOpened {
		return
	}
	switch ev.Kind {
	case page.DialogClosed:
		q.log.Warn("report dialog closed without confirmation", zap.String("fingerprint", cur.Fingerprint))
	case page.DialogOpened:
		q.log.Debug("report dialog open", zap.String("fingerprint", cur.Fingerprint))
	}
}

func (q *Queue) armMenuTimer(gen uint64) {
	if q.opts.MenuTimeout <= 0 {
		return
	}
	q.stopMenuTimer()
	q.menuTimer = time.AfterFunc(q.opts.MenuTimeout, func() {
		q.post(func() { q.onMenuTimeout(gen) })
	})
}

func (q *Queue) onMenuTimeout(gen uint64) {
	cur := q.current
	if cur == nil || cur.Status != StatusMenuOpened || gen != q.gen {
		return
	}
	cur.Status = StatusFailed
	cur.LastError = "menu timeout"
	q.log.Warn("report not confirmed in time", zap.String("fingerprint", cur.Fingerprint), zap.Duration("timeout", q.opts.MenuTimeout))
	q.remove(cur)
	q.current = nil
	q.busy.Store(false)
	go q.clearAffordances(cur.Fingerprint)
	q.advance()
}

func (q *Queue) scheduleAdvance() {
	if q.advanceTimer != nil {
		q.advanceTimer.Stop()
	}
	q.advancePending = true
	q.advanceTimer = time.AfterFunc(q.opts.AdvanceDelay, func() {
		q.post(func() {
			q.advancePending = false
			q.advance()
		})
	})
}

func (q *Queue) markReported(fingerprint string) {
	if q.marker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), q.opts.CleanupTimeout)
	defer cancel()
	if _, err := q.marker.MarkReported(ctx, fingerprint); err != nil {
		q.log.Warn("mark reported failed", zap.String("fingerprint", fingerprint), zap.Error(err))
	}
}

func (q *Queue) remove(target *Entry) {
	for i, e := range q.entries {
		if e == target {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

func (q *Queue) cancelFlight() {
	if q.flight != nil {
		q.flight.cancel()
		q.flight = nil
	}
}

func (q *Queue) stopMenuTimer() {
	if q.menuTimer != nil {
		q.menuTimer.Stop()
		q.menuTimer = nil
	}
}

func (q *Queue) stopTimers() {
	q.stopMenuTimer()
	if q.advanceTimer != nil {
		q.advanceTimer.Stop()
		q.advanceTimer = nil
	}
	q.advancePending = false
}
