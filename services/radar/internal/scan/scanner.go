// Package scan classifies the comments rendered on the page.
package scan

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/example/comment-radar/internal/platform/notify"
	"github.com/example/comment-radar/internal/platform/ratelimit"
	"github.com/example/comment-radar/services/radar/internal/classify"
	"github.com/example/comment-radar/services/radar/internal/comment"
	"github.com/example/comment-radar/services/radar/internal/fingerprint"
	"github.com/example/comment-radar/services/radar/internal/page"
)

// Classifier labels one comment. It returns an error only when ctx ends.
type Classifier interface {
	Classify(ctx context.Context, text, videoID, author string) (classify.Result, error)
}

// Sink receives every classified record.
type Sink interface {
	Persist(ctx context.Context, rec comment.Record) (bool, error)
}

type Options struct {
	// Throttle is the minimum gap between classification calls.
	Throttle time.Duration
	// Interval between periodic re-scans.
	Interval time.Duration
	// StartDelay before the first scan in Run.
	StartDelay  time.Duration
	Fingerprint fingerprint.Options
}

func (o Options) withDefaults() Options {
	if o.Throttle < 0 {
		o.Throttle = 0
	} else if o.Throttle == 0 {
		o.Throttle = 100 * time.Millisecond
	}
	if o.Interval <= 0 {
		o.Interval = 15 * time.Second
	}
	if o.StartDelay < 0 {
		o.StartDelay = 0
	}
	return o
}

// Result summarises one pass. JSON names match the scanCompleted payload.
type Result struct {
	Scanned   int `json:"totalScanned"`
	SpamFound int `json:"spamFound"`
	Total     int `json:"totalComments"`
}

const minTextLen = 2

type Scanner struct {
	page  page.Page
	cls   Classifier
	sink  Sink
	pub   *notify.Publisher
	log   *zap.Logger
	opts  Options
	group singleflight.Group
	now   func() time.Time
}

func New(p page.Page, cls Classifier, sink Sink, pub *notify.Publisher, log *zap.Logger, opts Options) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{page: p, cls: cls, sink: sink, pub: pub, log: log, opts: opts.withDefaults(), now: time.Now}
}

// ScanAll classifies every visible comment not scanned before. Concurrent
// callers share the pass already in flight and receive its result.
func (s *Scanner) ScanAll(ctx context.Context) (Result, error) {
	v, err, shared := s.group.Do("scan", func() (interface{}, error) {
		return s.scan(ctx)
	})
	if shared {
		s.log.Debug("joined in-flight scan")
	}
	res, _ := v.(Result)
	return res, err
}

func (s *Scanner) scan(ctx context.Context) (Result, error) {
	videoID := ""
	if info, err := s.page.Info(ctx); err != nil {
		s.log.Warn("page info failed", zap.Error(err))
	} else {
		videoID = info.VideoID
	}

	nodes, err := s.page.Comments(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Total: len(nodes)}
	s.log.Info("scan started", zap.Int("comments", len(nodes)), zap.String("video_id", videoID))

	limiter := ratelimit.NewInterval(s.opts.Throttle)
	defer limiter.Stop()

	for _, n := range nodes {
		if !n.Visible || n.Scanned {
			continue
		}
		if utf8.RuneCountInString(strings.TrimSpace(n.Text)) < minTextLen {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			return res, err
		}

		fp := s.opts.Fingerprint.Identify(n)
		if err := s.page.MarkScanned(ctx, n.Handle, fp); err != nil {
			if errors.Is(err, page.ErrNodeNotFound) {
				s.log.Debug("node vanished before marking", zap.String("fingerprint", fp))
				continue
			}
			s.log.Warn("mark scanned failed", zap.String("fingerprint", fp), zap.Error(err))
		}
		res.Scanned++

		author := n.AuthorOrDefault()
		cr, err := s.cls.Classify(ctx, n.Text, videoID, author)
		if err != nil {
			return res, err
		}

		rec := comment.New(fp, n.Text, author, videoID, cr.Label, cr.Confidence, s.now())
		rec.Error = cr.Error
		if rec.IsSpam() {
			res.SpamFound++
			if err := s.page.MarkSpam(ctx, n.Handle, rec.Confidence); err != nil {
				s.log.Warn("spam marker failed", zap.String("fingerprint", fp), zap.Error(err))
			}
		}
		if _, err := s.sink.Persist(ctx, rec); err != nil {
			s.log.Warn("record not persisted", zap.String("fingerprint", fp), zap.Error(err))
		}
	}

	s.log.Info("scan finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("spam_found", res.SpamFound),
		zap.Int("total", res.Total),
	)
	s.pub.Publish(notify.EventScanCompleted, res)
	return res, nil
}

// Unscanned counts visible comments that no pass has marked yet.
func (s *Scanner) Unscanned(ctx context.Context) (int, error) {
	nodes, err := s.page.Comments(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, node := range nodes {
		if !node.Scanned {
			n++
		}
	}
	return n, nil
}

// Run performs the initial scan after StartDelay and then re-scans every
// Interval when new comments appeared. Periodic passes are skipped while busy
// reports true. Run returns when ctx ends.
func (s *Scanner) Run(ctx context.Context, busy func() bool) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.opts.StartDelay):
	}
	if _, err := s.ScanAll(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn("initial scan failed", zap.Error(err))
	}

	t := time.NewTicker(s.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		if busy != nil && busy() {
			continue
		}
		pending, err := s.Unscanned(ctx)
		if err != nil {
			s.log.Debug("unscanned probe failed", zap.Error(err))
			continue
		}
		if pending == 0 {
			continue
		}
		s.log.Info("new comments found", zap.Int("count", pending))
		if _, err := s.ScanAll(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn("periodic scan failed", zap.Error(err))
		}
	}
}
