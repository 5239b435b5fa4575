package page

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// OpenOptions selects the browser and tab to drive.
type OpenOptions struct {
	// ControlURL is the DevTools websocket of a running browser. Empty launches one.
	ControlURL string
	Headless   bool
	// URL opens a new tab. Empty attaches to the first tab whose URL contains
	// AttachMatch.
	URL         string
	AttachMatch string
	// ActionTimeout bounds element lookups during the report flow.
	ActionTimeout time.Duration
}

// RodTab implements Tab on a go-rod page.
type RodTab struct {
	browser *rod.Browser
	page    *rod.Page
	timeout time.Duration
	log     *zap.Logger
}

// Open connects to (or launches) a browser and returns the tab to drive.
func Open(ctx context.Context, opts OpenOptions, log *zap.Logger) (*RodTab, error) {
	if log == nil {
		log = zap.NewNop()
	}
	controlURL := opts.ControlURL
	if controlURL == "" {
		u, err := launcher.New().Headless(opts.Headless).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	p, err := pickPage(browser, opts)
	if err != nil {
		_ = browser.Close()
		return nil, err
	}
	if err := p.WaitLoad(); err != nil {
		log.Warn("page load wait failed", zap.Error(err))
	}

	timeout := opts.ActionTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RodTab{browser: browser, page: p, timeout: timeout, log: log}, nil
}

func pickPage(browser *rod.Browser, opts OpenOptions) (*rod.Page, error) {
	if opts.URL != "" {
		p, err := browser.Page(proto.TargetCreateTarget{URL: opts.URL})
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", opts.URL, err)
		}
		return p, nil
	}
	match := opts.AttachMatch
	if match == "" {
		match = "youtube.com/watch"
	}
	pages, err := browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if strings.Contains(info.URL, match) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no tab matching %q", match)
}

// Close detaches from the browser.
func (t *RodTab) Close() error {
	return t.browser.Close()
}

func (t *RodTab) eval(ctx context.Context, out any, js string, args ...any) error {
	res, err := t.page.Context(ctx).Evaluate(rod.Eval(js, args...))
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(res.Value.JSON("", "")), out)
}

func (t *RodTab) evalBool(ctx context.Context, js string, args ...any) (bool, error) {
	var ok bool
	if err := t.eval(ctx, &ok, js, args...); err != nil {
		return false, err
	}
	return ok, nil
}

func (t *RodTab) Info(ctx context.Context) (Info, error) {
	var info Info
	err := t.eval(ctx, &info, jsInfo, jsCommentSelector)
	return info, err
}

func (t *RodTab) Comments(ctx context.Context) ([]Node, error) {
	var nodes []Node
	if err := t.eval(ctx, &nodes, jsComments, jsCommentSelector); err != nil {
		return nil, fmt.Errorf("enumerate comments: %w", err)
	}
	return nodes, nil
}

func (t *RodTab) MarkScanned(ctx context.Context, handle, fingerprint string) error {
	ok, err := t.evalBool(ctx, jsMarkScanned, handle, fingerprint)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNodeNotFound
	}
	return nil
}

func (t *RodTab) MarkSpam(ctx context.Context, handle string, confidence float64) error {
	ok, err := t.evalBool(ctx, jsMarkSpam, handle, confidence)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNodeNotFound
	}
	return nil
}

func (t *RodTab) ScrollIntoView(ctx context.Context, handle string) error {
	el, err := t.page.Context(ctx).Timeout(t.timeout).Element(`[data-radar-handle="` + handle + `"]`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNodeNotFound, err)
	}
	return el.ScrollIntoView()
}

func (t *RodTab) Highlight(ctx context.Context, handle, color string, ttl time.Duration) error {
	ok, err := t.evalBool(ctx, jsHighlight, handle, color, ttl.Milliseconds())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNodeNotFound
	}
	return nil
}

func (t *RodTab) ClearHighlight(ctx context.Context, fingerprint string) error {
	_, err := t.evalBool(ctx, jsClearHighlight, fingerprint)
	return err
}

func (t *RodTab) OpenMenu(ctx context.Context, handle string) error {
	ok, err := t.evalBool(ctx, jsTagMenu, handle)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMenuNotFound
	}
	return t.click(ctx, `[data-radar-menu="1"]`, ErrMenuNotFound)
}

func (t *RodTab) ClickReportItem(ctx context.Context) error {
	ok, err := t.evalBool(ctx, jsTagReportItem)
	if err != nil {
		return err
	}
	if !ok {
		return ErrReportItemNotFound
	}
	return t.click(ctx, `[data-radar-report="1"]`, ErrReportItemNotFound)
}

func (t *RodTab) click(ctx context.Context, selector string, notFound error) error {
	el, err := t.page.Context(ctx).Timeout(t.timeout).Element(selector)
	if err != nil {
		return fmt.Errorf("%w: %v", notFound, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// DialogOpen is a DialogProbe for WatchDialog.
func (t *RodTab) DialogOpen(ctx context.Context) (bool, error) {
	return t.evalBool(ctx, jsDialogOpen, jsDialogSelector)
}

func (t *RodTab) DecorateDialog(ctx context.Context) (bool, error) {
	return t.evalBool(ctx, jsDecorateDialog, jsDialogSelector)
}

func (t *RodTab) ClearDialog(ctx context.Context) error {
	_, err := t.evalBool(ctx, jsClearDialog, jsDialogSelector)
	return err
}

func (t *RodTab) ShowOverlay(ctx context.Context, message string, ttl time.Duration) error {
	_, err := t.evalBool(ctx, jsShowOverlay, message, ttl.Milliseconds())
	return err
}

func (t *RodTab) RemoveOverlay(ctx context.Context) error {
	_, err := t.evalBool(ctx, jsRemoveOverlay)
	return err
}
