package reportq

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/comment-radar/services/radar/internal/page"
)

const (
	highlightColor = "#3498db"
	overlayMessage = "Pilih alasan report secara manual di dialog YouTube"
	matchTextLen   = 50
)

// findNode locates the comment for req among the rendered nodes: first by an
// identifier the scan or the platform left on the node, then by author and
// the leading text of visible nodes.
func findNode(nodes []page.Node, req Request) (page.Node, bool) {
	if fp := req.Fingerprint; fp != "" {
		for _, n := range nodes {
			if n.RadarID == fp || n.Attr("data-comment-id") == fp || n.ElementID == fp {
				return n, true
			}
		}
		for _, n := range nodes {
			if n.ElementID != "" && strings.Contains(n.ElementID, fp) {
				return n, true
			}
		}
	}
	head := string([]rune(req.Text)[:min(len([]rune(req.Text)), matchTextLen)])
	for _, n := range nodes {
		if !n.Visible {
			continue
		}
		if n.AuthorOrDefault() == req.Author && strings.Contains(n.Text, head) {
			return n, true
		}
	}
	return page.Node{}, false
}

// openMenu runs the visible part of a report up to the native dialog. It
// returns the handle of the node it acted on.
func (q *Queue) openMenu(ctx context.Context, req Request) (string, error) {
	log := q.log.With(zap.String("fingerprint", req.Fingerprint), zap.String("author", req.Author))

	nodes, err := q.tab.Comments(ctx)
	if err != nil {
		return "", err
	}
	node, ok := findNode(nodes, req)
	if !ok {
		return "", page.ErrNodeNotFound
	}

	if err := q.tab.ScrollIntoView(ctx, node.Handle); err != nil {
		return "", err
	}
	if err := sleep(ctx, q.opts.ScrollSettle); err != nil {
		return "", err
	}
	if err := q.tab.Highlight(ctx, node.Handle, highlightColor, q.opts.HighlightTTL); err != nil {
		log.Debug("highlight failed", zap.Error(err))
	}

	if err := q.tab.OpenMenu(ctx, node.Handle); err != nil {
		return "", err
	}
	log.Debug("menu button clicked")
	if err := sleep(ctx, q.opts.MenuSettle); err != nil {
		return "", err
	}
	if err := q.tab.ClickReportItem(ctx); err != nil {
		return "", err
	}
	log.Debug("report item clicked")

	if err := sleep(ctx, q.opts.DialogWait); err != nil {
		return "", err
	}
	shown, err := q.tab.DecorateDialog(ctx)
	if err != nil {
		log.Debug("dialog decoration failed", zap.Error(err))
	}
	if shown {
		if err := q.tab.ShowOverlay(ctx, overlayMessage, q.opts.OverlayTTL); err != nil {
			log.Debug("overlay failed", zap.Error(err))
		}
	}
	return node.Handle, nil
}

// clearAffordances removes what openMenu left on the page. Best effort.
func (q *Queue) clearAffordances(fingerprint string) {
	ctx, cancel := context.WithTimeout(context.Background(), q.opts.CleanupTimeout)
	defer cancel()
	if err := q.tab.ClearHighlight(ctx, fingerprint); err != nil {
		q.log.Debug("clear highlight failed", zap.Error(err))
	}
	if err := q.tab.RemoveOverlay(ctx); err != nil {
		q.log.Debug("remove overlay failed", zap.Error(err))
	}
	if err := q.tab.ClearDialog(ctx); err != nil {
		q.log.Debug("clear dialog failed", zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
