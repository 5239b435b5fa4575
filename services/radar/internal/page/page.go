// Package page is the radar's view of the browser tab it drives: it locates
// rendered comment nodes and performs the visible steps of the report flow.
//
// Everything selector-specific lives behind the Page and Reporter interfaces;
// the scan and report logic only sees Node values.
package page

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNodeNotFound       = errors.New("page: comment node not found")
	ErrMenuNotFound       = errors.New("page: comment menu button not found")
	ErrReportItemNotFound = errors.New("page: report menu item not found")
)

// Rect is a node's bounding box in viewport coordinates.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Node is a snapshot of one rendered comment.
type Node struct {
	// Handle addresses the node in later calls. It survives re-renders of the
	// same element but not replacement of the element.
	Handle    string            `json:"handle"`
	Index     int               `json:"index"`
	ElementID string            `json:"elementId"`
	Attrs     map[string]string `json:"attrs"`
	Links     []string          `json:"links"`
	Author    string            `json:"author"`
	Text      string            `json:"text"`
	Rect      Rect              `json:"rect"`
	Visible   bool              `json:"visible"`
	Scanned   bool              `json:"scanned"`
	RadarID   string            `json:"radarId"`
}

// Attr returns an attribute value or "".
func (n Node) Attr(name string) string {
	if n.Attrs == nil {
		return ""
	}
	return n.Attrs[name]
}

// AuthorOrDefault returns the cleaned author name, or Anonymous.
func (n Node) AuthorOrDefault() string {
	a := strings.TrimSpace(n.Author)
	a = strings.TrimPrefix(a, "@")
	a = strings.Join(strings.Fields(a), " ")
	if a == "" {
		return "Anonymous"
	}
	if r := []rune(a); len(r) > 30 {
		a = string(r[:30])
	}
	return a
}

// Info summarises the tab.
type Info struct {
	Title         string `json:"pageTitle"`
	URL           string `json:"url"`
	VideoID       string `json:"videoId,omitempty"`
	CommentsCount int    `json:"commentsCount"`
}

// Page enumerates comments and leaves scan markers on them.
type Page interface {
	Info(ctx context.Context) (Info, error)
	Comments(ctx context.Context) ([]Node, error)
	MarkScanned(ctx context.Context, handle, fingerprint string) error
	MarkSpam(ctx context.Context, handle string, confidence float64) error
}

// Reporter drives the host page's native report affordances.
type Reporter interface {
	ScrollIntoView(ctx context.Context, handle string) error
	Highlight(ctx context.Context, handle, color string, ttl time.Duration) error
	ClearHighlight(ctx context.Context, fingerprint string) error
	OpenMenu(ctx context.Context, handle string) error
	ClickReportItem(ctx context.Context) error
	DecorateDialog(ctx context.Context) (bool, error)
	ClearDialog(ctx context.Context) error
	ShowOverlay(ctx context.Context, message string, ttl time.Duration) error
	RemoveOverlay(ctx context.Context) error
}

// Tab is a Page that can also run the report flow.
type Tab interface {
	Page
	Reporter
}
