// Package fingerprint derives the deduplication key of a rendered comment.
//
// The key prefers identifiers the platform itself put on the node and only
// falls back to a content hash when none is present. The fallback mixes in
// the node's screen position, so the same comment rendered at a different
// offset yields a different key; Options.StableFallback swaps position for
// DOM order.
package fingerprint

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/example/comment-radar/services/radar/internal/page"
)

// AltAttrs are checked in order after the element id.
var AltAttrs = []string{"data-comment-id", "data-target", "data-aid", "data-id"}

const (
	prefix       = "comment_"
	minAttrLen   = 6
	fallbackText = 20
)

type Options struct {
	StableFallback bool
}

// Identify returns the fingerprint of n with the default options.
func Identify(n page.Node) string {
	return Options{}.Identify(n)
}

func (o Options) Identify(n page.Node) string {
	if strings.Contains(n.ElementID, "comment") {
		return n.ElementID
	}
	for _, name := range AltAttrs {
		if v := n.Attr(name); len(v) >= minAttrLen {
			return v
		}
	}
	for _, link := range n.Links {
		if id := commentParam(link); id != "" {
			return id
		}
	}
	return prefix + Hash(o.fallbackKey(n))
}

func (o Options) fallbackKey(n page.Node) string {
	text := headUTF16(n.Text, fallbackText)
	author := n.AuthorOrDefault()
	if o.StableFallback {
		return author + "_" + text + "_" + strconv.Itoa(n.Index) + "_" + Hash(n.Text)
	}
	return author + "_" + text + "_" +
		strconv.FormatInt(int64(math.Floor(n.Rect.Top)), 10) + "_" +
		strconv.FormatInt(int64(math.Floor(n.Rect.Left)), 10)
}

// commentParam extracts the value following "comment=" up to the next '&'.
func commentParam(href string) string {
	i := strings.Index(href, "comment=")
	if i < 0 {
		return ""
	}
	v := href[i+len("comment="):]
	if j := strings.IndexByte(v, '&'); j >= 0 {
		v = v[:j]
	}
	return v
}

// Hash is the 32-bit rolling hash h = h*31 + c over UTF-16 code units,
// wrapped to int32, rendered as the base-36 absolute value.
func Hash(s string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}

// headUTF16 returns the first n UTF-16 code units of s.
func headUTF16(s string, n int) string {
	units := utf16.Encode([]rune(s))
	if len(units) <= n {
		return s
	}
	return string(utf16.Decode(units[:n]))
}
