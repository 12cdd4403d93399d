// Package format converts model replies from a small markup subset to HTML.
//
// Format runs an ordered list of rewrite passes over the reply:
//
//  1. Well-formed HTML already present in the reply is kept verbatim
//  2. **bold** becomes <strong>bold</strong>
//  3. Google Drive file links become an <img> of the direct-view URL
//  4. Direct image URLs (jpg, jpeg, png, gif, bmp, webp) become <img>
//  5. Any other http(s) URL becomes an <a target="_blank"> anchor
//
// Every pass works on the original text. A pass claims the byte ranges it
// rewrites, and later passes only look at ranges nobody has claimed yet, so
// markup produced by one pass is never rewritten by another. Text that no
// pass claims is emitted unchanged.
package format

import (
	"html"
	"regexp"
	"sort"
	"strings"
)

var (
	boldPattern = regexp.MustCompile(`\*\*(.*?)\*\*`)

	// Anchors are claimed whole so their link text is not linked again.
	anchorPattern = regexp.MustCompile(`(?is)<a\b[^<>]*>.*?</a\s*>`)
	tagPattern    = regexp.MustCompile(`(?i)</?(?:` + strings.Join(elements, "|") + `)` +
		`(?:\s+[A-Za-z_:][-A-Za-z0-9_:.]*(?:\s*=\s*(?:"[^"]*"|'[^']*'|[^\s"'=<>` + "`" + `]+))?)*\s*/?>`)

	urlPattern = regexp.MustCompile("(?i)https?://[^\\s<>\"'`]+")

	driveViewPattern = regexp.MustCompile(`(?i)^https?://drive\.google\.com/file/d/([A-Za-z0-9_-]+)/view`)
	driveUCPattern   = regexp.MustCompile(`(?i)^https?://drive\.google\.com/uc\?(?:\S*&)?id=([A-Za-z0-9_-]+)`)
)

// elements are the HTML tag names passed through as markup. Anything else
// that looks like a tag is treated as text.
var elements = []string{
	"a", "abbr", "b", "blockquote", "br", "code", "del", "div", "em",
	"figcaption", "figure", "h1", "h2", "h3", "h4", "h5", "h6", "hr", "i",
	"img", "ins", "li", "mark", "ol", "p", "pre", "s", "small", "span",
	"strong", "sub", "sup", "table", "tbody", "td", "th", "thead", "tr",
	"u", "ul",
}

// imageExtensions are matched case-insensitively against the URL path.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

// DriveViewBase is the direct-view URL prefix for Google Drive files.
const DriveViewBase = "https://drive.google.com/uc?export=view&id="

// pass rewrites part of the document by claiming spans of it.
type pass func(d *document)

// inGaps runs p over every range still unclaimed when the pass starts.
// p only rewrites matches that lie entirely inside [start, end).
func inGaps(p func(d *document, start, end int)) pass {
	return func(d *document) {
		for _, g := range d.gaps() {
			p(d, g[0], g[1])
		}
	}
}

var passes = []pass{
	inGaps(existingMarkupPass),
	boldPass,
	inGaps(drivePass),
	inGaps(imagePass),
	inGaps(linkPass),
}

// Format converts raw model output into an HTML fragment.
// It never fails: input with nothing to rewrite is returned unchanged.
func Format(raw string) string {
	if raw == "" {
		return raw
	}

	d := &document{src: raw}
	for _, p := range passes {
		p(d)
	}
	return d.render()
}

// ImageTag returns the <img> markup used for every image in a reply.
// Google Drive file links are normalized to their direct-view URL.
// src must not contain a double quote.
func ImageTag(src, alt string) string {
	if id, ok := DriveFileID(src); ok {
		src = DriveImageURL(id)
	}
	if alt == "" {
		alt = "image"
	}
	alt = html.EscapeString(alt)
	return `<img src="` + src + `" alt="` + alt + `" class="chat-image" loading="lazy"` +
		` onerror="this.onerror=null;this.replaceWith(document.createTextNode(this.alt));">`
}

// DriveImageURL returns the direct-view URL for a Google Drive file id.
func DriveImageURL(id string) string {
	return DriveViewBase + id
}

// DriveFileID extracts the file id from either recognized Google Drive link
// shape: .../file/d/ID/view and .../uc?id=ID.
func DriveFileID(url string) (string, bool) {
	if m := driveViewPattern.FindStringSubmatch(url); m != nil {
		return m[1], true
	}
	if m := driveUCPattern.FindStringSubmatch(url); m != nil {
		return m[1], true
	}
	return "", false
}

// IsImageURL reports whether url points at a file with an image extension.
// The query string and fragment are ignored.
func IsImageURL(url string) bool {
	path := url
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.ToLower(path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// boldPass scans the whole reply so bold text may wrap existing markup.
// A pair is skipped when either marker sits inside claimed markup.
func boldPass(d *document) {
	for _, m := range boldPattern.FindAllStringSubmatchIndex(d.src, -1) {
		opening, closing := m[0], m[3]
		if !d.free(opening, opening+2) || !d.free(closing, closing+2) {
			continue
		}
		d.claim(opening, opening+2, "<strong>")
		d.claim(closing, closing+2, "</strong>")
	}
}

func existingMarkupPass(d *document, start, end int) {
	for _, m := range anchorPattern.FindAllStringIndex(d.src[start:end], -1) {
		d.claim(start+m[0], start+m[1], d.src[start+m[0]:start+m[1]])
	}
	for _, g := range d.gapsWithin(start, end) {
		for _, m := range tagPattern.FindAllStringIndex(d.src[g[0]:g[1]], -1) {
			d.claim(g[0]+m[0], g[0]+m[1], d.src[g[0]+m[0]:g[0]+m[1]])
		}
	}
}

func drivePass(d *document, start, end int) {
	eachURL(d, start, end, func(url string) (string, bool) {
		id, ok := DriveFileID(url)
		if !ok {
			return "", false
		}
		return ImageTag(DriveImageURL(id), "image"), true
	})
}

func imagePass(d *document, start, end int) {
	eachURL(d, start, end, func(url string) (string, bool) {
		if !IsImageURL(url) {
			return "", false
		}
		return ImageTag(url, "image"), true
	})
}

func linkPass(d *document, start, end int) {
	eachURL(d, start, end, func(url string) (string, bool) {
		return `<a href="` + url + `" target="_blank" rel="noopener noreferrer">` + url + `</a>`, true
	})
}

// eachURL finds URLs in [start, end) and claims those rewrite accepts.
// A URL directly after `="` or `='` is an attribute value of markup we did
// not recognize and is left alone.
func eachURL(d *document, start, end int, rewrite func(url string) (string, bool)) {
	for _, m := range urlPattern.FindAllStringIndex(d.src[start:end], -1) {
		s, e := start+m[0], start+m[1]
		if inAttribute(d.src, s) {
			continue
		}
		e = s + trimURL(d.src[s:e])
		if out, ok := rewrite(d.src[s:e]); ok {
			d.claim(s, e, out)
		}
	}
}

func inAttribute(src string, at int) bool {
	if at < 2 {
		return false
	}
	prefix := src[at-2 : at]
	return prefix == `="` || prefix == `='`
}

// trimURL returns the length of url without trailing sentence punctuation.
// A closing parenthesis is kept when the URL has a matching opening one.
func trimURL(url string) int {
	n := len(url)
	for n > 0 {
		c := url[n-1]
		if strings.IndexByte(".,;:!?", c) >= 0 {
			n--
			continue
		}
		if c == ')' && strings.Count(url[:n], "(") < strings.Count(url[:n], ")") {
			n--
			continue
		}
		break
	}
	return n
}

// span is a claimed byte range of the source and the markup it renders as.
type span struct {
	start, end int
	out        string
}

// document holds the source text and the sorted, non-overlapping spans
// claimed so far.
type document struct {
	src   string
	spans []span
}

// claim records that [start, end) renders as out. Callers only claim
// ranges inside a gap, so spans never overlap.
func (d *document) claim(start, end int, out string) {
	i := sort.Search(len(d.spans), func(i int) bool { return d.spans[i].start >= start })
	d.spans = append(d.spans, span{})
	copy(d.spans[i+1:], d.spans[i:])
	d.spans[i] = span{start: start, end: end, out: out}
}

// free reports whether no claimed span overlaps [start, end).
func (d *document) free(start, end int) bool {
	for _, sp := range d.spans {
		if sp.start < end && start < sp.end {
			return false
		}
	}
	return true
}

// gaps returns the unclaimed ranges of the whole source.
func (d *document) gaps() [][2]int {
	return d.gapsWithin(0, len(d.src))
}

// gapsWithin returns the unclaimed, non-empty ranges inside [start, end).
func (d *document) gapsWithin(start, end int) [][2]int {
	var gaps [][2]int
	pos := start
	for _, sp := range d.spans {
		if sp.end <= start {
			continue
		}
		if sp.start >= end {
			break
		}
		if sp.start > pos {
			gaps = append(gaps, [2]int{pos, sp.start})
		}
		if sp.end > pos {
			pos = sp.end
		}
	}
	if pos < end {
		gaps = append(gaps, [2]int{pos, end})
	}
	return gaps
}

func (d *document) render() string {
	if len(d.spans) == 0 {
		return d.src
	}
	var b strings.Builder
	b.Grow(len(d.src) + 64*len(d.spans))
	pos := 0
	for _, sp := range d.spans {
		b.WriteString(d.src[pos:sp.start])
		b.WriteString(sp.out)
		pos = sp.end
	}
	b.WriteString(d.src[pos:])
	return b.String()
}
