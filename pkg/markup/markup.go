// Package markup renders user-submitted markdown into sanitized HTML.
// Sanitization is the only XSS defense on user content: disallowed tags and
// attributes are stripped, not escaped.
package markup

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

// Raw HTML is passed through the renderer so the sanitizer sees it; the
// policy below is what strips anything dangerous.
var md = goldmark.New(goldmark.WithRendererOptions(html.WithUnsafe()))

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "b", "i", "u", "em", "strong",
		"a", "ul", "ol", "li", "br",
		"blockquote", "code", "pre", "img",
		"h1", "h2", "h3", "h4", "h5", "h6",
	)
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("src", "alt", "title").OnElements("img")
	p.AllowURLSchemes("http", "https", "mailto")
	return p
}

// Render converts markdown source to HTML restricted to the allowed tag and
// attribute set. When markdown conversion fails the raw source is still
// sanitized so no unsafe content can pass through.
func Render(source string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return policy.Sanitize(source)
	}
	return strings.TrimSpace(policy.Sanitize(buf.String()))
}

// Sanitize restricts an HTML fragment to the allowed tag and attribute set
// without markdown conversion.
func Sanitize(html string) string {
	return strings.TrimSpace(policy.Sanitize(html))
}
