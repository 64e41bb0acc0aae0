// Package textprep builds the weighted text blob a content item is embedded
// from. The blob is deterministic: its hash decides whether re-embedding is
// needed, so same input must always yield the same bytes.
package textprep

import (
	"crypto/sha256"
	"encoding/hex"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	xhtml "golang.org/x/net/html"

	"github.com/kailas-cloud/linkmesh/internal/domain"
)

// MaxBodyChars caps the plain-text body to respect provider token ceilings.
const MaxBodyChars = 50000

var (
	stripPolicy    = bluemonday.StrictPolicy()
	whitespaceRe   = regexp.MustCompile(`\s+`)
	shortcodeRe    = regexp.MustCompile(`\[[^\]\n]{1,100}\]`)
)

// Prepare builds the embedding input for a content item. Weighting is fixed:
// title 3x, first body H1 (when distinct from the title) 2x, excerpt 2x,
// plain-text body 1x. Empty parts are omitted; parts join with blank lines.
func Prepare(item domain.ContentItem) string {
	var parts []string

	title := strings.TrimSpace(item.Title)
	if title != "" {
		parts = append(parts, title, title, title)
	}

	if h1 := FirstH1(item.Body); h1 != "" && h1 != title {
		parts = append(parts, h1, h1)
	}

	if excerpt := strings.TrimSpace(item.Excerpt); excerpt != "" {
		parts = append(parts, excerpt, excerpt)
	}

	if body := PlainText(item.Body); body != "" {
		r := []rune(body)
		if len(r) > MaxBodyChars {
			body = string(r[:MaxBodyChars])
		}
		parts = append(parts, body)
	}

	return strings.Join(parts, "\n\n")
}

// Hash returns the content hash of a prepared blob.
func Hash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// PlainText strips HTML markup and shortcodes and collapses whitespace.
func PlainText(rawHTML string) string {
	text := shortcodeRe.ReplaceAllString(rawHTML, " ")
	text = stripPolicy.Sanitize(text)
	text = html.UnescapeString(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// FirstH1 returns the text of the first h1 element in an HTML fragment, or "".
// The parse is lenient: malformed markup never fails, it just yields what the
// parser could recover.
func FirstH1(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	doc, err := xhtml.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	node := findFirst(doc, "h1")
	if node == nil {
		return ""
	}
	return strings.TrimSpace(collapseSpace(nodeText(node)))
}

func findFirst(n *xhtml.Node, tag string) *xhtml.Node {
	if n.Type == xhtml.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func nodeText(n *xhtml.Node) string {
	var sb strings.Builder
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapseSpace(s string) string {
	return whitespaceRe.ReplaceAllString(s, " ")
}
