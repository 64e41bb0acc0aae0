// Package detect parses rendered HTML and extracts internal link edges.
// Parsing is lenient: real CMS output is rarely well-formed, and x/net/html
// recovers the way browsers do.
package detect

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/kailas-cloud/linkmesh/internal/domain"
)

// resolver maps a site URL to a content id.
type resolver interface {
	ResolveURL(ctx context.Context, rawURL string) (int64, error)
}

// Detector extracts internal link edges from rendered content bodies.
type Detector struct {
	baseURL  *url.URL
	resolver resolver
	now      func() time.Time
}

// New creates a detector. baseURL is the site root internal links resolve
// against, e.g. "https://example.com".
func New(baseURL string, r resolver) (*Detector, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute: %w", baseURL, domain.ErrInvalidInput)
	}
	return &Detector{baseURL: u, resolver: r, now: time.Now}, nil
}

// Detect parses the source item's rendered body and returns the internal
// edges it links out to. Self-links and links to unresolvable URLs are
// dropped; a body that parses to nothing yields no edges and no error.
func (d *Detector) Detect(ctx context.Context, source domain.ContentItem) ([]domain.LinkEdge, error) {
	if strings.TrimSpace(source.Body) == "" {
		return nil, nil
	}

	root, err := html.Parse(strings.NewReader(source.Body))
	if err != nil {
		// x/net/html only fails on reader errors, not malformed markup.
		return nil, fmt.Errorf("parse body of %d: %w", source.ID, err)
	}

	detectedAt := d.now().UTC()
	var edges []domain.LinkEdge
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if edge, ok := d.edgeFromAnchor(ctx, source.ID, n); ok {
				edge.DetectedAt = detectedAt
				edges = append(edges, edge.Truncated())
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return edges, nil
}

func (d *Detector) edgeFromAnchor(ctx context.Context, sourceID int64, n *html.Node) (domain.LinkEdge, bool) {
	href := attr(n, "href")
	target, ok := d.resolveHref(ctx, href)
	if !ok || target == sourceID {
		return domain.LinkEdge{}, false
	}

	return domain.LinkEdge{
		SourceID:   sourceID,
		TargetID:   target,
		AnchorText: collapseSpace(nodeText(n)),
		Context:    surroundingText(n),
	}, true
}

// resolveHref decides whether href is an internal content link and resolves
// it to a content id.
func (d *Detector) resolveHref(ctx context.Context, href string) (int64, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return 0, false
	}

	u, err := url.Parse(href)
	if err != nil {
		return 0, false
	}
	switch u.Scheme {
	case "", "http", "https":
	default:
		// mailto:, tel:, javascript: and friends.
		return 0, false
	}

	abs := d.baseURL.ResolveReference(u)
	if !strings.EqualFold(abs.Host, d.baseURL.Host) {
		return 0, false
	}
	abs.Fragment = ""

	id, err := d.resolver.ResolveURL(ctx, abs.String())
	if err != nil {
		if errors.Is(err, domain.ErrContentNotFound) {
			return 0, false
		}
		// Resolver outage: treat as unresolvable rather than failing the
		// whole scan.
		return 0, false
	}
	return id, true
}

// surroundingText returns the text of the anchor's nearest block-level
// ancestor, the sentence-ish neighborhood the link sits in.
func surroundingText(n *html.Node) string {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && blockElements[p.Data] {
			return collapseSpace(nodeText(p))
		}
	}
	return ""
}

var blockElements = map[string]bool{
	"p": true, "li": true, "td": true, "th": true, "blockquote": true,
	"div": true, "section": true, "article": true, "figcaption": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
