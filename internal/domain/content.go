package domain

import (
	"context"
	"time"
)

// ContentItem is a content page as exposed by the host CMS. Read-only for us:
// the host owns storage, taxonomy and permalink generation.
type ContentItem struct {
	ID          int64
	Title       string
	Body        string // rendered HTML
	Excerpt     string
	Status      string
	Type        string
	Categories  []int64 // primary taxonomy term ids
	Tags        []int64 // secondary taxonomy term ids
	PublishedAt time.Time
	URL         string
	EditURL     string
}

// StatusPublished is the only content status considered for linking.
const StatusPublished = "published"

// Published reports whether the item is live on the site.
func (c ContentItem) Published() bool {
	return c.Status == StatusPublished
}

// ContentStore is the collaborator contract to the host CMS.
type ContentStore interface {
	// Get returns a content item, or ErrContentNotFound.
	Get(ctx context.Context, id int64) (ContentItem, error)
	// FindIDs lists ids of the given types and status whose plain-text body
	// has at least minLength characters, newest first.
	FindIDs(ctx context.Context, types []string, status string, minLength int) ([]int64, error)
	// ResolveURL maps a site URL to a content id, or ErrContentNotFound.
	ResolveURL(ctx context.Context, rawURL string) (int64, error)
	// SetClusterID persists a cluster assignment as content metadata.
	SetClusterID(ctx context.Context, id int64, clusterID int) error
}

// SharedTerms returns how many term ids appear in both sets.
func SharedTerms(a, b []int64) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[int64]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	n := 0
	for _, t := range b {
		if _, ok := set[t]; ok {
			n++
		}
	}
	return n
}
