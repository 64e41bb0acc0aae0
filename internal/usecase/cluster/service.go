// Package cluster groups the embedded corpus into topical clusters with
// k-means and labels each group from its members' titles.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/linkmesh/internal/domain"
	"github.com/kailas-cloud/linkmesh/internal/textprep"
)

const (
	// chunkSize bounds how many vectors one corpus page holds.
	chunkSize = 500
	// labelSampleSize caps how many member titles feed a cluster label.
	labelSampleSize = 20
	// labelWords is how many top title words make up a label.
	labelWords = 3
)

// Cluster is one thematic group in a clustering result.
type Cluster struct {
	ID        int     `json:"id"`
	Label     string  `json:"label"`
	MemberIDs []int64 `json:"member_ids"`
	Size      int     `json:"size"`
}

// Result is a full clustering run. It is transient; only the per-content
// cluster id survives as content metadata.
type Result struct {
	K        int       `json:"k"`
	Total    int       `json:"total"`
	Clusters []Cluster `json:"clusters"`
}

// Corpus streams stored vectors in id order.
type Corpus interface {
	Chunk(ctx context.Context, afterID int64, limit int) ([]domain.VectorRow, int64, error)
}

// ContentStore reads titles and persists cluster assignments.
type ContentStore interface {
	Get(ctx context.Context, id int64) (domain.ContentItem, error)
	SetClusterID(ctx context.Context, id int64, clusterID int) error
}

// Service runs clustering over the embedded corpus.
type Service struct {
	corpus   Corpus
	contents ContentStore
	logger   *zap.Logger
	rng      *rand.Rand
}

// New creates a clustering service.
func New(corpus Corpus, contents ContentStore, logger *zap.Logger) *Service {
	return &Service{
		corpus:   corpus,
		contents: contents,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Recompute clusters the whole corpus and overwrites every member's stored
// assignment. k <= 0 selects k automatically from the corpus size. A corpus
// of fewer than two items yields an empty result, not an error.
func (s *Service) Recompute(ctx context.Context, k int) (Result, error) {
	ids, points, err := s.loadCorpus(ctx)
	if err != nil {
		return Result{}, err
	}
	n := len(points)
	if n < 2 {
		return Result{Total: n}, nil
	}

	if k <= 0 {
		k = autoK(n)
	}
	if k > n {
		k = n
	}

	assignments, _ := kmeans(points, k, s.rng)

	clusters := make([]Cluster, k)
	for c := range clusters {
		clusters[c] = Cluster{ID: c}
	}
	for i, c := range assignments {
		clusters[c].MemberIDs = append(clusters[c].MemberIDs, ids[i])
	}

	for c := range clusters {
		clusters[c].Size = len(clusters[c].MemberIDs)
		label, err := s.label(ctx, clusters[c].MemberIDs)
		if err != nil {
			return Result{}, err
		}
		clusters[c].Label = label
	}

	for i, id := range ids {
		if err := s.contents.SetClusterID(ctx, id, assignments[i]); err != nil {
			return Result{}, fmt.Errorf("persist cluster for %d: %w", id, err)
		}
	}

	s.logger.Info("Clustering finished",
		zap.Int("corpus", n), zap.Int("k", k))
	return Result{K: k, Total: n, Clusters: clusters}, nil
}

// autoK picks a cluster count from the corpus size: max(2, floor(sqrt(n/2))).
func autoK(n int) int {
	k := int(math.Floor(math.Sqrt(float64(n) / 2)))
	if k < 2 {
		k = 2
	}
	return k
}

// loadCorpus pages every stored vector into memory. Clustering needs the full
// point set at once; the chunked read only bounds per-request payloads.
func (s *Service) loadCorpus(ctx context.Context) ([]int64, [][]float32, error) {
	var (
		ids    []int64
		points [][]float32
		cursor int64
	)
	for {
		rows, next, err := s.corpus.Chunk(ctx, cursor, chunkSize)
		if err != nil {
			return nil, nil, fmt.Errorf("read corpus chunk after %d: %w", cursor, err)
		}
		for _, row := range rows {
			ids = append(ids, row.ContentID)
			points = append(points, row.Vector)
		}
		if next == 0 {
			return ids, points, nil
		}
		cursor = next
	}
}

// label names a cluster after the most frequent stopword-filtered words in a
// sample of member titles. Members deleted since embedding are skipped.
func (s *Service) label(ctx context.Context, memberIDs []int64) (string, error) {
	sample := memberIDs
	if len(sample) > labelSampleSize {
		sample = sample[:labelSampleSize]
	}

	freq := map[string]int{}
	for _, id := range sample {
		item, err := s.contents.Get(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrContentNotFound) {
				continue
			}
			return "", fmt.Errorf("load title for %d: %w", id, err)
		}
		for word, n := range textprep.Keywords(item.Title) {
			freq[word] += n
		}
	}
	if len(freq) == 0 {
		return "", nil
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > labelWords {
		words = words[:labelWords]
	}
	return strings.Join(words, " "), nil
}
