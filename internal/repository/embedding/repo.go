// Package embedding persists one vector per content item, plus an index
// sorted set scored by content id so the corpus can be walked in stable
// chunks without a full scan.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/linkmesh/internal/db"
	"github.com/kailas-cloud/linkmesh/internal/domain"
)

var (
	recordKeyPrefix = domain.KeyPrefix + "emb:"
	indexKey        = domain.KeyPrefix + "emb:index"
)

// store is the consumer interface for embeddings (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	ZAdd(ctx context.Context, key string, members ...db.ZMember) error
	ZRem(ctx context.Context, key string, members ...string) error
	ZCard(ctx context.Context, key string) (int64, error)
	ZRangeByScore(ctx context.Context, key string, min, max float64, limit int64) ([]string, error)
}

// Repo implements embedding persistence over a hash-per-record layout.
type Repo struct {
	store store
}

// New creates an embedding repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Save upserts the record and registers the content id in the iteration index.
func (r *Repo) Save(ctx context.Context, rec *domain.EmbeddingRecord) error {
	key := recordKey(rec.ContentID)

	if err := r.store.HSet(ctx, key, buildHashFields(rec)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	member := db.ZMember{Member: strconv.FormatInt(rec.ContentID, 10), Score: float64(rec.ContentID)}
	if err := r.store.ZAdd(ctx, indexKey, member); err != nil {
		return fmt.Errorf("zadd %s: %w", indexKey, err)
	}
	return nil
}

// Get returns the stored record for a content id.
func (r *Repo) Get(ctx context.Context, contentID int64) (domain.EmbeddingRecord, error) {
	key := recordKey(contentID)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.EmbeddingRecord{}, domain.ErrEmbeddingNotFound
		}
		return domain.EmbeddingRecord{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domain.EmbeddingRecord{}, domain.ErrEmbeddingNotFound
	}
	return parseHashFields(contentID, m)
}

// Hash returns the stored content hash, or ErrEmbeddingNotFound.
func (r *Repo) Hash(ctx context.Context, contentID int64) (string, error) {
	rec, err := r.Get(ctx, contentID)
	if err != nil {
		return "", err
	}
	return rec.ContentHash, nil
}

// Has reports whether an embedding exists for the content id.
func (r *Repo) Has(ctx context.Context, contentID int64) (bool, error) {
	ok, err := r.store.Exists(ctx, recordKey(contentID))
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", recordKey(contentID), err)
	}
	return ok, nil
}

// Delete removes the record and its index entry. Deleting a missing record
// is not an error.
func (r *Repo) Delete(ctx context.Context, contentID int64) error {
	key := recordKey(contentID)
	if err := r.store.Del(ctx, key); err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("del %s: %w", key, err)
	}
	if err := r.store.ZRem(ctx, indexKey, strconv.FormatInt(contentID, 10)); err != nil {
		return fmt.Errorf("zrem %s: %w", indexKey, err)
	}
	return nil
}

// Count returns the number of stored embeddings.
func (r *Repo) Count(ctx context.Context) (int64, error) {
	n, err := r.store.ZCard(ctx, indexKey)
	if err != nil {
		return 0, fmt.Errorf("zcard %s: %w", indexKey, err)
	}
	return n, nil
}

// Chunk returns up to limit vector rows with content id strictly greater
// than afterID, in ascending id order, plus the cursor for the next call.
// A zero next cursor means the corpus is exhausted.
func (r *Repo) Chunk(ctx context.Context, afterID int64, limit int) ([]domain.VectorRow, int64, error) {
	if limit <= 0 {
		limit = 500
	}

	ids, err := r.store.ZRangeByScore(ctx, indexKey, float64(afterID)+1, float64(1<<53), int64(limit))
	if err != nil {
		return nil, 0, fmt.Errorf("zrangebyscore %s: %w", indexKey, err)
	}
	if len(ids) == 0 {
		return nil, 0, nil
	}

	keys := make([]string, len(ids))
	contentIDs := make([]int64, len(ids))
	for i, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("corrupt index member %q: %w", raw, err)
		}
		contentIDs[i] = id
		keys[i] = recordKey(id)
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, 0, fmt.Errorf("hgetall multi: %w", err)
	}

	rows := make([]domain.VectorRow, 0, len(ids))
	for i, m := range hashes {
		if len(m) == 0 {
			// Index entry with no record; skip rather than fail the chunk.
			continue
		}
		vec, err := bytesToVector(m[fieldVector])
		if err != nil {
			return nil, 0, fmt.Errorf("content %d: %w", contentIDs[i], err)
		}
		rows = append(rows, domain.VectorRow{ContentID: contentIDs[i], Vector: vec})
	}

	var next int64
	if len(ids) == limit {
		next = contentIDs[len(contentIDs)-1]
	}
	return rows, next, nil
}

func recordKey(contentID int64) string {
	return recordKeyPrefix + strconv.FormatInt(contentID, 10)
}
