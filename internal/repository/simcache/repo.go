// Package simcache persists computed similarity scores. Per source, rows
// live in a hash keyed by target id with a companion ranking sorted set.
// A global sorted set ranks rows without an existing link for the site-wide
// opportunities view, and a per-target reverse index makes target-side
// invalidation exact instead of a full scan.
package simcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/linkmesh/internal/db"
	"github.com/kailas-cloud/linkmesh/internal/domain"
)

var (
	rowsKeyPrefix     = domain.KeyPrefix + "sim:rows:"
	rankKeyPrefix     = domain.KeyPrefix + "sim:rank:"
	byTargetKeyPrefix = domain.KeyPrefix + "sim:bytarget:"
	globalKey         = domain.KeyPrefix + "sim:global"
	scanPattern       = domain.KeyPrefix + "sim:*"
)

// store is the consumer interface for the similarity cache (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	HKeys(ctx context.Context, key string) ([]string, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	ZAdd(ctx context.Context, key string, members ...db.ZMember) error
	ZRem(ctx context.Context, key string, members ...string) error
	ZCard(ctx context.Context, key string) (int64, error)
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]db.ZMember, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// Repo implements similarity cache persistence.
type Repo struct {
	store store
}

// New creates a similarity cache repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SaveScores replaces the cached rows of one source. Rows already present
// for targets not in the new set are dropped, and every index is kept in
// step with the hash.
func (r *Repo) SaveScores(ctx context.Context, sourceID int64, rows []domain.ScoreRow) error {
	if err := r.invalidateAsSource(ctx, sourceID); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	src := strconv.FormatInt(sourceID, 10)
	fields := make(map[string]string, len(rows))
	rank := make([]db.ZMember, 0, len(rows))
	global := make([]db.ZMember, 0, len(rows))

	for _, row := range rows {
		tgt := strconv.FormatInt(row.TargetID, 10)
		data, err := json.Marshal(toDTO(row))
		if err != nil {
			return fmt.Errorf("marshal row %d->%d: %w", sourceID, row.TargetID, err)
		}
		fields[tgt] = string(data)
		rank = append(rank, db.ZMember{Member: tgt, Score: row.FinalScore})
		if !row.LinkExists {
			global = append(global, db.ZMember{Member: src + ":" + tgt, Score: row.FinalScore})
		}
		if err := r.store.SAdd(ctx, byTargetKey(row.TargetID), src); err != nil {
			return fmt.Errorf("sadd bytarget %d: %w", row.TargetID, err)
		}
	}

	if err := r.store.HSet(ctx, rowsKey(sourceID), fields); err != nil {
		return fmt.Errorf("hset %s: %w", rowsKey(sourceID), err)
	}
	if err := r.store.ZAdd(ctx, rankKey(sourceID), rank...); err != nil {
		return fmt.Errorf("zadd %s: %w", rankKey(sourceID), err)
	}
	if len(global) > 0 {
		if err := r.store.ZAdd(ctx, globalKey, global...); err != nil {
			return fmt.Errorf("zadd %s: %w", globalKey, err)
		}
	}
	return nil
}

// TopN returns up to n cached rows for a source, best final score first.
func (r *Repo) TopN(ctx context.Context, sourceID int64, n int) ([]domain.ScoreRow, error) {
	if n <= 0 {
		return nil, nil
	}
	ranked, err := r.store.ZRevRangeWithScores(ctx, rankKey(sourceID), 0, int64(n)-1)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("zrevrange %s: %w", rankKey(sourceID), err)
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	fields, err := r.store.HGetAll(ctx, rowsKey(sourceID))
	if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return nil, fmt.Errorf("hgetall %s: %w", rowsKey(sourceID), err)
	}

	rows := make([]domain.ScoreRow, 0, len(ranked))
	for _, m := range ranked {
		raw, ok := fields[m.Member]
		if !ok {
			continue
		}
		targetID, err := strconv.ParseInt(m.Member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt rank member %q: %w", m.Member, err)
		}
		var d rowDTO
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("unmarshal row %d->%s: %w", sourceID, m.Member, err)
		}
		rows = append(rows, fromDTO(sourceID, targetID, d))
	}
	return rows, nil
}

// TopGlobal returns up to n rows without an existing link, best first,
// across all sources.
func (r *Repo) TopGlobal(ctx context.Context, n int) ([]domain.ScoreRow, error) {
	if n <= 0 {
		return nil, nil
	}
	ranked, err := r.store.ZRevRangeWithScores(ctx, globalKey, 0, int64(n)-1)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("zrevrange %s: %w", globalKey, err)
	}

	rows := make([]domain.ScoreRow, 0, len(ranked))
	for _, m := range ranked {
		sourceID, targetID, err := splitPair(m.Member)
		if err != nil {
			return nil, err
		}
		row, err := r.get(ctx, sourceID, targetID)
		if err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				continue
			}
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Has reports whether any rows are cached for the source.
func (r *Repo) Has(ctx context.Context, sourceID int64) (bool, error) {
	ok, err := r.store.Exists(ctx, rowsKey(sourceID))
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", rowsKey(sourceID), err)
	}
	return ok, nil
}

// InvalidateForContent drops every cached row where the content id appears
// as source or as target, and nothing else.
func (r *Repo) InvalidateForContent(ctx context.Context, contentID int64) error {
	if err := r.invalidateAsSource(ctx, contentID); err != nil {
		return err
	}
	return r.invalidateAsTarget(ctx, contentID)
}

// Truncate drops the whole cache.
func (r *Repo) Truncate(ctx context.Context) error {
	keys, err := r.store.Scan(ctx, scanPattern)
	if err != nil {
		return fmt.Errorf("scan %s: %w", scanPattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("del cache keys: %w", err)
	}
	return nil
}

// Count returns the total number of cached rows site-wide.
func (r *Repo) Count(ctx context.Context) (int64, error) {
	keys, err := r.store.Scan(ctx, rankKeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan ranks: %w", err)
	}
	var total int64
	for _, key := range keys {
		n, err := r.store.ZCard(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("zcard %s: %w", key, err)
		}
		total += n
	}
	return total, nil
}

func (r *Repo) get(ctx context.Context, sourceID, targetID int64) (domain.ScoreRow, error) {
	fields, err := r.store.HGetAll(ctx, rowsKey(sourceID))
	if err != nil {
		return domain.ScoreRow{}, err
	}
	raw, ok := fields[strconv.FormatInt(targetID, 10)]
	if !ok {
		return domain.ScoreRow{}, db.ErrKeyNotFound
	}
	var d rowDTO
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return domain.ScoreRow{}, fmt.Errorf("unmarshal row %d->%d: %w", sourceID, targetID, err)
	}
	return fromDTO(sourceID, targetID, d), nil
}

// invalidateAsSource drops all rows owned by the source and unwinds the
// global and per-target indexes.
func (r *Repo) invalidateAsSource(ctx context.Context, sourceID int64) error {
	targets, err := r.store.HKeys(ctx, rowsKey(sourceID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("hkeys %s: %w", rowsKey(sourceID), err)
	}
	if len(targets) == 0 {
		return nil
	}

	src := strconv.FormatInt(sourceID, 10)
	globals := make([]string, len(targets))
	for i, tgt := range targets {
		globals[i] = src + ":" + tgt
		targetID, err := strconv.ParseInt(tgt, 10, 64)
		if err != nil {
			return fmt.Errorf("corrupt row field %q: %w", tgt, err)
		}
		if err := r.store.SRem(ctx, byTargetKey(targetID), src); err != nil {
			return fmt.Errorf("srem bytarget %s: %w", tgt, err)
		}
	}
	if err := r.store.ZRem(ctx, globalKey, globals...); err != nil {
		return fmt.Errorf("zrem %s: %w", globalKey, err)
	}
	if err := r.store.Del(ctx, rowsKey(sourceID), rankKey(sourceID)); err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("del source cache %d: %w", sourceID, err)
	}
	return nil
}

// invalidateAsTarget drops the single row (src, contentID) from every source
// found in the reverse index.
func (r *Repo) invalidateAsTarget(ctx context.Context, contentID int64) error {
	sources, err := r.store.SMembers(ctx, byTargetKey(contentID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("smembers %s: %w", byTargetKey(contentID), err)
	}

	tgt := strconv.FormatInt(contentID, 10)
	for _, src := range sources {
		sourceID, err := strconv.ParseInt(src, 10, 64)
		if err != nil {
			return fmt.Errorf("corrupt bytarget member %q: %w", src, err)
		}
		if err := r.store.HDel(ctx, rowsKey(sourceID), tgt); err != nil && !errors.Is(err, db.ErrKeyNotFound) {
			return fmt.Errorf("hdel %s: %w", rowsKey(sourceID), err)
		}
		if err := r.store.ZRem(ctx, rankKey(sourceID), tgt); err != nil {
			return fmt.Errorf("zrem %s: %w", rankKey(sourceID), err)
		}
		if err := r.store.ZRem(ctx, globalKey, src+":"+tgt); err != nil {
			return fmt.Errorf("zrem %s: %w", globalKey, err)
		}
	}

	if err := r.store.Del(ctx, byTargetKey(contentID)); err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("del %s: %w", byTargetKey(contentID), err)
	}
	return nil
}

func rowsKey(id int64) string     { return rowsKeyPrefix + strconv.FormatInt(id, 10) }
func rankKey(id int64) string     { return rankKeyPrefix + strconv.FormatInt(id, 10) }
func byTargetKey(id int64) string { return byTargetKeyPrefix + strconv.FormatInt(id, 10) }

func splitPair(member string) (int64, int64, error) {
	parts := strings.SplitN(member, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("corrupt global member %q", member)
	}
	src, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("corrupt global member %q: %w", member, err)
	}
	tgt, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("corrupt global member %q: %w", member, err)
	}
	return src, tgt, nil
}
