// Package queue persists the embedding work queue. Items are hashes keyed
// by content id; pending and processing memberships live in sorted sets so
// claiming a batch is one server-side script, with no window where two
// workers can take the same item.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/linkmesh/internal/db"
	"github.com/kailas-cloud/linkmesh/internal/domain"
)

var (
	itemKeyPrefix = domain.KeyPrefix + "queue:item:"
	pendingKey    = domain.KeyPrefix + "queue:pending"
	processingKey = domain.KeyPrefix + "queue:processing"
	completedKey  = domain.KeyPrefix + "queue:completed"
	failedKey     = domain.KeyPrefix + "queue:failed"
	scanPattern   = domain.KeyPrefix + "queue:*"
)

// claimScript atomically moves up to ARGV[1] members from the pending set
// (KEYS[1]) into the processing set (KEYS[2]) scored with ARGV[2], returning
// the moved members. Running inside the server rules out double claims.
const claimScript = `
local ids = redis.call('ZRANGE', KEYS[1], 0, tonumber(ARGV[1]) - 1)
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZADD', KEYS[2], ARGV[2], id)
end
return ids
`

// store is the consumer interface for the queue (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	ZAdd(ctx context.Context, key string, members ...db.ZMember) error
	ZRem(ctx context.Context, key string, members ...string) error
	ZCard(ctx context.Context, key string) (int64, error)
	ZRangeByScore(ctx context.Context, key string, min, max float64, limit int64) ([]string, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
	Eval(ctx context.Context, script string, keys []string, args []string) ([]string, error)
}

// Repo implements queue persistence.
type Repo struct {
	store store
	now   func() time.Time
}

// New creates a queue repository.
func New(s store) *Repo {
	return &Repo{store: s, now: time.Now}
}

// pendingScore orders the pending set by priority first, enqueue time second.
// Priorities are single digits and unix seconds stay far below 1e10, so the
// two never interleave.
func pendingScore(priority int, at time.Time) float64 {
	return float64(priority)*1e10 + float64(at.Unix())
}

// Enqueue inserts or replaces the work item for a content id. A re-enqueued
// item restarts its lifecycle: attempts reset, status back to pending.
func (r *Repo) Enqueue(ctx context.Context, contentID int64, priority int) error {
	if priority < domain.PriorityHigh {
		priority = domain.PriorityHigh
	}
	if priority > domain.PriorityLowest {
		priority = domain.PriorityLowest
	}

	id := strconv.FormatInt(contentID, 10)
	if err := r.removeMemberships(ctx, id); err != nil {
		return err
	}
	// HSET merges fields, so drop any previous item to reset attempts and
	// error message.
	if err := r.store.Del(ctx, itemKey(contentID)); err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("del %s: %w", itemKey(contentID), err)
	}

	now := r.now().UTC()
	item := domain.QueueItem{
		ContentID: contentID,
		Priority:  priority,
		Status:    domain.QueuePending,
		CreatedAt: now,
	}
	if err := r.store.HSet(ctx, itemKey(contentID), buildHashFields(&item)); err != nil {
		return fmt.Errorf("hset %s: %w", itemKey(contentID), err)
	}
	if err := r.store.ZAdd(ctx, pendingKey, db.ZMember{Member: id, Score: pendingScore(priority, now)}); err != nil {
		return fmt.Errorf("zadd %s: %w", pendingKey, err)
	}
	return nil
}

// ClaimBatch atomically moves up to limit pending items into processing and
// returns them, best priority first. An empty result means the queue is
// drained.
func (r *Repo) ClaimBatch(ctx context.Context, limit int) ([]domain.QueueItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	now := r.now().UTC()
	ids, err := r.store.Eval(ctx, claimScript,
		[]string{pendingKey, processingKey},
		[]string{strconv.Itoa(limit), strconv.FormatInt(now.Unix(), 10)},
	)
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	contentIDs := make([]int64, len(ids))
	for i, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt queue member %q: %w", raw, err)
		}
		contentIDs[i] = id
		keys[i] = itemKey(id)
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load claimed items: %w", err)
	}

	items := make([]domain.QueueItem, 0, len(ids))
	for i, m := range hashes {
		item := parseHashFields(contentIDs[i], m)
		item.Status = domain.QueueProcessing
		// Status update after the move is idempotent; a crash between the
		// two leaves the item reclaimable by the stale sweep.
		if err := r.store.HSet(ctx, keys[i], map[string]string{fieldStatus: string(domain.QueueProcessing)}); err != nil {
			return nil, fmt.Errorf("hset %s: %w", keys[i], err)
		}
		items = append(items, item)
	}
	return items, nil
}

// MarkCompleted finishes a claimed item.
func (r *Repo) MarkCompleted(ctx context.Context, contentID int64) error {
	id := strconv.FormatInt(contentID, 10)
	if err := r.store.ZRem(ctx, processingKey, id); err != nil {
		return fmt.Errorf("zrem %s: %w", processingKey, err)
	}
	if err := r.store.SAdd(ctx, completedKey, id); err != nil {
		return fmt.Errorf("sadd %s: %w", completedKey, err)
	}
	fields := map[string]string{
		fieldStatus:      string(domain.QueueCompleted),
		fieldProcessedAt: strconv.FormatInt(r.now().UTC().Unix(), 10),
		fieldError:       "",
	}
	if err := r.store.HSet(ctx, itemKey(contentID), fields); err != nil {
		return fmt.Errorf("hset %s: %w", itemKey(contentID), err)
	}
	return nil
}

// MarkFailed records a failure on a claimed item. While attempts stay under
// retryCap the item returns to pending at its priority; at the cap it parks
// as failed.
func (r *Repo) MarkFailed(ctx context.Context, contentID int64, message string, retryCap int) error {
	if retryCap <= 0 {
		retryCap = domain.DefaultRetryCap
	}

	item, err := r.Get(ctx, contentID)
	if err != nil {
		return err
	}

	id := strconv.FormatInt(contentID, 10)
	if err := r.store.ZRem(ctx, processingKey, id); err != nil {
		return fmt.Errorf("zrem %s: %w", processingKey, err)
	}

	now := r.now().UTC()
	item.Attempts++
	item.ErrorMessage = message
	item.ProcessedAt = now

	if item.Attempts < retryCap {
		item.Status = domain.QueuePending
		if err := r.store.ZAdd(ctx, pendingKey, db.ZMember{Member: id, Score: pendingScore(item.Priority, now)}); err != nil {
			return fmt.Errorf("zadd %s: %w", pendingKey, err)
		}
	} else {
		item.Status = domain.QueueFailed
		if err := r.store.SAdd(ctx, failedKey, id); err != nil {
			return fmt.Errorf("sadd %s: %w", failedKey, err)
		}
	}

	if err := r.store.HSet(ctx, itemKey(contentID), buildHashFields(&item)); err != nil {
		return fmt.Errorf("hset %s: %w", itemKey(contentID), err)
	}
	return nil
}

// ReclaimStale returns items stuck in processing longer than maxAge to the
// pending set. Covers workers that died between claim and outcome.
func (r *Repo) ReclaimStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := float64(r.now().UTC().Add(-maxAge).Unix())
	ids, err := r.store.ZRangeByScore(ctx, processingKey, 0, cutoff, 0)
	if err != nil {
		return 0, fmt.Errorf("zrangebyscore %s: %w", processingKey, err)
	}

	now := r.now().UTC()
	for _, id := range ids {
		contentID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt processing member %q: %w", id, err)
		}
		item, err := r.Get(ctx, contentID)
		if err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				// Dangling membership; drop it.
				_ = r.store.ZRem(ctx, processingKey, id)
				continue
			}
			return 0, err
		}
		if err := r.store.ZRem(ctx, processingKey, id); err != nil {
			return 0, fmt.Errorf("zrem %s: %w", processingKey, err)
		}
		if err := r.store.ZAdd(ctx, pendingKey, db.ZMember{Member: id, Score: pendingScore(item.Priority, now)}); err != nil {
			return 0, fmt.Errorf("zadd %s: %w", pendingKey, err)
		}
		if err := r.store.HSet(ctx, itemKey(contentID), map[string]string{fieldStatus: string(domain.QueuePending)}); err != nil {
			return 0, fmt.Errorf("hset %s: %w", itemKey(contentID), err)
		}
	}
	return len(ids), nil
}

// Get returns the stored item for a content id.
func (r *Repo) Get(ctx context.Context, contentID int64) (domain.QueueItem, error) {
	m, err := r.store.HGetAll(ctx, itemKey(contentID))
	if err != nil {
		return domain.QueueItem{}, fmt.Errorf("hgetall %s: %w", itemKey(contentID), err)
	}
	if len(m) == 0 {
		return domain.QueueItem{}, db.ErrKeyNotFound
	}
	return parseHashFields(contentID, m), nil
}

// Counts returns the per-status queue snapshot.
func (r *Repo) Counts(ctx context.Context) (domain.QueueCounts, error) {
	pending, err := r.store.ZCard(ctx, pendingKey)
	if err != nil {
		return domain.QueueCounts{}, fmt.Errorf("zcard %s: %w", pendingKey, err)
	}
	processing, err := r.store.ZCard(ctx, processingKey)
	if err != nil {
		return domain.QueueCounts{}, fmt.Errorf("zcard %s: %w", processingKey, err)
	}
	completed, err := r.store.SCard(ctx, completedKey)
	if err != nil {
		return domain.QueueCounts{}, fmt.Errorf("scard %s: %w", completedKey, err)
	}
	failed, err := r.store.SCard(ctx, failedKey)
	if err != nil {
		return domain.QueueCounts{}, fmt.Errorf("scard %s: %w", failedKey, err)
	}

	c := domain.QueueCounts{
		Pending:    int(pending),
		Processing: int(processing),
		Completed:  int(completed),
		Failed:     int(failed),
	}
	c.Total = c.Pending + c.Processing + c.Completed + c.Failed
	return c, nil
}

// FailedItems returns up to limit permanently failed items for inspection.
func (r *Repo) FailedItems(ctx context.Context, limit int) ([]domain.QueueItem, error) {
	ids, err := r.store.SMembers(ctx, failedKey)
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", failedKey, err)
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	items := make([]domain.QueueItem, 0, len(ids))
	for _, id := range ids {
		contentID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt failed member %q: %w", id, err)
		}
		item, err := r.Get(ctx, contentID)
		if err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				continue
			}
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Remove drops an item entirely, whatever its status.
func (r *Repo) Remove(ctx context.Context, contentID int64) error {
	id := strconv.FormatInt(contentID, 10)
	if err := r.removeMemberships(ctx, id); err != nil {
		return err
	}
	if err := r.store.Del(ctx, itemKey(contentID)); err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("del %s: %w", itemKey(contentID), err)
	}
	return nil
}

// Clear drops the whole queue, including completed and failed history.
func (r *Repo) Clear(ctx context.Context) error {
	keys, err := r.store.Scan(ctx, scanPattern)
	if err != nil {
		return fmt.Errorf("scan %s: %w", scanPattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("del queue keys: %w", err)
	}
	return nil
}

func (r *Repo) removeMemberships(ctx context.Context, id string) error {
	if err := r.store.ZRem(ctx, pendingKey, id); err != nil {
		return fmt.Errorf("zrem %s: %w", pendingKey, err)
	}
	if err := r.store.ZRem(ctx, processingKey, id); err != nil {
		return fmt.Errorf("zrem %s: %w", processingKey, err)
	}
	if err := r.store.SRem(ctx, completedKey, id); err != nil {
		return fmt.Errorf("srem %s: %w", completedKey, err)
	}
	if err := r.store.SRem(ctx, failedKey, id); err != nil {
		return fmt.Errorf("srem %s: %w", failedKey, err)
	}
	return nil
}

func itemKey(contentID int64) string {
	return itemKeyPrefix + strconv.FormatInt(contentID, 10)
}
