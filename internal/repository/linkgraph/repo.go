// Package linkgraph persists the internal link graph. Outbound edges live
// as a JSON blob per source; inbound sources and existing (source, target)
// pairs are kept in sets so orphan checks and link_exists lookups are O(1)
// instead of a graph walk.
package linkgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/linkmesh/internal/db"
	"github.com/kailas-cloud/linkmesh/internal/domain"
)

var (
	outKeyPrefix = domain.KeyPrefix + "link:out:"
	inKeyPrefix  = domain.KeyPrefix + "link:in:"
	pairsKey     = domain.KeyPrefix + "link:pairs"
)

// store is the consumer interface for the link graph (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, keys ...string) error
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
}

// Repo implements link graph persistence.
type Repo struct {
	store store
}

// New creates a link graph repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// ReplaceForSource swaps the full outbound edge set of one source. Inbound
// sets and the pair set are reconciled against the previous edges so a
// removed link disappears everywhere.
func (r *Repo) ReplaceForSource(ctx context.Context, sourceID int64, edges []domain.LinkEdge) error {
	old, err := r.Outbound(ctx, sourceID)
	if err != nil {
		return err
	}

	// The detector emits every occurrence; edges are unique per
	// (target, anchor), so collapse repeats here. First occurrence wins.
	edges = dedupeEdges(edges)

	oldTargets := targetSet(old)
	newTargets := targetSet(edges)
	src := strconv.FormatInt(sourceID, 10)

	for tgt := range oldTargets {
		if newTargets[tgt] {
			continue
		}
		tgtStr := strconv.FormatInt(tgt, 10)
		if err := r.store.SRem(ctx, inKeyPrefix+tgtStr, src); err != nil {
			return fmt.Errorf("srem inbound %d: %w", tgt, err)
		}
		if err := r.store.SRem(ctx, pairsKey, src+":"+tgtStr); err != nil {
			return fmt.Errorf("srem pair %s:%s: %w", src, tgtStr, err)
		}
	}

	if len(edges) == 0 {
		if err := r.store.Del(ctx, outKey(sourceID)); err != nil && !errors.Is(err, db.ErrKeyNotFound) {
			return fmt.Errorf("del %s: %w", outKey(sourceID), err)
		}
		return nil
	}

	dtos := make([]edgeDTO, len(edges))
	for i, e := range edges {
		dtos[i] = toDTO(e)
	}
	data, err := json.Marshal(dtos)
	if err != nil {
		return fmt.Errorf("marshal edges for %d: %w", sourceID, err)
	}
	if err := r.store.Set(ctx, outKey(sourceID), data); err != nil {
		return fmt.Errorf("set %s: %w", outKey(sourceID), err)
	}

	for tgt := range newTargets {
		tgtStr := strconv.FormatInt(tgt, 10)
		if err := r.store.SAdd(ctx, inKeyPrefix+tgtStr, src); err != nil {
			return fmt.Errorf("sadd inbound %d: %w", tgt, err)
		}
		if err := r.store.SAdd(ctx, pairsKey, src+":"+tgtStr); err != nil {
			return fmt.Errorf("sadd pair %s:%s: %w", src, tgtStr, err)
		}
	}
	return nil
}

// Outbound returns the outbound edges of a source, empty when none recorded.
func (r *Repo) Outbound(ctx context.Context, sourceID int64) ([]domain.LinkEdge, error) {
	data, err := r.store.Get(ctx, outKey(sourceID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", outKey(sourceID), err)
	}

	var dtos []edgeDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return nil, fmt.Errorf("unmarshal edges for %d: %w", sourceID, err)
	}
	edges := make([]domain.LinkEdge, len(dtos))
	for i, d := range dtos {
		edges[i] = fromDTO(sourceID, d)
	}
	return edges, nil
}

// InboundCount returns how many distinct sources link to the target.
func (r *Repo) InboundCount(ctx context.Context, targetID int64) (int64, error) {
	n, err := r.store.SCard(ctx, inKey(targetID))
	if err != nil {
		return 0, fmt.Errorf("scard %s: %w", inKey(targetID), err)
	}
	return n, nil
}

// InboundSources returns the distinct source ids linking to the target.
func (r *Repo) InboundSources(ctx context.Context, targetID int64) ([]int64, error) {
	members, err := r.store.SMembers(ctx, inKey(targetID))
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", inKey(targetID), err)
	}
	return parseIDs(members)
}

// LinkExists reports whether source already links to target.
func (r *Repo) LinkExists(ctx context.Context, sourceID, targetID int64) (bool, error) {
	member := strconv.FormatInt(sourceID, 10) + ":" + strconv.FormatInt(targetID, 10)
	ok, err := r.store.SIsMember(ctx, pairsKey, member)
	if err != nil {
		return false, fmt.Errorf("sismember %s: %w", pairsKey, err)
	}
	return ok, nil
}

// IsOrphan reports whether no other content links to the target.
func (r *Repo) IsOrphan(ctx context.Context, targetID int64) (bool, error) {
	n, err := r.InboundCount(ctx, targetID)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// PairCount returns the number of distinct (source, target) pairs site-wide.
func (r *Repo) PairCount(ctx context.Context) (int64, error) {
	n, err := r.store.SCard(ctx, pairsKey)
	if err != nil {
		return 0, fmt.Errorf("scard %s: %w", pairsKey, err)
	}
	return n, nil
}

// DeleteForContent removes every trace of a content id from the graph, both
// as source and as target.
func (r *Repo) DeleteForContent(ctx context.Context, contentID int64) error {
	if err := r.ReplaceForSource(ctx, contentID, nil); err != nil {
		return err
	}

	// As target: rewrite each inbound source's edge list without this id.
	sources, err := r.InboundSources(ctx, contentID)
	if err != nil {
		return err
	}
	idStr := strconv.FormatInt(contentID, 10)
	for _, src := range sources {
		edges, err := r.Outbound(ctx, src)
		if err != nil {
			return err
		}
		kept := edges[:0]
		for _, e := range edges {
			if e.TargetID != contentID {
				kept = append(kept, e)
			}
		}
		if err := r.ReplaceForSource(ctx, src, kept); err != nil {
			return err
		}
		if err := r.store.SRem(ctx, pairsKey, strconv.FormatInt(src, 10)+":"+idStr); err != nil {
			return fmt.Errorf("srem pair %d:%s: %w", src, idStr, err)
		}
	}

	if err := r.store.Del(ctx, inKey(contentID)); err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("del %s: %w", inKey(contentID), err)
	}
	return nil
}

func outKey(id int64) string { return outKeyPrefix + strconv.FormatInt(id, 10) }
func inKey(id int64) string  { return inKeyPrefix + strconv.FormatInt(id, 10) }

func dedupeEdges(edges []domain.LinkEdge) []domain.LinkEdge {
	seen := make(map[string]bool, len(edges))
	out := make([]domain.LinkEdge, 0, len(edges))
	for _, e := range edges {
		key := strconv.FormatInt(e.TargetID, 10) + ":" + e.AnchorText
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

func targetSet(edges []domain.LinkEdge) map[int64]bool {
	m := make(map[int64]bool, len(edges))
	for _, e := range edges {
		m[e.TargetID] = true
	}
	return m
}

func parseIDs(members []string) ([]int64, error) {
	ids := make([]int64, 0, len(members))
	for _, s := range members {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt set member %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
