package queue

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/kailas-cloud/linkmesh/internal/db"
)

// fakeStore is an in-memory store covering the consumer interface. Eval
// mimics the claim script: it pops the lowest-scored pending members into
// processing in one step, which is exactly the atomicity the script buys.
type fakeStore struct {
	hashes map[string]map[string]string
	zsets  map[string]map[string]float64
	sets   map[string]map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hashes: make(map[string]map[string]string),
		zsets:  make(map[string]map[string]float64),
		sets:   make(map[string]map[string]bool),
	}
}

func (f *fakeStore) HSet(_ context.Context, key string, fields map[string]string) error {
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (f *fakeStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	out := make(map[string]string, len(f.hashes[key]))
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	for i, key := range keys {
		m, _ := f.HGetAll(ctx, key)
		out[i] = m
	}
	return out, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.hashes, key)
		delete(f.zsets, key)
		delete(f.sets, key)
	}
	return nil
}

func (f *fakeStore) Scan(_ context.Context, pattern string) ([]string, error) {
	var out []string
	for key := range f.hashes {
		if ok, _ := path.Match(pattern, key); ok {
			out = append(out, key)
		}
	}
	for key := range f.zsets {
		if ok, _ := path.Match(pattern, key); ok {
			out = append(out, key)
		}
	}
	for key := range f.sets {
		if ok, _ := path.Match(pattern, key); ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStore) ZAdd(_ context.Context, key string, members ...db.ZMember) error {
	z, ok := f.zsets[key]
	if !ok {
		z = make(map[string]float64)
		f.zsets[key] = z
	}
	for _, m := range members {
		z[m.Member] = m.Score
	}
	return nil
}

func (f *fakeStore) ZRem(_ context.Context, key string, members ...string) error {
	for _, m := range members {
		delete(f.zsets[key], m)
	}
	return nil
}

func (f *fakeStore) ZCard(_ context.Context, key string) (int64, error) {
	return int64(len(f.zsets[key])), nil
}

func (f *fakeStore) ZRangeByScore(
	_ context.Context, key string, min, max float64, limit int64,
) ([]string, error) {
	members := f.zsetAsc(key)
	var out []string
	for _, m := range members {
		score := f.zsets[key][m]
		if score < min || score > max {
			continue
		}
		out = append(out, m)
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) SAdd(_ context.Context, key string, members ...string) error {
	set, ok := f.sets[key]
	if !ok {
		set = make(map[string]bool)
		f.sets[key] = set
	}
	for _, m := range members {
		set[m] = true
	}
	return nil
}

func (f *fakeStore) SRem(_ context.Context, key string, members ...string) error {
	for _, m := range members {
		delete(f.sets[key], m)
	}
	return nil
}

func (f *fakeStore) SMembers(_ context.Context, key string) ([]string, error) {
	out := make([]string, 0, len(f.sets[key]))
	for m := range f.sets[key] {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStore) SCard(_ context.Context, key string) (int64, error) {
	return int64(len(f.sets[key])), nil
}

func (f *fakeStore) Eval(_ context.Context, script string, keys, args []string) ([]string, error) {
	if script != claimScript {
		return nil, fmt.Errorf("unexpected script: %s", script)
	}
	limit, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, err
	}
	score, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return nil, err
	}

	members := f.zsetAsc(keys[0])
	if len(members) > limit {
		members = members[:limit]
	}
	for _, m := range members {
		delete(f.zsets[keys[0]], m)
		if _, ok := f.zsets[keys[1]]; !ok {
			f.zsets[keys[1]] = make(map[string]float64)
		}
		f.zsets[keys[1]][m] = score
	}
	return members, nil
}

// zsetAsc lists members ordered by score, member string as tie-break,
// matching server ordering.
func (f *fakeStore) zsetAsc(key string) []string {
	out := make([]string, 0, len(f.zsets[key]))
	for m := range f.zsets[key] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := f.zsets[key][out[i]], f.zsets[key][out[j]]
		if si != sj {
			return si < sj
		}
		return out[i] < out[j]
	})
	return out
}

func newTestRepo(t *testing.T) (*Repo, *fakeStore) {
	t.Helper()
	fs := newFakeStore()
	repo := New(fs)
	repo.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return repo, fs
}
