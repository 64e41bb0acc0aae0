package simcache

import (
	"context"
	"path"
	"sort"
	"testing"

	"github.com/kailas-cloud/linkmesh/internal/db"
)

// fakeStore is an in-memory store covering the consumer interface. The cache
// repository fans one write out over several keys, so a behavioral fake is
// the only way to assert the indexes stay consistent.
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

func (f *fakeStore) HDel(_ context.Context, key string, fields ...string) error {
	for _, field := range fields {
		delete(f.hashes[key], field)
	}
	return nil
}

func (f *fakeStore) HKeys(_ context.Context, key string) ([]string, error) {
	out := make([]string, 0, len(f.hashes[key]))
	for k := range f.hashes[key] {
		out = append(out, k)
	}
	sort.Strings(out)
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

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	if h, ok := f.hashes[key]; ok && len(h) > 0 {
		return true, nil
	}
	_, ok := f.zsets[key]
	return ok, nil
}

func (f *fakeStore) Scan(_ context.Context, pattern string) ([]string, error) {
	var out []string
	for _, m := range []map[string]map[string]string{f.hashes} {
		for key := range m {
			if ok, _ := path.Match(pattern, key); ok {
				out = append(out, key)
			}
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

func (f *fakeStore) ZRevRangeWithScores(_ context.Context, key string, start, stop int64) ([]db.ZMember, error) {
	all := make([]db.ZMember, 0, len(f.zsets[key]))
	for m, s := range f.zsets[key] {
		all = append(all, db.ZMember{Member: m, Score: s})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].Member > all[j].Member
	})
	if start >= int64(len(all)) {
		return nil, nil
	}
	end := stop + 1
	if end > int64(len(all)) {
		end = int64(len(all))
	}
	return all[start:end], nil
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

func newTestRepo(t *testing.T) (*Repo, *fakeStore) {
	t.Helper()
	fs := newFakeStore()
	return New(fs), fs
}
