package linkgraph

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/kailas-cloud/linkmesh/internal/db"
)

// fakeStore is an in-memory store covering the consumer interface. The graph
// repository reconciles several keys per write, so behavioral fakes beat
// per-call function mocks here.
type fakeStore struct {
	mu   sync.Mutex
	kv   map[string][]byte
	sets map[string]map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		kv:   make(map[string][]byte),
		sets: make(map[string]map[string]bool),
	}
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kv[key] = value
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.kv, key)
		delete(f.sets, key)
	}
	return nil
}

func (f *fakeStore) SAdd(_ context.Context, key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
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
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range members {
		delete(f.sets[key], m)
	}
	return nil
}

func (f *fakeStore) SMembers(_ context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sets[key]))
	for m := range f.sets[key] {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeStore) SCard(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.sets[key])), nil
}

func (f *fakeStore) SIsMember(_ context.Context, key, member string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets[key][member], nil
}

// pairMembers lists the stored pair set for assertions.
func (f *fakeStore) pairMembers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0)
	for m := range f.sets[pairsKey] {
		out = append(out, m)
	}
	return out
}

func newTestRepo(t *testing.T) (*Repo, *fakeStore) {
	t.Helper()
	fs := newFakeStore()
	return New(fs), fs
}

func hasPair(fs *fakeStore, pair string) bool {
	for _, m := range fs.pairMembers() {
		if strings.EqualFold(m, pair) {
			return true
		}
	}
	return false
}
