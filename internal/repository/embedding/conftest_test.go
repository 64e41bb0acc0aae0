package embedding

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/linkmesh/internal/db"
	"github.com/kailas-cloud/linkmesh/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn          func(ctx context.Context, key string, fields map[string]string) error
	hgetAllFn       func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn  func(ctx context.Context, keys []string) ([]map[string]string, error)
	delFn           func(ctx context.Context, keys ...string) error
	existsFn        func(ctx context.Context, key string) (bool, error)
	zaddFn          func(ctx context.Context, key string, members ...db.ZMember) error
	zremFn          func(ctx context.Context, key string, members ...string) error
	zcardFn         func(ctx context.Context, key string) (int64, error)
	zrangeByScoreFn func(ctx context.Context, key string, min, max float64, limit int64) ([]string, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return make([]map[string]string, len(keys)), nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
	}
	return nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) ZAdd(ctx context.Context, key string, members ...db.ZMember) error {
	if m.zaddFn != nil {
		return m.zaddFn(ctx, key, members...)
	}
	return nil
}

func (m *mockStore) ZRem(ctx context.Context, key string, members ...string) error {
	if m.zremFn != nil {
		return m.zremFn(ctx, key, members...)
	}
	return nil
}

func (m *mockStore) ZCard(ctx context.Context, key string) (int64, error) {
	if m.zcardFn != nil {
		return m.zcardFn(ctx, key)
	}
	return 0, nil
}

func (m *mockStore) ZRangeByScore(
	ctx context.Context, key string, min, max float64, limit int64,
) ([]string, error) {
	if m.zrangeByScoreFn != nil {
		return m.zrangeByScoreFn(ctx, key, min, max, limit)
	}
	return nil, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

func testRecord(t *testing.T, contentID int64) domain.EmbeddingRecord {
	t.Helper()
	return domain.EmbeddingRecord{
		ContentID:   contentID,
		Provider:    "voyage",
		Model:       "voyage-4-lite",
		Dimensions:  4,
		Vector:      []float32{0.1, -0.2, 0.3, 1},
		ContentHash: "abc123",
		CreatedAt:   time.Unix(1700000000, 0).UTC(),
		UpdatedAt:   time.Unix(1700000100, 0).UTC(),
	}
}
