package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	HashStore
	KVStore
	ZSetStore
	SetStore
	Scripter
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	HKeys(ctx context.Context, key string) ([]string, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// ZMember is a sorted-set member with its score.
type ZMember struct {
	Member string
	Score  float64
}

// ZSetStore provides sorted-set operations. Rankings (similarity scores,
// queue ordering, corpus iteration order) live in sorted sets.
type ZSetStore interface {
	ZAdd(ctx context.Context, key string, members ...ZMember) error
	ZRem(ctx context.Context, key string, members ...string) error
	ZCard(ctx context.Context, key string) (int64, error)
	// ZRevRangeWithScores returns members by descending score.
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ZMember, error)
	// ZRangeByScore returns up to limit members with scores in [min, max],
	// ascending. limit <= 0 means no cap.
	ZRangeByScore(ctx context.Context, key string, min, max float64, limit int64) ([]string, error)
}

// SetStore provides plain set operations.
type SetStore interface {
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
}

// Scripter runs a server-side Lua script. The queue's claim step uses it so
// concurrent dequeues never double-claim an item.
type Scripter interface {
	Eval(ctx context.Context, script string, keys []string, args []string) ([]string, error)
}
