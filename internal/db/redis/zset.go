package redis

import (
	"context"
	"strconv"

	"github.com/kailas-cloud/linkmesh/internal/db"
)

// ZAdd adds members with scores to a sorted set.
func (s *Store) ZAdd(ctx context.Context, key string, members ...db.ZMember) error {
	if len(members) == 0 {
		return nil
	}
	cmd := s.b().Zadd().Key(key).ScoreMember()
	for _, m := range members {
		cmd = cmd.ScoreMember(m.Score, m.Member)
	}
	if err := s.do(ctx, cmd.Build()).Error(); err != nil {
		return &db.Error{Op: db.OpZAdd, Err: err}
	}
	return nil
}

// ZRem removes members from a sorted set.
func (s *Store) ZRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	cmd := s.b().Zrem().Key(key).Member(members...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpZRem, Err: err}
	}
	return nil
}

// ZCard returns the cardinality of a sorted set.
func (s *Store) ZCard(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Zcard().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpZCard, Err: err}
	}
	return n, nil
}

// ZRevRangeWithScores returns members by descending score with their scores.
func (s *Store) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]db.ZMember, error) {
	cmd := s.b().Zrange().Key(key).
		Min(strconv.FormatInt(start, 10)).Max(strconv.FormatInt(stop, 10)).
		Rev().Withscores().Build()
	scores, err := s.do(ctx, cmd).AsZScores()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRange, Err: err}
	}
	out := make([]db.ZMember, len(scores))
	for i, sc := range scores {
		out[i] = db.ZMember{Member: sc.Member, Score: sc.Score}
	}
	return out, nil
}

// ZRangeByScore returns up to limit members with scores in [min, max],
// ascending. limit <= 0 means no cap.
func (s *Store) ZRangeByScore(ctx context.Context, key string, min, max float64, limit int64) ([]string, error) {
	base := s.b().Zrangebyscore().Key(key).
		Min(formatScore(min)).Max(formatScore(max))
	cmd := base.Build()
	if limit > 0 {
		cmd = base.Limit(0, limit).Build()
	}
	members, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRange, Err: err}
	}
	return members, nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
