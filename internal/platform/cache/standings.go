// Package cache keeps computed standings in Redis for a short time.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tohomc/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

const standingsKeyPrefix = "standings:"

type RedisStandingsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStandingsCache(rdb *redis.Client, ttl time.Duration) *RedisStandingsCache {
	return &RedisStandingsCache{rdb: rdb, ttl: ttl}
}

func StandingsKey(contestID string) string {
	return standingsKeyPrefix + contestID
}

// Get reports a miss with (nil, false, nil).
func (c *RedisStandingsCache) Get(ctx context.Context, contestID string) (*model.Standings, bool, error) {
	val, err := c.rdb.Get(ctx, StandingsKey(contestID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("standings cache get: %w", err)
	}
	var s model.Standings
	if err := json.Unmarshal(val, &s); err != nil {
		// Treat an unreadable entry as a miss; the next Set overwrites it.
		return nil, false, nil
	}
	return &s, true, nil
}

func (c *RedisStandingsCache) Set(ctx context.Context, contestID string, s *model.Standings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("standings cache marshal: %w", err)
	}
	if err := c.rdb.Set(ctx, StandingsKey(contestID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("standings cache set: %w", err)
	}
	return nil
}

func (c *RedisStandingsCache) Invalidate(ctx context.Context, contestID string) error {
	if err := c.rdb.Del(ctx, StandingsKey(contestID)).Err(); err != nil {
		return fmt.Errorf("standings cache invalidate: %w", err)
	}
	return nil
}
