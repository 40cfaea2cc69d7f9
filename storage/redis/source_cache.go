package redisstore

import (
	"context"
	"time"

	"github.com/PaulFidika/paywallkit/entitlements"
	"github.com/redis/go-redis/v9"
)

// SourceCache caches paid-source answers in Redis.
type SourceCache struct {
	rdb   *redis.Client
	keyNS string
}

func NewSourceCache(rdb *redis.Client, keyPrefix string) *SourceCache {
	if keyPrefix == "" {
		keyPrefix = "paywall:paid_source:"
	}
	return &SourceCache{rdb: rdb, keyNS: keyPrefix}
}

func (c *SourceCache) key(userID string) string { return c.keyNS + userID }

func (c *SourceCache) GetSource(ctx context.Context, userID string) (entitlements.Source, bool, error) {
	val, err := c.rdb.Get(ctx, c.key(userID)).Result()
	if err == redis.Nil {
		return entitlements.SourceNone, false, nil
	}
	if err != nil {
		return entitlements.SourceNone, false, err
	}
	src, err := entitlements.ParseSource(val)
	if err != nil {
		// unreadable entry: behave as a miss and let it be overwritten
		return entitlements.SourceNone, false, nil
	}
	return src, true, nil
}

func (c *SourceCache) PutSource(ctx context.Context, userID string, src entitlements.Source, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.key(userID), src.String(), ttl).Err()
}

func (c *SourceCache) DelSource(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, c.key(userID)).Err()
}
