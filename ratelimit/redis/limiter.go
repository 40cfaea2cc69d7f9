package redislimiter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limit allows Limit events per Window for one bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

// Limiter is a sliding-window limiter shared across replicas, one ZSET per
// bucket and caller.
type Limiter struct {
	rdb     *redis.Client
	limits  map[string]Limit
	prefix  string
	timeout time.Duration
}

func New(rdb *redis.Client, limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = map[string]Limit{}
	}
	return &Limiter{rdb: rdb, limits: limits, prefix: "paywall:rl:", timeout: 500 * time.Millisecond}
}

func (l *Limiter) get(bucket string) Limit {
	if v, ok := l.limits[bucket]; ok {
		return v
	}
	if v, ok := l.limits["default"]; ok {
		return v
	}
	return Limit{Limit: 100, Window: time.Minute}
}

// AllowNamed uses a bounded background context so it fits the
// context-free limiter interface used by the HTTP layer.
func (l *Limiter) AllowNamed(bucket, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	return l.Allow(ctx, bucket, key)
}

func (l *Limiter) Allow(ctx context.Context, bucket, key string) (bool, error) {
	if l == nil || l.rdb == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("bucket and key required")
	}
	lim := l.get(bucket)
	now := time.Now().UnixNano()
	start := now - lim.Window.Nanoseconds()
	limitKey := l.prefix + bucket + ":" + key
	member := strconv.FormatInt(now, 10)

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, limitKey, "0", strconv.FormatInt(start, 10))
	pipe.ZAdd(ctx, limitKey, redis.Z{Score: float64(now), Member: member})
	countCmd := pipe.ZCard(ctx, limitKey)
	pipe.Expire(ctx, limitKey, lim.Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	count, err := countCmd.Result()
	if err != nil {
		return false, err
	}
	if count > int64(lim.Limit) {
		// denied attempts do not consume the window
		l.rdb.ZRem(ctx, limitKey, member)
		return false, nil
	}
	return true, nil
}
