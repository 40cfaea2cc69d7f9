package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// GateStore keeps the session-scoped KV gate flag in Redis.
// The flag is open only while its value is exactly "1".
type GateStore struct {
	rdb   *redis.Client
	keyNS string
	ttl   time.Duration
}

func NewGateStore(rdb *redis.Client, keyPrefix string, ttl time.Duration) *GateStore {
	if keyPrefix == "" {
		keyPrefix = "paywall:kv_gate:"
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &GateStore{rdb: rdb, keyNS: keyPrefix, ttl: ttl}
}

func (s *GateStore) key(sessionID string) string { return s.keyNS + sessionID }

// Set opens the gate for sessionID. ttl <= 0 uses the store default; longer
// values are capped to it.
func (s *GateStore) Set(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 || ttl > s.ttl {
		ttl = s.ttl
	}
	return s.rdb.Set(ctx, s.key(sessionID), "1", ttl).Err()
}

func (s *GateStore) Get(ctx context.Context, sessionID string) (bool, error) {
	val, err := s.rdb.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == "1", nil
}

func (s *GateStore) Clear(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, s.key(sessionID)).Err()
}
