package memorystore

import (
	"context"
	"time"

	"github.com/PaulFidika/paywallkit/entitlements"
)

// GateStore is the single-node KV gate flag store.
type GateStore struct {
	m   *ttlMap
	ttl time.Duration
}

// NewGateStore creates a gate store whose flags live at most ttl
// (12h when ttl <= 0). Expired flags are swept every minute.
func NewGateStore(ttl time.Duration) *GateStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &GateStore{m: newTTLMap(time.Minute, time.Now), ttl: ttl}
}

func (s *GateStore) Set(_ context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 || ttl > s.ttl {
		ttl = s.ttl
	}
	s.m.put(sessionID, "1", ttl)
	return nil
}

func (s *GateStore) Get(_ context.Context, sessionID string) (bool, error) {
	v, ok := s.m.get(sessionID)
	return ok && v == "1", nil
}

func (s *GateStore) Clear(_ context.Context, sessionID string) error {
	s.m.del(sessionID)
	return nil
}

// Close stops the background sweeper.
func (s *GateStore) Close() error {
	s.m.close()
	return nil
}

// SourceCache is the single-node paid-source cache.
type SourceCache struct {
	m *ttlMap
}

func NewSourceCache() *SourceCache {
	return &SourceCache{m: newTTLMap(time.Minute, time.Now)}
}

func (c *SourceCache) GetSource(_ context.Context, userID string) (entitlements.Source, bool, error) {
	v, ok := c.m.get(userID)
	if !ok {
		return entitlements.SourceNone, false, nil
	}
	src, err := entitlements.ParseSource(v)
	if err != nil {
		return entitlements.SourceNone, false, nil
	}
	return src, true, nil
}

func (c *SourceCache) PutSource(_ context.Context, userID string, src entitlements.Source, ttl time.Duration) error {
	c.m.put(userID, src.String(), ttl)
	return nil
}

func (c *SourceCache) DelSource(_ context.Context, userID string) error {
	c.m.del(userID)
	return nil
}

func (c *SourceCache) Close() error {
	c.m.close()
	return nil
}
