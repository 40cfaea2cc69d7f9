package billing

import (
	"context"
	"time"

	"github.com/PaulFidika/paywallkit/entitlements"
	"github.com/sirupsen/logrus"
)

// SourceCache stores recent paid-source answers per user.
type SourceCache interface {
	GetSource(ctx context.Context, userID string) (entitlements.Source, bool, error)
	PutSource(ctx context.Context, userID string, src entitlements.Source, ttl time.Duration) error
	DelSource(ctx context.Context, userID string) error
}

// CachedLookup fronts a PaidSourceLookup with a SourceCache. Failed lookups
// are never cached and cache errors only cost a trip to the underlying store.
type CachedLookup struct {
	next  entitlements.PaidSourceLookup
	cache SourceCache
	ttl   time.Duration
	log   logrus.FieldLogger
}

func NewCachedLookup(next entitlements.PaidSourceLookup, cache SourceCache, ttl time.Duration, log logrus.FieldLogger) *CachedLookup {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CachedLookup{next: next, cache: cache, ttl: ttl, log: log}
}

func (c *CachedLookup) PaidSource(ctx context.Context, userID string) (entitlements.Source, error) {
	if c.cache != nil {
		src, ok, err := c.cache.GetSource(ctx, userID)
		if err != nil {
			c.log.WithError(err).WithField("user_id", userID).Debug("paid source cache read failed")
		} else if ok {
			return src, nil
		}
	}
	src, err := c.next.PaidSource(ctx, userID)
	if err != nil {
		return entitlements.SourceNone, err
	}
	if c.cache != nil {
		if err := c.cache.PutSource(ctx, userID, src, c.ttl); err != nil {
			c.log.WithError(err).WithField("user_id", userID).Debug("paid source cache write failed")
		}
	}
	return src, nil
}

// Invalidate drops the cached answer so the next evaluation sees fresh billing state.
func (c *CachedLookup) Invalidate(ctx context.Context, userID string) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.DelSource(ctx, userID)
}
