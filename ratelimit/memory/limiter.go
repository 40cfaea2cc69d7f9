package memorylimiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limit allows Limit events per Window for one bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter is a single-node token-bucket limiter keyed by bucket and caller.
// Idle keys are evicted by StartJanitor.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]Limit
	entries map[string]*entry
	idleTTL time.Duration
	now     func() time.Time
}

func New(limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = map[string]Limit{}
	}
	return &Limiter{
		limits:  limits,
		entries: make(map[string]*entry),
		idleTTL: 15 * time.Minute,
		now:     time.Now,
	}
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

// AllowNamed reports whether key may perform one more action in bucket.
func (l *Limiter) AllowNamed(bucket, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("bucket and key required")
	}
	lim := l.get(bucket)
	if lim.Limit <= 0 || lim.Window <= 0 {
		return false, nil
	}
	k := key + ":" + bucket
	now := l.now()

	l.mu.Lock()
	e, ok := l.entries[k]
	if !ok {
		every := rate.Every(lim.Window / time.Duration(lim.Limit))
		e = &entry{lim: rate.NewLimiter(every, lim.Limit)}
		l.entries[k] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	return e.lim.AllowN(now, 1), nil
}

// Cleanup drops keys that have not been seen within the idle TTL.
func (l *Limiter) Cleanup() {
	cutoff := l.now().Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}

// StartJanitor runs Cleanup every interval until ctx is done.
func (l *Limiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Cleanup()
			}
		}
	}()
}
