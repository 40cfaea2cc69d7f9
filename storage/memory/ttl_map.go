package memorystore

import (
	"sync"
	"time"
)

type item struct {
	v   string
	exp time.Time
}

// ttlMap is a mutex-guarded string map with per-entry expiry and an optional
// background sweeper. Close stops the sweeper.
type ttlMap struct {
	mu     sync.Mutex
	data   map[string]item
	closed chan struct{}
	once   sync.Once
	now    func() time.Time
}

func newTTLMap(sweepEvery time.Duration, now func() time.Time) *ttlMap {
	if now == nil {
		now = time.Now
	}
	m := &ttlMap{data: make(map[string]item), closed: make(chan struct{}), now: now}
	if sweepEvery > 0 {
		go m.cleanupLoop(sweepEvery)
	}
	return m
}

func (m *ttlMap) put(k, v string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[k] = item{v: v, exp: m.now().Add(ttl)}
}

func (m *ttlMap) get(k string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.data[k]
	if !ok {
		return "", false
	}
	if m.now().After(it.exp) {
		delete(m.data, k)
		return "", false
	}
	return it.v, true
}

func (m *ttlMap) del(k string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, k)
}

func (m *ttlMap) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.closed:
			return
		}
	}
}

func (m *ttlMap) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, v := range m.data {
		if now.After(v.exp) {
			delete(m.data, k)
		}
	}
}

func (m *ttlMap) close() {
	m.once.Do(func() { close(m.closed) })
}
