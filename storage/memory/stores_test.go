package memorystore

import (
	"context"
	"testing"
	"time"

	"github.com/PaulFidika/paywallkit/entitlements"
)

func TestGateStore(t *testing.T) {
	ctx := context.Background()
	s := NewGateStore(time.Hour)
	defer s.Close()

	if open, _ := s.Get(ctx, "sess"); open {
		t.Fatalf("gate should start closed")
	}
	_ = s.Set(ctx, "sess", time.Minute)
	if open, _ := s.Get(ctx, "sess"); !open {
		t.Fatalf("gate should be open after Set")
	}
	if open, _ := s.Get(ctx, "other"); open {
		t.Fatalf("gate is scoped to one session")
	}
	_ = s.Clear(ctx, "sess")
	if open, _ := s.Get(ctx, "sess"); open {
		t.Fatalf("gate should be closed after Clear")
	}
}

func TestGateStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := &GateStore{m: newTTLMap(0, func() time.Time { return now }), ttl: time.Hour}
	_ = s.Set(ctx, "sess", 10*time.Minute)

	now = now.Add(11 * time.Minute)
	if open, _ := s.Get(ctx, "sess"); open {
		t.Fatalf("gate should expire with its ttl")
	}
}

func TestGateStore_TTLCapped(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := &GateStore{m: newTTLMap(0, func() time.Time { return now }), ttl: time.Hour}
	_ = s.Set(ctx, "sess", 30*24*time.Hour)

	now = now.Add(61 * time.Minute)
	s.m.cleanup()
	if open, _ := s.Get(ctx, "sess"); open {
		t.Fatalf("ttl above the store limit should be capped")
	}
}

func TestSourceCache(t *testing.T) {
	ctx := context.Background()
	c := NewSourceCache()
	defer c.Close()

	if _, ok, _ := c.GetSource(ctx, "u"); ok {
		t.Fatalf("expected miss")
	}
	_ = c.PutSource(ctx, "u", entitlements.SourceEnterprise, time.Minute)
	src, ok, err := c.GetSource(ctx, "u")
	if err != nil || !ok || src != entitlements.SourceEnterprise {
		t.Fatalf("got %v %v %v", src, ok, err)
	}
	_ = c.DelSource(ctx, "u")
	if _, ok, _ := c.GetSource(ctx, "u"); ok {
		t.Fatalf("expected miss after delete")
	}
}
