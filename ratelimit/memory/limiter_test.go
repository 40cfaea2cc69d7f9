package memorylimiter

import (
	"testing"
	"time"
)

func TestAllowNamed_BurstThenDeny(t *testing.T) {
	l := New(map[string]Limit{"kv_redeem": {Limit: 3, Window: time.Minute}})
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, err := l.AllowNamed("kv_redeem", "u1")
		if err != nil || !ok {
			t.Fatalf("attempt %d: ok=%v err=%v", i, ok, err)
		}
	}
	if ok, _ := l.AllowNamed("kv_redeem", "u1"); ok {
		t.Fatalf("fourth attempt in the window should be denied")
	}
	if ok, _ := l.AllowNamed("kv_redeem", "u2"); !ok {
		t.Fatalf("other keys have their own bucket")
	}

	now = now.Add(time.Minute)
	if ok, _ := l.AllowNamed("kv_redeem", "u1"); !ok {
		t.Fatalf("tokens should refill after the window")
	}
}

func TestAllowNamed_RequiresBucketAndKey(t *testing.T) {
	l := New(nil)
	if _, err := l.AllowNamed("", "u"); err == nil {
		t.Fatalf("expected error for empty bucket")
	}
	var nilLimiter *Limiter
	if ok, _ := nilLimiter.AllowNamed("b", "k"); !ok {
		t.Fatalf("nil limiter allows everything")
	}
}

func TestCleanup_EvictsIdle(t *testing.T) {
	l := New(nil)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }
	_, _ = l.AllowNamed("default", "u1")

	now = now.Add(16 * time.Minute)
	l.Cleanup()
	if len(l.entries) != 0 {
		t.Fatalf("expected idle entry to be evicted, have %d", len(l.entries))
	}
}
