package httpapi

import (
	"testing"
	"time"
)

func TestUserLimiterIsPerUser(t *testing.T) {
	l := newUserLimiter(1, 2)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("burst of 2 should be allowed")
	}
	if l.Allow("a") {
		t.Fatalf("third call within the same instant should be limited")
	}
	if !l.Allow("b") {
		t.Fatalf("another user should have its own bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow("a") {
		t.Fatalf("token should refill after one second")
	}
}

func TestUserLimiterDisabledAndSweep(t *testing.T) {
	disabled := newUserLimiter(0, 5)
	if disabled != nil {
		t.Fatalf("newUserLimiter(0) = %+v, want nil", disabled)
	}
	for i := 0; i < 100; i++ {
		if !disabled.Allow("a") {
			t.Fatalf("nil limiter must allow everything")
		}
	}

	l := newUserLimiter(5, 1)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }
	l.Allow("stale")
	now = now.Add(limiterIdleTTL + time.Second)
	l.Allow("fresh")
	l.sweep()
	if _, ok := l.users["stale"]; ok {
		t.Fatalf("stale entry survived sweep")
	}
	if _, ok := l.users["fresh"]; !ok {
		t.Fatalf("fresh entry was swept")
	}
}
