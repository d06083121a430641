package authapi

import (
	"testing"
	"time"
)

func TestWindowLimiter_AllowsUpToMax(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := NewWindowLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("203.0.113.9", now)
		if !ok {
			t.Fatalf("hit %d should be allowed", i+1)
		}
	}

	ok, retryAfter := l.Allow("203.0.113.9", now.Add(10*time.Second))
	if ok {
		t.Fatalf("fourth hit in-window should be rejected")
	}
	if retryAfter != 50*time.Second {
		t.Fatalf("expected retry after 50s, got %v", retryAfter)
	}
}

func TestWindowLimiter_KeysAreIndependent(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := NewWindowLimiter(1, time.Minute)

	if ok, _ := l.Allow("a", now); !ok {
		t.Fatalf("first key should pass")
	}
	if ok, _ := l.Allow("a", now); ok {
		t.Fatalf("first key should now be limited")
	}
	if ok, _ := l.Allow("b", now); !ok {
		t.Fatalf("second key must not share the first key's budget")
	}
}

func TestWindowLimiter_ResetsAfterWindow(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := NewWindowLimiter(1, time.Minute)

	l.Allow("a", now)
	if ok, _ := l.Allow("a", now); ok {
		t.Fatalf("expected limit inside window")
	}
	if ok, _ := l.Allow("a", now.Add(time.Minute)); !ok {
		t.Fatalf("expected fresh budget after window rollover")
	}
}

func TestWindowLimiter_WindowBoundariesArePerKey(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := NewWindowLimiter(1, time.Minute)

	l.Allow("a", now)
	l.Allow("b", now.Add(50*time.Second))

	// a's window elapses at +60s; b's, opened at +50s, is still running.
	if ok, _ := l.Allow("a", now.Add(70*time.Second)); !ok {
		t.Fatalf("first key should have a fresh window")
	}
	ok, retryAfter := l.Allow("b", now.Add(70*time.Second))
	if ok {
		t.Fatalf("late-arriving key must keep its own full window")
	}
	if retryAfter != 40*time.Second {
		t.Fatalf("expected retry after 40s, got %v", retryAfter)
	}
}

func TestWindowLimiter_DisabledAndEmptyKey(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	disabled := NewWindowLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		if ok, _ := disabled.Allow("a", now); !ok {
			t.Fatalf("disabled limiter must always allow")
		}
	}

	l := NewWindowLimiter(1, time.Minute)
	for i := 0; i < 10; i++ {
		if ok, _ := l.Allow("", now); !ok {
			t.Fatalf("unresolvable client address must not be limited")
		}
	}
}
