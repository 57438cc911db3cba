package fetch

import (
	"testing"
	"time"
)

func TestBreakerAllowsUntilTripped(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreakerWithClock(10*time.Second, func() time.Time { return now })

	if !b.Allow() {
		t.Fatalf("fresh breaker should allow")
	}

	b.Trip()
	if b.Allow() {
		t.Fatalf("breaker allowed immediately after trip")
	}

	now = now.Add(9 * time.Second)
	if b.Allow() {
		t.Fatalf("breaker allowed inside the cool-down window")
	}

	now = now.Add(time.Second)
	if !b.Allow() {
		t.Fatalf("breaker still closed after the window elapsed")
	}
}

func TestBreakerTripExtendsWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreakerWithClock(10*time.Second, func() time.Time { return now })

	b.Trip()
	now = now.Add(5 * time.Second)
	b.Trip()
	now = now.Add(9 * time.Second)
	if b.Allow() {
		t.Fatalf("second trip did not restart the window")
	}
}

func TestBreakerReset(t *testing.T) {
	b := NewBreaker(time.Minute)
	b.Trip()
	b.Reset()
	if !b.Allow() {
		t.Fatalf("reset breaker should allow")
	}
}

func TestBreakerDefaultWindow(t *testing.T) {
	b := NewBreaker(0)
	if b.window != DefaultCoolDown {
		t.Fatalf("zero window should fall back to the default cool-down")
	}
}
