package fetch

import (
	"sync"
	"time"
)

// DefaultCoolDown is how long preference fetches stay suppressed after a
// network-class failure.
const DefaultCoolDown = 10 * time.Second

// Breaker is a coarse cool-down circuit breaker: after Trip, Allow returns
// false until the window elapses. It is shared across all identities in a
// running gateway, matching the intentionally simple process-wide policy.
type Breaker struct {
	mu     sync.Mutex
	window time.Duration
	until  time.Time
	now    func() time.Time
}

// NewBreaker constructs a breaker with the given cool-down window.
func NewBreaker(window time.Duration) *Breaker {
	if window <= 0 {
		window = DefaultCoolDown
	}
	return &Breaker{window: window, now: time.Now}
}

// NewBreakerWithClock constructs a breaker with an injected clock for tests.
func NewBreakerWithClock(window time.Duration, now func() time.Time) *Breaker {
	b := NewBreaker(window)
	b.now = now
	return b
}

// Allow reports whether a new attempt is permitted.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.now().Before(b.until)
}

// Trip suppresses attempts for one cool-down window from now.
func (b *Breaker) Trip() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.until = b.now().Add(b.window)
}

// Reset clears the cool-down immediately.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.until = time.Time{}
}
