// Package fetch coordinates asynchronous upstream fetches: it prevents
// duplicate concurrent requests for the same resource and keeps a shared
// ready/failed bookkeeping state that canceled requests never touch.
package fetch

import "sync"

// Outcome classifies how a fetch ended.
type Outcome int

const (
	// OutcomeFulfilled means the fetch completed and its data was applied.
	OutcomeFulfilled Outcome = iota
	// OutcomeFailed means the fetch hit a genuine error.
	OutcomeFailed
	// OutcomeCanceled means the fetch was superseded or abandoned. It is a
	// no-op for bookkeeping: the newer in-flight request owns the state.
	OutcomeCanceled
)

// State is the lifecycle of a coordinated resource.
type State int

const (
	// StateIdle means no fetch has been attempted yet.
	StateIdle State = iota
	// StateReady means the last settled fetch succeeded.
	StateReady
	// StateFailed means the last settled fetch failed.
	StateFailed
)

// Coordinator guards one fetched resource. TryStart admits at most one
// in-flight fetch, and at most one fulfilled fetch per key until the key
// changes or Invalidate is called.
type Coordinator struct {
	mu       sync.Mutex
	inflight bool
	state    State
	lastKey  string
}

// NewCoordinator returns an idle coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// TryStart attempts to begin a fetch for key. It returns false when a fetch
// is already in flight, or when the same key already fetched successfully.
// A different key always restarts: a changed user id invalidates the
// previous result.
func (c *Coordinator) TryStart(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight {
		return false
	}
	if c.state == StateReady && key == c.lastKey {
		return false
	}
	c.inflight = true
	return true
}

// Finish records the end of the fetch started with TryStart. It must be
// called on every completion path so a stuck flag cannot block retries.
// A canceled outcome clears the in-flight flag but leaves state untouched.
func (c *Coordinator) Finish(key string, outcome Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight = false
	switch outcome {
	case OutcomeFulfilled:
		c.state = StateReady
		c.lastKey = key
	case OutcomeFailed:
		c.state = StateFailed
		c.lastKey = key
	case OutcomeCanceled:
	}
}

// Loading reports whether a fetch is currently in flight.
func (c *Coordinator) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight
}

// CurrentState returns the settled state of the resource.
func (c *Coordinator) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Settled reports whether the resource reached a terminal state, success
// or failure. While unsettled, callers may serve cached data optimistically.
func (c *Coordinator) Settled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateReady || c.state == StateFailed
}

// Invalidate resets the coordinator so the next TryStart is admitted even
// for the previously fetched key. Used on logout and session resets.
func (c *Coordinator) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.lastKey = ""
}
