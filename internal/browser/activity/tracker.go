// File: internal/browser/activity/tracker.go

// Package activity is the bookkeeping for pending async work inside one
// sandboxed execution: outstanding fetches, outstanding script loads, and the
// timestamp of the last observed async event. It performs no I/O itself.
package activity

import (
	"sync/atomic"
	"time"
)

// Tracker counts pending async operations for a single engine invocation.
// Writers are event-loop callbacks and fetch goroutines; the settle poller
// reads from its own goroutine, so all fields are atomics. Counters never go
// below zero. A new Tracker is created per call; there is no reset.
type Tracker struct {
	pendingFetches     atomic.Int64
	pendingScriptLoads atomic.Int64
	lastActivity       atomic.Int64 // unix nanos

	now func() time.Time
}

// Snapshot is a point-in-time view read by the wait-for-settle poller.
type Snapshot struct {
	PendingFetches     int64
	PendingScriptLoads int64
	LastActivity       time.Time
}

// NewTracker builds a tracker using the given clock. A nil clock means
// time.Now. The creation instant seeds last-activity so an immediately idle
// page still waits out one idle window.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	t := &Tracker{now: now}
	t.lastActivity.Store(now().UnixNano())
	return t
}

// FetchStarted records an outbound fetch issued by the sandbox.
func (t *Tracker) FetchStarted() {
	t.pendingFetches.Add(1)
	t.Note()
}

// FetchFinished records a fetch settling, successfully or not. A late
// completion still counts as fresh activity, so the idle window restarts.
func (t *Tracker) FetchFinished() {
	decrementFloorZero(&t.pendingFetches)
	t.Note()
}

// ScriptLoadStarted records an external script or module source being fetched.
func (t *Tracker) ScriptLoadStarted() {
	t.pendingScriptLoads.Add(1)
	t.Note()
}

// ScriptLoadFinished records a script load settling.
func (t *Tracker) ScriptLoadFinished() {
	decrementFloorZero(&t.pendingScriptLoads)
	t.Note()
}

// Note stamps the last-activity clock. Called on every timer fire, fetch
// settle, microtask flush, and observed DOM mutation.
func (t *Tracker) Note() {
	now := t.now().UnixNano()
	for {
		prev := t.lastActivity.Load()
		if now <= prev {
			return
		}
		if t.lastActivity.CompareAndSwap(prev, now) {
			return
		}
	}
}

// Snapshot returns the current counters and last-activity time.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		PendingFetches:     t.pendingFetches.Load(),
		PendingScriptLoads: t.pendingScriptLoads.Load(),
		LastActivity:       time.Unix(0, t.lastActivity.Load()),
	}
}

// Idle reports whether no work is pending and the last activity is at least
// idleFor in the past.
func (s Snapshot) Idle(now time.Time, idleFor time.Duration) bool {
	return s.PendingFetches == 0 &&
		s.PendingScriptLoads == 0 &&
		now.Sub(s.LastActivity) >= idleFor
}

func decrementFloorZero(c *atomic.Int64) {
	for {
		cur := c.Load()
		if cur <= 0 {
			return
		}
		if c.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}
