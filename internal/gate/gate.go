// Package gate implements the auto-trigger cooldown: a minimum spacing
// between successive automatic incident reports, shared by the motion and
// audio loops.
package gate

import (
	"sync"
	"time"
)

// Gate suppresses auto-triggers within the cooldown window following the
// last accepted trigger. Both sensor loops consult it concurrently, so the
// accept path is a single check-and-set under the lock: at most one caller
// wins a given cooldown window even when motion and sound fire in the same
// instant.
type Gate struct {
	mu            sync.Mutex
	cooldown      time.Duration
	lastEventTime time.Time
}

// New creates a Gate with the given cooldown window.
func New(cooldown time.Duration) *Gate {
	return &Gate{cooldown: cooldown}
}

// ShouldTrigger reports whether an auto-trigger at now would be accepted.
// Read-only; a true result is advisory and may be stale by the time the
// caller acts. Use TryAcquire to actually claim the window.
func (g *Gate) ShouldTrigger(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.expired(now)
}

// TryAcquire atomically checks the cooldown and, if expired, records now as
// the last event time. Returns true iff the caller won the window.
func (g *Gate) TryAcquire(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.expired(now) {
		return false
	}
	g.lastEventTime = now
	return true
}

// RecordTrigger unconditionally marks now as the last event time.
func (g *Gate) RecordTrigger(now time.Time) {
	g.mu.Lock()
	g.lastEventTime = now
	g.mu.Unlock()
}

// LastEventTime returns the timestamp of the last accepted trigger.
func (g *Gate) LastEventTime() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastEventTime
}

// expired must be called with the lock held. The comparison is strict: a
// candidate exactly at cooldown expiry is still suppressed.
func (g *Gate) expired(now time.Time) bool {
	return now.Sub(g.lastEventTime) > g.cooldown
}
