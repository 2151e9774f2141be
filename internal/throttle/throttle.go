// Package throttle suppresses repeated alerts for the same identity within a cooldown.
package throttle

import (
	"time"

	"github.com/kubo-market/airwatch/internal/domain"
)

// DefaultCooldown is the minimum time between two fires of one identity.
const DefaultCooldown = time.Minute

// Throttle tracks the last fire time per alert identity. It is owned by the
// evaluation loop and is not safe for concurrent use.
type Throttle struct {
	cooldown  time.Duration
	lastFired map[domain.AlertIdentity]time.Time
}

// New creates a Throttle with the given cooldown.
func New(cooldown time.Duration) *Throttle {
	return &Throttle{
		cooldown:  cooldown,
		lastFired: make(map[domain.AlertIdentity]time.Time),
	}
}

// ShouldFire reports whether id may fire at now. An allowed fire records now as
// the new reference; a suppressed one leaves the previous fire time untouched.
func (t *Throttle) ShouldFire(id domain.AlertIdentity, now time.Time) bool {
	if last, ok := t.lastFired[id]; ok && now.Sub(last) < t.cooldown {
		return false
	}
	t.lastFired[id] = now
	return true
}

// Remaining returns how long id stays suppressed after now. Zero means it may fire.
func (t *Throttle) Remaining(id domain.AlertIdentity, now time.Time) time.Duration {
	last, ok := t.lastFired[id]
	if !ok {
		return 0
	}
	if left := t.cooldown - now.Sub(last); left > 0 {
		return left
	}
	return 0
}

// LastFired returns the last allowed fire time of id.
func (t *Throttle) LastFired(id domain.AlertIdentity) (time.Time, bool) {
	last, ok := t.lastFired[id]
	return last, ok
}

// Prune drops identities whose cooldown has elapsed at now and returns how many were removed.
// Pruned identities would be allowed to fire anyway, so decisions are unchanged.
func (t *Throttle) Prune(now time.Time) int {
	n := 0
	for id, last := range t.lastFired {
		if now.Sub(last) >= t.cooldown {
			delete(t.lastFired, id)
			n++
		}
	}
	return n
}

// Len returns the number of tracked identities.
func (t *Throttle) Len() int {
	return len(t.lastFired)
}

// Cooldown returns the configured cooldown.
func (t *Throttle) Cooldown() time.Duration {
	return t.cooldown
}
