package events

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

// ChangeDeduplicator suppresses a change identical to one seen within the
// window. Identity is entity, action and id; the timestamp is ignored.
type ChangeDeduplicator struct {
	window time.Duration
	seen   *cache.Cache

	totalSeen       atomic.Uint64
	totalSuppressed atomic.Uint64
}

// NewChangeDeduplicator creates a deduplicator. A zero window disables it.
// Expired keys are dropped lazily, no cleanup goroutine runs.
func NewChangeDeduplicator(window time.Duration) *ChangeDeduplicator {
	return &ChangeDeduplicator{window: window, seen: cache.New(window, 0)}
}

// ShouldProcess reports whether change is new within the window and
// records it.
func (d *ChangeDeduplicator) ShouldProcess(change Change) bool {
	if d == nil || d.window <= 0 {
		return true
	}
	d.totalSeen.Add(1)

	// Add fails when an unexpired entry exists, which makes check-and-set atomic
	if err := d.seen.Add(changeKey(change), struct{}{}, cache.DefaultExpiration); err != nil {
		d.totalSuppressed.Add(1)
		return false
	}
	return true
}

// Stats returns how many changes were checked and how many suppressed.
func (d *ChangeDeduplicator) Stats() (seen, suppressed uint64) {
	if d == nil {
		return 0, 0
	}
	return d.totalSeen.Load(), d.totalSuppressed.Load()
}

func changeKey(c Change) string {
	return fmt.Sprintf("%s|%s|%d", c.Entity, c.Action, c.ID)
}
