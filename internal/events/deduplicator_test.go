package events

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeduplicatorWindow(t *testing.T) {
	d := NewChangeDeduplicator(50 * time.Millisecond)
	change := Change{Entity: "aves", Action: ActionUpdated, ID: 1, At: time.Now()}

	assert.True(t, d.ShouldProcess(change))

	later := change
	later.At = change.At.Add(time.Millisecond)
	assert.False(t, d.ShouldProcess(later), "timestamp does not affect identity")

	assert.True(t, d.ShouldProcess(Change{Entity: "aves", Action: ActionDeleted, ID: 1}))

	time.Sleep(80 * time.Millisecond)
	assert.True(t, d.ShouldProcess(change), "window expired")

	seen, suppressed := d.Stats()
	assert.Equal(t, uint64(4), seen)
	assert.Equal(t, uint64(1), suppressed)
}

func TestDeduplicatorDisabled(t *testing.T) {
	d := NewChangeDeduplicator(0)
	change := Change{Entity: "aves", Action: ActionCreated, ID: 1}
	assert.True(t, d.ShouldProcess(change))
	assert.True(t, d.ShouldProcess(change))

	var nilDedup *ChangeDeduplicator
	assert.True(t, nilDedup.ShouldProcess(change))
}

func TestDeduplicatorConcurrent(t *testing.T) {
	d := NewChangeDeduplicator(time.Minute)
	change := Change{Entity: "habitats", Action: ActionCreated, ID: 5}

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.ShouldProcess(change) {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), accepted.Load())
}
