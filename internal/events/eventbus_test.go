package events

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockConsumer implements EventConsumer for testing
type mockConsumer struct {
	name           string
	processedCount atomic.Int32
	errorOnProcess bool
	panicOnProcess bool
	mu             sync.Mutex
	changes        []Change
}

func (m *mockConsumer) Name() string { return m.name }

func (m *mockConsumer) ProcessEvent(change Change) error {
	if m.panicOnProcess {
		panic("consumer exploded")
	}

	m.mu.Lock()
	m.changes = append(m.changes, change)
	m.mu.Unlock()

	m.processedCount.Add(1)
	if m.errorOnProcess {
		return fmt.Errorf("mock error")
	}
	return nil
}

func (m *mockConsumer) GetChanges() []Change {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Change(nil), m.changes...)
}

func newTestBus(t *testing.T, cfg *Config) *EventBus {
	t.Helper()
	eb := New(cfg, nil)
	t.Cleanup(func() {
		require.NoError(t, eb.Shutdown(time.Second))
	})
	return eb
}

func TestTryPublishWithoutConsumers(t *testing.T) {
	eb := newTestBus(t, nil)
	assert.False(t, eb.TryPublish(Change{Entity: "aves", Action: ActionCreated, ID: 1}))

	var nilBus *EventBus
	assert.False(t, nilBus.TryPublish(Change{Entity: "aves"}))
	assert.Equal(t, EventBusStats{}, nilBus.GetStats())
	assert.NoError(t, nilBus.Shutdown(time.Second))
}

func TestEventsReachEveryConsumer(t *testing.T) {
	eb := newTestBus(t, &Config{BufferSize: 10, Workers: 1})
	first := &mockConsumer{name: "first"}
	second := &mockConsumer{name: "second"}
	require.NoError(t, eb.RegisterConsumer(first))
	require.NoError(t, eb.RegisterConsumer(second))
	require.Error(t, eb.RegisterConsumer(&mockConsumer{name: "first"}), "duplicate names are rejected")

	require.True(t, eb.TryPublish(Change{Entity: "aves", Action: ActionCreated, ID: 1}))
	require.True(t, eb.TryPublish(Change{Entity: "habitats", Action: ActionDeleted, ID: 2}))

	require.Eventually(t, func() bool {
		return first.processedCount.Load() == 2 && second.processedCount.Load() == 2
	}, time.Second, 5*time.Millisecond)

	changes := first.GetChanges()
	assert.Equal(t, "aves", changes[0].Entity)
	assert.False(t, changes[0].At.IsZero(), "timestamp is filled in")
	assert.Equal(t, uint64(4), eb.GetStats().EventsProcessed)
}

func TestConsumerFailuresAreIsolated(t *testing.T) {
	eb := newTestBus(t, &Config{BufferSize: 10, Workers: 1})
	failing := &mockConsumer{name: "failing", errorOnProcess: true}
	panicking := &mockConsumer{name: "panicking", panicOnProcess: true}
	healthy := &mockConsumer{name: "healthy"}
	require.NoError(t, eb.RegisterConsumer(failing))
	require.NoError(t, eb.RegisterConsumer(panicking))
	require.NoError(t, eb.RegisterConsumer(healthy))

	require.True(t, eb.TryPublish(Change{Entity: "familias", Action: ActionUpdated, ID: 3}))

	require.Eventually(t, func() bool { return healthy.processedCount.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return eb.GetStats().ConsumerErrors == 2 }, time.Second, 5*time.Millisecond)
}

func TestDuplicateChangesAreSuppressed(t *testing.T) {
	eb := newTestBus(t, &Config{BufferSize: 10, Workers: 1, DedupWindow: time.Minute})
	consumer := &mockConsumer{name: "c"}
	require.NoError(t, eb.RegisterConsumer(consumer))

	change := Change{Entity: "aves", Action: ActionDeleted, ID: 9}
	assert.True(t, eb.TryPublish(change))
	assert.False(t, eb.TryPublish(change))
	assert.True(t, eb.TryPublish(Change{Entity: "aves", Action: ActionDeleted, ID: 10}))

	assert.Equal(t, uint64(1), eb.GetStats().EventsSuppressed)
}

func TestFullBufferDropsInsteadOfBlocking(t *testing.T) {
	block := make(chan struct{})
	eb := New(&Config{BufferSize: 1, Workers: 1}, nil)
	blocking := &blockingConsumer{release: block}
	require.NoError(t, eb.RegisterConsumer(blocking))

	// The first change occupies the worker, the second fills the buffer
	require.True(t, eb.TryPublish(Change{Entity: "aves", ID: 1}))
	require.Eventually(t, func() bool { return blocking.started.Load() }, time.Second, time.Millisecond)
	require.True(t, eb.TryPublish(Change{Entity: "aves", ID: 2}))

	start := time.Now()
	assert.False(t, eb.TryPublish(Change{Entity: "aves", ID: 3}))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, uint64(1), eb.GetStats().EventsDropped)

	close(block)
	require.NoError(t, eb.Shutdown(time.Second))
	assert.Equal(t, int32(2), blocking.processed.Load(), "buffered change is delivered on shutdown")
}

type blockingConsumer struct {
	release   chan struct{}
	started   atomic.Bool
	processed atomic.Int32
}

func (b *blockingConsumer) Name() string { return "blocking" }

func (b *blockingConsumer) ProcessEvent(Change) error {
	b.started.Store(true)
	<-b.release
	b.processed.Add(1)
	return nil
}
