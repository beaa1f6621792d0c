package broadcaster

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	id string

	mu    sync.Mutex
	lines []string
	fail  bool
}

func (o *recordingObserver) ID() string { return o.id }

func (o *recordingObserver) Notify(_ context.Context, msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.fail {
		return errors.New("observer gone")
	}

	o.lines = append(o.lines, msg.Line)

	return nil
}

func (o *recordingObserver) received() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]string(nil), o.lines...)
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()

	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	hub.Start(context.Background())
	t.Cleanup(hub.Stop)

	return hub
}

func TestHub_DeliversInOrder(t *testing.T) {
	hub := newTestHub(t)

	first := &recordingObserver{id: "first"}
	second := &recordingObserver{id: "second"}
	hub.Register(first)
	hub.Register(second)

	require.True(t, hub.Enqueue(Message{ExecutionID: "e1", Line: "a"}))
	require.True(t, hub.Enqueue(Message{ExecutionID: "e1", Line: "b"}))

	require.Eventually(t, func() bool {
		return len(first.received()) == 2 && len(second.received()) == 2
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"a", "b"}, first.received())
	assert.Equal(t, []string{"a", "b"}, second.received())
}

func TestHub_FailedObserverRemoved(t *testing.T) {
	hub := newTestHub(t)

	healthy := &recordingObserver{id: "healthy"}
	broken := &recordingObserver{id: "broken", fail: true}
	hub.Register(healthy)
	hub.Register(broken)

	hub.Enqueue(Message{ExecutionID: "e1", Line: "a"})

	require.Eventually(t, func() bool {
		return hub.Observers() == 1
	}, time.Second, 10*time.Millisecond)

	hub.Enqueue(Message{ExecutionID: "e1", Line: "b"})

	require.Eventually(t, func() bool {
		return len(healthy.received()) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHub_UnregisterIdempotent(t *testing.T) {
	hub := newTestHub(t)

	observer := &recordingObserver{id: "once"}
	hub.Register(observer)

	hub.Unregister("once")
	hub.Unregister("once")
	hub.Unregister("never-registered")

	assert.Equal(t, 0, hub.Observers())
}

func TestHub_EnqueueNeverBlocks(t *testing.T) {
	// Not started: nothing drains the queue, so it fills up.
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))

	delivered := 0

	for i := 0; i < queueCapacity+10; i++ {
		if hub.Enqueue(Message{ExecutionID: "e1", Line: "x"}) {
			delivered++
		}
	}

	assert.Equal(t, queueCapacity, delivered)
	assert.Equal(t, uint64(10), hub.Dropped())
}
