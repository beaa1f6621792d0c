// Package broadcaster fans execution log lines out to registered observers.
// The hub is owned and started by the composition root; the runner only
// enqueues.
package broadcaster

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	queueCapacity = 1024
	sendTimeout   = 2 * time.Second
)

// Message is one log line of one execution.
type Message struct {
	ExecutionID string    `json:"execution_id"`
	Line        string    `json:"line"`
	At          time.Time `json:"at"`
}

// Observer receives broadcast messages. Notify is called from the hub's
// drain goroutine; implementations that block past the send timeout are
// unregistered.
type Observer interface {
	ID() string
	Notify(ctx context.Context, msg Message) error
}

// Hub delivers enqueued messages to every registered observer in enqueue
// order. Enqueue never blocks: when the queue is full the message is dropped
// and counted, so a slow consumer can never stall script execution.
type Hub struct {
	logger *slog.Logger

	mu        sync.RWMutex
	observers map[string]Observer

	queue   chan Message
	dropped atomic.Uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a hub with a bounded queue.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:    logger.With("module", "broadcaster"),
		observers: make(map[string]Observer),
		queue:     make(chan Message, queueCapacity),
	}
}

// Start launches the single drain goroutine.
func (h *Hub) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})

	go h.drain(ctx)
}

// Stop terminates the drain goroutine and waits for it to exit. Messages
// still queued are discarded.
func (h *Hub) Stop() {
	if h.cancel == nil {
		return
	}

	h.cancel()
	<-h.done
}

// Register adds an observer. A second registration under the same ID
// replaces the first.
func (h *Hub) Register(observer Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.observers[observer.ID()] = observer
}

// Unregister removes an observer; unknown IDs are a no-op.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.observers, id)
}

// Observers returns the number of registered observers.
func (h *Hub) Observers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.observers)
}

// Enqueue offers a message to the hub without blocking. Returns false when
// the queue is full and the message was dropped.
func (h *Hub) Enqueue(msg Message) bool {
	select {
	case h.queue <- msg:
		return true
	default:
		h.dropped.Add(1)

		return false
	}
}

// Dropped returns how many messages were discarded on a full queue.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) drain(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.queue:
			h.deliver(ctx, msg)
		}
	}
}

// deliver sends one message to a snapshot of the observers. The snapshot is
// taken under the lock, the sends happen outside it, so Register and
// Unregister never wait on a slow observer.
func (h *Hub) deliver(ctx context.Context, msg Message) {
	h.mu.RLock()
	snapshot := make([]Observer, 0, len(h.observers))

	for _, observer := range h.observers {
		snapshot = append(snapshot, observer)
	}
	h.mu.RUnlock()

	for _, observer := range snapshot {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := observer.Notify(sendCtx, msg)

		cancel()

		if err != nil {
			h.logger.WarnContext(ctx, "removing failed observer",
				"observer_id", observer.ID(),
				"error", err)
			h.Unregister(observer.ID())
		}
	}
}
