// Package transport serializes message arrival into a session and fans
// session directives out to observers. Producers (agent runners, the human,
// the engine itself) may be concurrent; the bus guarantees the session sees
// messages one at a time in arrival order.
package transport

import (
	"context"
	"fmt"
	"sync"

	"parley/internal/logging"
	"parley/internal/types"
)

// Handler consumes one message. The bus calls it from a single goroutine.
type Handler func(msg types.Message) error

// Bus is the in-memory serializing message bus for one session.
type Bus struct {
	handle Handler
	in     chan types.Message

	mu          sync.Mutex
	subscribers map[int]chan types.Message
	nextSubID   int
	closed      bool
}

// DefaultBuffer is the submit queue depth.
const DefaultBuffer = 64

// NewBus creates a bus that feeds the handler. buffer <= 0 uses the
// default.
func NewBus(handle Handler, buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		handle:      handle,
		in:          make(chan types.Message, buffer),
		subscribers: make(map[int]chan types.Message),
	}
}

// Submit enqueues a message for the session. Safe for concurrent use.
func (b *Bus) Submit(msg types.Message) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return fmt.Errorf("bus closed")
	}
	b.in <- msg
	return nil
}

// Run drains the queue in arrival order until the context is canceled.
// Handler errors are logged, not fatal: a bad message never kills the
// session.
func (b *Bus) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			b.closed = true
			for id, ch := range b.subscribers {
				close(ch)
				delete(b.subscribers, id)
			}
			b.mu.Unlock()
			return ctx.Err()
		case msg := <-b.in:
			if err := b.handle(msg); err != nil {
				logging.Get(logging.CategoryTransport).Error("Handler failed for message %s: %v", msg.ID, err)
			}
		}
	}
}

// Broadcast fans a directive out to all subscribers. Directives do not
// re-enter the handler; they are already the engine's own output. Slow
// subscribers are skipped rather than blocking the session.
func (b *Bus) Broadcast(msg types.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- msg:
		default:
			logging.TransportDebug("Subscriber queue full, dropping message %s", msg.ID)
		}
	}
	return nil
}

// Subscribe registers an observer for broadcast directives. The returned
// cancel function unregisters it and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan types.Message, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan types.Message, buffer)

	b.mu.Lock()
	id := b.nextSubID
	b.nextSubID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}
