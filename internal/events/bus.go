package events

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/smartats/ats-backend/internal/domain"
)

// Handler processes one delivered event. It runs on the subscriber's own
// goroutine; blocking here never blocks publishers or other subscribers.
type Handler func(ctx context.Context, event domain.Event)

type subscriber struct {
	name    string
	pattern string
	handler Handler
	inbox   chan domain.Event
	dropped atomic.Int64
}

// Bus is the in-process publish/subscribe fabric for domain events. Each
// subscriber drains a private buffered inbox, so delivery order follows
// publish order per subscriber while subscribers stay independent. A full
// inbox sheds the oldest pending event (best-effort delivery).
type Bus struct {
	mu          sync.RWMutex
	subscribers []*subscriber
	bufferSize  int
	logger      *log.Logger

	runCtx  context.Context
	cancel  context.CancelFunc
	drained sync.WaitGroup
}

func NewBus(ctx context.Context, bufferSize int, logger *log.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	runCtx, cancel := context.WithCancel(ctx)
	return &Bus{
		bufferSize: bufferSize,
		logger:     logger,
		runCtx:     runCtx,
		cancel:     cancel,
	}
}

// Subscribe registers a handler for every future event matching the
// pattern ("*", "resume.*", or an exact type) and starts its drain loop.
func (b *Bus) Subscribe(name, pattern string, handler Handler) {
	sub := &subscriber{
		name:    name,
		pattern: pattern,
		handler: handler,
		inbox:   make(chan domain.Event, b.bufferSize),
	}

	b.mu.Lock()
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()

	b.drained.Add(1)
	go b.drain(sub)
}

// Publish enqueues the event to every matching subscriber and returns
// without waiting for handler execution.
func (b *Bus) Publish(event domain.Event) {
	b.mu.RLock()
	targets := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if event.Type.Matches(sub.pattern) {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		b.offer(sub, event)
	}
}

func (b *Bus) offer(sub *subscriber, event domain.Event) {
	for {
		select {
		case sub.inbox <- event:
			return
		default:
		}

		// Inbox full: shed the oldest pending event and try again.
		select {
		case dropped := <-sub.inbox:
			sub.dropped.Add(1)
			if b.logger != nil {
				b.logger.Printf(
					"event bus dropped oldest event subscriber=%s event_id=%s type=%s",
					sub.name, dropped.ID, dropped.Type,
				)
			}
		default:
		}
	}
}

func (b *Bus) drain(sub *subscriber) {
	defer b.drained.Done()
	for {
		select {
		case <-b.runCtx.Done():
			return
		case event := <-sub.inbox:
			sub.handler(b.runCtx, event)
		}
	}
}

// Dropped returns how many events were shed for the named subscriber.
func (b *Bus) Dropped(name string) int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		if sub.name == name {
			return sub.dropped.Load()
		}
	}
	return 0
}

// Close stops all drain loops. Pending inbox events are discarded.
func (b *Bus) Close() {
	b.cancel()
	b.drained.Wait()
}
