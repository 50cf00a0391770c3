// Package events provides the engine's telemetry bus. It implements
// pub/sub with backpressure control and a priority path for events that
// must never be dropped.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/scscodes/conductor/internal/core"
)

// Event is the base interface for all engine events.
type Event interface {
	EventType() string
	Timestamp() time.Time
	ExecutionID() core.ExecutionID
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Type      string           `json:"type"`
	Time      time.Time        `json:"timestamp"`
	Execution core.ExecutionID `json:"execution_id"`
}

func (e BaseEvent) EventType() string             { return e.Type }
func (e BaseEvent) Timestamp() time.Time          { return e.Time }
func (e BaseEvent) ExecutionID() core.ExecutionID { return e.Execution }

// NewBaseEvent creates a new base event stamped with the current time.
func NewBaseEvent(eventType string, executionID core.ExecutionID) BaseEvent {
	return BaseEvent{
		Type:      eventType,
		Time:      time.Now(),
		Execution: executionID,
	}
}

type subscriber struct {
	ch    chan Event
	types map[string]bool // empty means all types
}

// Bus provides pub/sub with backpressure control. Regular subscribers
// get ring-buffer semantics: when a buffer is full the oldest event is
// dropped to make room. Priority subscribers block instead.
type Bus struct {
	mu           sync.RWMutex
	subscribers  []*subscriber
	prioritySubs []*subscriber
	bufferSize   int
	droppedCount int64
	closed       bool
}

// NewBus creates a bus with the specified per-subscriber buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{bufferSize: bufferSize}
}

// Subscribe creates a subscription for specific event types. If no
// types are specified, the subscription receives all events.
func (b *Bus) Subscribe(types ...string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{
		ch:    make(chan Event, b.bufferSize),
		types: make(map[string]bool, len(types)),
	}
	for _, t := range types {
		sub.types[t] = true
	}
	b.subscribers = append(b.subscribers, sub)
	return sub.ch
}

// SubscribePriority creates a subscription that never drops events.
// Consumers must drain it promptly or publishers will block.
func (b *Bus) SubscribePriority() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{
		ch:    make(chan Event, 50),
		types: make(map[string]bool),
	}
	b.prioritySubs = append(b.prioritySubs, sub)
	return sub.ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers = removeSubscriber(b.subscribers, ch)
	b.prioritySubs = removeSubscriber(b.prioritySubs, ch)
}

func removeSubscriber(subs []*subscriber, ch <-chan Event) []*subscriber {
	result := make([]*subscriber, 0, len(subs))
	for _, sub := range subs {
		if sub.ch != ch {
			result = append(result, sub)
		} else {
			close(sub.ch)
		}
	}
	return result
}

// Publish sends an event to all matching regular subscribers. Slow
// subscribers lose their oldest buffered event rather than blocking the
// publisher.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.fanOut(event)
}

// PublishPriority sends an event to regular subscribers and then,
// blocking, to every priority subscriber. Use for terminal events like
// execution_failed.
func (b *Bus) PublishPriority(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.fanOut(event)
	for _, sub := range b.prioritySubs {
		sub.ch <- event
	}
}

func (b *Bus) fanOut(event Event) {
	eventType := event.EventType()
	for _, sub := range b.subscribers {
		if len(sub.types) != 0 && !sub.types[eventType] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Buffer full: drop the oldest and retry once.
			select {
			case <-sub.ch:
				atomic.AddInt64(&b.droppedCount, 1)
			default:
			}
			select {
			case sub.ch <- event:
			default:
				atomic.AddInt64(&b.droppedCount, 1)
			}
		}
	}
}

// DroppedCount returns the total number of dropped events.
func (b *Bus) DroppedCount() int64 {
	return atomic.LoadInt64(&b.droppedCount)
}

// Close closes the bus and all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, sub := range b.subscribers {
		close(sub.ch)
	}
	for _, sub := range b.prioritySubs {
		close(sub.ch)
	}
	b.subscribers = nil
	b.prioritySubs = nil
}
