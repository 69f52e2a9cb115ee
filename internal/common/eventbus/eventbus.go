// Package eventbus provides an in-memory publish/subscribe bus for broadcasting
// cross-cutting client events, such as session invalidation, to any number of
// subscribers. Delivery is at-least-once for subscribers registered at publish
// time; subscribers registered later do not see earlier events.
package eventbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Event is a single published event. Data may be nil for signal-only topics.
type Event struct {
	Topic string
	Data  any
}

// Subscriber is a single subscription with a buffered delivery channel.
type Subscriber struct {
	ID      string
	Topic   string
	Channel chan Event
	Context context.Context
	Cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// SafeSend attempts a non-blocking send to the subscriber's channel.
// Returns false if the subscriber is closed or its buffer is full.
func (s *Subscriber) SafeSend(event Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.Channel <- event:
		return true
	default:
		return false
	}
}

// TimedSend attempts a send, giving up after the timeout elapses.
func (s *Subscriber) TimedSend(event Event, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.Channel <- event:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Close shuts down the subscriber and closes its channel.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		s.Cancel()
		close(s.Channel)
	}
}

// EventBus routes events to subscribers by exact topic match.
// Safe for concurrent use.
type EventBus struct {
	sync.RWMutex
	subscribers map[string]map[string]*Subscriber // topic -> subscriberID -> Subscriber
	counter     uint64
}

// New returns an EventBus ready for subscription and publishing.
func New() *EventBus {
	return &EventBus{
		subscribers: make(map[string]map[string]*Subscriber),
	}
}

// Subscribe registers a subscriber for topic and returns its event channel
// along with an unsubscribe function. bufferSize controls how many undelivered
// events may be pending before sends are dropped.
func (bus *EventBus) Subscribe(topic string, bufferSize int) (<-chan Event, func()) {
	id := fmt.Sprintf("sub-%d", atomic.AddUint64(&bus.counter, 1))

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan Event, bufferSize)

	sub := &Subscriber{
		ID:      id,
		Topic:   topic,
		Channel: ch,
		Context: ctx,
		Cancel:  cancel,
	}

	bus.Lock()
	defer bus.Unlock()

	if _, ok := bus.subscribers[topic]; !ok {
		bus.subscribers[topic] = make(map[string]*Subscriber)
	}
	bus.subscribers[topic][id] = sub

	unsubscribe := func() {
		bus.Lock()
		defer bus.Unlock()

		if subMap, ok := bus.subscribers[topic]; ok {
			if s, ok := subMap[id]; ok {
				s.Close()
				delete(subMap, id)
				if len(subMap) == 0 {
					delete(bus.subscribers, topic)
				}
			}
		}
	}

	return ch, unsubscribe
}

// Publish sends an event to every current subscriber of topic.
// Non-blocking from the publisher's perspective beyond the per-subscriber
// timeout; events to slow subscribers are dropped after the timeout.
func (bus *EventBus) Publish(topic string, data any, timeout time.Duration) {
	event := Event{Topic: topic, Data: data}

	bus.RLock()
	defer bus.RUnlock()

	for _, sub := range bus.subscribers[topic] {
		select {
		case <-sub.Context.Done():
			continue
		default:
			sub.TimedSend(event, timeout)
		}
	}
}

// CloseTopic closes and removes all subscribers of a topic.
func (bus *EventBus) CloseTopic(topic string) {
	bus.Lock()
	defer bus.Unlock()

	if subs, ok := bus.subscribers[topic]; ok {
		for _, sub := range subs {
			sub.Close()
		}
		delete(bus.subscribers, topic)
	}
}

// Shutdown closes every subscriber and clears the bus.
func (bus *EventBus) Shutdown() {
	bus.Lock()
	defer bus.Unlock()

	for _, subs := range bus.subscribers {
		for _, sub := range subs {
			sub.Close()
		}
	}
	bus.subscribers = make(map[string]map[string]*Subscriber)
}
