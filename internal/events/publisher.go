// Package events provides the in-process event bus the sync engine reports on.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tOgg1/roomsync/internal/models"
)

// EventHandler is a callback function invoked when an event matches a subscription.
type EventHandler func(event *models.ChatEvent)

// Filter defines criteria for matching events.
type Filter struct {
	// EventTypes filters by event type (nil = all types).
	EventTypes []models.EventType

	// RoomID filters to a specific room (empty = all). Events without a room,
	// such as rooms.loaded, always pass.
	RoomID string
}

// Matches returns true if the event matches the filter criteria.
func (f *Filter) Matches(event *models.ChatEvent) bool {
	if event == nil {
		return false
	}

	if len(f.EventTypes) > 0 {
		matched := false
		for _, t := range f.EventTypes {
			if event.Type == t {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.RoomID != "" && event.RoomID != "" && event.RoomID != f.RoomID {
		return false
	}

	return true
}

type subscription struct {
	id      string
	filter  Filter
	handler EventHandler
}

// Publisher defines the interface for event publishing and subscription.
type Publisher interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event *models.ChatEvent)

	// Subscribe registers a handler to receive events matching the filter.
	Subscribe(id string, filter Filter, handler EventHandler) error

	// Unsubscribe removes a subscription by ID.
	Unsubscribe(id string) error

	// SubscriberCount returns the number of active subscribers.
	SubscriberCount() int
}

// InMemoryPublisher implements Publisher using in-process pub/sub.
type InMemoryPublisher struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	now           func() time.Time
}

// PublisherOption configures an InMemoryPublisher.
type PublisherOption func(*InMemoryPublisher)

// WithClock overrides the timestamp source for published events.
func WithClock(now func() time.Time) PublisherOption {
	return func(p *InMemoryPublisher) {
		if now != nil {
			p.now = now
		}
	}
}

// NewInMemoryPublisher creates a new in-memory event publisher.
func NewInMemoryPublisher(opts ...PublisherOption) *InMemoryPublisher {
	p := &InMemoryPublisher{
		subscriptions: make(map[string]*subscription),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish stamps the event with an id and timestamp when missing and sends it
// to all matching subscribers. Handlers run synchronously on the caller's
// goroutine; their relative order is unspecified.
func (p *InMemoryPublisher) Publish(_ context.Context, event *models.ChatEvent) {
	if event == nil {
		return
	}
	p.stamp(event)

	p.mu.RLock()
	var handlers []EventHandler
	for _, sub := range p.subscriptions {
		if sub.filter.Matches(event) {
			handlers = append(handlers, sub.handler)
		}
	}
	p.mu.RUnlock()

	// Invoke handlers outside the lock to avoid deadlocks
	for _, handler := range handlers {
		handler(event)
	}
}

func (p *InMemoryPublisher) stamp(event *models.ChatEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now().UTC()
	}
}

// Subscribe registers a handler to receive events matching the filter.
func (p *InMemoryPublisher) Subscribe(id string, filter Filter, handler EventHandler) error {
	if id == "" {
		return ErrInvalidSubscriptionID
	}
	if handler == nil {
		return ErrNilHandler
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subscriptions[id]; exists {
		return ErrSubscriptionExists
	}

	p.subscriptions[id] = &subscription{
		id:      id,
		filter:  filter,
		handler: handler,
	}

	return nil
}

// SubscribeChan registers a subscription that delivers into a buffered
// channel. When the buffer is full the event is dropped; consumers re-read
// engine state on the next event. The returned cancel func unsubscribes and
// closes the channel.
func (p *InMemoryPublisher) SubscribeChan(id string, filter Filter, buffer int) (<-chan *models.ChatEvent, func(), error) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan *models.ChatEvent, buffer)
	var (
		mu     sync.Mutex
		closed bool
	)
	handler := func(event *models.ChatEvent) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- event:
		default:
		}
	}
	if err := p.Subscribe(id, filter, handler); err != nil {
		return nil, nil, err
	}
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = p.Unsubscribe(id)
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
	return ch, cancel, nil
}

// Unsubscribe removes a subscription by ID.
func (p *InMemoryPublisher) Unsubscribe(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subscriptions[id]; !exists {
		return ErrSubscriptionNotFound
	}

	delete(p.subscriptions, id)
	return nil
}

// SubscriberCount returns the number of active subscribers.
func (p *InMemoryPublisher) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscriptions)
}

// UpdateSubscription updates the filter for an existing subscription.
func (p *InMemoryPublisher) UpdateSubscription(id string, filter Filter) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	sub, exists := p.subscriptions[id]
	if !exists {
		return ErrSubscriptionNotFound
	}

	sub.filter = filter
	return nil
}

// Close removes all subscriptions.
func (p *InMemoryPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriptions = make(map[string]*subscription)
}

// Errors for publisher operations.
var (
	ErrInvalidSubscriptionID = &PublisherError{Message: "subscription ID is required"}
	ErrNilHandler            = &PublisherError{Message: "handler cannot be nil"}
	ErrSubscriptionExists    = &PublisherError{Message: "subscription with this ID already exists"}
	ErrSubscriptionNotFound  = &PublisherError{Message: "subscription not found"}
)

// PublisherError represents an error from publisher operations.
type PublisherError struct {
	Message string
}

func (e *PublisherError) Error() string {
	return e.Message
}
