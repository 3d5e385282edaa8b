package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tOgg1/roomsync/internal/models"
)

func TestFilter_Matches(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		event  *models.ChatEvent
		want   bool
	}{
		{
			name:   "empty filter matches any event",
			filter: Filter{},
			event:  &models.ChatEvent{Type: models.EventTypeMessagesChanged, RoomID: "r1"},
			want:   true,
		},
		{
			name:   "nil event returns false",
			filter: Filter{},
			event:  nil,
			want:   false,
		},
		{
			name:   "event type filter matches",
			filter: Filter{EventTypes: []models.EventType{models.EventTypeMessagesChanged}},
			event:  &models.ChatEvent{Type: models.EventTypeMessagesChanged, RoomID: "r1"},
			want:   true,
		},
		{
			name:   "event type filter rejects non-matching",
			filter: Filter{EventTypes: []models.EventType{models.EventTypeMessagesChanged}},
			event:  &models.ChatEvent{Type: models.EventTypeSearchCompleted, RoomID: "r1"},
			want:   false,
		},
		{
			name: "multiple event types - matches any",
			filter: Filter{EventTypes: []models.EventType{
				models.EventTypeMessagesChanged,
				models.EventTypeSyncStateChanged,
			}},
			event: &models.ChatEvent{Type: models.EventTypeSyncStateChanged, RoomID: "r1"},
			want:  true,
		},
		{
			name:   "room filter matches",
			filter: Filter{RoomID: "r1"},
			event:  &models.ChatEvent{Type: models.EventTypeMessagesChanged, RoomID: "r1"},
			want:   true,
		},
		{
			name:   "room filter rejects other room",
			filter: Filter{RoomID: "r1"},
			event:  &models.ChatEvent{Type: models.EventTypeMessagesChanged, RoomID: "r2"},
			want:   false,
		},
		{
			name:   "room filter passes roomless events",
			filter: Filter{RoomID: "r1"},
			event:  &models.ChatEvent{Type: models.EventTypeRoomsLoaded},
			want:   true,
		},
		{
			name: "combined filters - type mismatch",
			filter: Filter{
				EventTypes: []models.EventType{models.EventTypeHighlightRequested},
				RoomID:     "r1",
			},
			event: &models.ChatEvent{Type: models.EventTypeMessagesChanged, RoomID: "r1"},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Matches(tt.event)
			if got != tt.want {
				t.Errorf("Filter.Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInMemoryPublisher_Subscribe(t *testing.T) {
	pub := NewInMemoryPublisher()

	handler := func(event *models.ChatEvent) {}

	if err := pub.Subscribe("sub-1", Filter{}, handler); err != nil {
		t.Errorf("Subscribe() error = %v, want nil", err)
	}
	if pub.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount() = %d, want 1", pub.SubscriberCount())
	}
	if err := pub.Subscribe("sub-1", Filter{}, handler); err != ErrSubscriptionExists {
		t.Errorf("Subscribe() duplicate error = %v, want %v", err, ErrSubscriptionExists)
	}
	if err := pub.Subscribe("", Filter{}, handler); err != ErrInvalidSubscriptionID {
		t.Errorf("Subscribe() empty ID error = %v, want %v", err, ErrInvalidSubscriptionID)
	}
	if err := pub.Subscribe("sub-2", Filter{}, nil); err != ErrNilHandler {
		t.Errorf("Subscribe() nil handler error = %v, want %v", err, ErrNilHandler)
	}
}

func TestInMemoryPublisher_Unsubscribe(t *testing.T) {
	pub := NewInMemoryPublisher()
	_ = pub.Subscribe("sub-1", Filter{}, func(event *models.ChatEvent) {})

	if err := pub.Unsubscribe("sub-1"); err != nil {
		t.Errorf("Unsubscribe() error = %v, want nil", err)
	}
	if pub.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", pub.SubscriberCount())
	}
	if err := pub.Unsubscribe("sub-1"); err != ErrSubscriptionNotFound {
		t.Errorf("Unsubscribe() non-existent error = %v, want %v", err, ErrSubscriptionNotFound)
	}
}

func TestInMemoryPublisher_PublishStampsEvent(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	pub := NewInMemoryPublisher(WithClock(func() time.Time { return fixed }))

	var received []*models.ChatEvent
	_ = pub.Subscribe("sub-1", Filter{}, func(event *models.ChatEvent) {
		received = append(received, event)
	})

	pub.Publish(context.Background(), &models.ChatEvent{Type: models.EventTypeRoomsLoaded})
	pub.Publish(context.Background(), &models.ChatEvent{ID: "keep", Type: models.EventTypeRoomsLoaded})

	if len(received) != 2 {
		t.Fatalf("received %d events, want 2", len(received))
	}
	if received[0].ID == "" {
		t.Error("expected generated event id")
	}
	if !received[0].Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", received[0].Timestamp, fixed)
	}
	if received[1].ID != "keep" {
		t.Errorf("ID = %q, want keep", received[1].ID)
	}
}

func TestInMemoryPublisher_PublishWithRoomFilter(t *testing.T) {
	pub := NewInMemoryPublisher()
	ctx := context.Background()

	var r1, r2 int
	var mu sync.Mutex

	_ = pub.Subscribe("r1", Filter{RoomID: "r1"}, func(event *models.ChatEvent) {
		mu.Lock()
		r1++
		mu.Unlock()
	})
	_ = pub.Subscribe("r2", Filter{RoomID: "r2"}, func(event *models.ChatEvent) {
		mu.Lock()
		r2++
		mu.Unlock()
	})

	pub.Publish(ctx, &models.ChatEvent{Type: models.EventTypeMessagesChanged, RoomID: "r1"})
	pub.Publish(ctx, &models.ChatEvent{Type: models.EventTypeMessagesChanged, RoomID: "r1"})
	pub.Publish(ctx, &models.ChatEvent{Type: models.EventTypeMessagesChanged, RoomID: "r2"})

	mu.Lock()
	defer mu.Unlock()
	if r1 != 2 {
		t.Errorf("r1 = %d, want 2", r1)
	}
	if r2 != 1 {
		t.Errorf("r2 = %d, want 1", r2)
	}
}

func TestInMemoryPublisher_PublishNilEvent(t *testing.T) {
	pub := NewInMemoryPublisher()

	called := false
	_ = pub.Subscribe("sub-1", Filter{}, func(event *models.ChatEvent) {
		called = true
	})

	pub.Publish(context.Background(), nil)

	if called {
		t.Error("handler was called for nil event")
	}
}

func TestInMemoryPublisher_SubscribeChan(t *testing.T) {
	pub := NewInMemoryPublisher()

	ch, cancel, err := pub.SubscribeChan("tui", Filter{}, 1)
	if err != nil {
		t.Fatalf("SubscribeChan() error = %v", err)
	}

	pub.Publish(context.Background(), &models.ChatEvent{Type: models.EventTypeRoomsLoaded})
	// Buffer is full; this one is dropped rather than blocking.
	pub.Publish(context.Background(), &models.ChatEvent{Type: models.EventTypeRoomSelected})

	select {
	case ev := <-ch:
		if ev.Type != models.EventTypeRoomsLoaded {
			t.Errorf("Type = %s, want %s", ev.Type, models.EventTypeRoomsLoaded)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	cancel()
	cancel()
	if pub.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", pub.SubscriberCount())
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}

	// Publishing after cancel must not panic.
	pub.Publish(context.Background(), &models.ChatEvent{Type: models.EventTypeRoomsLoaded})
}

func TestInMemoryPublisher_UpdateSubscription(t *testing.T) {
	pub := NewInMemoryPublisher()
	ctx := context.Background()

	var count int
	_ = pub.Subscribe("sub-1", Filter{RoomID: "r1"}, func(event *models.ChatEvent) {
		count++
	})

	pub.Publish(ctx, &models.ChatEvent{Type: models.EventTypeMessagesChanged, RoomID: "r1"})

	if err := pub.UpdateSubscription("sub-1", Filter{RoomID: "r2"}); err != nil {
		t.Errorf("UpdateSubscription() error = %v", err)
	}

	pub.Publish(ctx, &models.ChatEvent{Type: models.EventTypeMessagesChanged, RoomID: "r1"})
	pub.Publish(ctx, &models.ChatEvent{Type: models.EventTypeMessagesChanged, RoomID: "r2"})

	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if err := pub.UpdateSubscription("missing", Filter{}); err != ErrSubscriptionNotFound {
		t.Errorf("UpdateSubscription() missing error = %v, want %v", err, ErrSubscriptionNotFound)
	}
}

func TestInMemoryPublisher_Close(t *testing.T) {
	pub := NewInMemoryPublisher()
	_ = pub.Subscribe("a", Filter{}, func(event *models.ChatEvent) {})
	_ = pub.Subscribe("b", Filter{}, func(event *models.ChatEvent) {})
	pub.Close()
	if pub.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", pub.SubscriberCount())
	}
}
