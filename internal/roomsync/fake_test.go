package roomsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tOgg1/roomsync/internal/models"
)

type fakeSub struct {
	roomID string
	events chan models.StreamEvent

	mu     sync.Mutex
	closed bool
}

func newFakeSub(roomID string) *fakeSub {
	return &fakeSub{roomID: roomID, events: make(chan models.StreamEvent, 16)}
}

func (f *fakeSub) Events() <-chan models.StreamEvent {
	return f.events
}

func (f *fakeSub) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func (f *fakeSub) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// push delivers ev unless the subscription is closed.
func (f *fakeSub) push(ev models.StreamEvent) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.events <- ev
	return true
}

type fakeAPI struct {
	mu sync.Mutex

	rooms     []models.Room
	roomsErr  error
	roomCalls int

	// history is newest first, the way the server returns it.
	history      map[string][]models.Message
	historyErr   map[string]error
	historyCalls map[string]int
	historyDelay map[string]time.Duration

	members map[string][]models.User

	streams        []*fakeSub
	streamErr      error
	streamAttempts int

	created []string

	sent      []models.OutgoingMessage
	sendErr   error
	sendAt    time.Time
	updates   []string
	deletes   []string
	pins      map[string]bool
	reactions models.Reactions
	reactErr  error

	searchCalls []string
	roomSearch  map[string][]models.Message
}

func newFakeAPI(rooms ...models.Room) *fakeAPI {
	return &fakeAPI{
		rooms:        rooms,
		history:      make(map[string][]models.Message),
		historyErr:   make(map[string]error),
		historyCalls: make(map[string]int),
		historyDelay: make(map[string]time.Duration),
		members:      make(map[string][]models.User),
		pins:         make(map[string]bool),
		roomSearch:   make(map[string][]models.Message),
	}
}

func (f *fakeAPI) Rooms(ctx context.Context) ([]models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roomCalls++
	if f.roomsErr != nil {
		return nil, f.roomsErr
	}
	return append([]models.Room(nil), f.rooms...), nil
}

func (f *fakeAPI) History(ctx context.Context, room models.Room, count int) ([]models.Message, error) {
	f.mu.Lock()
	f.historyCalls[room.ID]++
	delay := f.historyDelay[room.ID]
	err := f.historyErr[room.ID]
	msgs := make([]models.Message, 0, len(f.history[room.ID]))
	for _, m := range f.history[room.ID] {
		msgs = append(msgs, m.Clone())
	}
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (f *fakeAPI) Members(ctx context.Context, room models.Room) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[room.ID], nil
}

func (f *fakeAPI) CreateDirect(ctx context.Context, username string) (models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, username)
	room := models.Room{ID: "dm-" + username, Kind: models.RoomKindDirect, Usernames: []string{"me", username}}
	f.rooms = append(f.rooms, room)
	return room, nil
}

func (f *fakeAPI) OpenStream(ctx context.Context, roomID string) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamAttempts++
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	sub := newFakeSub(roomID)
	f.streams = append(f.streams, sub)
	return sub, nil
}

func (f *fakeAPI) Send(ctx context.Context, out models.OutgoingMessage) (models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return models.Message{}, f.sendErr
	}
	f.sent = append(f.sent, out)
	at := f.sendAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return models.Message{
		ID:        out.ID,
		RoomID:    out.RoomID,
		Body:      out.Body,
		Author:    models.User{Username: "me"},
		CreatedAt: at,
	}, nil
}

func (f *fakeAPI) Update(ctx context.Context, roomID, messageID, text string) (models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, messageID+"="+text)
	return models.Message{ID: messageID, RoomID: roomID, Body: text}, nil
}

func (f *fakeAPI) Delete(ctx context.Context, roomID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, messageID)
	return nil
}

func (f *fakeAPI) Pin(ctx context.Context, messageID string, pinned bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pins[messageID] = pinned
	return nil
}

func (f *fakeAPI) React(ctx context.Context, messageID, emoji string, add bool) (models.Reactions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reactErr != nil {
		return nil, f.reactErr
	}
	return f.reactions.Clone(), nil
}

func (f *fakeAPI) SearchRoom(ctx context.Context, roomID, text string, limit int) ([]models.Message, error) {
	f.mu.Lock()
	f.searchCalls = append(f.searchCalls, roomID+":"+text)
	msgs := f.roomSearch[roomID]
	f.mu.Unlock()
	return msgs, nil
}

func (f *fakeAPI) SearchGlobal(ctx context.Context, text string, limit int) models.SearchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, "*:"+text)
	return models.SearchResults{Users: []models.User{{Username: text}}}
}

func (f *fakeAPI) setHistory(roomID string, newestFirst ...models.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[roomID] = newestFirst
}

func (f *fakeAPI) setHistoryErr(roomID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyErr[roomID] = err
}

func (f *fakeAPI) historyCount(roomID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.historyCalls[roomID]
}

func (f *fakeAPI) roomsCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roomCalls
}

func (f *fakeAPI) streamCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}

func (f *fakeAPI) attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamAttempts
}

func (f *fakeAPI) stream(i int) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.streams) {
		return nil
	}
	return f.streams[i]
}

func (f *fakeAPI) searches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searchCalls...)
}

var errBoom = errors.New("boom")

func msgAt(id string, sec int64, body string) models.Message {
	return models.Message{ID: id, Body: body, CreatedAt: time.Unix(sec, 0).UTC()}
}

func ids(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
