package roomsync

import (
	"context"

	"github.com/tOgg1/roomsync/internal/models"
	"github.com/tOgg1/roomsync/internal/rocketchat"
)

// Subscription is an open push stream for one room.
type Subscription interface {
	// Events delivers stream events and is closed when the stream ends.
	Events() <-chan models.StreamEvent
	// Close stops the stream. Safe to call more than once.
	Close() error
}

// API is the set of server calls the engine depends on.
type API interface {
	Rooms(ctx context.Context) ([]models.Room, error)
	History(ctx context.Context, room models.Room, count int) ([]models.Message, error)
	Members(ctx context.Context, room models.Room) ([]models.User, error)
	CreateDirect(ctx context.Context, username string) (models.Room, error)
	OpenStream(ctx context.Context, roomID string) (Subscription, error)

	Send(ctx context.Context, out models.OutgoingMessage) (models.Message, error)
	Update(ctx context.Context, roomID, messageID, text string) (models.Message, error)
	Delete(ctx context.Context, roomID, messageID string) error
	Pin(ctx context.Context, messageID string, pinned bool) error
	React(ctx context.Context, messageID, emoji string, add bool) (models.Reactions, error)

	SearchRoom(ctx context.Context, roomID, text string, limit int) ([]models.Message, error)
	SearchGlobal(ctx context.Context, text string, limit int) models.SearchResults
}

// rocketchatAPI adapts *rocketchat.Client to API.
type rocketchatAPI struct {
	*rocketchat.Client
}

// NewRocketChatAPI wraps a Rocket.Chat client for use by a Session.
func NewRocketChatAPI(client *rocketchat.Client) API {
	return rocketchatAPI{Client: client}
}

func (a rocketchatAPI) OpenStream(ctx context.Context, roomID string) (Subscription, error) {
	stream, err := a.Client.OpenStream(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
