package roomsync

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tOgg1/roomsync/internal/logging"
	"github.com/tOgg1/roomsync/internal/models"
)

// Directory holds the session's room list. A failed refresh keeps the last
// snapshot.
type Directory struct {
	api    API
	self   string
	logger zerolog.Logger

	mu     sync.RWMutex
	rooms  []models.Room
	loaded bool
}

// NewDirectory creates a directory. self is the session username, used to
// name direct rooms.
func NewDirectory(api API, self string) *Directory {
	return &Directory{
		api:    api,
		self:   self,
		logger: logging.Component("roomsync.directory"),
	}
}

// Load refreshes the room list from the server.
func (d *Directory) Load(ctx context.Context) ([]models.Room, error) {
	rooms, err := d.api.Rooms(ctx)
	if err != nil {
		d.logger.Warn().Err(err).Msg("room refresh failed, keeping last snapshot")
		return d.Rooms(), Classify(fmt.Errorf("load rooms: %w", err))
	}
	d.mu.Lock()
	d.rooms = append([]models.Room(nil), rooms...)
	d.loaded = true
	d.mu.Unlock()
	d.logger.Debug().Int("rooms", len(rooms)).Msg("rooms loaded")
	return d.Rooms(), nil
}

// Loaded reports whether at least one refresh succeeded.
func (d *Directory) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loaded
}

// Self returns the session username.
func (d *Directory) Self() string {
	return d.self
}

// Rooms returns the current snapshot.
func (d *Directory) Rooms() []models.Room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]models.Room(nil), d.rooms...)
}

// Channels returns public and private channels.
func (d *Directory) Channels() []models.Room {
	return d.filter(models.Room.IsChannel)
}

// Directs returns direct conversations.
func (d *Directory) Directs() []models.Room {
	return d.filter(models.Room.IsDirect)
}

func (d *Directory) filter(keep func(models.Room) bool) []models.Room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []models.Room
	for _, r := range d.rooms {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Resolve looks a room up by id in the current snapshot.
func (d *Directory) Resolve(id string) (models.Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.rooms {
		if r.ID == id {
			return r, true
		}
	}
	return models.Room{}, false
}

// ResolveOrRefresh resolves id, refreshing the directory exactly once when
// the room is not in the current snapshot.
func (d *Directory) ResolveOrRefresh(ctx context.Context, id string) (models.Room, error) {
	if room, ok := d.Resolve(id); ok {
		return room, nil
	}
	d.logger.Debug().Str("room_id", id).Msg("room not in snapshot, refreshing")
	if _, err := d.Load(ctx); err != nil {
		return models.Room{}, err
	}
	if room, ok := d.Resolve(id); ok {
		return room, nil
	}
	return models.Room{}, fmt.Errorf("room %s: %w", id, ErrNotFound)
}

// FindDirect returns the direct room whose participants include username.
func (d *Directory) FindDirect(username string) (models.Room, bool) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.rooms {
		if r.IsDirect() && r.HasParticipant(username) {
			return r, true
		}
	}
	return models.Room{}, false
}

// Match finds a room by id, channel name ("general" or "#general") or direct
// counterpart ("@alice"). Matching is case-insensitive on names.
func (d *Directory) Match(query string) (models.Room, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return models.Room{}, false
	}
	if room, ok := d.Resolve(query); ok {
		return room, true
	}
	if strings.HasPrefix(query, "@") {
		return d.FindDirect(query)
	}
	name := strings.ToLower(strings.TrimPrefix(query, "#"))
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.rooms {
		if strings.ToLower(r.DisplayName(d.self)) == name {
			return r, true
		}
	}
	return models.Room{}, false
}

// Default picks the room to open when none is active: the first room of the
// preferred kind, then the first of the other kind.
func (d *Directory) Default(preferDirect bool) (models.Room, bool) {
	primary, secondary := d.Channels(), d.Directs()
	if preferDirect {
		primary, secondary = secondary, primary
	}
	if len(primary) > 0 {
		return primary[0], true
	}
	if len(secondary) > 0 {
		return secondary[0], true
	}
	return models.Room{}, false
}
