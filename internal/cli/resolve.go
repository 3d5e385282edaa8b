package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tOgg1/roomsync/internal/config"
	"github.com/tOgg1/roomsync/internal/models"
	"github.com/tOgg1/roomsync/internal/roomsync"
)

const maxSuggestions = 5

func shortID(id string) string {
	const limit = 8
	if len(id) <= limit {
		return id
	}
	return id[:limit]
}

// ResolvedContext holds the result of room resolution.
type ResolvedContext struct {
	Room   models.Room
	Source string // "flag", "stored", or ""
}

// ResolveRoomContext resolves a room using the priority order:
// 1. Explicit argument or --room flag
// 2. Stored context from `roomsync use`
func ResolveRoomContext(ctx context.Context, dir *roomsync.Directory, explicit string) (*ResolvedContext, error) {
	result := &ResolvedContext{}

	if explicit = strings.TrimSpace(explicit); explicit != "" {
		room, err := findRoom(ctx, dir, explicit)
		if err != nil {
			return nil, err
		}
		result.Room = room
		result.Source = "flag"
		return result, nil
	}

	stored, err := config.DefaultContextStore().Load()
	if err == nil && stored.HasRoom() {
		if room, ok := dir.Resolve(stored.RoomID); ok {
			result.Room = room
			result.Source = "stored"
			return result, nil
		}
		// Room no longer visible, ignore stored context
	}
	return result, nil
}

// RequireRoomContext is like ResolveRoomContext but fails when no room
// could be resolved.
func RequireRoomContext(ctx context.Context, dir *roomsync.Directory, explicit string) (*ResolvedContext, error) {
	resolved, err := ResolveRoomContext(ctx, dir, explicit)
	if err != nil {
		return nil, err
	}
	if resolved.Room.ID == "" {
		return nil, errors.New("room required: pass a room or set one with 'roomsync use <room>'")
	}
	return resolved, nil
}

func findRoom(ctx context.Context, dir *roomsync.Directory, ref string) (models.Room, error) {
	if room, ok := dir.Match(ref); ok {
		return room, nil
	}
	room, err := dir.ResolveOrRefresh(ctx, ref)
	if err == nil {
		return room, nil
	}
	if room, ok := dir.Match(ref); ok {
		return room, nil
	}
	if !errors.Is(err, roomsync.ErrNotFound) {
		return models.Room{}, err
	}
	return models.Room{}, fmt.Errorf("room not found: %s (known: %s)", ref, formatRoomMatches(dir, ref))
}

// formatRoomMatches lists rooms whose label contains ref, or all rooms when
// none do.
func formatRoomMatches(dir *roomsync.Directory, ref string) string {
	needle := strings.ToLower(strings.TrimLeft(ref, "#@"))
	rooms := dir.Rooms()
	var matches []models.Room
	for _, r := range rooms {
		if strings.Contains(strings.ToLower(r.DisplayName(dir.Self())), needle) {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		matches = rooms
	}
	return formatMatchList(len(matches), func(i int) string {
		return matches[i].Label(dir.Self())
	})
}

func formatMatchList(count int, format func(int) string) string {
	if count == 0 {
		return "none"
	}

	limit := count
	if limit > maxSuggestions {
		limit = maxSuggestions
	}

	parts := make([]string, 0, limit+1)
	for i := 0; i < limit; i++ {
		parts = append(parts, format(i))
	}
	if count > maxSuggestions {
		parts = append(parts, fmt.Sprintf("... and %d more", count-maxSuggestions))
	}

	return strings.Join(parts, ", ")
}
