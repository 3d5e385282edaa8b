package roomsync

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/roomsync/internal/logging"
	"github.com/tOgg1/roomsync/internal/models"
)

// Target is a deep-link destination: a room, a message in a room, or a
// direct conversation with a user.
type Target struct {
	RoomID    string
	MessageID string
	Username  string
}

func (t Target) String() string {
	switch {
	case t.Username != "":
		return "@" + strings.TrimPrefix(t.Username, "@")
	case t.MessageID != "":
		return t.RoomID + "/" + t.MessageID
	default:
		return t.RoomID
	}
}

// Outcome reports how a navigation ended.
type Outcome struct {
	Room models.Room
	// Highlighted is true when the target message was found and a highlight
	// was requested.
	Highlighted bool
}

// navHost is what the Navigator needs from the session.
type navHost interface {
	directory() *Directory
	createDirect(ctx context.Context, username string) (models.Room, error)
	selectResolved(room models.Room)
	hasMessage(roomID, messageID string) bool
	requestHighlight(roomID, messageID string) bool
}

// NavigatorConfig bounds message lookups.
type NavigatorConfig struct {
	InitialDelay  time.Duration
	RetryInterval time.Duration
	MaxAttempts   int
}

// Navigator resolves deep links. It holds at most one target; a new target
// supersedes the previous one, and the target is cleared once consumed
// whether or not it resolved.
type Navigator struct {
	host   navHost
	cfg    NavigatorConfig
	logger zerolog.Logger

	mu     sync.Mutex
	gen    uint64
	target *Target
}

func newNavigator(host navHost, cfg NavigatorConfig) *Navigator {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 20
	}
	return &Navigator{
		host:   host,
		cfg:    cfg,
		logger: logging.Component("roomsync.navigator"),
	}
}

// Target returns the pending target, if any.
func (n *Navigator) Target() (Target, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.target == nil {
		return Target{}, false
	}
	return *n.target, true
}

// Navigate resolves t and blocks until the room is selected and, for a
// message target, the message has appeared or the lookup gave up. A missing
// message is not an error.
func (n *Navigator) Navigate(ctx context.Context, t Target) (Outcome, error) {
	n.mu.Lock()
	n.gen++
	gen := n.gen
	copied := t
	n.target = &copied
	n.mu.Unlock()

	defer n.consume(gen)

	log := n.logger.With().Str("target", t.String()).Logger()

	roomID := strings.TrimSpace(t.RoomID)
	dir := n.host.directory()

	if username := strings.TrimPrefix(strings.TrimSpace(t.Username), "@"); username != "" {
		if room, ok := dir.FindDirect(username); ok {
			roomID = room.ID
		} else {
			log.Debug().Msg("no direct room, creating")
			created, err := n.host.createDirect(ctx, username)
			if err != nil {
				return Outcome{}, Classify(fmt.Errorf("open direct room with %s: %w", username, err))
			}
			roomID = created.ID
			if _, err := dir.Load(ctx); err != nil {
				log.Debug().Err(err).Msg("refresh after direct room creation failed")
			}
		}
	}
	if roomID == "" {
		return Outcome{}, Classify(fmt.Errorf("navigation target has no room: %w", ErrValidation))
	}

	room, err := dir.ResolveOrRefresh(ctx, roomID)
	if err != nil {
		return Outcome{}, err
	}
	if !n.current(gen) {
		return Outcome{Room: room}, nil
	}
	n.host.selectResolved(room)

	out := Outcome{Room: room}
	if t.MessageID == "" {
		return out, nil
	}
	out.Highlighted = n.awaitMessage(ctx, gen, room.ID, t.MessageID, log)
	return out, nil
}

func (n *Navigator) awaitMessage(ctx context.Context, gen uint64, roomID, messageID string, log zerolog.Logger) bool {
	if !sleepCtx(ctx, n.cfg.InitialDelay) {
		return false
	}
	for attempt := 1; attempt <= n.cfg.MaxAttempts; attempt++ {
		if !n.current(gen) {
			return false
		}
		if n.host.hasMessage(roomID, messageID) {
			return n.host.requestHighlight(roomID, messageID)
		}
		if attempt == n.cfg.MaxAttempts {
			break
		}
		if !sleepCtx(ctx, n.cfg.RetryInterval) {
			return false
		}
	}
	log.Debug().Int("attempts", n.cfg.MaxAttempts).Msg("target message not found, giving up")
	return false
}

func (n *Navigator) current(gen uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gen == gen
}

func (n *Navigator) consume(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.gen == gen {
		n.target = nil
	}
}

// supersede abandons any in-progress navigation.
func (n *Navigator) supersede() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gen++
	n.target = nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
