package roomsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tOgg1/roomsync/internal/models"
)

// Mutations are sent to the server and reconciled through the stream or the
// poll fallback. Only sends are applied locally ahead of the echo, and only
// reaction results returned by the server are applied directly.

// Send posts body to roomID. When roomID is the active room the message is
// appended optimistically under a client-generated id shared with the echo.
func (s *Session) Send(ctx context.Context, roomID, body string) (models.Message, error) {
	out := models.OutgoingMessage{
		ID:     uuid.NewString(),
		RoomID: strings.TrimSpace(roomID),
		Body:   body,
	}
	if err := out.Validate(s.opts.MaxMessageLength); err != nil {
		return models.Message{}, s.mutationFailed(out.RoomID, "", "send", err)
	}

	rc := s.contextFor(out.RoomID)
	if rc != nil {
		optimistic := models.Message{
			ID:        out.ID,
			RoomID:    out.RoomID,
			Author:    models.User{Username: s.opts.Self},
			Body:      out.Body,
			CreatedAt: time.Now().UTC(),
		}
		if rc.store.Insert(optimistic) {
			s.publishChanged(rc)
		}
	}

	msg, err := s.api.Send(ctx, out)
	if err != nil {
		if rc != nil && rc.store.Remove(out.ID) {
			s.publishChanged(rc)
		}
		return models.Message{}, s.mutationFailed(out.RoomID, out.ID, "send", err)
	}
	if msg.ID == "" {
		msg.ID = out.ID
	}
	if rc != nil && s.isCurrent(rc) && rc.store.Insert(msg) {
		s.publishChanged(rc)
	}
	return msg, nil
}

// Edit replaces the body of a message.
func (s *Session) Edit(ctx context.Context, roomID, messageID, body string) error {
	if err := models.ValidateEdit(roomID, messageID, body, s.opts.MaxMessageLength); err != nil {
		return s.mutationFailed(roomID, messageID, "edit", err)
	}
	if _, err := s.api.Update(ctx, roomID, messageID, body); err != nil {
		return s.mutationFailed(roomID, messageID, "edit", err)
	}
	return nil
}

// Delete removes a message.
func (s *Session) Delete(ctx context.Context, roomID, messageID string) error {
	if err := requireIDs(roomID, messageID); err != nil {
		return s.mutationFailed(roomID, messageID, "delete", err)
	}
	if err := s.api.Delete(ctx, roomID, messageID); err != nil {
		return s.mutationFailed(roomID, messageID, "delete", err)
	}
	return nil
}

// SetPinned pins or unpins a message.
func (s *Session) SetPinned(ctx context.Context, roomID, messageID string, pinned bool) error {
	op := "pin"
	if !pinned {
		op = "unpin"
	}
	if err := requireIDs(roomID, messageID); err != nil {
		return s.mutationFailed(roomID, messageID, op, err)
	}
	if err := s.api.Pin(ctx, messageID, pinned); err != nil {
		return s.mutationFailed(roomID, messageID, op, err)
	}
	return nil
}

// React toggles an emoji reaction. A reaction map returned by the server is
// applied to the store right away.
func (s *Session) React(ctx context.Context, roomID, messageID, emoji string, add bool) error {
	validation := &models.ValidationErrors{}
	if strings.TrimSpace(messageID) == "" {
		validation.Add("message_id", models.ErrMissingID)
	}
	if strings.TrimSpace(emoji) == "" {
		validation.Add("emoji", models.ErrMissingEmoji)
	}
	if err := validation.Err(); err != nil {
		return s.mutationFailed(roomID, messageID, "react", err)
	}

	reactions, err := s.api.React(ctx, messageID, normalizeEmoji(emoji), add)
	if err != nil {
		return s.mutationFailed(roomID, messageID, "react", err)
	}
	if reactions == nil {
		return nil
	}
	if rc := s.contextFor(roomID); rc != nil && rc.store.SetReactions(messageID, reactions) {
		s.publishChanged(rc)
	}
	return nil
}

// contextFor returns the active room context when it belongs to roomID.
func (s *Session) contextFor(roomID string) *roomContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.room.ID != roomID {
		return nil
	}
	return s.active
}

func (s *Session) mutationFailed(roomID, messageID, op string, err error) error {
	err = Classify(fmt.Errorf("%s: %w", op, err))
	s.logger.Warn().Err(err).Str("op", op).Str("room_id", roomID).Str("message_id", messageID).Msg("mutation failed")
	s.publish(&models.ChatEvent{
		Type:      models.EventTypeMutationFailed,
		RoomID:    roomID,
		MessageID: messageID,
		Err:       err.Error(),
	})
	return err
}

func requireIDs(roomID, messageID string) error {
	validation := &models.ValidationErrors{}
	if strings.TrimSpace(roomID) == "" {
		validation.Add("room_id", models.ErrMissingRoomID)
	}
	if strings.TrimSpace(messageID) == "" {
		validation.Add("message_id", models.ErrMissingID)
	}
	return validation.Err()
}

// normalizeEmoji wraps a bare shortcode in colons.
func normalizeEmoji(emoji string) string {
	emoji = strings.TrimSpace(emoji)
	if strings.HasPrefix(emoji, ":") && strings.HasSuffix(emoji, ":") && len(emoji) > 1 {
		return emoji
	}
	return ":" + strings.Trim(emoji, ":") + ":"
}
