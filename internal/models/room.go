// Package models defines the core domain types for roomsync.
package models

import (
	"strings"
	"time"
)

// RoomKind classifies a room.
type RoomKind string

const (
	RoomKindPublic  RoomKind = "channel-public"
	RoomKindPrivate RoomKind = "channel-private"
	RoomKindDirect  RoomKind = "direct"
)

// HistoryKind selects the endpoint family used for history and member fetches.
type HistoryKind string

const (
	HistoryChannel HistoryKind = "channel"
	HistoryDirect  HistoryKind = "direct"
)

// Room is an immutable snapshot of a channel or direct conversation.
type Room struct {
	// ID is the opaque server identifier.
	ID string `json:"id"`

	// Kind is the room classification.
	Kind RoomKind `json:"kind"`

	// Name is the explicit name for channels. Direct rooms usually carry a
	// server-generated name; use DisplayName instead.
	Name string `json:"name,omitempty"`

	// Usernames lists the participants of a direct room.
	Usernames []string `json:"usernames,omitempty"`

	// Topic is the channel topic.
	Topic string `json:"topic,omitempty"`

	// UnreadCount is the server-reported unread counter.
	UnreadCount int `json:"unread_count,omitempty"`

	// LastMessage is the last-message preview.
	LastMessage *Message `json:"last_message,omitempty"`

	// UpdatedAt is the server's last-modified stamp.
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// IsChannel reports whether the room is a public or private channel.
func (r Room) IsChannel() bool {
	return r.Kind == RoomKindPublic || r.Kind == RoomKindPrivate
}

// IsDirect reports whether the room is a direct conversation.
func (r Room) IsDirect() bool {
	return r.Kind == RoomKindDirect
}

// HistoryKind returns the endpoint family for this room.
func (r Room) HistoryKind() HistoryKind {
	if r.IsDirect() {
		return HistoryDirect
	}
	return HistoryChannel
}

// Counterpart returns the first participant of a direct room that is not self.
func (r Room) Counterpart(self string) string {
	for _, name := range r.Usernames {
		if name != "" && name != self {
			return name
		}
	}
	return ""
}

// HasParticipant reports whether username takes part in a direct room.
func (r Room) HasParticipant(username string) bool {
	username = strings.TrimSpace(username)
	if username == "" {
		return false
	}
	for _, name := range r.Usernames {
		if name == username {
			return true
		}
	}
	return false
}

// DisplayName is the explicit name for channels and the counterpart
// username for direct rooms.
func (r Room) DisplayName(self string) string {
	if r.IsDirect() {
		if other := r.Counterpart(self); other != "" {
			return other
		}
	}
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// Label prefixes the display name the way room lists render it.
func (r Room) Label(self string) string {
	if r.IsDirect() {
		return "@" + r.DisplayName(self)
	}
	return "#" + r.DisplayName(self)
}
