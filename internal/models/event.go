package models

import (
	"time"
)

// EventType categorizes engine events.
type EventType string

const (
	EventTypeRoomsLoaded        EventType = "rooms.loaded"
	EventTypeRoomSelected       EventType = "room.selected"
	EventTypeSyncStateChanged   EventType = "sync.state_changed"
	EventTypeMessagesChanged    EventType = "messages.changed"
	EventTypeHighlightRequested EventType = "highlight.requested"
	EventTypeSearchCompleted    EventType = "search.completed"
	EventTypeMutationFailed     EventType = "mutation.failed"
)

// SyncPhase is the lifecycle phase of the active room.
type SyncPhase string

const (
	PhaseNoRoom  SyncPhase = "no-room"
	PhaseLoading SyncPhase = "loading"
	PhaseReady   SyncPhase = "ready"
	PhaseError   SyncPhase = "error"
)

// SyncState is the synchronization state of the active room.
type SyncState struct {
	RoomID          string    `json:"room_id,omitempty"`
	Phase           SyncPhase `json:"phase"`
	StreamConnected bool      `json:"stream_connected"`
	Polling         bool      `json:"polling"`
	HighlightTarget string    `json:"highlight_target,omitempty"`
	Err             string    `json:"error,omitempty"`
}

// SearchScope selects where a search runs.
type SearchScope string

const (
	ScopeRoom   SearchScope = "in-room"
	ScopeGlobal SearchScope = "global"
)

// FileResult is a file hit from global search.
type FileResult struct {
	ID     string `json:"id"`
	RoomID string `json:"room_id,omitempty"`
	Name   string `json:"name"`
	Type   string `json:"type,omitempty"`
	URL    string `json:"url,omitempty"`
}

// SearchResults is the latest result set for a settled query.
type SearchResults struct {
	Query    string       `json:"query"`
	Scope    SearchScope  `json:"scope"`
	RoomID   string       `json:"room_id,omitempty"`
	Messages []Message    `json:"messages,omitempty"`
	Users    []User       `json:"users,omitempty"`
	Channels []Room       `json:"channels,omitempty"`
	Files    []FileResult `json:"files,omitempty"`
	Err      string       `json:"error,omitempty"`
}

// ChatEvent is published on the engine bus.
type ChatEvent struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// RoomID is the room the event relates to, if any.
	RoomID string `json:"room_id,omitempty"`

	// MessageID is set for highlight and mutation events.
	MessageID string `json:"message_id,omitempty"`

	// State is set for sync.state_changed.
	State *SyncState `json:"state,omitempty"`

	// Search is set for search.completed.
	Search *SearchResults `json:"search,omitempty"`

	// Version is the store version for messages.changed.
	Version uint64 `json:"version,omitempty"`

	// Err describes a failed mutation.
	Err string `json:"error,omitempty"`
}
