package models

// StreamEventKind classifies a push event.
type StreamEventKind string

const (
	StreamInserted        StreamEventKind = "inserted"
	StreamUpdated         StreamEventKind = "updated"
	StreamRemoved         StreamEventKind = "removed"
	StreamConnectionOpen  StreamEventKind = "connection-opened"
	StreamConnectionError StreamEventKind = "connection-error"
)

// StreamEvent is one normalized event from a room's push stream.
type StreamEvent struct {
	Kind   StreamEventKind
	RoomID string

	// Message is set for inserted events.
	Message *Message

	// Patch is set for updated events and carries only the fields the server sent.
	Patch *MessagePatch

	// MessageID is set for removed events.
	MessageID string

	// Err is set for connection-error events.
	Err error
}

// IsConnectionEvent reports whether the event is about the connection rather
// than a message.
func (e StreamEvent) IsConnectionEvent() bool {
	return e.Kind == StreamConnectionOpen || e.Kind == StreamConnectionError
}
