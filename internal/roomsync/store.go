package roomsync

import (
	"sync"

	"github.com/tOgg1/roomsync/internal/models"
)

// OpKind is a store operation kind.
type OpKind string

const (
	OpInsert      OpKind = "insert"
	OpUpdate      OpKind = "update"
	OpRemove      OpKind = "remove"
	OpReactionSet OpKind = "reaction-set"
)

// Op is one reconciliation operation against a Store.
type Op struct {
	Kind      OpKind
	Message   models.Message
	Patch     models.MessagePatch
	MessageID string
	Reactions models.Reactions
}

// Store is the ordered, reconciled message list of one room. Messages are
// unique by id and sorted by creation time; ties keep arrival order.
//
// Every operation is a no-op rather than an error when it cannot apply, so
// stream and poll results may arrive in any order.
type Store struct {
	roomID string

	mu      sync.RWMutex
	msgs    []models.Message
	version uint64

	// While a load is in flight every operation is also journaled and
	// replayed on top of the loaded content.
	loads   int
	journal []Op
}

// NewStore returns an empty store for roomID.
func NewStore(roomID string) *Store {
	return &Store{roomID: roomID}
}

// RoomID returns the room the store belongs to.
func (s *Store) RoomID() string {
	return s.roomID
}

// Version increases on every change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// Reset empties the store.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.msgs) == 0 {
		return
	}
	s.msgs = nil
	s.version++
}

// BeginLoad marks a history load in flight. Operations are journaled until
// every begun load has ended with Replace or AbortLoad.
func (s *Store) BeginLoad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
}

// AbortLoad ends a load without replacing the content.
func (s *Store) AbortLoad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLoadLocked()
}

// Loading reports whether a load is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loads > 0
}

func (s *Store) endLoadLocked() {
	if s.loads > 0 {
		s.loads--
	}
	if s.loads == 0 {
		s.journal = nil
	}
}

// Snapshot returns a deep copy of the ordered messages.
func (s *Store) Snapshot() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.msgs))
	for i, m := range s.msgs {
		out[i] = m.Clone()
	}
	return out
}

// Get returns a copy of the message with id.
func (s *Store) Get(id string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.msgs[i].Clone(), true
	}
	return models.Message{}, false
}

// Has reports whether a message with id is present.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(id) >= 0
}

// Pinned returns the pinned messages in order.
func (s *Store) Pinned() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Message
	for _, m := range s.msgs {
		if m.Pinned {
			out = append(out, m.Clone())
		}
	}
	return out
}

// Apply runs one operation and reports whether the store changed.
func (s *Store) Apply(op Op) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record(op)
}

// Insert appends m, or merges it into the existing message with the same id.
func (s *Store) Insert(m models.Message) bool {
	return s.Apply(Op{Kind: OpInsert, Message: m})
}

// Update merges a patch into an existing message. Unknown ids are ignored.
func (s *Store) Update(p models.MessagePatch) bool {
	return s.Apply(Op{Kind: OpUpdate, Patch: p})
}

// Remove deletes a message by id. Unknown ids are ignored.
func (s *Store) Remove(id string) bool {
	return s.Apply(Op{Kind: OpRemove, MessageID: id})
}

// SetReactions replaces the reaction map of a message. Unknown ids are ignored.
func (s *Store) SetReactions(id string, reactions models.Reactions) bool {
	return s.Apply(Op{Kind: OpReactionSet, MessageID: id, Reactions: reactions})
}

func (s *Store) record(op Op) bool {
	if s.loads > 0 {
		s.journal = append(s.journal, cloneOp(op))
	}
	changed := s.applyLocked(op)
	if changed {
		s.version++
	}
	return changed
}

func (s *Store) applyLocked(op Op) bool {
	switch op.Kind {
	case OpInsert:
		return s.insertLocked(op.Message)
	case OpUpdate:
		return s.updateLocked(op.Patch)
	case OpRemove:
		return s.removeLocked(op.MessageID)
	case OpReactionSet:
		return s.setReactionsLocked(op.MessageID, op.Reactions)
	default:
		return false
	}
}

func (s *Store) insertLocked(m models.Message) bool {
	if m.ID == "" {
		return false
	}
	if i := s.indexOf(m.ID); i >= 0 {
		changed := models.PatchFrom(m).Apply(&s.msgs[i])
		if !m.CreatedAt.IsZero() && !m.CreatedAt.Equal(s.msgs[i].CreatedAt) {
			s.msgs[i].CreatedAt = m.CreatedAt
			models.SortMessages(s.msgs)
			changed = true
		}
		return changed
	}
	if m.RoomID == "" {
		m.RoomID = s.roomID
	}
	s.msgs = append(s.msgs, m.Clone())
	models.SortMessages(s.msgs)
	return true
}

func (s *Store) updateLocked(p models.MessagePatch) bool {
	i := s.indexOf(p.ID)
	if i < 0 {
		return false
	}
	return p.Apply(&s.msgs[i])
}

func (s *Store) removeLocked(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
	return true
}

func (s *Store) setReactionsLocked(id string, reactions models.Reactions) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	if s.msgs[i].Reactions.Equal(reactions) {
		return false
	}
	s.msgs[i].Reactions = reactions.Clone()
	return true
}

// Replace swaps the content wholesale with msgs, which must already be
// prepared with PrepareHistory, and ends one load. Operations journaled
// during the load are replayed on top.
func (s *Store) Replace(msgs []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(msgs)
	s.endLoadLocked()
}

func (s *Store) replaceLocked(msgs []models.Message) {
	s.msgs = cloneMessages(msgs)
	for _, op := range s.journal {
		s.applyLocked(op)
	}
	s.version++
}

// ReplaceIfChanged replaces the content only when HistoryChanged reports a
// difference or a load is in flight, and reports whether it did.
func (s *Store) ReplaceIfChanged(msgs []models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loads == 0 && !HistoryChanged(s.msgs, msgs) {
		return false
	}
	s.replaceLocked(msgs)
	return true
}

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.msgs {
		if s.msgs[i].ID == id {
			return i
		}
	}
	return -1
}

// PrepareHistory turns a newest-first history page into store order: system
// notices are dropped, join notices kept, and the rest sorted ascending.
func PrepareHistory(roomID string, fetched []models.Message) []models.Message {
	out := make([]models.Message, 0, len(fetched))
	for i := len(fetched) - 1; i >= 0; i-- {
		m := fetched[i]
		if !m.RetainedInHistory() || m.ID == "" {
			continue
		}
		if m.RoomID == "" {
			m.RoomID = roomID
		}
		out = append(out, m)
	}
	models.SortMessages(out)
	return dedupe(out)
}

// dedupe keeps the last occurrence of each id in place of the first.
func dedupe(msgs []models.Message) []models.Message {
	seen := make(map[string]int, len(msgs))
	out := msgs[:0]
	for _, m := range msgs {
		if i, ok := seen[m.ID]; ok {
			out[i] = m
			continue
		}
		seen[m.ID] = len(out)
		out = append(out, m)
	}
	return out
}

// HistoryChanged is the poll diff: true when the lengths differ or any
// positional message differs in id, body, edit time or reactions.
func HistoryChanged(current, fresh []models.Message) bool {
	if len(current) != len(fresh) {
		return true
	}
	for i := range fresh {
		a, b := current[i], fresh[i]
		if a.ID != b.ID || a.Body != b.Body {
			return true
		}
		if a.Edited() != b.Edited() || (a.Edited() && !a.EditedAt.Equal(*b.EditedAt)) {
			return true
		}
		if !a.Reactions.Equal(b.Reactions) {
			return true
		}
	}
	return false
}

func cloneOp(op Op) Op {
	op.Message = op.Message.Clone()
	if op.Reactions != nil {
		op.Reactions = op.Reactions.Clone()
	}
	return op
}

func cloneMessages(msgs []models.Message) []models.Message {
	out := make([]models.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
