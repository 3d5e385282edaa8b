package models

import (
	"path"
	"slices"
	"sort"
	"strings"
	"time"
)

// Message subtypes that carry user-visible content. Everything else is a
// system or administrative notice.
const (
	SubtypePlain      = ""
	SubtypeMessage    = "message"
	SubtypeUserJoined = "uj"
)

// AttachmentKind classifies an attachment for rendering.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentVideo AttachmentKind = "video"
	AttachmentAudio AttachmentKind = "audio"
	AttachmentFile  AttachmentKind = "file"
)

// User is a message author or room member.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Label returns the display name, falling back to the username.
func (u User) Label() string {
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	if u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// Attachment is a file or media item attached to a message.
type Attachment struct {
	ID       string         `json:"id,omitempty"`
	Kind     AttachmentKind `json:"kind"`
	Title    string         `json:"title,omitempty"`
	MimeType string         `json:"mime_type,omitempty"`
	URL      string         `json:"url,omitempty"`
}

// Reactions maps an emoji to the set of reactors.
type Reactions map[string][]string

// Clone returns a deep copy with each reactor set sorted.
func (r Reactions) Clone() Reactions {
	if r == nil {
		return nil
	}
	out := make(Reactions, len(r))
	for emoji, users := range r {
		copied := append([]string(nil), users...)
		sort.Strings(copied)
		out[emoji] = copied
	}
	return out
}

// Equal compares reaction content, ignoring reactor order.
func (r Reactions) Equal(other Reactions) bool {
	if len(r) != len(other) {
		return false
	}
	for emoji, users := range r {
		theirs, ok := other[emoji]
		if !ok || len(theirs) != len(users) {
			return false
		}
		seen := make(map[string]int, len(users))
		for _, u := range users {
			seen[u]++
		}
		for _, u := range theirs {
			seen[u]--
			if seen[u] < 0 {
				return false
			}
		}
	}
	return true
}

// Message is a single chat message.
type Message struct {
	ID          string       `json:"id"`
	RoomID      string       `json:"room_id"`
	Author      User         `json:"author"`
	Body        string       `json:"body"`
	Subtype     string       `json:"subtype,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	EditedAt    *time.Time   `json:"edited_at,omitempty"`
	Pinned      bool         `json:"pinned,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Reactions   Reactions    `json:"reactions,omitempty"`
}

// Clone returns a deep copy.
func (m Message) Clone() Message {
	out := m
	if m.EditedAt != nil {
		edited := *m.EditedAt
		out.EditedAt = &edited
	}
	if m.Attachments != nil {
		out.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	out.Reactions = m.Reactions.Clone()
	return out
}

// IsContent reports whether a pushed message should be inserted.
func (m Message) IsContent() bool {
	return m.Subtype == SubtypePlain || m.Subtype == SubtypeMessage
}

// RetainedInHistory reports whether a fetched message should be kept. Join
// notices are kept in history but not inserted from the stream.
func (m Message) RetainedInHistory() bool {
	return m.IsContent() || m.Subtype == SubtypeUserJoined
}

// Edited reports whether the message carries an edit timestamp.
func (m Message) Edited() bool {
	return m.EditedAt != nil && !m.EditedAt.IsZero()
}

// MessagePatch is a partial update keyed by message id. Nil fields are left
// unchanged.
type MessagePatch struct {
	ID          string
	Body        *string
	EditedAt    *time.Time
	Pinned      *bool
	Attachments []Attachment
	Reactions   Reactions
}

// PatchFrom builds a patch that treats m as a complete message. An empty body
// is not carried, so attachment-only echoes keep the local text.
func PatchFrom(m Message) MessagePatch {
	p := MessagePatch{ID: m.ID}
	if m.Body != "" {
		body := m.Body
		p.Body = &body
	}
	if m.Edited() {
		edited := *m.EditedAt
		p.EditedAt = &edited
	}
	pinned := m.Pinned
	p.Pinned = &pinned
	if m.Attachments != nil {
		p.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	if m.Reactions != nil {
		p.Reactions = m.Reactions.Clone()
	}
	return p
}

// Apply merges the patch into m and reports whether anything changed.
func (p MessagePatch) Apply(m *Message) bool {
	changed := false
	if p.Body != nil && *p.Body != m.Body {
		m.Body = *p.Body
		changed = true
	}
	if p.EditedAt != nil && (m.EditedAt == nil || !m.EditedAt.Equal(*p.EditedAt)) {
		edited := *p.EditedAt
		m.EditedAt = &edited
		changed = true
	}
	if p.Pinned != nil && *p.Pinned != m.Pinned {
		m.Pinned = *p.Pinned
		changed = true
	}
	if p.Attachments != nil && !slices.Equal(p.Attachments, m.Attachments) {
		m.Attachments = append([]Attachment(nil), p.Attachments...)
		changed = true
	}
	if p.Reactions != nil && !p.Reactions.Equal(m.Reactions) {
		m.Reactions = p.Reactions.Clone()
		changed = true
	}
	return changed
}

var (
	imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}
	videoExts = map[string]bool{".mp4": true, ".webm": true, ".mov": true, ".avi": true}
	audioExts = map[string]bool{".mp3": true, ".wav": true, ".ogg": true}
)

// ClassifyAttachment infers a kind from the mime type, then the title extension.
func ClassifyAttachment(mimeType, title string) AttachmentKind {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return AttachmentImage
	case strings.HasPrefix(mimeType, "video/"):
		return AttachmentVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return AttachmentAudio
	}
	ext := strings.ToLower(path.Ext(strings.TrimSpace(title)))
	switch {
	case imageExts[ext]:
		return AttachmentImage
	case videoExts[ext]:
		return AttachmentVideo
	case audioExts[ext]:
		return AttachmentAudio
	}
	return AttachmentFile
}

// SortMessages orders by creation time ascending. Ties keep their current
// relative order.
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
