package rocketchat

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tOgg1/roomsync/internal/models"
)

// wireTime accepts the ISO strings REST endpoints return and the
// {"$date": millis} objects the realtime API uses.
type wireTime struct {
	time.Time
}

func (t *wireTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	case '{':
		var obj struct {
			Date json.Number `json:"$date"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		return t.fromMillis(obj.Date)
	default:
		return t.fromMillis(json.Number(data))
	}
}

func (t *wireTime) fromMillis(n json.Number) error {
	if n == "" {
		t.Time = time.Time{}
		return nil
	}
	ms, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return err
	}
	t.Time = time.UnixMilli(ms).UTC()
	return nil
}

func (t *wireTime) ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

type wireUser struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Status   string `json:"status"`
}

func (u wireUser) toModel() models.User {
	return models.User{ID: u.ID, Username: u.Username, Name: u.Name, Status: u.Status}
}

type wireReaction struct {
	Usernames []string `json:"usernames"`
}

type wireAttachment struct {
	ID        string `json:"_id"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	ImageType string `json:"image_type"`
	VideoType string `json:"video_type"`
	AudioType string `json:"audio_type"`
	ImageURL  string `json:"image_url"`
	VideoURL  string `json:"video_url"`
	AudioURL  string `json:"audio_url"`
	TitleLink string `json:"title_link"`
	URL       string `json:"url"`
}

type wireMessage struct {
	ID          string                  `json:"_id"`
	RoomID      string                  `json:"rid"`
	Msg         string                  `json:"msg"`
	T           string                  `json:"t"`
	TS          wireTime                `json:"ts"`
	EditedAt    *wireTime               `json:"editedAt"`
	Pinned      bool                    `json:"pinned"`
	User        wireUser                `json:"u"`
	Attachments []wireAttachment        `json:"attachments"`
	Reactions   map[string]wireReaction `json:"reactions"`
}

type wireRoom struct {
	ID          string       `json:"_id"`
	T           string       `json:"t"`
	Name        string       `json:"name"`
	FName       string       `json:"fname"`
	Usernames   []string     `json:"usernames"`
	Topic       string       `json:"topic"`
	Unread      int          `json:"unread"`
	LastMessage *wireMessage `json:"lastMessage"`
	UpdatedAt   wireTime     `json:"_updatedAt"`
}

type wireFile struct {
	ID     string `json:"_id"`
	RoomID string `json:"rid"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	URL    string `json:"url"`
	Path   string `json:"path"`
}

func roomKind(t string) (models.RoomKind, bool) {
	switch t {
	case "c":
		return models.RoomKindPublic, true
	case "p":
		return models.RoomKindPrivate, true
	case "d":
		return models.RoomKindDirect, true
	default:
		return "", false
	}
}

// endpointFamily returns the REST prefix for room-scoped endpoints.
func endpointFamily(kind models.RoomKind) string {
	switch kind {
	case models.RoomKindPrivate:
		return "groups"
	case models.RoomKindDirect:
		return "im"
	default:
		return "channels"
	}
}

func convertReactions(in map[string]wireReaction) models.Reactions {
	if in == nil {
		return nil
	}
	out := make(models.Reactions, len(in))
	for emoji, r := range in {
		out[emoji] = append([]string(nil), r.Usernames...)
	}
	return out.Clone()
}

func (c *Client) convertAttachment(roomID string, a wireAttachment) models.Attachment {
	mime := firstNonEmpty(a.ImageType, a.VideoType, a.AudioType, a.Type)
	kind := models.ClassifyAttachment(mime, a.Title)
	switch {
	case a.ImageURL != "":
		kind = models.AttachmentImage
	case a.VideoURL != "":
		kind = models.AttachmentVideo
	case a.AudioURL != "":
		kind = models.AttachmentAudio
	}

	link := firstNonEmpty(a.ImageURL, a.VideoURL, a.AudioURL, a.TitleLink, a.URL)
	if link == "" && a.ID != "" && roomID != "" {
		link = "/file-upload/" + url.PathEscape(roomID) + "/" + url.PathEscape(a.ID)
	}
	if !strings.Contains(mime, "/") {
		mime = ""
	}
	return models.Attachment{
		ID:       a.ID,
		Kind:     kind,
		Title:    a.Title,
		MimeType: mime,
		URL:      c.resolveURL(link),
	}
}

func (c *Client) convertAttachments(roomID string, in []wireAttachment) []models.Attachment {
	if in == nil {
		return nil
	}
	out := make([]models.Attachment, 0, len(in))
	for _, a := range in {
		out = append(out, c.convertAttachment(roomID, a))
	}
	return out
}

func (c *Client) convertMessage(w wireMessage) models.Message {
	m := models.Message{
		ID:          w.ID,
		RoomID:      w.RoomID,
		Author:      w.User.toModel(),
		Body:        w.Msg,
		Subtype:     w.T,
		CreatedAt:   w.TS.Time,
		Pinned:      w.Pinned,
		Attachments: c.convertAttachments(w.RoomID, w.Attachments),
		Reactions:   convertReactions(w.Reactions),
	}
	if w.EditedAt != nil {
		m.EditedAt = w.EditedAt.ptr()
	}
	return m
}

func (c *Client) convertMessages(in []wireMessage) []models.Message {
	out := make([]models.Message, 0, len(in))
	for _, w := range in {
		out = append(out, c.convertMessage(w))
	}
	return out
}

func (c *Client) convertRoom(w wireRoom) (models.Room, bool) {
	kind, ok := roomKind(w.T)
	if !ok {
		return models.Room{}, false
	}
	room := models.Room{
		ID:          w.ID,
		Kind:        kind,
		Name:        firstNonEmpty(w.Name, w.FName),
		Usernames:   append([]string(nil), w.Usernames...),
		Topic:       w.Topic,
		UnreadCount: w.Unread,
		UpdatedAt:   w.UpdatedAt.Time,
	}
	if w.LastMessage != nil {
		last := c.convertMessage(*w.LastMessage)
		room.LastMessage = &last
	}
	return room, true
}

func (c *Client) convertFile(w wireFile) models.FileResult {
	return models.FileResult{
		ID:     w.ID,
		RoomID: w.RoomID,
		Name:   w.Name,
		Type:   w.Type,
		URL:    c.resolveURL(firstNonEmpty(w.URL, w.Path)),
	}
}

// patchFromWire builds a patch holding only the fields present in raw.
func (c *Client) patchFromWire(raw json.RawMessage) (models.MessagePatch, wireMessage, error) {
	var w wireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return models.MessagePatch{}, w, err
	}
	var present map[string]json.RawMessage
	if err := json.Unmarshal(raw, &present); err != nil {
		return models.MessagePatch{}, w, err
	}

	patch := models.MessagePatch{ID: w.ID}
	if _, ok := present["msg"]; ok {
		body := w.Msg
		patch.Body = &body
	}
	if _, ok := present["editedAt"]; ok && w.EditedAt != nil {
		patch.EditedAt = w.EditedAt.ptr()
	}
	if _, ok := present["pinned"]; ok {
		pinned := w.Pinned
		patch.Pinned = &pinned
	}
	if _, ok := present["attachments"]; ok {
		patch.Attachments = c.convertAttachments(w.RoomID, w.Attachments)
		if patch.Attachments == nil {
			patch.Attachments = []models.Attachment{}
		}
	}
	if _, ok := present["reactions"]; ok {
		patch.Reactions = convertReactions(w.Reactions)
		if patch.Reactions == nil {
			patch.Reactions = models.Reactions{}
		}
	}
	return patch, w, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
