package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMessageSubtypeFilters(t *testing.T) {
	tests := []struct {
		subtype   string
		content   bool
		inHistory bool
	}{
		{subtype: "", content: true, inHistory: true},
		{subtype: "message", content: true, inHistory: true},
		{subtype: "uj", content: false, inHistory: true},
		{subtype: "ru", content: false, inHistory: false},
		{subtype: "room_changed_topic", content: false, inHistory: false},
	}
	for _, tt := range tests {
		m := Message{ID: "m", Subtype: tt.subtype}
		require.Equal(t, tt.content, m.IsContent(), tt.subtype)
		require.Equal(t, tt.inHistory, m.RetainedInHistory(), tt.subtype)
	}
}

func TestReactionsEqualIgnoresOrder(t *testing.T) {
	a := Reactions{":+1:": {"alice", "bob"}}
	b := Reactions{":+1:": {"bob", "alice"}}
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(Reactions{":+1:": {"alice"}}))
	require.False(t, a.Equal(Reactions{":smile:": {"alice", "bob"}}))
	require.True(t, Reactions(nil).Equal(Reactions{}))
}

func TestMessagePatchApply(t *testing.T) {
	base := Message{ID: "m1", Body: "hello", CreatedAt: time.Unix(10, 0)}

	body := "edited"
	edited := time.Unix(20, 0)
	patch := MessagePatch{ID: "m1", Body: &body, EditedAt: &edited}

	changed := patch.Apply(&base)
	require.True(t, changed)
	require.Equal(t, "edited", base.Body)
	require.True(t, base.Edited())
	require.Equal(t, time.Unix(10, 0), base.CreatedAt)

	require.False(t, patch.Apply(&base), "second apply is a no-op")
}

func TestPatchFromKeepsBodyWhenEmpty(t *testing.T) {
	m := Message{ID: "m1", Body: "keep"}
	patch := PatchFrom(Message{ID: "m1", Pinned: true})
	require.True(t, patch.Apply(&m))
	require.Equal(t, "keep", m.Body)
	require.True(t, m.Pinned)
}

func TestMessageCloneIsDeep(t *testing.T) {
	edited := time.Unix(5, 0)
	m := Message{
		ID:          "m1",
		EditedAt:    &edited,
		Attachments: []Attachment{{Title: "a.png"}},
		Reactions:   Reactions{":x:": {"u1"}},
	}
	c := m.Clone()
	c.Attachments[0].Title = "b.png"
	c.Reactions[":x:"][0] = "u2"
	*c.EditedAt = time.Unix(6, 0)

	require.Equal(t, "a.png", m.Attachments[0].Title)
	require.Equal(t, "u1", m.Reactions[":x:"][0])
	require.Equal(t, time.Unix(5, 0), *m.EditedAt)
}

func TestClassifyAttachment(t *testing.T) {
	require.Equal(t, AttachmentImage, ClassifyAttachment("image/png", ""))
	require.Equal(t, AttachmentVideo, ClassifyAttachment("", "clip.MP4"))
	require.Equal(t, AttachmentAudio, ClassifyAttachment("audio/ogg", "x.bin"))
	require.Equal(t, AttachmentFile, ClassifyAttachment("application/pdf", "doc.pdf"))
}

func TestSortMessagesStable(t *testing.T) {
	msgs := []Message{
		{ID: "c", CreatedAt: time.Unix(30, 0)},
		{ID: "a", CreatedAt: time.Unix(10, 0)},
		{ID: "b1", CreatedAt: time.Unix(20, 0)},
		{ID: "b2", CreatedAt: time.Unix(20, 0)},
	}
	SortMessages(msgs)
	ids := []string{msgs[0].ID, msgs[1].ID, msgs[2].ID, msgs[3].ID}
	require.Equal(t, []string{"a", "b1", "b2", "c"}, ids)
}

func TestRoomDisplayName(t *testing.T) {
	dm := Room{ID: "d1", Kind: RoomKindDirect, Name: "alice", Usernames: []string{"alice", "bob"}}
	require.Equal(t, "bob", dm.DisplayName("alice"))
	require.Equal(t, "@bob", dm.Label("alice"))
	require.True(t, dm.HasParticipant("bob"))
	require.Equal(t, HistoryDirect, dm.HistoryKind())

	ch := Room{ID: "c1", Kind: RoomKindPrivate, Name: "ops"}
	require.Equal(t, "#ops", ch.Label("alice"))
	require.True(t, ch.IsChannel())
	require.Equal(t, HistoryChannel, ch.HistoryKind())
}
