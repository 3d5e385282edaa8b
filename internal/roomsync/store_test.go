package roomsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/roomsync/internal/models"
)

func TestStoreInsertIsIdempotent(t *testing.T) {
	s := NewStore("r1")
	m := msgAt("m1", 10, "hello")

	require.True(t, s.Insert(m))
	once := s.Snapshot()
	version := s.Version()

	require.False(t, s.Insert(m))
	require.Equal(t, once, s.Snapshot())
	require.Equal(t, version, s.Version())
	require.Equal(t, "r1", once[0].RoomID)
}

func TestStoreInsertMergesExisting(t *testing.T) {
	s := NewStore("r1")
	s.Insert(msgAt("m1", 10, "draft"))
	require.True(t, s.Insert(msgAt("m1", 10, "final")))

	got, ok := s.Get("m1")
	require.True(t, ok)
	require.Equal(t, "final", got.Body)
	require.Equal(t, 1, s.Len())
}

func TestStoreNoOpOnAbsence(t *testing.T) {
	s := NewStore("r1")
	s.Insert(msgAt("m1", 10, "a"))
	version := s.Version()

	body := "x"
	require.False(t, s.Update(models.MessagePatch{ID: "missing", Body: &body}))
	require.False(t, s.Remove("missing"))
	require.False(t, s.SetReactions("missing", models.Reactions{":x:": {"u"}}))
	require.False(t, s.Apply(Op{Kind: "bogus"}))
	require.False(t, s.Insert(models.Message{}))

	require.Equal(t, 1, s.Len())
	require.Equal(t, version, s.Version())
}

func TestStoreKeepsCreationOrder(t *testing.T) {
	orders := [][]string{
		{"t1", "t2", "t3"},
		{"t3", "t1", "t2"},
		{"t2", "t3", "t1"},
	}
	stamps := map[string]int64{"t1": 10, "t2": 20, "t3": 30}
	for _, order := range orders {
		s := NewStore("r1")
		for _, id := range order {
			s.Apply(Op{Kind: OpInsert, Message: msgAt(id, stamps[id], id)})
		}
		require.Equal(t, []string{"t1", "t2", "t3"}, ids(s.Snapshot()), order)
	}
}

func TestStoreUpdateKeepsOrder(t *testing.T) {
	s := NewStore("r1")
	s.Insert(msgAt("1", 10, "one"))
	s.Insert(msgAt("2", 20, "two"))

	body := "edited"
	require.True(t, s.Apply(Op{Kind: OpUpdate, Patch: models.MessagePatch{ID: "1", Body: &body}}))

	snap := s.Snapshot()
	require.Equal(t, []string{"1", "2"}, ids(snap))
	require.Equal(t, "edited", snap[0].Body)
	require.Equal(t, time.Unix(10, 0).UTC(), snap[0].CreatedAt)
	require.Equal(t, "two", snap[1].Body)
}

func TestStoreRemoveAndReactions(t *testing.T) {
	s := NewStore("r1")
	s.Insert(msgAt("1", 10, "one"))
	s.Insert(msgAt("2", 20, "two"))

	reactions := models.Reactions{":+1:": {"alice"}}
	require.True(t, s.Apply(Op{Kind: OpReactionSet, MessageID: "2", Reactions: reactions}))
	require.False(t, s.SetReactions("2", models.Reactions{":+1:": {"alice"}}))

	require.True(t, s.Apply(Op{Kind: OpRemove, MessageID: "1"}))
	snap := s.Snapshot()
	require.Equal(t, []string{"2"}, ids(snap))
	require.Equal(t, []string{"alice"}, snap[0].Reactions[":+1:"])
	require.False(t, s.Has("1"))
}

func TestStoreSnapshotIsCopy(t *testing.T) {
	s := NewStore("r1")
	s.Insert(models.Message{ID: "1", Body: "a", Reactions: models.Reactions{":x:": {"u1"}}})

	snap := s.Snapshot()
	snap[0].Body = "mutated"
	snap[0].Reactions[":x:"][0] = "u2"

	got, _ := s.Get("1")
	require.Equal(t, "a", got.Body)
	require.Equal(t, "u1", got.Reactions[":x:"][0])
}

func TestStorePinned(t *testing.T) {
	s := NewStore("r1")
	s.Insert(msgAt("1", 10, "one"))
	pinned := msgAt("2", 20, "two")
	pinned.Pinned = true
	s.Insert(pinned)

	require.Equal(t, []string{"2"}, ids(s.Pinned()))
}

func TestPrepareHistory(t *testing.T) {
	joined := msgAt("j", 15, "")
	joined.Subtype = models.SubtypeUserJoined
	renamed := msgAt("x", 16, "")
	renamed.Subtype = "r"

	// newest first, with a duplicate id
	fetched := []models.Message{
		msgAt("3", 30, "three"),
		renamed,
		joined,
		msgAt("1", 10, "one"),
		msgAt("3", 30, "three again"),
	}
	out := PrepareHistory("r1", fetched)
	require.Equal(t, []string{"1", "j", "3"}, ids(out))
	require.Equal(t, "three", out[2].Body)
	for _, m := range out {
		require.Equal(t, "r1", m.RoomID)
	}
}

func TestHistoryChanged(t *testing.T) {
	edited := time.Unix(50, 0)
	base := []models.Message{msgAt("1", 10, "one"), msgAt("2", 20, "two")}

	require.False(t, HistoryChanged(base, cloneMessages(base)))
	require.True(t, HistoryChanged(base, base[:1]))

	body := cloneMessages(base)
	body[1].Body = "changed"
	require.True(t, HistoryChanged(base, body))

	withEdit := cloneMessages(base)
	withEdit[0].EditedAt = &edited
	require.True(t, HistoryChanged(base, withEdit))

	withReaction := cloneMessages(base)
	withReaction[0].Reactions = models.Reactions{":x:": {"u"}}
	require.True(t, HistoryChanged(base, withReaction))

	reordered := []models.Message{base[1], base[0]}
	require.True(t, HistoryChanged(base, reordered))
}

func TestReplaceIfChangedLeavesIdenticalContent(t *testing.T) {
	s := NewStore("r1")
	s.Replace(PrepareHistory("r1", []models.Message{msgAt("2", 20, "two"), msgAt("1", 10, "one")}))
	version := s.Version()

	require.False(t, s.ReplaceIfChanged(PrepareHistory("r1", []models.Message{msgAt("2", 20, "two"), msgAt("1", 10, "one")})))
	require.Equal(t, version, s.Version())

	require.True(t, s.ReplaceIfChanged(PrepareHistory("r1", []models.Message{msgAt("3", 30, "three"), msgAt("2", 20, "two"), msgAt("1", 10, "one")})))
	require.Equal(t, []string{"1", "2", "3"}, ids(s.Snapshot()))
	require.Greater(t, s.Version(), version)
}

func TestStoreReset(t *testing.T) {
	s := NewStore("r1")
	s.Insert(msgAt("1", 10, "one"))
	s.Reset()
	require.Zero(t, s.Len())
}

func TestStoreInsertAdoptsEchoTimestamp(t *testing.T) {
	s := NewStore("r1")
	s.Insert(msgAt("local", 100, "sent"))
	s.Insert(msgAt("other", 50, "earlier"))
	require.Equal(t, []string{"other", "local"}, ids(s.Snapshot()))

	version := s.Version()
	require.True(t, s.Insert(msgAt("local", 10, "sent")))
	require.Greater(t, s.Version(), version)
	require.Equal(t, []string{"local", "other"}, ids(s.Snapshot()))
	got, ok := s.Get("local")
	require.True(t, ok)
	require.Equal(t, time.Unix(10, 0).UTC(), got.CreatedAt)

	noStamp := msgAt("local", 0, "sent")
	noStamp.CreatedAt = time.Time{}
	require.False(t, s.Insert(noStamp))
}

func TestStoreDuplicateInsertWithAttachmentsIsNoOp(t *testing.T) {
	s := NewStore("r1")
	m := msgAt("m1", 10, "see file")
	m.Attachments = []models.Attachment{{Kind: models.AttachmentImage, Title: "a.png", URL: "https://chat/a.png"}}

	require.True(t, s.Insert(m))
	version := s.Version()
	require.False(t, s.Insert(m))
	require.Equal(t, version, s.Version())

	m.Attachments = append(m.Attachments, models.Attachment{Kind: models.AttachmentFile, Title: "b.txt"})
	require.True(t, s.Insert(m))
	got, _ := s.Get("m1")
	require.Len(t, got.Attachments, 2)
}

func TestStoreReplaysOperationsAppliedDuringLoad(t *testing.T) {
	s := NewStore("r1")
	s.BeginLoad()
	require.True(t, s.Loading())

	edited := "one edited"
	s.Insert(msgAt("2", 20, "two"))
	s.Update(models.MessagePatch{ID: "1", Body: &edited})
	s.Remove("3")
	require.Equal(t, []string{"2"}, ids(s.Snapshot()))

	s.Replace([]models.Message{msgAt("1", 10, "one"), msgAt("3", 30, "three")})
	require.False(t, s.Loading())
	msgs := s.Snapshot()
	require.Equal(t, []string{"1", "2"}, ids(msgs))
	require.Equal(t, "one edited", msgs[0].Body)

	s.Replace([]models.Message{msgAt("1", 10, "one")})
	require.Equal(t, []string{"1"}, ids(s.Snapshot()))
}

func TestStoreOverlappingLoadsKeepJournal(t *testing.T) {
	s := NewStore("r1")
	s.BeginLoad()
	s.BeginLoad()
	s.Insert(msgAt("2", 20, "two"))

	s.Replace([]models.Message{msgAt("1", 10, "one")})
	require.True(t, s.Loading())
	s.Insert(msgAt("3", 30, "three"))

	s.Replace([]models.Message{msgAt("1", 10, "one")})
	require.False(t, s.Loading())
	require.Equal(t, []string{"1", "2", "3"}, ids(s.Snapshot()))

	s.BeginLoad()
	s.Insert(msgAt("4", 40, "four"))
	s.AbortLoad()
	require.False(t, s.Loading())
	s.Replace([]models.Message{msgAt("1", 10, "one")})
	require.Equal(t, []string{"1"}, ids(s.Snapshot()))
}
