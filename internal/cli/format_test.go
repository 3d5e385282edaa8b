package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/roomsync/internal/models"
)

func TestFormatMessageLine(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	edited := now.Add(-time.Minute)
	m := models.Message{
		ID:          "m1",
		Author:      models.User{Username: "alice"},
		Body:        "line one\nline two",
		CreatedAt:   now.Add(-2 * time.Hour),
		EditedAt:    &edited,
		Pinned:      true,
		Attachments: []models.Attachment{{Kind: models.AttachmentFile, URL: "https://x/doc.pdf"}},
		Reactions:   models.Reactions{":tada:": {"bob"}, ":+1:": {"bob", "carol"}},
	}

	line := formatMessageLine(m, now, true)
	require.True(t, strings.HasPrefix(line, "2 hours ago  alice: "), line)
	require.Contains(t, line, "line one ⏎ line two")
	require.Contains(t, line, "[file: https://x/doc.pdf]")
	require.Contains(t, line, "(edited)")
	require.Contains(t, line, "[pinned]")
	require.True(t, strings.HasSuffix(line, ":+1: 2 :tada: 1"), line)
}

func TestFormatMessageLineJoinNotice(t *testing.T) {
	m := models.Message{Author: models.User{Username: "dave"}, Subtype: models.SubtypeUserJoined}
	require.Contains(t, formatMessageLine(m, time.Now(), true), "dave: joined the room")
}

func TestFormatTime(t *testing.T) {
	now := time.Now()
	require.Equal(t, "-", formatTime(time.Time{}, now, true))
	require.Equal(t, "3 minutes ago", formatTime(now.Add(-3*time.Minute), now, true))

	at := time.Date(2026, 3, 1, 9, 5, 0, 0, time.Local)
	require.Equal(t, "2026-03-01 09:05", formatTime(at, now, false))
}

func TestRoomKindLabel(t *testing.T) {
	require.Equal(t, "public", roomKindLabel(models.RoomKindPublic))
	require.Equal(t, "private", roomKindLabel(models.RoomKindPrivate))
	require.Equal(t, "direct", roomKindLabel(models.RoomKindDirect))
	require.Equal(t, "other", roomKindLabel("other"))
}

func TestWriteTableAlignsWideAndStyledCells(t *testing.T) {
	var out bytes.Buffer
	err := writeTable(&out, []string{"ROOM", "ID"}, [][]string{
		{"#général", "c1"},
		{"\x1b[1m@bob\x1b[0m", "d1"},
		{"日本", "j1"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "ROOM      ID", lines[0])
	require.Equal(t, "#général  c1", lines[1])
	require.Equal(t, "\x1b[1m@bob\x1b[0m      d1", lines[2])
	require.Equal(t, "日本      j1", lines[3])
}

func TestStripANSI(t *testing.T) {
	require.Equal(t, "plain", stripANSI("plain"))
	require.Equal(t, "red", stripANSI("\x1b[31mred\x1b[0m"))
}

func TestWriteOutputJSONLSplitsSlices(t *testing.T) {
	jsonlOutput = true
	t.Cleanup(func() { jsonlOutput = false })

	var out bytes.Buffer
	require.NoError(t, WriteOutput(&out, []models.User{{Username: "a"}, {Username: "b"}}))
	require.Equal(t, 2, strings.Count(out.String(), "\n"))

	out.Reset()
	require.NoError(t, WriteOutput(&out, models.User{Username: "solo"}))
	require.Equal(t, 1, strings.Count(out.String(), "\n"))
}

func TestPreflightErrorMessage(t *testing.T) {
	err := &PreflightError{Message: "no server", Hint: "pass --server", NextStep: "roomsync login"}
	require.Equal(t, "no server\n  hint: pass --server\n  next: roomsync login", err.Error())
}

func TestGenerateHints(t *testing.T) {
	require.Len(t, generateHints(HintContext{Action: "login"}), 2)
	require.Contains(t, strings.Join(generateHints(HintContext{Action: "use", RoomName: "#ops"}), "\n"), "#ops")
	require.Nil(t, generateHints(HintContext{Action: "send"}))
	require.Contains(t, generateHints(HintContext{Action: "send", MessageID: "m9"})[0], "edit m9")
	require.Nil(t, generateHints(HintContext{Action: "unknown"}))
}
