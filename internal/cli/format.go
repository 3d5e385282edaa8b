package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tOgg1/roomsync/internal/models"
)

// formatTime renders t either relative to now or as a local clock time.
func formatTime(t, now time.Time, relative bool) string {
	if t.IsZero() {
		return "-"
	}
	if relative {
		return humanize.RelTime(t, now, "ago", "from now")
	}
	return t.Local().Format("2006-01-02 15:04")
}

// formatMessageLine renders one message as a single line of text.
func formatMessageLine(m models.Message, now time.Time, relative bool) string {
	var b strings.Builder
	b.WriteString(formatTime(m.CreatedAt, now, relative))
	b.WriteString("  ")
	author := m.Author.Username
	if author == "" {
		author = m.Author.Label()
	}
	b.WriteString(author)
	b.WriteString(": ")

	if m.Subtype == models.SubtypeUserJoined {
		b.WriteString("joined the room")
	} else {
		b.WriteString(strings.ReplaceAll(m.Body, "\n", " ⏎ "))
	}
	for _, att := range m.Attachments {
		fmt.Fprintf(&b, " [%s: %s]", att.Kind, firstNonBlank(att.Title, att.URL))
	}
	if m.Edited() {
		b.WriteString(" (edited)")
	}
	if m.Pinned {
		b.WriteString(" [pinned]")
	}
	if summary := formatReactions(m.Reactions); summary != "" {
		b.WriteString("  ")
		b.WriteString(summary)
	}
	return b.String()
}

// formatReactions renders reactions as ":emoji: n" pairs in emoji order.
func formatReactions(r models.Reactions) string {
	if len(r) == 0 {
		return ""
	}
	keys := make([]string, 0, len(r))
	for emoji := range r {
		keys = append(keys, emoji)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, emoji := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", emoji, len(r[emoji])))
	}
	return strings.Join(parts, " ")
}

func roomKindLabel(kind models.RoomKind) string {
	switch kind {
	case models.RoomKindPublic:
		return "public"
	case models.RoomKindPrivate:
		return "private"
	case models.RoomKindDirect:
		return "direct"
	default:
		return string(kind)
	}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
