package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/tOgg1/roomsync/internal/models"
)

func (m *Model) View() string {
	width := max(m.width, 40)
	height := max(m.height, 8)

	header := m.renderHeader(width)
	footer := m.renderFooter(width)
	bodyHeight := max(height-lipgloss.Height(header)-lipgloss.Height(footer), 1)

	left := m.styles.pane.
		Width(roomPaneWidth).
		Height(bodyHeight).
		Render(strings.Join(m.renderRooms(roomPaneWidth, bodyHeight), "\n"))

	rightWidth := max(width-roomPaneWidth-2, 10)
	var right []string
	if m.mode == modeSearch || m.search.Query != "" {
		right = m.renderSearch(rightWidth, bodyHeight)
	} else {
		right = m.renderMessages(rightWidth, bodyHeight)
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, " ", strings.Join(right, "\n"))

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) renderHeader(width int) string {
	self := m.session.Directory().Self()
	title := "roomsync"
	if room, ok := m.session.ActiveRoom(); ok {
		title += "  " + room.Label(self)
		if room.Topic != "" {
			title += "  " + m.styles.muted.Render(room.Topic)
		}
	}
	if m.showPinned {
		title += "  " + m.styles.muted.Render("[pinned]")
	}
	badge := m.stateBadge()
	pad := width - lipgloss.Width(title) - lipgloss.Width(badge)
	if pad < 1 {
		pad = 1
	}
	return m.styles.header.Render(title) + strings.Repeat(" ", pad) + badge
}

func (m *Model) stateBadge() string {
	st := m.state
	var parts []string
	switch st.Phase {
	case models.PhaseLoading:
		parts = append(parts, m.styles.muted.Render("loading"))
	case models.PhaseError:
		parts = append(parts, m.styles.err.Render("error"))
	}
	switch {
	case st.StreamConnected:
		parts = append(parts, m.styles.online.Render("live"))
	case st.Polling:
		parts = append(parts, m.styles.offline.Render("polling"))
	}
	if m.presence != "" {
		parts = append(parts, m.styles.muted.Render(m.presence))
	}
	return strings.Join(parts, " ")
}

func (m *Model) renderFooter(width int) string {
	var line string
	switch m.mode {
	case modeCompose:
		line = "> " + m.input + "_"
	case modeSearch:
		line = fmt.Sprintf("search (%s) / %s_", m.session.SearchScope(), m.input)
	default:
		line = "enter open  i send  / search  g scope  p pinned  r retry  q quit"
	}
	out := m.styles.footer.Render(truncate.StringWithTail(line, uint(width), "…"))
	if m.status != "" {
		out = m.styles.err.Render(truncate.StringWithTail(m.status, uint(width), "…")) + "\n" + out
	}
	return out
}

func (m *Model) renderRooms(width, height int) []string {
	self := m.session.Directory().Self()
	lines := make([]string, 0, len(m.rooms))
	for i, room := range m.rooms {
		label := room.Label(self)
		if room.UnreadCount > 0 {
			label = fmt.Sprintf("%s (%d)", label, room.UnreadCount)
		}
		label = truncate.StringWithTail(label, uint(width-2), "…")
		marker := "  "
		if room.ID == m.activeID {
			marker = "* "
		}
		line := marker + label
		if i == m.cursor {
			line = m.styles.selected.Render(line)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = append(lines, m.styles.muted.Render("no rooms"))
	}
	return scrollTo(lines, m.cursor, height)
}

func (m *Model) renderMessages(width, height int) []string {
	if m.activeID == "" {
		return []string{m.styles.muted.Render("select a room")}
	}
	if len(m.messages) == 0 {
		if m.state.Phase == models.PhaseLoading {
			return []string{m.styles.muted.Render("loading…")}
		}
		return []string{m.styles.muted.Render("no messages")}
	}

	now := m.now()
	var lines []string
	focus := -1
	for _, msg := range m.messages {
		block := m.renderMessage(msg, width, now)
		if msg.ID == m.highlight {
			focus = len(lines)
			for i := range block {
				block[i] = m.styles.highlight.Render(block[i])
			}
		}
		lines = append(lines, block...)
	}
	if focus >= 0 {
		return scrollTo(lines, focus, height)
	}
	return tail(lines, height)
}

func (m *Model) renderMessage(msg models.Message, width int, now time.Time) []string {
	author := msg.Author.Username
	if author == "" {
		author = msg.Author.Label()
	}
	head := m.colors.Style(author).Render(author)
	if m.cfg.ShowTimestamps && !msg.CreatedAt.IsZero() {
		head += " " + m.styles.muted.Render(formatStamp(msg.CreatedAt, now, m.cfg.RelativeTime))
	}
	if msg.Edited() {
		head += " " + m.styles.muted.Render("(edited)")
	}
	if msg.Pinned {
		head += " " + m.styles.muted.Render("📌")
	}

	lines := []string{head}
	body := msg.Body
	if msg.Subtype == models.SubtypeUserJoined {
		body = m.styles.muted.Render("joined the room")
	}
	if body != "" {
		for _, l := range strings.Split(wordwrap.String(body, max(width-2, 10)), "\n") {
			lines = append(lines, "  "+m.styles.body.Render(l))
		}
	}
	for _, a := range msg.Attachments {
		title := a.Title
		if title == "" {
			title = a.URL
		}
		lines = append(lines, "  "+m.styles.muted.Render(fmt.Sprintf("[%s] %s", a.Kind, title)))
	}
	if len(msg.Reactions) > 0 {
		lines = append(lines, "  "+m.styles.muted.Render(reactionSummary(msg.Reactions)))
	}
	return lines
}

func (m *Model) renderSearch(width, height int) []string {
	res := m.search
	scope := m.session.SearchScope()
	lines := []string{m.styles.header.Render(fmt.Sprintf("search %s: %q", scope, res.Query))}
	if res.Err != "" {
		lines = append(lines, m.styles.err.Render(res.Err))
	}
	self := m.session.Directory().Self()
	now := m.now()
	for _, msg := range res.Messages {
		lines = append(lines, m.renderMessage(msg, width, now)...)
	}
	for _, u := range res.Users {
		lines = append(lines, "@"+u.Username+" "+m.styles.muted.Render(u.Name))
	}
	for _, r := range res.Channels {
		lines = append(lines, r.Label(self))
	}
	for _, f := range res.Files {
		lines = append(lines, m.styles.muted.Render("[file] ")+f.Name)
	}
	if len(lines) == 1 && res.Err == "" && res.Query != "" {
		lines = append(lines, m.styles.muted.Render("no results"))
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return lines
}

func formatStamp(t, now time.Time, relative bool) string {
	if relative {
		return humanize.RelTime(t, now, "ago", "from now")
	}
	return t.Local().Format("15:04")
}

func reactionSummary(r models.Reactions) string {
	emojis := make([]string, 0, len(r))
	for e := range r {
		emojis = append(emojis, e)
	}
	sort.Strings(emojis)
	parts := make([]string, 0, len(emojis))
	for _, e := range emojis {
		parts = append(parts, fmt.Sprintf("%s %d", e, len(r[e])))
	}
	return strings.Join(parts, "  ")
}

// scrollTo returns a window of height lines that contains index.
func scrollTo(lines []string, index, height int) []string {
	if len(lines) <= height {
		return lines
	}
	start := index - height/2
	if start < 0 {
		start = 0
	}
	if start+height > len(lines) {
		start = len(lines) - height
	}
	return lines[start : start+height]
}

func tail(lines []string, height int) []string {
	if len(lines) <= height {
		return lines
	}
	return lines[len(lines)-height:]
}
