package tui

import (
	"hash/fnv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// UserPalette is an ANSI 256 palette for stable per-user colors. Red and
// green are left out so they stay free for status badges.
var UserPalette = []string{
	"33", "39", "45", "69", "75", "81", "87", "99",
	"111", "117", "123", "147", "153", "159", "183", "189",
}

// Theme holds the colors of the viewer chrome.
type Theme struct {
	Foreground string
	Muted      string
	Accent     string
	Border     string
	Selected   string
	Highlight  string
	Online     string
	Offline    string
	Error      string
}

// DefaultTheme returns the default dark theme.
func DefaultTheme() Theme {
	return Theme{
		Foreground: "252",
		Muted:      "244",
		Accent:     "69",
		Border:     "238",
		Selected:   "236",
		Highlight:  "58",
		Online:     "42",
		Offline:    "214",
		Error:      "196",
	}
}

// UserColors resolves deterministic per-user styles and caches them.
type UserColors struct {
	palette []string

	mu    sync.RWMutex
	cache map[string]lipgloss.Style
}

// NewUserColors returns a mapper over palette, or UserPalette when empty.
func NewUserColors(palette []string) *UserColors {
	if len(palette) == 0 {
		palette = UserPalette
	}
	p := make([]string, len(palette))
	copy(p, palette)
	return &UserColors{palette: p, cache: make(map[string]lipgloss.Style, 32)}
}

// Color returns the palette entry for username.
func (u *UserColors) Color(username string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalizeUser(username)))
	return u.palette[int(h.Sum32()%uint32(len(u.palette)))]
}

// Style returns the bold foreground style for username.
func (u *UserColors) Style(username string) lipgloss.Style {
	key := normalizeUser(username)

	u.mu.RLock()
	if style, ok := u.cache[key]; ok {
		u.mu.RUnlock()
		return style
	}
	u.mu.RUnlock()

	style := lipgloss.NewStyle().Foreground(lipgloss.Color(u.Color(key))).Bold(true)

	u.mu.Lock()
	u.cache[key] = style
	u.mu.Unlock()
	return style
}

func normalizeUser(username string) string {
	name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(username, "@")))
	if name == "" {
		return "unknown"
	}
	return name
}

type styleSet struct {
	header    lipgloss.Style
	footer    lipgloss.Style
	muted     lipgloss.Style
	body      lipgloss.Style
	selected  lipgloss.Style
	highlight lipgloss.Style
	online    lipgloss.Style
	offline   lipgloss.Style
	err       lipgloss.Style
	pane      lipgloss.Style
}

func newStyleSet(t Theme) styleSet {
	return styleSet{
		header:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Accent)).Bold(true),
		footer:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		muted:     lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		body:      lipgloss.NewStyle().Foreground(lipgloss.Color(t.Foreground)),
		selected:  lipgloss.NewStyle().Background(lipgloss.Color(t.Selected)).Bold(true),
		highlight: lipgloss.NewStyle().Background(lipgloss.Color(t.Highlight)),
		online:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Online)).Bold(true),
		offline:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Offline)).Bold(true),
		err:       lipgloss.NewStyle().Foreground(lipgloss.Color(t.Error)).Bold(true),
		pane: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(lipgloss.Color(t.Border)),
	}
}
