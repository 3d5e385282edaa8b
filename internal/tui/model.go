// Package tui is the interactive terminal viewer for a roomsync session.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tOgg1/roomsync/internal/events"
	"github.com/tOgg1/roomsync/internal/models"
	"github.com/tOgg1/roomsync/internal/roomsync"
)

const (
	eventBuffer   = 64
	roomPaneWidth = 26
	actionTimeout = 30 * time.Second
)

// Config controls viewer rendering.
type Config struct {
	ShowTimestamps bool
	RelativeTime   bool
	Theme          Theme
}

type inputMode int

const (
	modeNormal inputMode = iota
	modeCompose
	modeSearch
)

type busEventMsg struct {
	event *models.ChatEvent
}

type roomsLoadedMsg struct {
	err error
}

type actionDoneMsg struct {
	op  string
	err error
}

// Model is the bubbletea model of the viewer.
type Model struct {
	ctx     context.Context
	session *roomsync.Session
	cfg     Config
	styles  styleSet
	colors  *UserColors
	now     func() time.Time

	events      <-chan *models.ChatEvent
	unsubscribe func()

	width  int
	height int

	rooms      []models.Room
	cursor     int
	activeID   string
	messages   []models.Message
	state      models.SyncState
	presence   string
	showPinned bool
	highlight  string

	mode   inputMode
	input  string
	search models.SearchResults
	status string
}

// NewModel builds a viewer over session and subscribes to its bus.
func NewModel(ctx context.Context, session *roomsync.Session, cfg Config) (*Model, error) {
	if session == nil {
		return nil, errors.New("tui: session is required")
	}
	if cfg.Theme == (Theme{}) {
		cfg.Theme = DefaultTheme()
	}
	ch, cancel, err := session.Bus().SubscribeChan("tui", events.Filter{}, eventBuffer)
	if err != nil {
		return nil, err
	}
	m := &Model{
		ctx:         ctx,
		session:     session,
		cfg:         cfg,
		styles:      newStyleSet(cfg.Theme),
		colors:      NewUserColors(nil),
		now:         time.Now,
		events:      ch,
		unsubscribe: cancel,
		width:       100,
		height:      30,
		state:       session.State(),
	}
	m.refresh()
	return m, nil
}

// Run starts the viewer in the alternate screen and blocks until it exits.
func Run(ctx context.Context, session *roomsync.Session, cfg Config) error {
	model, err := NewModel(ctx, session, cfg)
	if err != nil {
		return err
	}
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Close drops the bus subscription.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.loadRoomsCmd())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case busEventMsg:
		m.applyEvent(msg.event)
		return m, m.waitForEvent()
	case roomsLoadedMsg:
		if msg.err != nil {
			m.status = "rooms: " + msg.err.Error()
			return m, nil
		}
		m.refresh()
		m.moveCursorTo(m.activeID)
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = msg.op + ": " + msg.err.Error()
		} else {
			m.status = ""
		}
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	ch := m.events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return busEventMsg{event: ev}
	}
}

func (m *Model) applyEvent(ev *models.ChatEvent) {
	if ev == nil {
		return
	}
	switch ev.Type {
	case models.EventTypeRoomsLoaded:
		m.refresh()
	case models.EventTypeRoomSelected:
		m.highlight = ""
		m.showPinned = false
		m.refresh()
		m.moveCursorTo(ev.RoomID)
	case models.EventTypeMessagesChanged:
		m.refresh()
	case models.EventTypeSyncStateChanged:
		if ev.State != nil {
			m.state = *ev.State
		}
		m.presence = m.session.CounterpartStatus()
	case models.EventTypeHighlightRequested:
		if id, ok := m.session.TakeHighlight(); ok {
			m.highlight = id
		}
	case models.EventTypeSearchCompleted:
		if ev.Search != nil {
			m.search = *ev.Search
		}
	case models.EventTypeMutationFailed:
		m.status = ev.Err
	}
}

// refresh re-reads the session snapshot.
func (m *Model) refresh() {
	m.rooms = m.session.Directory().Rooms()
	if m.cursor >= len(m.rooms) {
		m.cursor = max(len(m.rooms)-1, 0)
	}
	if room, ok := m.session.ActiveRoom(); ok {
		m.activeID = room.ID
	} else {
		m.activeID = ""
	}
	if m.showPinned {
		m.messages = m.session.Pinned()
	} else {
		m.messages = m.session.Messages()
	}
	m.state = m.session.State()
	m.presence = m.session.CounterpartStatus()
}

func (m *Model) moveCursorTo(roomID string) {
	for i, r := range m.rooms {
		if r.ID == roomID {
			m.cursor = i
			return
		}
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit
	}
	switch m.mode {
	case modeCompose:
		return m.handleComposeKey(msg)
	case modeSearch:
		return m.handleSearchKey(msg)
	}

	switch msg.String() {
	case "q":
		return tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rooms)-1 {
			m.cursor++
		}
	case "enter":
		if m.cursor < len(m.rooms) {
			return m.selectRoomCmd(m.rooms[m.cursor].ID)
		}
	case "i", "c":
		if m.activeID != "" {
			m.mode = modeCompose
			m.input = ""
		}
	case "/":
		m.mode = modeSearch
		m.input = m.search.Query
	case "g":
		next := models.ScopeGlobal
		if m.session.SearchScope() == models.ScopeGlobal {
			next = models.ScopeRoom
		}
		m.session.SetSearchScope(next)
	case "p":
		m.showPinned = !m.showPinned
		m.refresh()
	case "r":
		return m.actionCmd("retry", func(context.Context) error { return m.session.RetryStream() })
	case "R":
		return m.actionCmd("history", m.session.LoadHistory)
	case "L":
		return m.loadRoomsCmd()
	case "esc":
		m.search = models.SearchResults{}
		m.highlight = ""
		m.status = ""
		m.session.Search("")
	}
	return nil
}

func (m *Model) handleComposeKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeNormal
		m.input = ""
	case tea.KeyEnter:
		body := m.input
		m.mode = modeNormal
		m.input = ""
		if strings.TrimSpace(body) == "" {
			return nil
		}
		roomID := m.activeID
		return m.actionCmd("send", func(ctx context.Context) error {
			_, err := m.session.Send(ctx, roomID, body)
			return err
		})
	case tea.KeyBackspace:
		m.input = dropLastRune(m.input)
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return nil
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeNormal
		m.input = ""
		m.search = models.SearchResults{}
		m.session.Search("")
		return nil
	case tea.KeyEnter:
		m.mode = modeNormal
		return nil
	case tea.KeyTab:
		next := models.ScopeGlobal
		if m.session.SearchScope() == models.ScopeGlobal {
			next = models.ScopeRoom
		}
		m.session.SetSearchScope(next)
		return nil
	case tea.KeyBackspace:
		m.input = dropLastRune(m.input)
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	default:
		return nil
	}
	m.session.Search(m.input)
	if strings.TrimSpace(m.input) == "" {
		m.search = models.SearchResults{}
	}
	return nil
}

func (m *Model) loadRoomsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, actionTimeout)
		defer cancel()
		_, err := m.session.LoadRooms(ctx)
		return roomsLoadedMsg{err: err}
	}
}

func (m *Model) selectRoomCmd(ref string) tea.Cmd {
	return m.actionCmd("select", func(ctx context.Context) error {
		_, err := m.session.SelectRoom(ctx, ref)
		return err
	})
}

func (m *Model) actionCmd(op string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, actionTimeout)
		defer cancel()
		return actionDoneMsg{op: op, err: fn(ctx)}
	}
}

func dropLastRune(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return string(r[:len(r)-1])
}
