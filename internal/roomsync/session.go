package roomsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/roomsync/internal/config"
	"github.com/tOgg1/roomsync/internal/events"
	"github.com/tOgg1/roomsync/internal/logging"
	"github.com/tOgg1/roomsync/internal/models"
)

// Options configures a Session.
type Options struct {
	// Self is the session user's username.
	Self string

	HistoryCount        int
	PollInterval        time.Duration
	StreamRetryInterval time.Duration
	StreamRetryMax      int

	SearchDebounce    time.Duration
	SearchRoomLimit   int
	SearchGlobalLimit int

	Navigation NavigatorConfig

	MaxMessageLength int

	// PreferDirect makes default selection pick a direct room first.
	PreferDirect bool

	// Bus receives engine events. A new bus is created when nil.
	Bus *events.InMemoryPublisher
}

// OptionsFromConfig maps loaded configuration onto session options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Self:                cfg.Auth.Username,
		HistoryCount:        cfg.Sync.HistoryCount,
		PollInterval:        cfg.Sync.PollInterval,
		StreamRetryInterval: cfg.Sync.StreamRetryInterval,
		StreamRetryMax:      cfg.Sync.StreamRetryMax,
		SearchDebounce:      cfg.Search.Debounce,
		SearchRoomLimit:     cfg.Search.RoomLimit,
		SearchGlobalLimit:   cfg.Search.GlobalLimit,
		Navigation: NavigatorConfig{
			InitialDelay:  cfg.Navigation.InitialDelay,
			RetryInterval: cfg.Navigation.RetryInterval,
			MaxAttempts:   cfg.Navigation.MaxAttempts,
		},
		MaxMessageLength: cfg.Messages.MaxLength,
	}
}

func (o *Options) applyDefaults() {
	if o.HistoryCount <= 0 {
		o.HistoryCount = 50
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 30 * time.Second
	}
	if o.SearchRoomLimit <= 0 {
		o.SearchRoomLimit = 20
	}
	if o.SearchGlobalLimit <= 0 {
		o.SearchGlobalLimit = 5
	}
	if o.Bus == nil {
		o.Bus = events.NewInMemoryPublisher()
	}
}

// roomContext owns everything tied to the active room. It is discarded on
// room switch; work tagged with a stale context is dropped.
type roomContext struct {
	gen    uint64
	room   models.Room
	store  *Store
	ctx    context.Context
	cancel context.CancelFunc
	poller *Poller
	logger zerolog.Logger

	// guarded by Session.mu
	sub        Subscription
	opening    bool
	retries    int
	retryTimer *time.Timer
	members    []models.User
	status     string
}

// Session is the sync engine for one authenticated user. It owns the room
// directory, the active room's store, its push stream and poll fallback,
// search and deep-link navigation.
type Session struct {
	api    API
	opts   Options
	bus    *events.InMemoryPublisher
	dir    *Directory
	nav    *Navigator
	search *Debouncer
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	gen         uint64
	active      *roomContext
	state       models.SyncState
	scope       models.SearchScope
	roomsLoaded bool
	closed      bool
}

// New creates a session. Nothing touches the network until LoadRooms,
// SelectRoom or Navigate is called.
func New(api API, opts Options) *Session {
	opts.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		api:    api,
		opts:   opts,
		bus:    opts.Bus,
		dir:    NewDirectory(api, opts.Self),
		logger: logging.Component("roomsync.session"),
		ctx:    ctx,
		cancel: cancel,
		state:  models.SyncState{Phase: models.PhaseNoRoom},
		scope:  models.ScopeRoom,
	}
	s.nav = newNavigator(s, opts.Navigation)
	s.search = NewDebouncer(opts.SearchDebounce, s.runSearch, s.searchSettled)
	return s
}

// Bus returns the event bus the session publishes on.
func (s *Session) Bus() *events.InMemoryPublisher {
	return s.bus
}

// Directory returns the room directory.
func (s *Session) Directory() *Directory {
	return s.dir
}

// Navigator returns the deep-link resolver.
func (s *Session) Navigator() *Navigator {
	return s.nav
}

// LoadRooms refreshes the directory. After the first successful load the
// default room is selected if none is active.
func (s *Session) LoadRooms(ctx context.Context) ([]models.Room, error) {
	rooms, err := s.dir.Load(ctx)
	if err != nil {
		return rooms, err
	}
	s.publish(&models.ChatEvent{Type: models.EventTypeRoomsLoaded})

	s.mu.Lock()
	first := !s.roomsLoaded
	s.roomsLoaded = true
	idle := s.active == nil
	s.mu.Unlock()

	if first && idle {
		if room, ok := s.dir.Default(s.opts.PreferDirect); ok {
			s.logger.Debug().Str("room_id", room.ID).Msg("selecting default room")
			s.activate(room)
		}
	}
	return rooms, nil
}

// SelectRoom activates a room by id or name. A room missing from the
// directory triggers one refresh. Any in-progress navigation is abandoned.
func (s *Session) SelectRoom(ctx context.Context, ref string) (models.Room, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Room{}, Classify(fmt.Errorf("select room: %w", models.ErrMissingRoomID))
	}
	room, ok := s.dir.Match(ref)
	if !ok {
		var err error
		room, err = s.dir.ResolveOrRefresh(ctx, ref)
		if err != nil {
			if matched, found := s.dir.Match(ref); found {
				room, err = matched, nil
			}
		}
		if err != nil {
			return models.Room{}, err
		}
	}
	s.nav.supersede()
	s.activate(room)
	return room, nil
}

// Navigate resolves a deep link. See Navigator.Navigate.
func (s *Session) Navigate(ctx context.Context, t Target) (Outcome, error) {
	return s.nav.Navigate(ctx, t)
}

// ActiveRoom returns the active room, if any.
func (s *Session) ActiveRoom() (models.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return models.Room{}, false
	}
	return s.active.room, true
}

// State returns a copy of the sync state.
func (s *Session) State() models.SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a snapshot of the active room's messages.
func (s *Session) Messages() []models.Message {
	if rc := s.current(); rc != nil {
		return rc.store.Snapshot()
	}
	return nil
}

// Version returns the active store's version, or zero with no room.
func (s *Session) Version() uint64 {
	if rc := s.current(); rc != nil {
		return rc.store.Version()
	}
	return 0
}

// Pinned returns the pinned messages of the active room.
func (s *Session) Pinned() []models.Message {
	if rc := s.current(); rc != nil {
		return rc.store.Pinned()
	}
	return nil
}

// Members returns the active room's members as last fetched.
func (s *Session) Members() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	return append([]models.User(nil), s.active.members...)
}

// CounterpartStatus returns the presence of the other participant of the
// active direct room, or "" for channels.
func (s *Session) CounterpartStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ""
	}
	return s.active.status
}

// TakeHighlight consumes the pending highlight request.
func (s *Session) TakeHighlight() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.state.HighlightTarget
	s.state.HighlightTarget = ""
	return id, id != ""
}

// LoadHistory reloads the active room's history. Failure moves the state to
// error but keeps the loaded messages.
func (s *Session) LoadHistory(ctx context.Context) error {
	rc := s.current()
	if rc == nil {
		return ErrNoActiveRoom
	}
	return s.loadHistory(ctx, rc)
}

// RetryStream reopens the push stream of the active room if it is down.
func (s *Session) RetryStream() error {
	s.mu.Lock()
	rc := s.active
	if rc == nil {
		s.mu.Unlock()
		return ErrNoActiveRoom
	}
	rc.retries = 0
	if rc.retryTimer != nil {
		rc.retryTimer.Stop()
		rc.retryTimer = nil
	}
	s.mu.Unlock()

	s.openStream(rc)
	return nil
}

// SetSearchScope switches between in-room and global search and reruns the
// current query.
func (s *Session) SetSearchScope(scope models.SearchScope) {
	s.mu.Lock()
	changed := s.scope != scope
	s.scope = scope
	s.mu.Unlock()
	if changed {
		s.search.SetQuery(s.search.Query())
	}
}

// SearchScope returns the current search scope.
func (s *Session) SearchScope() models.SearchScope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// Search sets the debounced search query.
func (s *Session) Search(query string) {
	s.search.SetQuery(query)
}

// SearchResults returns the last settled search.
func (s *Session) SearchResults() models.SearchResults {
	return s.search.Latest()
}

// Close tears down the active room and cancels pending work.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	old := s.active
	s.active = nil
	s.gen++
	s.mu.Unlock()

	s.nav.supersede()
	s.search.Cancel()
	if old != nil {
		s.release(old)
	}
	s.cancel()
}

func (s *Session) current() *roomContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Session) isCurrent(rc *roomContext) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active == rc
}

// activate makes room the active room. The previous room's stream, poll,
// history load and in-room search are torn down before the new room starts.
func (s *Session) activate(room models.Room) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	old := s.active
	s.gen++
	ctx, cancel := context.WithCancel(s.ctx)
	logger := logging.WithRoom(s.logger, room.ID)
	rc := &roomContext{
		gen:    s.gen,
		room:   room,
		store:  NewStore(room.ID),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
	rc.store.BeginLoad()
	rc.poller = NewPoller(s.opts.PollInterval, logger, func(ctx context.Context) { s.pollTick(ctx, rc) })
	s.active = rc
	s.state = models.SyncState{RoomID: room.ID, Phase: models.PhaseLoading}
	scope := s.scope
	s.mu.Unlock()

	if old != nil {
		s.release(old)
	}
	if scope == models.ScopeRoom {
		if q := s.search.Query(); q != "" {
			s.search.SetQuery(q)
		} else {
			s.search.Cancel()
		}
	}

	logger.Debug().Str("room", room.Label(s.opts.Self)).Msg("room selected")
	s.publish(&models.ChatEvent{Type: models.EventTypeRoomSelected, RoomID: room.ID})
	s.publishState()

	s.setPolling(rc, true)
	s.openStream(rc)
	go func() {
		_ = s.fetchHistory(rc.ctx, rc)
	}()
	go s.loadMembers(rc)
}

// release shuts down a room context that is no longer active.
func (s *Session) release(rc *roomContext) {
	s.mu.Lock()
	sub := rc.sub
	rc.sub = nil
	if rc.retryTimer != nil {
		rc.retryTimer.Stop()
		rc.retryTimer = nil
	}
	s.mu.Unlock()

	rc.cancel()
	_ = rc.poller.Stop()
	if sub != nil {
		_ = sub.Close()
	}
}

// loadHistory fetches the latest page into rc's store. Stream operations
// applied while the fetch is in flight survive the replace.
func (s *Session) loadHistory(ctx context.Context, rc *roomContext) error {
	rc.store.BeginLoad()
	return s.fetchHistory(ctx, rc)
}

// fetchHistory runs a load begun with Store.BeginLoad.
func (s *Session) fetchHistory(ctx context.Context, rc *roomContext) error {
	s.setPhase(rc, models.PhaseLoading, "")

	fetched, err := s.api.History(ctx, rc.room, s.opts.HistoryCount)
	if !s.isCurrent(rc) {
		rc.logger.Debug().Msg("discarding history for inactive room")
		return nil
	}
	if err != nil {
		rc.store.AbortLoad()
		err = Classify(fmt.Errorf("load history: %w", err))
		if errors.Is(err, context.Canceled) {
			return err
		}
		rc.logger.Warn().Err(err).Msg("history load failed")
		s.setPhase(rc, models.PhaseError, err.Error())
		return err
	}

	rc.store.Replace(PrepareHistory(rc.room.ID, fetched))
	s.setPhase(rc, models.PhaseReady, "")
	s.publishChanged(rc)
	return nil
}

func (s *Session) loadMembers(rc *roomContext) {
	members, err := s.api.Members(rc.ctx, rc.room)
	if err != nil {
		rc.logger.Debug().Err(err).Msg("member fetch failed")
		return
	}
	status := ""
	if rc.room.IsDirect() {
		other := rc.room.Counterpart(s.opts.Self)
		for _, u := range members {
			if u.Username == other {
				status = u.Status
				break
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != rc {
		return
	}
	rc.members = members
	rc.status = status
}

func (s *Session) pollTick(ctx context.Context, rc *roomContext) {
	fetched, err := s.api.History(ctx, rc.room, s.opts.HistoryCount)
	if err != nil {
		rc.logger.Debug().Err(err).Msg("poll tick failed")
		return
	}
	if !s.isCurrent(rc) {
		return
	}
	if rc.store.ReplaceIfChanged(PrepareHistory(rc.room.ID, fetched)) {
		rc.logger.Debug().Msg("poll detected changes")
		s.publishChanged(rc)
	}
	if s.State().Phase == models.PhaseError {
		s.setPhase(rc, models.PhaseReady, "")
	}
}

func (s *Session) setPhase(rc *roomContext, phase models.SyncPhase, errText string) {
	s.mu.Lock()
	if s.active != rc || (s.state.Phase == phase && s.state.Err == errText) {
		s.mu.Unlock()
		return
	}
	s.state.Phase = phase
	s.state.Err = errText
	s.mu.Unlock()
	s.publishState()
}

func (s *Session) setPolling(rc *roomContext, on bool) {
	s.mu.Lock()
	if s.active != rc {
		s.mu.Unlock()
		return
	}
	if on {
		if err := rc.poller.Start(rc.ctx); err != nil && !errors.Is(err, ErrPollerAlreadyRunning) {
			rc.logger.Debug().Err(err).Msg("poll start failed")
		}
	} else {
		_ = rc.poller.Stop()
	}
	changed := s.state.Polling != on
	s.state.Polling = on
	s.mu.Unlock()
	if changed {
		s.publishState()
	}
}

// requestHighlight records a one-shot highlight for a message of the active
// room.
func (s *Session) requestHighlight(roomID, messageID string) bool {
	s.mu.Lock()
	if s.active == nil || s.active.room.ID != roomID {
		s.mu.Unlock()
		return false
	}
	s.state.HighlightTarget = messageID
	s.mu.Unlock()

	s.publish(&models.ChatEvent{Type: models.EventTypeHighlightRequested, RoomID: roomID, MessageID: messageID})
	s.publishState()
	return true
}

func (s *Session) directory() *Directory {
	return s.dir
}

func (s *Session) createDirect(ctx context.Context, username string) (models.Room, error) {
	return s.api.CreateDirect(ctx, username)
}

func (s *Session) selectResolved(room models.Room) {
	s.activate(room)
}

func (s *Session) hasMessage(roomID, messageID string) bool {
	rc := s.current()
	return rc != nil && rc.room.ID == roomID && rc.store.Has(messageID)
}

func (s *Session) runSearch(ctx context.Context, query string) (models.SearchResults, error) {
	s.mu.Lock()
	scope := s.scope
	rc := s.active
	s.mu.Unlock()

	if scope == models.ScopeGlobal {
		res := s.api.SearchGlobal(ctx, query, s.opts.SearchGlobalLimit)
		res.Scope = models.ScopeGlobal
		return res, nil
	}
	res := models.SearchResults{Scope: models.ScopeRoom}
	if rc == nil {
		return res, ErrNoActiveRoom
	}
	res.RoomID = rc.room.ID
	msgs, err := s.api.SearchRoom(ctx, rc.room.ID, query, s.opts.SearchRoomLimit)
	if err != nil {
		return res, Classify(fmt.Errorf("search room: %w", err))
	}
	res.Messages = msgs
	return res, nil
}

func (s *Session) searchSettled(res models.SearchResults) {
	if res.Err != "" {
		s.logger.Debug().Str("query", res.Query).Str("error", res.Err).Msg("search failed")
	}
	s.publish(&models.ChatEvent{Type: models.EventTypeSearchCompleted, RoomID: res.RoomID, Search: &res})
}

func (s *Session) publishChanged(rc *roomContext) {
	if !s.isCurrent(rc) {
		return
	}
	s.publish(&models.ChatEvent{
		Type:    models.EventTypeMessagesChanged,
		RoomID:  rc.room.ID,
		Version: rc.store.Version(),
	})
}

func (s *Session) publishState() {
	state := s.State()
	s.publish(&models.ChatEvent{Type: models.EventTypeSyncStateChanged, RoomID: state.RoomID, State: &state})
}

// publish must not be called with s.mu held; handlers run synchronously and
// may call back into the session.
func (s *Session) publish(ev *models.ChatEvent) {
	s.bus.Publish(s.ctx, ev)
}
