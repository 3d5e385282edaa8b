package rocketchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tOgg1/roomsync/internal/logging"
	"github.com/tOgg1/roomsync/internal/models"
)

const (
	streamWriteWait   = 10 * time.Second
	streamPongWait    = 60 * time.Second
	streamPingPeriod  = (streamPongWait * 9) / 10
	streamMaxFrame    = 1 << 20
	streamEventBuffer = 64
)

// ErrStreamClosed is reported when the server closes the stream.
var ErrStreamClosed = errors.New("stream closed by server")

// streamFrame is one push frame: {"msg": "inserted", "fields": {"args": [message]}}.
type streamFrame struct {
	Msg    string `json:"msg"`
	Fields struct {
		EventName string            `json:"eventName"`
		Args      []json.RawMessage `json:"args"`
	} `json:"fields"`
}

// Stream is a live push connection scoped to one room.
// Lifecycle: OpenStream -> Events() drained until closed -> Close.
type Stream struct {
	roomID string
	conn   *websocket.Conn
	events chan models.StreamEvent
	client *Client
	logger zerolog.Logger

	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	closed bool
	mu     sync.Mutex
}

// StreamURL returns the websocket URL for a room's message stream.
func (c *Client) StreamURL(roomID string) (string, error) {
	u, err := url.Parse(c.baseURL + apiPrefix + "/streams.messages/" + url.PathEscape(roomID))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

// OpenStream dials the push stream for roomID. The first event delivered is
// always connection-opened. When the connection fails, a connection-error
// event is delivered and the events channel is closed; the stream is never
// re-dialed.
func (c *Client) OpenStream(ctx context.Context, roomID string) (*Stream, error) {
	endpoint, err := c.StreamURL(roomID)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	c.authHeaders(header)

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 15 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("stream handshake: %v", err)}
		}
		return nil, fmt.Errorf("open stream %s: %w", roomID, err)
	}

	s := &Stream{
		roomID: roomID,
		conn:   conn,
		events: make(chan models.StreamEvent, streamEventBuffer),
		client: c,
		logger: logging.WithRoom(logging.Component("rocketchat.stream"), roomID),
		done:   make(chan struct{}),
	}
	s.events <- models.StreamEvent{Kind: models.StreamConnectionOpen, RoomID: roomID}

	s.wg.Add(2)
	go s.readPump()
	go s.pingPump()

	s.logger.Debug().Msg("stream connected")
	return s, nil
}

// RoomID returns the room the stream is scoped to.
func (s *Stream) RoomID() string {
	return s.roomID
}

// Events returns the event channel. It is closed when the stream ends.
func (s *Stream) Events() <-chan models.StreamEvent {
	return s.events
}

// Close stops the stream. Safe to call multiple times from any goroutine.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = s.conn.Close()
		s.logger.Debug().Msg("stream closed")
	})
	s.wg.Wait()
	return err
}

func (s *Stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// emit delivers an event unless the stream is closing.
func (s *Stream) emit(ev models.StreamEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Stream) readPump() {
	defer s.wg.Done()
	defer close(s.events)

	s.conn.SetReadLimit(streamMaxFrame)
	_ = s.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if s.isClosed() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = ErrStreamClosed
			}
			s.logger.Debug().Err(err).Msg("stream read failed")
			s.emit(models.StreamEvent{Kind: models.StreamConnectionError, RoomID: s.roomID, Err: err})
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(streamPongWait))

		ev, ok, err := s.client.parseFrame(s.roomID, raw)
		if err != nil {
			s.logger.Debug().Err(err).Msg("dropping malformed stream frame")
			continue
		}
		if !ok {
			continue
		}
		s.emit(ev)
	}
}

func (s *Stream) pingPump() {
	defer s.wg.Done()
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

// parseFrame classifies one frame. ok is false for frames that carry no
// message event (pings, acknowledgements).
func (c *Client) parseFrame(roomID string, raw []byte) (models.StreamEvent, bool, error) {
	var frame streamFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return models.StreamEvent{}, false, err
	}
	kind := strings.ToLower(frame.Msg)
	if kind == "changed" {
		kind = strings.ToLower(frame.Fields.EventName)
	}
	switch kind {
	case "inserted", "updated", "removed":
	default:
		return models.StreamEvent{}, false, nil
	}
	if len(frame.Fields.Args) == 0 {
		return models.StreamEvent{}, false, fmt.Errorf("%s frame has no message", kind)
	}
	arg := frame.Fields.Args[0]

	switch kind {
	case "inserted":
		var w wireMessage
		if err := json.Unmarshal(arg, &w); err != nil {
			return models.StreamEvent{}, false, err
		}
		if w.RoomID == "" {
			w.RoomID = roomID
		}
		if w.ID == "" {
			return models.StreamEvent{}, false, fmt.Errorf("inserted frame has no message id")
		}
		msg := c.convertMessage(w)
		return models.StreamEvent{Kind: models.StreamInserted, RoomID: w.RoomID, Message: &msg}, true, nil
	case "updated":
		patch, w, err := c.patchFromWire(arg)
		if err != nil {
			return models.StreamEvent{}, false, err
		}
		if patch.ID == "" {
			return models.StreamEvent{}, false, fmt.Errorf("updated frame has no message id")
		}
		return models.StreamEvent{Kind: models.StreamUpdated, RoomID: firstNonEmpty(w.RoomID, roomID), Patch: &patch}, true, nil
	default:
		var w struct {
			ID     string `json:"_id"`
			RoomID string `json:"rid"`
		}
		if err := json.Unmarshal(arg, &w); err != nil {
			return models.StreamEvent{}, false, err
		}
		if w.ID == "" {
			return models.StreamEvent{}, false, fmt.Errorf("removed frame has no message id")
		}
		return models.StreamEvent{Kind: models.StreamRemoved, RoomID: firstNonEmpty(w.RoomID, roomID), MessageID: w.ID}, true, nil
	}
}
