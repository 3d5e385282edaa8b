package rocketchat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/roomsync/internal/models"
)

// streamServer upgrades /api/v1/streams.messages/{rid} and hands the
// connection to serve.
func streamServer(t *testing.T, serve func(conn *websocket.Conn)) *Client {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/streams.messages/r1" || r.Header.Get("X-Auth-Token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{BaseURL: srv.URL, UserID: "u1", Token: "tok"})
	require.NoError(t, err)
	return client
}

func nextEvent(t *testing.T, ch <-chan models.StreamEvent) models.StreamEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream event")
		return models.StreamEvent{}
	}
}

func TestStreamURL(t *testing.T) {
	client, err := NewClient(Options{BaseURL: "https://chat.example"})
	require.NoError(t, err)
	got, err := client.StreamURL("r1")
	require.NoError(t, err)
	require.Equal(t, "wss://chat.example/api/v1/streams.messages/r1", got)
}

func TestStreamClassifiesEvents(t *testing.T) {
	client := streamServer(t, func(conn *websocket.Conn) {
		frames := []string{
			`{"msg":"ping"}`,
			`not json`,
			`{"msg":"inserted","fields":{"args":[{"_id":"m1","rid":"r1","msg":"hello","ts":{"$date":1709287200000},"u":{"_id":"u2","username":"bob"}}]}}`,
			`{"msg":"updated","fields":{"args":[{"_id":"m1","msg":"hello!","editedAt":{"$date":1709287260000}}]}}`,
			`{"msg":"updated","fields":{"args":[{"_id":"m1","pinned":true}]}}`,
			`{"msg":"removed","fields":{"args":[{"_id":"m1"}]}}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		time.Sleep(50 * time.Millisecond)
	})

	stream, err := client.OpenStream(context.Background(), "r1")
	require.NoError(t, err)
	defer stream.Close()
	events := stream.Events()

	ev := nextEvent(t, events)
	require.Equal(t, models.StreamConnectionOpen, ev.Kind)

	ev = nextEvent(t, events)
	require.Equal(t, models.StreamInserted, ev.Kind)
	require.Equal(t, "hello", ev.Message.Body)
	require.Equal(t, time.UnixMilli(1709287200000).UTC(), ev.Message.CreatedAt)

	ev = nextEvent(t, events)
	require.Equal(t, models.StreamUpdated, ev.Kind)
	require.Equal(t, "r1", ev.RoomID)
	require.NotNil(t, ev.Patch.Body)
	require.Equal(t, "hello!", *ev.Patch.Body)
	require.NotNil(t, ev.Patch.EditedAt)
	require.Nil(t, ev.Patch.Pinned, "absent fields stay nil")

	ev = nextEvent(t, events)
	require.Equal(t, models.StreamUpdated, ev.Kind)
	require.Nil(t, ev.Patch.Body)
	require.NotNil(t, ev.Patch.Pinned)
	require.True(t, *ev.Patch.Pinned)

	ev = nextEvent(t, events)
	require.Equal(t, models.StreamRemoved, ev.Kind)
	require.Equal(t, "m1", ev.MessageID)

	ev = nextEvent(t, events)
	require.Equal(t, models.StreamConnectionError, ev.Kind)
	require.ErrorIs(t, ev.Err, ErrStreamClosed)

	_, ok := <-events
	require.False(t, ok, "channel closes after connection error")
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	client := streamServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	stream, err := client.OpenStream(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, models.StreamConnectionOpen, nextEvent(t, stream.Events()).Kind)

	_ = stream.Close()
	_ = stream.Close()

	for ev := range stream.Events() {
		require.NotEqual(t, models.StreamConnectionError, ev.Kind, "local close is not a connection error")
	}
}

func TestOpenStreamHandshakeFailure(t *testing.T) {
	client := streamServer(t, func(conn *websocket.Conn) {})
	client = client.WithCredentials("u1", "bad")

	_, err := client.OpenStream(context.Background(), "r1")
	apiErr, ok := IsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
