package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, s *Server, query string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(s.EventsWSHandler))
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestEventsWSSubscribeReceivesEvent(t *testing.T) {
	s := newTestServer()
	conn := dialWS(t, s, "")

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "connection_init"}))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "connection_ack", msg.Type)

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: []byte(`{"topic":"journeys"}`)}))
	time.Sleep(50 * time.Millisecond) // let the subscription register
	s.publish("journeys", "journey.created", map[string]any{"journeyId": "j1"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "next", msg.Type)
	require.Equal(t, "1", msg.ID)
	require.Contains(t, string(msg.Payload), "journey.created")
}

func TestEventsWSTopicQueryAutoSubscribes(t *testing.T) {
	s := newTestServer()
	conn := dialWS(t, s, "?topic=ingest")

	time.Sleep(50 * time.Millisecond)
	s.publish("ingest", "ingest.completed", map[string]any{"kind": "daily"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "next", msg.Type)
	require.Equal(t, "0", msg.ID)
}

func TestEventsWSRepeatedInitSingleKeepalive(t *testing.T) {
	prev := wsKeepaliveInterval
	wsKeepaliveInterval = 50 * time.Millisecond
	defer func() { wsKeepaliveInterval = prev }()

	s := newTestServer()
	conn := dialWS(t, s, "")

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "connection_init"}))
	require.NoError(t, conn.WriteJSON(wsMessage{Type: "connection_init"}))

	// One keepalive loop serves the connection no matter how many inits
	// arrive, so over ~3 intervals we see ~3 pings, not double that.
	deadline := time.Now().Add(180 * time.Millisecond)
	pings := 0
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Type == "ping" {
			pings++
		}
	}
	require.GreaterOrEqual(t, pings, 1)
	require.LessOrEqual(t, pings, 4)
}
