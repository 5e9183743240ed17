package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// wsKeepaliveInterval is how often the server pings an initialized
// connection. Variable so tests can shorten it.
var wsKeepaliveInterval = 20 * time.Second

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribePayload struct {
	Topic string `json:"topic"`
}

// EventsWSHandler handles /v1/events/ws. The protocol is a trimmed
// graphql-transport-ws: connection_init/connection_ack, then subscribe
// messages carrying a topic; events arrive as "next" frames keyed by the
// subscription id.
func (s *Server) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	type sub struct {
		topic string
		ch    chan Event
	}
	subs := map[string]sub{}
	defer func() {
		for _, sb := range subs {
			s.Broker.Unsubscribe(sb.topic, sb.ch)
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	var keepalive sync.Once
	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	startSub := func(id, topic string) {
		ch := s.Broker.Subscribe(topic)
		subs[id] = sub{topic: topic, ch: ch}
		go func() {
			for evt := range ch {
				payload, _ := json.Marshal(evt)
				if err := write(wsMessage{Type: "next", ID: id, Payload: payload}); err != nil {
					return
				}
			}
			_ = write(wsMessage{Type: "complete", ID: id})
		}()
	}

	// A ?topic= query subscribes immediately, without the init handshake.
	if topic := r.URL.Query().Get("topic"); topic != "" {
		startSub("0", topic)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
			// Repeated inits must not stack keepalive goroutines.
			keepalive.Do(func() {
				go func() {
					ticker := time.NewTicker(wsKeepaliveInterval)
					defer ticker.Stop()
					for range ticker.C {
						if err := write(wsMessage{Type: "ping"}); err != nil {
							return
						}
					}
				}()
			})
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			var pl subscribePayload
			_ = json.Unmarshal(msg.Payload, &pl)
			if pl.Topic == "" || msg.ID == "" {
				_ = write(wsMessage{Type: "error", ID: msg.ID})
				continue
			}
			if _, dup := subs[msg.ID]; dup {
				continue
			}
			startSub(msg.ID, pl.Topic)
		case "complete":
			if sb, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(sb.topic, sb.ch)
				delete(subs, msg.ID)
			}
		}
	}
}

// publish fans an event out to live subscribers; nil brokers are tolerated
// in tests.
func (s *Server) publish(topic, eventType string, data map[string]any) {
	if s.Broker == nil {
		return
	}
	s.Broker.Publish(topic, Event{Topic: topic, Type: eventType, Data: data})
}
