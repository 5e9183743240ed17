// Package main runs a demo WebSocket client for journey and ingest events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func post(base, path string, body []byte) map[string]any {
	req, _ := http.NewRequest(http.MethodPost, base+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode >= 300 {
		log.Fatalf("POST %s: %d %v", path, resp.StatusCode, out)
	}
	return out
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Connect first so the create below is observed live.
	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("localhost:%s", port), Path: "/v1/events/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	var ack wsMessage
	if err := conn.ReadJSON(&ack); err != nil || ack.Type != "connection_ack" {
		log.Fatalf("no ack: %v %v", ack, err)
	}
	sub, _ := json.Marshal(map[string]string{"topic": "journeys"})
	if err := conn.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: sub}); err != nil {
		log.Fatal(err)
	}

	// Seed a route, a driver and one journey to trigger a journey.created event.
	route := post(base, "/v1/routes", []byte(`{"code":"M17","city":"Worcester"}`))
	driver := post(base, "/v1/drivers", []byte(`{"code":"D-100","name":"Avery Holt"}`))
	journey, _ := json.Marshal(map[string]any{
		"driverId":    driver["id"],
		"routeId":     route["id"],
		"journeyDate": time.Now().UTC().Format("2006-01-02"),
		"startSeq":    1,
		"endSeq":      25,
	})
	post(base, "/v1/journeys", journey)

	deadline := time.Now().Add(10 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			log.Fatal(err)
		}
		switch msg.Type {
		case "ping":
			_ = conn.WriteJSON(wsMessage{Type: "pong"})
		case "next":
			fmt.Printf("event: %s\n", string(msg.Payload))
			return
		}
	}
	log.Fatal("no event within deadline")
}
