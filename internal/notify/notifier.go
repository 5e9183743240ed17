// Package notify posts signed ingest-completion events to a configured URL.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Notifier delivers batch-completion events. A nil Notifier (no NOTIFY_URL
// configured) is valid and drops every event.
type Notifier struct {
	URL    string
	Secret string
	http   *http.Client
}

func New(url, secret string) *Notifier {
	if url == "" {
		return nil
	}
	return &Notifier{URL: url, Secret: secret, http: &http.Client{Timeout: 10 * time.Second}}
}

// Emit posts one event. Delivery is best effort: ingestion never fails
// because the receiver is down.
func (n *Notifier) Emit(ctx context.Context, eventType string, data any) {
	if n == nil {
		return
	}
	payload := map[string]any{
		"id":   fmt.Sprintf("evt_%d", time.Now().UnixNano()),
		"type": eventType,
		"ts":   time.Now().UTC().Format(time.RFC3339),
		"data": data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, err := n.post(ctx, body)
		if err == nil && status < 300 {
			return
		}
		log.Warn().Err(err).Int("status", status).Int("attempt", attempt).
			Str("event", eventType).Msg("notify delivery failed")
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * retryDelay):
			}
		}
	}
}

const (
	maxAttempts = 3
	retryDelay  = 500 * time.Millisecond
)

func (n *Notifier) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.Secret != "" {
		req.Header.Set("X-Signature", SignHMAC(n.Secret, body))
	}
	resp, err := n.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode, nil
}
