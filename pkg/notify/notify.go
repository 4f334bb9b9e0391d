// Package notify posts run summaries to a webhook. Delivery is best
// effort: a notification failure never fails the pipeline.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultTimeout = 10 * time.Second

// Notifier delivers text messages to a single webhook URL.
type Notifier struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// New creates a Notifier. An empty URL yields a no-op notifier that
// logs instead of posting, so callers never branch on configuration.
func New(url string, logger zerolog.Logger) *Notifier {
	n := &Notifier{
		url:    url,
		client: &http.Client{Timeout: defaultTimeout},
		logger: logger.With().Str("component", "notify").Logger(),
	}
	if url == "" {
		n.logger.Warn().Msg("Webhook URL not configured, notifications disabled")
	}
	return n
}

// message is the webhook payload. The same text is carried under three
// keys because receivers differ in which one they render.
type message struct {
	Body    string `json:"body"`
	Text    string `json:"text"`
	Content string `json:"content"`
}

// Send posts text to the webhook. Failures are logged and swallowed.
func (n *Notifier) Send(ctx context.Context, text string) {
	if n.url == "" {
		n.logger.Debug().Str("text", text).Msg("Notification suppressed")
		return
	}

	payload, err := json.Marshal(message{Body: text, Text: text, Content: text})
	if err != nil {
		n.logger.Error().Err(err).Msg("Failed to encode notification")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		n.logger.Error().Err(err).Msg("Failed to build notification request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error().Err(err).Msg("Notification delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Error().
			Int("status", resp.StatusCode).
			Msg("Notification rejected by webhook")
		return
	}

	n.logger.Debug().Msg("Notification delivered")
}

// Sendf formats and sends.
func (n *Notifier) Sendf(ctx context.Context, format string, args ...any) {
	n.Send(ctx, fmt.Sprintf(format, args...))
}
