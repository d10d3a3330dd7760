// Package notify delivers structured engine notifications to account
// holders and dashboards. Delivery is best-effort: a failed send is logged
// and never rolls back the run that produced the notification.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/model"
)

// Sink accepts engine notifications.
type Sink interface {
	Send(ctx context.Context, n model.Notification) error
}

// --- Log sink ---

// LogSink writes notifications to the structured log. Always available;
// used standalone in development and alongside real sinks in production.
type LogSink struct{}

func (LogSink) Send(_ context.Context, n model.Notification) error {
	slog.Info("notification",
		"type", n.Type,
		"priority", n.Priority,
		"title", n.Title,
		"message", n.Message,
	)
	return nil
}

// --- Webhook sink ---

// WebhookSink POSTs notifications as JSON to the platform's notification
// service, which owns user-facing delivery (email, push, in-app).
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a webhook sink targeting the given URL.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *WebhookSink) Send(ctx context.Context, n model.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned %d", resp.StatusCode)
	}
	return nil
}

// --- Fan-out ---

// Fanout sends each notification to every sink, logging individual
// failures instead of propagating them.
type Fanout struct {
	sinks []Sink
}

// NewFanout creates a fan-out over the given sinks.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Send(ctx context.Context, n model.Notification) error {
	for _, s := range f.sinks {
		if err := s.Send(ctx, n); err != nil {
			slog.Warn("notification sink failed", "err", err, "type", n.Type)
		}
	}
	return nil
}
