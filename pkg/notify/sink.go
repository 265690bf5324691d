package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/0xmhha/hikelog/pkg/logger"
	"github.com/0xmhha/hikelog/pkg/reminder"
)

// Sink delivers a fired notification.
type Sink interface {
	Deliver(ctx context.Context, n reminder.Notification) error
}

// LogSink writes fired notifications as structured log lines.
type LogSink struct {
	logger logger.Logger
}

// NewLogSink creates a sink that logs at info level.
func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{logger: log.Component("reminder")}
}

// Deliver implements Sink.Deliver.
func (s *LogSink) Deliver(ctx context.Context, n reminder.Notification) error {
	s.logger.Info(n.Title, "id", n.ID, "body", n.Body, "fire_at", n.FireAt)
	return nil
}

// WebhookPayload is the JSON body posted for a fired notification.
type WebhookPayload struct {
	Event     string `json:"event"`
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message,omitempty"`
	FireAt    string `json:"fire_at"`
	Timestamp string `json:"timestamp"`
}

// WebhookSink posts fired notifications to an HTTP endpoint.
type WebhookSink struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewWebhookSink creates a sink posting to url with a 10 second timeout.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

// Deliver implements Sink.Deliver.
func (s *WebhookSink) Deliver(ctx context.Context, n reminder.Notification) error {
	body, err := json.Marshal(&WebhookPayload{
		Event:     "reminder",
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Body,
		FireAt:    n.FireAt.UTC().Format(time.RFC3339),
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %d", ErrWebhookStatus, resp.StatusCode)
	}
	return nil
}
