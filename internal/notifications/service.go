package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipstream/internal/config"
)

const userAgent = "Clipstream/0.1.0"

// Event identifies a notable pipeline outcome.
type Event string

const (
	EventProcessingCompleted Event = "processing_completed"
	EventDuplicateDetected   Event = "duplicate_detected"
	EventProcessingFailed    Event = "processing_failed"
	EventTest                Event = "test"
)

// Payload carries event-specific fields referenced by message templates.
type Payload map[string]string

// Service is the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		cfg:      cfg.Notifications,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	cfg      config.Notifications
}

// Publish formats and sends the event. Events disabled in configuration are
// dropped without error.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	data, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventProcessingCompleted:
		return n.cfg.Completion
	case EventDuplicateDetected:
		return n.cfg.Duplicate
	case EventProcessingFailed:
		return n.cfg.Errors
	default:
		return true
	}
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	title := strings.TrimSpace(payload["title"])
	if title == "" {
		title = strings.TrimSpace(payload["video_id"])
	}
	switch event {
	case EventProcessingCompleted:
		return message{
			title: "Clipstream - Complete",
			body:  fmt.Sprintf("Ready to watch: %s", title),
			tags:  []string{"clipstream", "pipeline", "completed"},
		}, true
	case EventDuplicateDetected:
		body := fmt.Sprintf("Duplicate upload: %s", title)
		if original := strings.TrimSpace(payload["original_id"]); original != "" {
			body = fmt.Sprintf("%s (original %s)", body, original)
		}
		return message{
			title: "Clipstream - Duplicate",
			body:  body,
			tags:  []string{"clipstream", "duplicate"},
		}, true
	case EventProcessingFailed:
		return message{
			title:    "Clipstream - Failed",
			body:     fmt.Sprintf("Processing failed: %s\n%s", title, payload["error"]),
			tags:     []string{"clipstream", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Clipstream - Test",
			body:     "Notification system test",
			tags:     []string{"clipstream", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
