package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"capturesync/internal/config"
)

const userAgent = "capturesync/0.1.0"

// Event identifies a push notification template.
type Event string

const (
	EventUploadCompleted   Event = "upload_completed"
	EventUploadFailed      Event = "upload_failed"
	EventAuthRequired      Event = "auth_required"
	EventIntegrityRepaired Event = "integrity_repaired"
	EventTest              Event = "test"
)

// Payload carries template values for an Event.
type Payload map[string]any

// Service publishes push notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when a topic is
// configured and a no-op otherwise.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
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
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	msg, ok := format(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, data Payload) (payload, bool) {
	record := recordLabel(data)
	switch event {
	case EventUploadCompleted:
		message := fmt.Sprintf("Uploaded %s", record)
		if files := intValue(data, "files"); files > 0 {
			message = fmt.Sprintf("%s (%d files)", message, files)
		}
		return payload{
			title:   "capturesync - Uploaded",
			message: message,
			tags:    []string{"capturesync", "upload", "completed"},
		}, true
	case EventUploadFailed:
		message := fmt.Sprintf("Upload failed for %s", record)
		if errText := stringValue(data, "error"); errText != "" {
			message = fmt.Sprintf("%s: %s", message, errText)
		}
		if attempts := intValue(data, "attempts"); attempts > 0 {
			message = fmt.Sprintf("%s\nGave up after %d attempts", message, attempts)
		}
		return payload{
			title:    "capturesync - Upload Failed",
			message:  message,
			tags:     []string{"capturesync", "upload", "error"},
			priority: "high",
		}, true
	case EventAuthRequired:
		return payload{
			title:    "capturesync - Sign-in Required",
			message:  fmt.Sprintf("Remote credentials expired while uploading %s.\nRun: capturesync auth login", record),
			tags:     []string{"capturesync", "auth", "warning"},
			priority: "high",
		}, true
	case EventIntegrityRepaired:
		return payload{
			title:   "capturesync - Requeued",
			message: fmt.Sprintf("Integrity check requeued %s: %s", record, stringValue(data, "reason")),
			tags:    []string{"capturesync", "integrity"},
		}, true
	case EventTest:
		return payload{
			title:    "capturesync - Test",
			message:  "Notification system test",
			tags:     []string{"capturesync", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func recordLabel(data Payload) string {
	id := intValue(data, "recordId")
	title := stringValue(data, "title")
	switch {
	case title != "" && id > 0:
		return fmt.Sprintf("%q (record #%d)", title, id)
	case title != "":
		return fmt.Sprintf("%q", title)
	case id > 0:
		return fmt.Sprintf("record #%d", id)
	default:
		return "record"
	}
}

func stringValue(data Payload, key string) string {
	if v, ok := data[key]; ok && v != nil {
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return ""
}

func intValue(data Payload, key string) int64 {
	switch v := data[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
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
	if data.priority != "" && data.priority != "default" {
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
