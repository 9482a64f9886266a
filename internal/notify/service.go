package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"drivesync/internal/config"
)

const userAgent = "drivesync/0.1.0"

// Service defines the notification surface exposed to the sync run.
type Service interface {
	NotifySyncStarted(ctx context.Context) error
	NotifyConflictsPending(ctx context.Context, count int) error
	NotifySyncCompleted(ctx context.Context, toPhotos, toDrive, failed int, duration time.Duration) error
	NotifySyncFailed(ctx context.Context, err error) error
	TestNotification(ctx context.Context) error
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

func (n *ntfyService) NotifySyncStarted(ctx context.Context) error {
	return n.send(ctx, payload{
		title:   "Sync started",
		message: "Reconciling Drive and Photos",
		tags:    []string{"arrows_counterclockwise"},
	})
}

func (n *ntfyService) NotifyConflictsPending(ctx context.Context, count int) error {
	noun := "conflicts"
	if count == 1 {
		noun = "conflict"
	}
	return n.send(ctx, payload{
		title:    "Decisions needed",
		message:  fmt.Sprintf("%d %s awaiting resolution", count, noun),
		tags:     []string{"question"},
		priority: "high",
	})
}

func (n *ntfyService) NotifySyncCompleted(ctx context.Context, toPhotos, toDrive, failed int, duration time.Duration) error {
	message := fmt.Sprintf("%d to Photos, %d to Drive in %s", toPhotos, toDrive, duration.Round(time.Second))
	tags := []string{"white_check_mark"}
	priority := ""
	if failed > 0 {
		message += fmt.Sprintf(" (%d failed)", failed)
		tags = []string{"warning"}
		priority = "high"
	}
	return n.send(ctx, payload{
		title:    "Sync complete",
		message:  message,
		tags:     tags,
		priority: priority,
	})
}

func (n *ntfyService) NotifySyncFailed(ctx context.Context, err error) error {
	return n.send(ctx, payload{
		title:    "Sync failed",
		message:  err.Error(),
		tags:     []string{"rotating_light"},
		priority: "urgent",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:   "drivesync test",
		message: "Notifications are working",
		tags:    []string{"tada"},
	})
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

func (noopService) NotifySyncStarted(context.Context) error              { return nil }
func (noopService) NotifyConflictsPending(context.Context, int) error    { return nil }
func (noopService) NotifySyncCompleted(context.Context, int, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifySyncFailed(context.Context, error) error { return nil }
func (noopService) TestNotification(context.Context) error        { return nil }
