package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lockline/internal/config"
)

const userAgent = "Lockline-Go/0.1.0"

// Service defines the notification surface exposed to the daemon.
type Service interface {
	NotifyDaemonStarted(ctx context.Context, version string) error
	NotifyDaemonStopped(ctx context.Context, uptime time.Duration) error
	NotifyPrelocked(ctx context.Context, distanceMHz float64) error
	NotifyLockAcquired(ctx context.Context) error
	NotifyLockLost(ctx context.Context) error
	NotifyLockRelocked(ctx context.Context) error
	NotifyLockReleased(ctx context.Context) error
	NotifyError(ctx context.Context, err error, context string) error
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
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		lockEvents:   cfg.Notifications.LockEvents,
		daemonEvents: cfg.Notifications.DaemonEvents,
		errors:       cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	lockEvents   bool
	daemonEvents bool
	errors       bool
}

func (n *ntfyService) NotifyDaemonStarted(ctx context.Context, version string) error {
	if !n.daemonEvents {
		return nil
	}
	version = strings.TrimSpace(version)
	if version == "" {
		version = "unknown"
	}
	data := payload{
		title:   "Lockline - Daemon Started",
		message: fmt.Sprintf("Lock daemon started (version %s)", version),
		tags:    []string{"lockline", "daemon", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDaemonStopped(ctx context.Context, uptime time.Duration) error {
	if !n.daemonEvents {
		return nil
	}
	uptime = uptime.Round(time.Second)
	if uptime < 0 {
		uptime = 0
	}
	data := payload{
		title:   "Lockline - Daemon Stopped",
		message: fmt.Sprintf("Lock daemon stopped after %s", uptime),
		tags:    []string{"lockline", "daemon", "stopped"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPrelocked(ctx context.Context, distanceMHz float64) error {
	if !n.lockEvents {
		return nil
	}
	data := payload{
		title:   "Lockline - Prelocked",
		message: fmt.Sprintf("Laser parked on the target transition, residual %.0f MHz", distanceMHz),
		tags:    []string{"lockline", "prelock", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyLockAcquired(ctx context.Context) error {
	if !n.lockEvents {
		return nil
	}
	data := payload{
		title:    "Lockline - Locked",
		message:  "Frequency lock engaged and on line",
		tags:     []string{"lockline", "lock", "engaged"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyLockLost(ctx context.Context) error {
	if !n.lockEvents {
		return nil
	}
	data := payload{
		title:    "Lockline - Lock Lost",
		message:  "Lockbox railed; attempting automatic relock",
		tags:     []string{"lockline", "lock", "lost"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyLockRelocked(ctx context.Context) error {
	if !n.lockEvents {
		return nil
	}
	data := payload{
		title:   "Lockline - Relocked",
		message: "Frequency lock automatically re-engaged",
		tags:    []string{"lockline", "lock", "relocked"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyLockReleased(ctx context.Context) error {
	if !n.lockEvents {
		return nil
	}
	data := payload{
		title:   "Lockline - Released",
		message: "Frequency lock released on request",
		tags:    []string{"lockline", "lock", "released"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Lockline - Error",
		message:  builder.String(),
		tags:     []string{"lockline", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Lockline - Test",
		message:  "Notification system test",
		tags:     []string{"lockline", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
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

func (noopService) NotifyDaemonStarted(context.Context, string) error        { return nil }
func (noopService) NotifyDaemonStopped(context.Context, time.Duration) error { return nil }
func (noopService) NotifyPrelocked(context.Context, float64) error           { return nil }
func (noopService) NotifyLockAcquired(context.Context) error                 { return nil }
func (noopService) NotifyLockLost(context.Context) error                     { return nil }
func (noopService) NotifyLockRelocked(context.Context) error                 { return nil }
func (noopService) NotifyLockReleased(context.Context) error                 { return nil }
func (noopService) NotifyError(context.Context, error, string) error         { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }
