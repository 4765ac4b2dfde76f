package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lockline/internal/config"
	"lockline/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
	calls    int
}

func captureServer(t *testing.T, c *captured) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		c.calls++
		c.title = r.Header.Get("Title")
		c.tags = r.Header.Get("Tags")
		c.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		c.body = string(body)
		_ = r.Body.Close()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyLockAcquired(context.Background()); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(ctx context.Context, svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "daemon started",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.NotifyDaemonStarted(ctx, "0.1.0")
			},
			expectTitle:   "Lockline - Daemon Started",
			expectMessage: "Lock daemon started (version 0.1.0)",
			expectTags:    "lockline,daemon,started",
		},
		{
			name: "daemon stopped",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.NotifyDaemonStopped(ctx, 90*time.Second)
			},
			expectTitle:   "Lockline - Daemon Stopped",
			expectMessage: "Lock daemon stopped after 1m30s",
			expectTags:    "lockline,daemon,stopped",
		},
		{
			name: "prelocked",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.NotifyPrelocked(ctx, 23)
			},
			expectTitle:   "Lockline - Prelocked",
			expectMessage: "Laser parked on the target transition, residual 23 MHz",
			expectTags:    "lockline,prelock,completed",
		},
		{
			name: "lock acquired",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.NotifyLockAcquired(ctx)
			},
			expectTitle:    "Lockline - Locked",
			expectMessage:  "Frequency lock engaged and on line",
			expectTags:     "lockline,lock,engaged",
			expectPriority: "high",
		},
		{
			name: "lock lost",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.NotifyLockLost(ctx)
			},
			expectTitle:    "Lockline - Lock Lost",
			expectMessage:  "Lockbox railed; attempting automatic relock",
			expectTags:     "lockline,lock,lost",
			expectPriority: "high",
		},
		{
			name: "relocked",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.NotifyLockRelocked(ctx)
			},
			expectTitle:   "Lockline - Relocked",
			expectMessage: "Frequency lock automatically re-engaged",
			expectTags:    "lockline,lock,relocked",
		},
		{
			name: "error",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.NotifyError(ctx, errors.New("scan device detached"), "acquisition")
			},
			expectTitle:    "Lockline - Error",
			expectMessage:  "Error with acquisition: scan device detached",
			expectTags:     "lockline,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got captured
			server := captureServer(t, &got)

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.send(context.Background(), svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if got.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got.title)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got.body)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got.tags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for disabled event: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.LockEvents = false
	cfg.Notifications.DaemonEvents = false
	cfg.Notifications.Errors = false

	ctx := context.Background()
	svc := notifications.NewService(&cfg)
	checks := []error{
		svc.NotifyDaemonStarted(ctx, "0.1.0"),
		svc.NotifyDaemonStopped(ctx, time.Minute),
		svc.NotifyLockAcquired(ctx),
		svc.NotifyLockLost(ctx),
		svc.NotifyLockRelocked(ctx),
		svc.NotifyLockReleased(ctx),
		svc.NotifyError(ctx, errors.New("boom"), ""),
	}
	for i, err := range checks {
		if err != nil {
			t.Fatalf("disabled event %d returned %v", i, err)
		}
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
