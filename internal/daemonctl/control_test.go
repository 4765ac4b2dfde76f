package daemonctl

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestStopAndTerminateWithoutDaemon(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "locklined.sock")
	_, err := StopAndTerminate(socket, time.Second)
	if !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestWaitForClientTimesOut(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "locklined.sock")
	start := time.Now()
	if _, err := WaitForClient(socket, 250*time.Millisecond); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("wait ran far past its timeout")
	}
}

func TestLaunchRequiresExecutable(t *testing.T) {
	if err := Launch("", LaunchOptions{}); err == nil {
		t.Fatal("expected error for empty executable path")
	}
}
