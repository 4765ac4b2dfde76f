package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"lockline/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckDiskSpace("test", dir, 1); !result.Passed {
		t.Fatalf("expected pass for 1 byte requirement, got: %s", result.Detail)
	}
	if result := CheckDiskSpace("test", dir, 1<<62); result.Passed {
		t.Fatal("expected failure for absurd requirement")
	}
}

func TestCheckReferenceSpectrum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.txt")
	content := "# position amplitude\n0.0 1.0\n1.0 0.5\n2.0 0.9\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	result := CheckReferenceSpectrum(path)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}

	if result := CheckReferenceSpectrum(filepath.Join(t.TempDir(), "nope.txt")); result.Passed {
		t.Fatal("expected failure for missing file")
	}
}

func TestCheckNtfy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if result := CheckNtfy(context.Background(), srv.URL); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckNtfy(context.Background(), ""); result.Passed {
		t.Fatal("expected failure for empty topic")
	}
}

func TestRunAllSkipsUnconfigured(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.ReferenceFile = ""
	cfg.Notifications.NtfyTopic = ""

	results := RunAll(context.Background(), &cfg)
	if len(results) != 2 {
		t.Fatalf("expected directory and disk checks only, got %d results", len(results))
	}
	if !AllPassed(results) {
		for _, r := range results {
			t.Logf("%s: passed=%v detail=%s", r.Name, r.Passed, r.Detail)
		}
		t.Fatal("expected all checks to pass")
	}
}
