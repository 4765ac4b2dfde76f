package main

import (
	"os"
	"path/filepath"
	"testing"

	"lockline/internal/config"
	"lockline/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.ArchiveDB = filepath.Join(cfg.Paths.LogDir, "archive.db")
	cfg.Paths.Socket = filepath.Join(cfg.Paths.LogDir, "locklined.sock")
	return &cfg
}

func TestBuildDaemon(t *testing.T) {
	cfg := testConfig(t)
	d, err := buildDaemon(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("build daemon: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close daemon: %v", err)
	}
}

func TestBuildDaemonLoadsReference(t *testing.T) {
	cfg := testConfig(t)
	ref := filepath.Join(cfg.Paths.LogDir, "reference.txt")
	if err := os.WriteFile(ref, []byte("0 1.0\n1 0.4\n2 0.9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Paths.ReferenceFile = ref

	d, err := buildDaemon(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("build daemon with reference: %v", err)
	}
	_ = d.Close()
}

func TestBuildDaemonRejectsBadReference(t *testing.T) {
	cfg := testConfig(t)
	ref := filepath.Join(cfg.Paths.LogDir, "reference.txt")
	if err := os.WriteFile(ref, []byte("not a spectrum\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Paths.ReferenceFile = ref

	if _, err := buildDaemon(cfg, logging.NewNop()); err == nil {
		t.Fatal("expected error for malformed reference file")
	}
}
