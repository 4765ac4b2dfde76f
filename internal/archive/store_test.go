package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"lockline/internal/config"
	"lockline/internal/signals"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.ArchiveDB = filepath.Join(cfg.Paths.LogDir, "archive.db")

	store, err := Open(&cfg)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testScan(n int) signals.Scan {
	scan := signals.Scan{
		Ramp: make([]float64, n),
		Err:  make([]float64, n),
		Log:  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		scan.Ramp[i] = float64(i)
		scan.Err[i] = float64(i) * 0.5
		scan.Log[i] = 1 - float64(i)*0.001
	}
	return scan
}

func TestSaveAndGetScan(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	id, err := store.SaveScan(ctx, testScan(50), 0.75)
	if err != nil {
		t.Fatalf("save scan: %v", err)
	}
	if id == "" {
		t.Fatal("empty scan id")
	}

	record, err := store.GetScan(ctx, id)
	if err != nil {
		t.Fatalf("get scan: %v", err)
	}
	if record == nil {
		t.Fatal("scan not found")
	}
	if record.RelRange != 0.75 {
		t.Fatalf("rel range %v, want 0.75", record.RelRange)
	}
	if record.Scan.Len() != 50 || len(record.Scan.Log) != 50 {
		t.Fatalf("columns came back with %d/%d samples", record.Scan.Len(), len(record.Scan.Log))
	}
	if record.Scan.Ramp[49] != 49 {
		t.Fatalf("ramp data corrupted: %v", record.Scan.Ramp[49])
	}
	if record.CreatedAt.IsZero() {
		t.Fatal("created_at not recorded")
	}
}

func TestGetScanUnknownIDIsNil(t *testing.T) {
	store := testStore(t)
	record, err := store.GetScan(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("get scan: %v", err)
	}
	if record != nil {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestSaveScanWithoutLogColumn(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	scan := testScan(20)
	scan.Log = nil
	id, err := store.SaveScan(ctx, scan, 1)
	if err != nil {
		t.Fatalf("save scan: %v", err)
	}
	record, err := store.GetScan(ctx, id)
	if err != nil {
		t.Fatalf("get scan: %v", err)
	}
	if record.Scan.Log != nil {
		t.Fatalf("log column should stay nil, got %d samples", len(record.Scan.Log))
	}
}

func TestSaveScanRejectsEmpty(t *testing.T) {
	store := testStore(t)
	if _, err := store.SaveScan(context.Background(), signals.Scan{}, 1); err == nil {
		t.Fatal("empty scan accepted")
	}
}

func TestLatestScan(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	if record, err := store.LatestScan(ctx); err != nil || record != nil {
		t.Fatalf("empty archive: got %+v, %v", record, err)
	}

	if _, err := store.SaveScan(ctx, testScan(10), 1); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	newest, err := store.SaveScan(ctx, testScan(10), 0.5)
	if err != nil {
		t.Fatal(err)
	}

	record, err := store.LatestScan(ctx)
	if err != nil {
		t.Fatalf("latest scan: %v", err)
	}
	if record == nil || record.ID != newest {
		t.Fatalf("latest scan is %+v, want id %s", record, newest)
	}
}

func TestEventsJournal(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	sequence := []Event{EventDaemonStarted, EventEngaged, EventLost, EventRelocked}
	for _, event := range sequence {
		if err := store.RecordEvent(ctx, event, "on_line", ""); err != nil {
			t.Fatalf("record %s: %v", event, err)
		}
	}

	events, err := store.Events(ctx, 3)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	// Newest first.
	if events[0].Event != EventRelocked || events[2].Event != EventEngaged {
		t.Fatalf("unexpected order: %s ... %s", events[0].Event, events[2].Event)
	}
	if events[0].CreatedAt.IsZero() {
		t.Fatal("event timestamp missing")
	}
}

func TestPruneRemovesOldRows(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	oldID, err := store.SaveScan(ctx, testScan(10), 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.RecordEvent(ctx, EventEngaged, "on_line", ""); err != nil {
		t.Fatal(err)
	}
	keepID, err := store.SaveScan(ctx, testScan(10), 1)
	if err != nil {
		t.Fatal(err)
	}

	// Age the first scan and the event past the retention window.
	aged := time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339Nano)
	if _, err := store.db.ExecContext(ctx, `UPDATE scans SET created_at = ? WHERE id = ?`, aged, oldID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.ExecContext(ctx, `UPDATE lock_events SET created_at = ?`, aged); err != nil {
		t.Fatal(err)
	}

	removed, err := store.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("pruned %d rows, want 2", removed)
	}

	if record, _ := store.GetScan(ctx, oldID); record != nil {
		t.Fatal("aged scan survived pruning")
	}
	if record, _ := store.GetScan(ctx, keepID); record == nil {
		t.Fatal("fresh scan was pruned")
	}
}

func TestPruneZeroRetentionIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	if _, err := store.SaveScan(ctx, testScan(10), 1); err != nil {
		t.Fatal(err)
	}
	removed, err := store.Prune(ctx, 0)
	if err != nil || removed != 0 {
		t.Fatalf("got %d, %v; want no-op", removed, err)
	}
}

func TestHealth(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	if _, err := store.SaveScan(ctx, testScan(10), 1); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordEvent(ctx, EventEngaged, "on_line", ""); err != nil {
		t.Fatal(err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Scans != 1 || health.LockEvents != 1 {
		t.Fatalf("counts %d/%d, want 1/1", health.Scans, health.LockEvents)
	}
	if health.OldestScan.IsZero() {
		t.Fatal("oldest scan timestamp missing")
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.ArchiveDB = filepath.Join(cfg.Paths.LogDir, "archive.db")

	store, err := Open(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	id, err := store.SaveScan(ctx, testScan(10), 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(&cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	record, err := reopened.GetScan(ctx, id)
	if err != nil || record == nil {
		t.Fatalf("scan lost across reopen: %+v, %v", record, err)
	}
}
