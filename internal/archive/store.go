package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"lockline/internal/config"
	"lockline/internal/signals"
)

// Store manages scan and lock-event persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the archive database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.Paths.ArchiveDB
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// SaveScan archives one acquisition and returns its identifier.
func (s *Store) SaveScan(ctx context.Context, scan signals.Scan, relRange float64) (string, error) {
	if scan.Len() == 0 {
		return "", errors.New("refusing to archive an empty scan")
	}

	id := uuid.NewString()
	rampJSON, err := json.Marshal(scan.Ramp)
	if err != nil {
		return "", fmt.Errorf("marshal ramp column: %w", err)
	}
	errJSON, err := json.Marshal(scan.Err)
	if err != nil {
		return "", fmt.Errorf("marshal error column: %w", err)
	}
	var logJSON any
	if scan.Log != nil {
		encoded, err := json.Marshal(scan.Log)
		if err != nil {
			return "", fmt.Errorf("marshal log column: %w", err)
		}
		logJSON = string(encoded)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO scans (id, created_at, rel_range, samples, ramp_json, err_json, log_json)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		time.Now().UTC().Format(time.RFC3339Nano),
		relRange,
		scan.Len(),
		string(rampJSON),
		string(errJSON),
		logJSON,
	)
	if err != nil {
		return "", fmt.Errorf("insert scan: %w", err)
	}
	return id, nil
}

// GetScan fetches one archived scan by identifier. Returns nil when the
// identifier is unknown.
func (s *Store) GetScan(ctx context.Context, id string) (*ScanRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, created_at, rel_range, ramp_json, err_json, log_json FROM scans WHERE id = ?`,
		id,
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scan: %w", err)
	}
	return record, nil
}

// LatestScan returns the most recently archived scan, or nil when the
// archive is empty.
func (s *Store) LatestScan(ctx context.Context) (*ScanRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, created_at, rel_range, ramp_json, err_json, log_json
         FROM scans ORDER BY created_at DESC LIMIT 1`,
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest scan: %w", err)
	}
	return record, nil
}

// RecordEvent appends one row to the lock journal.
func (s *Store) RecordEvent(ctx context.Context, event Event, status, detail string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO lock_events (created_at, event, status, detail) VALUES (?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		string(event),
		status,
		nullableString(detail),
	)
	if err != nil {
		return fmt.Errorf("insert lock event: %w", err)
	}
	return nil
}

// Events returns the newest journal rows, most recent first.
func (s *Store) Events(ctx context.Context, limit int) ([]LockEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, created_at, event, status, detail FROM lock_events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query lock events: %w", err)
	}
	defer rows.Close()

	var events []LockEvent
	for rows.Next() {
		var (
			event      LockEvent
			createdRaw string
			detail     sql.NullString
			kind       string
		)
		if err := rows.Scan(&event.ID, &createdRaw, &kind, &event.Status, &detail); err != nil {
			return nil, fmt.Errorf("scan lock event: %w", err)
		}
		event.Event = Event(kind)
		event.Detail = detail.String
		if created, err := parseTimeString(createdRaw); err == nil {
			event.CreatedAt = created
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Prune deletes scans and events older than the retention window and
// returns the number of rows removed.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339Nano)

	var removed int64
	res, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune scans: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		removed += n
	}
	res, err = s.db.ExecContext(ctx, `DELETE FROM lock_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return removed, fmt.Errorf("prune lock events: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		removed += n
	}
	return removed, nil
}

// Health reports row counts and the oldest archived scan.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	health := HealthSummary{DBPath: s.path}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans`).Scan(&health.Scans); err != nil {
		return health, fmt.Errorf("count scans: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lock_events`).Scan(&health.LockEvents); err != nil {
		return health, fmt.Errorf("count lock events: %w", err)
	}

	var oldest sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MIN(created_at) FROM scans`).Scan(&oldest); err != nil {
		return health, fmt.Errorf("oldest scan: %w", err)
	}
	if oldest.Valid {
		if t, err := parseTimeString(oldest.String); err == nil {
			health.OldestScan = t
		}
	}
	return health, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*ScanRecord, error) {
	var (
		record     ScanRecord
		createdRaw string
		rampJSON   string
		errJSON    string
		logJSON    sql.NullString
	)
	if err := scanner.Scan(&record.ID, &createdRaw, &record.RelRange, &rampJSON, &errJSON, &logJSON); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		record.CreatedAt = created
	}
	if err := json.Unmarshal([]byte(rampJSON), &record.Scan.Ramp); err != nil {
		return nil, fmt.Errorf("decode ramp column: %w", err)
	}
	if err := json.Unmarshal([]byte(errJSON), &record.Scan.Err); err != nil {
		return nil, fmt.Errorf("decode error column: %w", err)
	}
	if logJSON.Valid {
		if err := json.Unmarshal([]byte(logJSON.String), &record.Scan.Log); err != nil {
			return nil, fmt.Errorf("decode log column: %w", err)
		}
	}
	return &record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
