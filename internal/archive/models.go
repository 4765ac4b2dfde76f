package archive

import (
	"time"

	"lockline/internal/signals"
)

// Event classifies a lock journal entry.
type Event string

const (
	EventDaemonStarted Event = "daemon_started"
	EventDaemonStopped Event = "daemon_stopped"
	EventPrelocked     Event = "prelocked"
	EventEngaged       Event = "lock_engaged"
	EventLost          Event = "lock_lost"
	EventRelocked      Event = "lock_relocked"
	EventReleased      Event = "lock_released"
	EventError         Event = "error"
)

// ScanRecord is one archived acquisition.
type ScanRecord struct {
	ID        string
	CreatedAt time.Time
	RelRange  float64
	Scan      signals.Scan
}

// LockEvent is one journal row.
type LockEvent struct {
	ID        int64
	CreatedAt time.Time
	Event     Event
	Status    string
	Detail    string
}

// HealthSummary aggregates archive state for diagnostic output.
type HealthSummary struct {
	DBPath     string
	Scans      int
	LockEvents int
	OldestScan time.Time
}
