package ipc

import "time"

// StartRequest starts the daemon's background services.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the daemon's background services.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and lock status information.
type StatusResponse struct {
	Running       bool    `json:"running"`
	PID           int     `json:"pid"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Lock          string  `json:"lock"`
	LockboxLevel  float64 `json:"lockbox_level"`
	Maintaining   bool    `json:"maintaining"`
	DAQOnline     bool    `json:"daq_online"`
	ArchiveDB     string  `json:"archive_db"`
	LockPath      string  `json:"lock_path"`
}

// ScanRequest triggers one signal acquisition. RelRange 0 reuses the
// previous scan range.
type ScanRequest struct {
	RelRange float64 `json:"rel_range"`
}

// DopplerLine is the wire form of a detected absorption dip.
type DopplerLine struct {
	Depth       float64 `json:"depth"`
	DistanceMHz float64 `json:"distance_mhz"`
}

// ScanResponse summarizes an acquisition.
type ScanResponse struct {
	Samples  int          `json:"samples"`
	RelRange float64      `json:"rel_range"`
	Line     *DopplerLine `json:"line,omitempty"`
}

// LockEngageRequest engages the frequency lock.
type LockEngageRequest struct{}

// LockEngageResponse reports whether lock maintenance was started.
type LockEngageResponse struct {
	Engaged bool   `json:"engaged"`
	Message string `json:"message"`
}

// LockReleaseRequest releases the frequency lock.
type LockReleaseRequest struct{}

// LockReleaseResponse reports release result.
type LockReleaseResponse struct {
	Released bool `json:"released"`
}

// LocateRequest matches the current signal against the reference spectrum.
// Near, when non-nil, is the expected position in reference units.
type LocateRequest struct {
	Near *float64 `json:"near,omitempty"`
}

// LocateResponse reports the accepted match.
type LocateResponse struct {
	Position    float64 `json:"position"`
	Quality     float64 `json:"quality"`
	Reliability float64 `json:"reliability"`
}

// SearchRequest runs the prelock transition search.
type SearchRequest struct{}

// SearchResponse reports the residual distance after centering.
type SearchResponse struct {
	ResidualMHz float64 `json:"residual_mhz"`
}

// EventsRequest fetches lock journal entries, newest first.
type EventsRequest struct {
	Limit int `json:"limit"`
}

// LockEvent is the wire form of one journal row.
type LockEvent struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Event     string    `json:"event"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail"`
}

// EventsResponse contains journal rows.
type EventsResponse struct {
	Events []LockEvent `json:"events"`
}

// ArchiveHealthRequest fetches archive diagnostics.
type ArchiveHealthRequest struct{}

// ArchiveHealthResponse reports archive health information.
type ArchiveHealthResponse struct {
	DBPath     string    `json:"db_path"`
	Scans      int       `json:"scans"`
	LockEvents int       `json:"lock_events"`
	OldestScan time.Time `json:"oldest_scan"`
}

// LogTailRequest reads daemon log lines. A negative Offset requests the
// last Limit lines; otherwise the read starts at the byte offset.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse carries log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
