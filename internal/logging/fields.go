package logging

// Standardized attribute keys. Keep these stable; operators grep for them.
const (
	// FieldComponent identifies the emitting subsystem (daemon, locker, ipc, ...).
	FieldComponent = "component"

	// FieldEventType carries a machine-filterable event identifier.
	FieldEventType = "event_type"

	// FieldErrorHint suggests a next step when an operation failed.
	FieldErrorHint = "error_hint"

	// FieldImpact states the user-facing consequence of a warning.
	FieldImpact = "impact"

	// FieldDaemon names a background maintenance task (balancer, relocker, ...).
	FieldDaemon = "daemon"

	// FieldTuner names the actuator an operation acted on.
	FieldTuner = "tuner"

	// FieldStatus carries a lock status string.
	FieldStatus = "status"

	// FieldScanID carries the archive identifier of an acquired scan.
	FieldScanID = "scan_id"

	// FieldDistance carries a frequency distance in spectroscopy MHz.
	FieldDistance = "distance_mhz"
)
