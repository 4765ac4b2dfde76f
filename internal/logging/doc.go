// Package logging builds the slog loggers used across lockline.
//
// It provides a human-oriented console handler for interactive use, a JSON
// handler for machine consumption, and the standardized field names shared
// by the daemon, the lock manager, and the CLI.
package logging
