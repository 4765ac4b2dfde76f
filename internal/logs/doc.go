// Package logs reads the daemon log file for the CLI.
//
// The daemon appends console-format lines to lockline.log; Tail serves the
// IPC log endpoint by returning either the last N lines or everything after
// a byte offset, optionally blocking briefly for new output so the CLI can
// follow the file without holding it open across the socket.
package logs
