// Package archive persists acquired scans and lock events to SQLite.
//
// The daemon writes every raw scan and every lock state transition here;
// the CLI reads the journal back for diagnosis. Old rows are pruned on a
// retention schedule so the database stays bounded on long deployments.
package archive
