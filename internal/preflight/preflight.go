package preflight

import (
	"context"

	"lockline/internal/config"
)

// minFreeBytes is the archive headroom required before the daemon starts.
// Scan rows are a few hundred KB each, so this covers days of searching.
const minFreeBytes = 100 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks for unconfigured features are skipped.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDiskSpace("Archive disk space", cfg.Paths.LogDir, minFreeBytes))

	if cfg.Paths.ReferenceFile != "" {
		results = append(results, CheckReferenceSpectrum(cfg.Paths.ReferenceFile))
	}

	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}

	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
