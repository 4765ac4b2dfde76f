// Package tasks holds small building blocks for recurrent daemon work:
// resource polling, periodic repetition and a de-duplicating work queue.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"lockline/internal/logging"
)

// PollConfig describes a resource to wait for or monitor.
type PollConfig struct {
	// Name identifies the resource in logs.
	Name string
	// Indicator reports whether the resource is currently available. It is
	// called often and should be cheap.
	Indicator func(ctx context.Context) bool
	// Probe is invoked while the resource is unavailable and should trigger
	// a reconnection attempt. Errors are logged, not returned.
	Probe func(ctx context.Context) error
	// OnConnect runs whenever the indicator turns true after a period of
	// unavailability.
	OnConnect func(ctx context.Context)
	// OnDisconnect runs when a previously available resource is lost. Only
	// meaningful in continuous mode.
	OnDisconnect func(ctx context.Context)
	// Interval is the wait between probe attempts and indicator checks.
	Interval time.Duration
	// Continuous keeps monitoring after the resource came up. Without it,
	// PollResource returns once the resource is available.
	Continuous bool

	Logger *slog.Logger
}

// PollResource waits for, and optionally keeps monitoring, a resource. It
// returns nil once the resource is available (non-continuous mode) or the
// context error on cancellation.
func PollResource(ctx context.Context, cfg PollConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "poll")

	for {
		if !cfg.Indicator(ctx) {
			logger.Info("waiting for resource", logging.String("resource", cfg.Name))
			for !cfg.Indicator(ctx) {
				if cfg.Probe != nil {
					if err := cfg.Probe(ctx); err != nil {
						logger.Debug("probe failed",
							logging.String("resource", cfg.Name),
							logging.Error(err))
					}
				}
				if err := Sleep(ctx, cfg.Interval); err != nil {
					return err
				}
			}
			if cfg.OnConnect != nil {
				cfg.OnConnect(ctx)
			}
			logger.Info("resource available", logging.String("resource", cfg.Name))
		}
		if !cfg.Continuous {
			return nil
		}
		if err := Sleep(ctx, cfg.Interval); err != nil {
			return err
		}
		if !cfg.Indicator(ctx) {
			if cfg.OnDisconnect != nil {
				cfg.OnDisconnect(ctx)
			}
			logger.Warn("resource lost", logging.String("resource", cfg.Name))
		}
	}
}

// Repeat runs fn repeatedly, spacing invocation starts at least period apart.
// A fn run longer than period is followed immediately by the next one. The
// loop ends when while returns false (checked before each run), when fn
// returns an error, or when ctx is cancelled.
func Repeat(ctx context.Context, period time.Duration, fn func(ctx context.Context) error, while func(ctx context.Context) bool) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if while != nil && !while(ctx) {
			return nil
		}
		begin := time.Now()
		if err := fn(ctx); err != nil {
			return err
		}
		if rest := period - time.Since(begin); rest > 0 {
			if err := Sleep(ctx, rest); err != nil {
				return err
			}
		}
	}
}

// Sleep waits for d or until ctx is cancelled, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
