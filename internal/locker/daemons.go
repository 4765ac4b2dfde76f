package locker

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"lockline/internal/logging"
	"lockline/internal/rig"
	"lockline/internal/tasks"
)

// Watchdog requires an ON_LINE lock and polls its status at the rail check
// interval until it changes, then returns the new status. It is the sole
// failure-detection primitive; all lock-loss handling layers on top of it.
func (m *Manager) Watchdog(ctx context.Context) (LockStatus, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return status, err
	}
	if status != StatusOnLine {
		return status, fmt.Errorf("%w: watchdog requires an on_line lock, got %s", ErrWrongStatus, status)
	}

	for {
		if err := tasks.Sleep(ctx, m.cfg.RailCheckInterval()); err != nil {
			return StatusDegraded, err
		}
		status, err := m.Status(ctx)
		if err != nil {
			return status, err
		}
		if status != StatusOnLine {
			return status, nil
		}
	}
}

// RunRelocker watches an engaged lock and re-engages it whenever the lockbox
// rails. The disengage-then-reengage sequence runs as a non-cancellable
// critical section, so cancellation never leaves the system half-engaged;
// the cancellation is honored immediately after the section completes. The
// loop ends when the lock leaves ON_LINE for any state other than RAIL.
func (m *Manager) RunRelocker(ctx context.Context, onLost, onRelocked func(ctx context.Context)) error {
	for {
		status, err := m.Watchdog(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Warn("relocker stopping", logging.Error(err))
			return err
		}
		if status != StatusRail {
			m.logger.Warn("relocker stopping, lock is not recoverable here",
				logging.String(logging.FieldStatus, status.String()))
			return nil
		}

		m.logger.Warn("lockbox railed, relocking")
		if onLost != nil {
			onLost(ctx)
		}

		// Critical section: disengage and re-engage atomically with
		// respect to cancellation.
		shielded := context.WithoutCancel(ctx)
		if err := m.lockbox.Disengage(shielded); err != nil {
			m.logger.Error("relock disengage failed", logging.Error(err))
		}
		if err := m.lockbox.Engage(shielded); err != nil {
			m.logger.Error("relock engage failed", logging.Error(err))
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if onRelocked != nil {
			onRelocked(ctx)
		}
		m.logger.Info("lock re-engaged")
	}
}

// RunBalancer keeps the lockbox output near the balance point by offloading
// accumulated correction onto the secondary actuator. Requires an ON_LINE
// lock on entry and exits once the lock leaves ON_LINE.
func (m *Manager) RunBalancer(ctx context.Context) error {
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	if status != StatusOnLine {
		return fmt.Errorf("%w: balancing requires an on_line lock, got %s", ErrWrongStatus, status)
	}

	onLine := func(ctx context.Context) bool {
		status, err := m.Status(ctx)
		return err == nil && status == StatusOnLine
	}

	err = tasks.Repeat(ctx, m.cfg.BalanceInterval(), m.balanceOnce, onLine)
	if err == nil {
		m.logger.Warn("balancer stopping, lock left on_line")
	}
	return err
}

// balanceOnce compares the lockbox level to the balance point and, if the
// imbalance exceeds the allowance, pulls the lockbox back by moving the
// secondary actuator the equivalent physical distance.
func (m *Manager) balanceOnce(ctx context.Context) error {
	level, err := m.lockboxTuner.Get(ctx)
	if err != nil {
		return err
	}
	imbalance := level - m.cfg.Lock.BalancePoint
	if math.Abs(imbalance) <= m.cfg.Lock.AllowableImbalance {
		return nil
	}

	distance := m.cfg.Lock.SFGFactor * imbalance * m.lockboxTuner.Scale()
	m.logger.Info("balancing lockbox",
		logging.Float64("level", level),
		logging.Float64(logging.FieldDistance, distance),
		logging.String(logging.FieldTuner, m.deps.Current.Name()))
	if err := m.Tune(ctx, distance, m.deps.Current); err != nil {
		if errors.Is(err, ErrTuningRange) {
			// The secondary knob is out of headroom; leave the lock as
			// is and let the watchdog catch an eventual rail.
			m.logger.Warn("balancer out of actuator range", logging.Error(err))
			return nil
		}
		return err
	}
	return nil
}

// EngageAndMaintain engages the lock and runs the balancer and relocker
// until maintenance is cancelled or hits an unrecoverable problem. Under
// normal operation it blocks indefinitely; the relocker's exit stops the
// balancer.
func (m *Manager) EngageAndMaintain(ctx context.Context, onLost, onRelocked func(ctx context.Context)) error {
	if err := m.lockbox.Engage(ctx); err != nil {
		return fmt.Errorf("engage lock: %w: %v", rig.ErrConnectivity, err)
	}
	m.logger.Info("lock engaged")

	g, gctx := errgroup.WithContext(ctx)
	maintCtx, stopMaintenance := context.WithCancel(gctx)
	defer stopMaintenance()

	g.Go(func() error {
		defer stopMaintenance()
		return m.RunRelocker(maintCtx, onLost, onRelocked)
	})
	g.Go(func() error {
		err := m.RunBalancer(maintCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err := g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Release disengages the lock. Releasing an already-off lock is a no-op.
func (m *Manager) Release(ctx context.Context) error {
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	if status == StatusOff {
		m.logger.Debug("lock already off")
		return nil
	}
	if err := m.lockbox.Disengage(ctx); err != nil {
		return fmt.Errorf("disengage lock: %w: %v", rig.ErrConnectivity, err)
	}
	m.logger.Info("lock released")
	return nil
}
