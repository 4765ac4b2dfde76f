package locker

import (
	"context"
	"errors"
	"fmt"
	"math"

	"lockline/internal/logging"
	"lockline/internal/signals"
	"lockline/internal/tuner"
)

// LineJudge decides whether a located doppler line is the one we want. It
// must be side-effect free or self-reverting, as rejected candidates leave
// the laser detuned. A returned error aborts the search.
type LineJudge func(ctx context.Context, line *signals.DopplerLine) (bool, error)

// DopplerSweep acquires one signal and tries to locate a doppler-broadened
// dip in it. A (nil, nil) return means no qualifying dip was found, which is
// an expected outcome while searching, not a failure.
func (m *Manager) DopplerSweep(ctx context.Context) (*signals.DopplerLine, error) {
	scan, err := m.AcquireSignal(ctx, 0)
	if err != nil {
		return nil, err
	}
	_, relRange := m.RecentScan()

	trimmed, err := signals.Trim(scan, signals.TrimOptions{
		MinRampAmplitude: relRange * m.cfg.DAQ.MinRampAmplitude,
		TrimFactors:      m.cfg.DAQ.LogTrimFactors,
	})
	if err != nil {
		return nil, fmt.Errorf("trim scan: %w", err)
	}

	line, err := signals.LocateDopplerLine(trimmed,
		relRange*m.cfg.DAQ.RampAmplitude,
		relRange*m.cfg.DAQ.ScanSpanMHz,
		signals.DopplerOptions{
			SmoothingWindow: m.cfg.DAQ.SmoothingWindow,
			MinDipDepth:     m.cfg.DAQ.MinLogDipDepth,
		})
	if err != nil {
		return nil, err
	}
	if line != nil {
		m.logger.Debug("doppler line located",
			logging.Float64(logging.FieldDistance, line.Distance),
			logging.Float64("depth", line.Depth))
	}
	return line, nil
}

// DopplerSearch hunts for a judge-accepted doppler line by tuning tnr in a
// zig-zag pattern around its starting point: alternating directions with
// increasing multiples of stepMHz, re-scanning after every move. A direction
// is abandoned once the next step would exceed maxRangeMHz or the actuator's
// physical headroom; the search then continues single-sided. When both
// directions are exhausted the tuner is restored to its pre-search value and
// ErrNoLine is returned. Distances are spectroscopy MHz.
func (m *Manager) DopplerSearch(ctx context.Context, tnr *tuner.Tuner, judge LineJudge, stepMHz, maxRangeMHz float64) (*signals.DopplerLine, error) {
	if stepMHz <= 0 || maxRangeMHz < stepMHz {
		return nil, fmt.Errorf("search needs 0 < step <= max range, got step %v, range %v", stepMHz, maxRangeMHz)
	}

	origin, err := tnr.Get(ctx)
	if err != nil {
		return nil, err
	}
	down, up, err := m.headroomSpecMHz(ctx, tnr)
	if err != nil {
		return nil, err
	}
	if down < stepMHz && up < stepMHz {
		return nil, fmt.Errorf("%w: %s has headroom (%.0f, %.0f) MHz, step is %.0f",
			ErrTuningRange, tnr.Name(), down, up, stepMHz)
	}

	// Check the starting position before moving anywhere.
	line, accepted, err := m.sweepAndJudge(ctx, judge)
	if err != nil {
		return nil, err
	}
	if accepted {
		return line, nil
	}

	// Zig-zag: +1, -1, +2, -2, ... times the step, as offsets from the
	// origin. A direction dies when its next offset would overshoot.
	upAlive, downAlive := true, true
	for multiple := 1; upAlive || downAlive; multiple++ {
		offset := float64(multiple) * stepMHz
		if offset > maxRangeMHz {
			break
		}
		for _, sign := range []float64{1, -1} {
			if sign > 0 && !upAlive {
				continue
			}
			if sign < 0 && !downAlive {
				continue
			}
			if (sign > 0 && offset > up) || (sign < 0 && offset > down) {
				if sign > 0 {
					upAlive = false
				} else {
					downAlive = false
				}
				m.logger.Debug("search direction exhausted",
					logging.String(logging.FieldTuner, tnr.Name()),
					logging.Float64("offset", sign*offset))
				continue
			}

			target := origin + sign*offset/m.cfg.Lock.SFGFactor/tnr.Scale()
			if err := tnr.Set(ctx, target); err != nil {
				return nil, m.restoreAfter(ctx, tnr, origin, err)
			}
			line, accepted, err := m.sweepAndJudge(ctx, judge)
			if err != nil {
				return nil, m.restoreAfter(ctx, tnr, origin, err)
			}
			if accepted {
				m.logger.Info("doppler line accepted",
					logging.String(logging.FieldTuner, tnr.Name()),
					logging.Float64("offset", sign*offset))
				return line, nil
			}
		}
	}

	// Never leave the system silently detuned after a failed search.
	if err := tnr.Set(ctx, origin); err != nil {
		return nil, fmt.Errorf("restore %s after failed search: %w", tnr.Name(), err)
	}
	return nil, fmt.Errorf("%w: searched %.0f MHz around start", ErrNoLine, maxRangeMHz)
}

// sweepAndJudge runs one sweep and, if a line shows, asks the judge.
func (m *Manager) sweepAndJudge(ctx context.Context, judge LineJudge) (*signals.DopplerLine, bool, error) {
	line, err := m.DopplerSweep(ctx)
	if err != nil {
		return nil, false, err
	}
	if line == nil {
		return nil, false, nil
	}
	if judge == nil {
		return line, true, nil
	}
	ok, err := judge(ctx, line)
	if err != nil {
		return nil, false, err
	}
	return line, ok, nil
}

// restoreAfter puts tnr back to origin after a failure, joining a restore
// failure with the original error. The restore runs shielded from
// cancellation so an interrupted search still ends at its starting point.
func (m *Manager) restoreAfter(ctx context.Context, tnr *tuner.Tuner, origin float64, cause error) error {
	if err := tnr.Set(context.WithoutCancel(ctx), origin); err != nil {
		return errors.Join(cause, fmt.Errorf("restore %s: %w", tnr.Name(), err))
	}
	return cause
}

// headroomSpecMHz converts the tuner's physical headroom to spectroscopy MHz.
func (m *Manager) headroomSpecMHz(ctx context.Context, tnr *tuner.Tuner) (down, up float64, err error) {
	down, up, err = tnr.MaxJumps(ctx)
	if err != nil {
		return 0, 0, err
	}
	sfg := math.Abs(m.cfg.Lock.SFGFactor)
	return down * sfg, up * sfg, nil
}

// VerifyLine checks whether the doppler line near the current position is
// the intended transition. It iteratively centers the dip by tuning tnr by
// the observed offset and re-measuring, up to the configured attempt budget;
// non-convergence fails with ErrDrift, a vanished dip with ErrNoLine. hint,
// when non-nil, serves as the first measurement and saves one sweep.
//
// With reset set, tnr is restored to its pre-call value on every exit path,
// success and failure alike.
func (m *Manager) VerifyLine(ctx context.Context, tnr *tuner.Tuner, hint *signals.DopplerLine, reset bool) (correct bool, err error) {
	origin, err := tnr.Get(ctx)
	if err != nil {
		return false, err
	}
	if reset {
		defer func() {
			if restoreErr := tnr.Set(context.WithoutCancel(ctx), origin); restoreErr != nil {
				err = errors.Join(err, fmt.Errorf("restore %s: %w", tnr.Name(), restoreErr))
			}
		}()
	}

	line := hint
	if line == nil {
		line, err = m.DopplerSweep(ctx)
		if err != nil {
			return false, err
		}
		if line == nil {
			return false, ErrNoLine
		}
	}

	for attempt := 0; attempt < m.cfg.Lock.TuningAttempts; attempt++ {
		if math.Abs(line.Distance) < m.cfg.Lock.TuningPrecisionMHz {
			m.logger.Debug("line centered",
				logging.Int("attempts", attempt),
				logging.Float64("depth", line.Depth))
			return line.Depth >= m.cfg.Lock.DipDecidingDepth, nil
		}
		if err := m.Tune(ctx, line.Distance, tnr); err != nil {
			return false, err
		}
		line, err = m.DopplerSweep(ctx)
		if err != nil {
			return false, err
		}
		if line == nil {
			return false, ErrNoLine
		}
	}
	return false, fmt.Errorf("%w: still %.0f MHz off after %d attempts",
		ErrDrift, line.Distance, m.cfg.Lock.TuningAttempts)
}

// Prelock brings the laser close to the target transition without engaging
// the servo: it searches for the correct doppler line with the fast actuator
// and centers it to within the tuning precision.
func (m *Manager) Prelock(ctx context.Context) error {
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	if status != StatusOff {
		return fmt.Errorf("%w: prelock requires status off, lock is %s", ErrWrongStatus, status)
	}

	tnr := m.deps.Current
	judge := func(ctx context.Context, line *signals.DopplerLine) (bool, error) {
		ok, err := m.VerifyLine(ctx, tnr, line, true)
		switch {
		case err == nil:
			return ok, nil
		case errors.Is(err, ErrDrift), errors.Is(err, ErrNoLine):
			// Algorithmic rejection, keep searching elsewhere.
			m.logger.Debug("line candidate rejected", logging.Error(err))
			return false, nil
		default:
			return false, err
		}
	}

	line, err := m.DopplerSearch(ctx, tnr, judge, m.cfg.Lock.PrelockStepMHz, m.cfg.Lock.PrelockMaxRangeMHz)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < m.cfg.Lock.TuningAttempts; attempt++ {
		if math.Abs(line.Distance) < m.cfg.Lock.TuningPrecisionMHz {
			m.logger.Info("prelock complete",
				logging.Int("attempts", attempt),
				logging.Float64(logging.FieldDistance, line.Distance))
			return nil
		}
		if err := m.Tune(ctx, line.Distance, tnr); err != nil {
			return err
		}
		line, err = m.DopplerSweep(ctx)
		if err != nil {
			return err
		}
		if line == nil {
			return ErrNoLine
		}
	}
	return fmt.Errorf("%w: unable to center doppler line", ErrDrift)
}
