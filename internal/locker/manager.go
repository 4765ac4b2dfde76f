package locker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"lockline/internal/config"
	"lockline/internal/locator"
	"lockline/internal/logging"
	"lockline/internal/rig"
	"lockline/internal/signals"
	"lockline/internal/tuner"
)

// ScanObserver is notified with every newly acquired raw scan, for archival
// and publication. It must return quickly; hand slow work to a queue.
type ScanObserver func(ctx context.Context, scan signals.Scan, relRange float64)

// Deps are the collaborators a Manager drives.
type Deps struct {
	Scanner rig.Scanner
	Lockbox rig.Lockbox
	// LockboxTuner exposes the lockbox output as a read-mostly tuner; its
	// position feeds status derivation and the balancer.
	LockboxTuner *tuner.Tuner
	// Current is the fast actuator, used for prelock search and as the
	// balancer's secondary knob.
	Current *tuner.Tuner
	// Temp is the slow actuator, available for wide manual retuning.
	Temp *tuner.Tuner
	// Locator matches acquired signals against the reference spectrum. May
	// be nil when no reference is configured; feature matching then fails
	// as not ready.
	Locator *locator.Locator
	// OnSignal, when set, observes every acquired raw scan.
	OnSignal ScanObserver
}

// Manager runs lock acquisition and maintenance.
type Manager struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger

	lockbox      rig.Lockbox
	scanner      rig.Scanner
	lockboxTuner *tuner.Tuner

	mu          sync.Mutex
	recentScan  signals.Scan
	recentRange float64
}

// NewManager validates the wiring and returns a Manager.
func NewManager(cfg *config.Config, deps Deps, logger *slog.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("locker: config is required")
	}
	if deps.Scanner == nil || deps.Lockbox == nil {
		return nil, errors.New("locker: scanner and lockbox are required")
	}
	if deps.LockboxTuner == nil || deps.Current == nil {
		return nil, errors.New("locker: lockbox and current tuners are required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		deps:         deps,
		logger:       logging.NewComponentLogger(logger, "locker"),
		lockbox:      deps.Lockbox,
		scanner:      deps.Scanner,
		lockboxTuner: deps.LockboxTuner,
	}, nil
}

// CurrentTuner returns the fast actuator handle.
func (m *Manager) CurrentTuner() *tuner.Tuner { return m.deps.Current }

// LockboxTuner returns the lockbox output handle.
func (m *Manager) LockboxTuner() *tuner.Tuner { return m.lockboxTuner }

// SetScanObserver installs fn as the scan observer, replacing any observer
// given at construction. Call during wiring, before operations start.
func (m *Manager) SetScanObserver(fn ScanObserver) { m.deps.OnSignal = fn }

// TempTuner returns the slow actuator handle, or nil if none is wired.
func (m *Manager) TempTuner() *tuner.Tuner { return m.deps.Temp }

// RecentScan returns the last acquired raw scan and the relative range it
// was taken with. The scan is empty before the first acquisition.
func (m *Manager) RecentScan() (signals.Scan, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recentScan, m.recentRange
}

// AcquireSignal runs one scan over the given relative range and caches the
// result. Only allowed while the lock is off, to avoid destabilizing an
// engaged lock. A relRange of 0 reuses the previously used range.
func (m *Manager) AcquireSignal(ctx context.Context, relRange float64) (signals.Scan, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return signals.Scan{}, err
	}
	if status != StatusOff {
		return signals.Scan{}, fmt.Errorf("%w: acquiring signals requires status off, lock is %s", ErrWrongStatus, status)
	}

	m.mu.Lock()
	if relRange == 0 {
		relRange = m.recentRange
		if relRange == 0 {
			relRange = 1
		}
	}
	m.mu.Unlock()
	if relRange < 0 || relRange > 1 {
		return signals.Scan{}, fmt.Errorf("scan range %v outside (0, 1]", relRange)
	}

	scan, err := m.scanner.Scan(ctx, relRange)
	if err != nil {
		return signals.Scan{}, fmt.Errorf("acquire signal: %w: %v", rig.ErrConnectivity, err)
	}

	m.mu.Lock()
	m.recentScan = scan
	m.recentRange = relRange
	m.mu.Unlock()

	if m.deps.OnSignal != nil {
		m.deps.OnSignal(ctx, scan, relRange)
	}
	m.logger.Debug("signal acquired",
		logging.Float64("range", relRange),
		logging.Int("samples", scan.Len()))
	return scan, nil
}

// Tune moves the laser by distance spectroscopy MHz using the given
// actuator. Sub-granularity moves are logged no-ops. Targets outside the
// actuator's range fail with ErrTuningRange without mutating anything.
func (m *Manager) Tune(ctx context.Context, distance float64, tnr *tuner.Tuner) error {
	delta := distance / m.cfg.Lock.SFGFactor / tnr.Scale()
	if math.Abs(delta) < tnr.Granularity() {
		m.logger.Debug("tuning request below granularity, skipping",
			logging.String(logging.FieldTuner, tnr.Name()),
			logging.Float64(logging.FieldDistance, distance))
		return nil
	}

	value, err := tnr.Get(ctx)
	if err != nil {
		return err
	}
	target := value + delta
	if target < 0 || target > 1 {
		return fmt.Errorf("%w: %s would need %v", ErrTuningRange, tnr.Name(), target)
	}
	m.logger.Debug("tuning",
		logging.String(logging.FieldTuner, tnr.Name()),
		logging.Float64(logging.FieldDistance, distance),
		logging.Float64("target", target))
	return tnr.Set(ctx, target)
}

// LocateFeature acquires a signal and matches it against the reference
// spectrum. near, when non-nil, is the expected position in reference units
// and is used to disambiguate similar candidates.
func (m *Manager) LocateFeature(ctx context.Context, near *float64) (locator.Match, error) {
	if m.deps.Locator == nil || !m.deps.Locator.Ready() {
		return locator.Match{}, locator.ErrNotReady
	}

	scan, err := m.AcquireSignal(ctx, 0)
	if err != nil {
		return locator.Match{}, err
	}
	_, relRange := m.RecentScan()

	trimmed, err := signals.Trim(scan, signals.TrimOptions{
		MinRampAmplitude: relRange * m.cfg.DAQ.MinRampAmplitude,
		TrimFactors:      m.cfg.DAQ.ErrTrimFactors,
	})
	if err != nil {
		return locator.Match{}, fmt.Errorf("trim scan: %w", err)
	}

	// The looped-back ramp is the position axis; its excursion converts to
	// spectroscopy MHz through the full sweep geometry.
	span := rampExcursion(trimmed.Ramp) * m.cfg.DAQ.ScanSpanMHz / m.cfg.DAQ.RampAmplitude
	matches, err := m.deps.Locator.LocateSample(locator.Sample{X: trimmed.Ramp, Y: trimmed.Err}, span)
	if err != nil {
		return locator.Match{}, err
	}
	return m.pickMatch(matches, near)
}

// pickMatch applies the candidate disambiguation policy: quality filter,
// nearest-to-hint preference, then the first candidate clearing the
// confidence threshold.
func (m *Manager) pickMatch(candidates []locator.Match, near *float64) (locator.Match, error) {
	qualified := make([]locator.Match, 0, len(candidates))
	for _, c := range candidates {
		if c.Quality > m.cfg.Lock.MatchThreshold {
			qualified = append(qualified, c)
		}
	}
	if len(qualified) == 0 {
		return locator.Match{}, ErrNoFeature
	}
	if near != nil {
		sort.SliceStable(qualified, func(i, j int) bool {
			return math.Abs(qualified[i].Position-*near) < math.Abs(qualified[j].Position-*near)
		})
	}
	for _, c := range qualified {
		if c.Reliability >= m.cfg.Lock.ConfidenceThreshold {
			return c, nil
		}
	}
	if len(qualified) == 1 {
		return locator.Match{}, fmt.Errorf("%w: best candidate at %.1f rated %.2f",
			ErrLowConfidence, qualified[0].Position, qualified[0].Reliability)
	}
	return locator.Match{}, fmt.Errorf("%w: %d candidates too close to call", ErrAmbiguous, len(qualified))
}

func rampExcursion(ramp []float64) float64 {
	if len(ramp) == 0 {
		return 0
	}
	lo, hi := ramp[0], ramp[0]
	for _, v := range ramp {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}
