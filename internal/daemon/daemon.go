package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"lockline/internal/archive"
	"lockline/internal/config"
	"lockline/internal/locker"
	"lockline/internal/logging"
	"lockline/internal/notifications"
	"lockline/internal/signals"
	"lockline/internal/tasks"
)

// Version identifies the daemon build in notifications and status output.
const Version = "0.1.0"

// prunePeriod spaces archive retention sweeps.
const prunePeriod = 6 * time.Hour

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *archive.Store
	manager  *locker.Manager
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	daqOnline atomic.Bool
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup

	coalescer *tasks.Coalescer
	monitor   *daqMonitor

	mu          sync.Mutex
	maintCancel context.CancelFunc
	maintDone   chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	UptimeSeconds float64
	// Lock is the lock status string (off, on_line, rail, degraded) or
	// "unknown" when the hardware cannot be queried.
	Lock         string
	LockboxLevel float64
	Maintaining  bool
	DAQOnline    bool
	ArchiveDB    string
	LockFilePath string
}

// ScanSummary describes one acquisition triggered over IPC.
type ScanSummary struct {
	Samples  int
	RelRange float64
	Line     *signals.DopplerLine
}

// LocateSummary reports a reference-spectrum match.
type LocateSummary struct {
	// Position is the match location in reference units.
	Position    float64
	Quality     float64
	Reliability float64
}

// New constructs a daemon with initialized dependencies. The manager's scan
// observer is pointed at the archive, so every acquisition is persisted.
func New(cfg *config.Config, store *archive.Store, mgr *locker.Manager, notifier notifications.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || mgr == nil {
		return nil, errors.New("daemon requires config, archive store, and lock manager")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "locklined.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		manager:   mgr,
		notifier:  notifier,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
		coalescer: tasks.NewCoalescer(),
	}
	mgr.SetScanObserver(d.archiveScan)
	d.monitor = newDAQMonitor(cfg, logger, d.daqAttached, d.daqDetached)
	return d, nil
}

// Start acquires the daemon lock and launches the background services.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another lockline daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.startedAt = time.Now()
	d.daqOnline.Store(true)

	d.bg.Add(1)
	go func() {
		defer d.bg.Done()
		_ = d.coalescer.Run(d.ctx)
	}()

	if retention := d.retention(); retention > 0 {
		d.bg.Add(1)
		go func() {
			defer d.bg.Done()
			_ = tasks.Repeat(d.ctx, prunePeriod, func(ctx context.Context) error {
				removed, err := d.store.Prune(ctx, retention)
				if err != nil {
					d.logger.Warn("archive pruning failed", logging.Error(err))
					return nil
				}
				if removed > 0 {
					d.logger.Info("archive pruned", logging.Int64("removed_rows", removed))
				}
				return nil
			}, nil)
		}()
	}

	if err := d.monitor.Start(d.ctx); err != nil {
		d.logger.Warn("DAQ monitor unavailable", logging.Error(err))
	}

	d.running.Store(true)
	d.journal(d.ctx, archive.EventDaemonStarted, "")
	if err := d.notifier.NotifyDaemonStarted(d.ctx, Version); err != nil {
		d.logger.Warn("start notification failed", logging.Error(err))
	}
	d.logger.Info("lockline daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.stopMaintenance(context.Background())

	uptime := time.Since(d.startedAt)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.journal(shutdownCtx, archive.EventDaemonStopped, "")
	if err := d.notifier.NotifyDaemonStopped(shutdownCtx, uptime); err != nil {
		d.logger.Warn("stop notification failed", logging.Error(err))
	}

	d.monitor.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.bg.Wait()
	d.ctx = nil

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("lockline daemon stopped", logging.Duration("uptime", uptime))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Lock:         "unknown",
		Maintaining:  d.maintaining(),
		DAQOnline:    d.daqOnline.Load(),
		ArchiveDB:    d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if status.Running {
		status.UptimeSeconds = time.Since(d.startedAt).Seconds()
	}
	if lockStatus, err := d.manager.Status(ctx); err == nil {
		status.Lock = lockStatus.String()
	}
	if level, err := d.manager.LockboxTuner().Get(ctx); err == nil {
		status.LockboxLevel = level
	}
	return status
}

// Scan acquires one signal over the given relative range (0 reuses the
// previous range) and reports what the sweep showed. Only available while
// the lock is off.
func (d *Daemon) Scan(ctx context.Context, relRange float64) (ScanSummary, error) {
	scan, err := d.manager.AcquireSignal(ctx, relRange)
	if err != nil {
		return ScanSummary{}, err
	}
	_, usedRange := d.manager.RecentScan()
	summary := ScanSummary{Samples: scan.Len(), RelRange: usedRange}

	line, err := d.manager.DopplerSweep(ctx)
	if err != nil {
		d.logger.Warn("doppler extraction failed", logging.Error(err))
		return summary, nil
	}
	summary.Line = line
	return summary, nil
}

// Locate acquires a signal and matches it against the reference spectrum.
// near, when non-nil, disambiguates similar candidates toward the expected
// position. Fails when no reference is configured.
func (d *Daemon) Locate(ctx context.Context, near *float64) (LocateSummary, error) {
	match, err := d.manager.LocateFeature(ctx, near)
	if err != nil {
		return LocateSummary{}, err
	}
	return LocateSummary{
		Position:    match.Position,
		Quality:     match.Quality,
		Reliability: match.Reliability,
	}, nil
}

// Search runs the prelock procedure: find the target transition and center
// the laser on it without engaging the servo. Returns the residual distance
// in spectroscopy MHz.
func (d *Daemon) Search(ctx context.Context) (float64, error) {
	if d.maintaining() {
		return 0, errors.New("release the lock before searching")
	}
	if err := d.manager.Prelock(ctx); err != nil {
		d.journal(ctx, archive.EventError, err.Error())
		return 0, err
	}

	var residual float64
	if line, err := d.manager.DopplerSweep(ctx); err == nil && line != nil {
		residual = line.Distance
	}
	d.journal(ctx, archive.EventPrelocked, fmt.Sprintf("residual %.0f MHz", residual))
	if err := d.notifier.NotifyPrelocked(ctx, residual); err != nil {
		d.logger.Warn("prelock notification failed", logging.Error(err))
	}
	return residual, nil
}

// EngageLock starts lock maintenance: the servo is engaged and the balancer
// and relocker keep it on line until ReleaseLock or daemon shutdown. The
// call returns once maintenance is launched; engage failures surface in the
// journal and notifications.
func (d *Daemon) EngageLock(ctx context.Context) error {
	if !d.running.Load() {
		return errors.New("daemon is not running")
	}
	status, err := d.manager.Status(ctx)
	if err != nil {
		return err
	}
	if status != locker.StatusOff {
		return fmt.Errorf("%w: lock is %s", locker.ErrWrongStatus, status)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.maintDone != nil {
		return errors.New("lock maintenance already running")
	}
	maintCtx, cancel := context.WithCancel(d.ctx)
	done := make(chan struct{})
	d.maintCancel = cancel
	d.maintDone = done
	go d.maintain(maintCtx, done)
	return nil
}

func (d *Daemon) maintain(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		d.mu.Lock()
		d.maintCancel = nil
		d.maintDone = nil
		d.mu.Unlock()
	}()

	onLost := func(ctx context.Context) {
		d.journal(ctx, archive.EventLost, "lockbox railed")
		if err := d.notifier.NotifyLockLost(ctx); err != nil {
			d.logger.Warn("lock-lost notification failed", logging.Error(err))
		}
	}
	onRelocked := func(ctx context.Context) {
		d.journal(ctx, archive.EventRelocked, "")
		if err := d.notifier.NotifyLockRelocked(ctx); err != nil {
			d.logger.Warn("relock notification failed", logging.Error(err))
		}
	}

	d.journal(ctx, archive.EventEngaged, "")
	if err := d.notifier.NotifyLockAcquired(ctx); err != nil {
		d.logger.Warn("lock notification failed", logging.Error(err))
	}

	err := d.manager.EngageAndMaintain(ctx, onLost, onRelocked)
	if err != nil && !errors.Is(err, context.Canceled) {
		shielded := context.WithoutCancel(ctx)
		d.logger.Error("lock maintenance failed", logging.Error(err))
		d.journal(shielded, archive.EventError, err.Error())
		if notifyErr := d.notifier.NotifyError(shielded, err, "lock maintenance"); notifyErr != nil {
			d.logger.Warn("error notification failed", logging.Error(notifyErr))
		}
	}
}

// ReleaseLock stops maintenance and disengages the servo.
func (d *Daemon) ReleaseLock(ctx context.Context) error {
	d.stopMaintenance(ctx)
	if err := d.manager.Release(ctx); err != nil {
		return err
	}
	d.journal(ctx, archive.EventReleased, "")
	if err := d.notifier.NotifyLockReleased(ctx); err != nil {
		d.logger.Warn("release notification failed", logging.Error(err))
	}
	return nil
}

func (d *Daemon) stopMaintenance(ctx context.Context) {
	d.mu.Lock()
	cancel, done := d.maintCancel, d.maintDone
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (d *Daemon) maintaining() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maintDone != nil
}

// LogFilePath returns the daemon log file location from configuration.
func (d *Daemon) LogFilePath() string {
	return d.cfg.LogFilePath()
}

// Events returns the newest lock journal rows.
func (d *Daemon) Events(ctx context.Context, limit int) ([]archive.LockEvent, error) {
	return d.store.Events(ctx, limit)
}

// ArchiveHealth returns archive diagnostics.
func (d *Daemon) ArchiveHealth(ctx context.Context) (archive.HealthSummary, error) {
	return d.store.Health(ctx)
}

// TestNotification triggers a test notification using the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// archiveScan is the manager's scan observer. Archival runs through the
// coalescer, so a burst of sweeps during a search archives only the freshest
// scan instead of queueing unbounded work.
func (d *Daemon) archiveScan(_ context.Context, scan signals.Scan, relRange float64) {
	d.coalescer.Submit("archive-scan", func(ctx context.Context) {
		id, err := d.store.SaveScan(ctx, scan, relRange)
		if err != nil {
			d.logger.Warn("scan archival failed", logging.Error(err))
			return
		}
		d.logger.Debug("scan archived",
			logging.String(logging.FieldScanID, id),
			logging.Int("samples", scan.Len()))
	})
}

func (d *Daemon) daqAttached(ctx context.Context) {
	d.daqOnline.Store(true)
	d.logger.Info("DAQ attached", logging.String(logging.FieldEventType, "daq_attached"))
}

func (d *Daemon) daqDetached(ctx context.Context) {
	d.daqOnline.Store(false)
	d.logger.Warn("DAQ detached",
		logging.String(logging.FieldEventType, "daq_detached"),
		logging.String(logging.FieldImpact, "scans and tuning unavailable until the device returns"))
	d.journal(ctx, archive.EventError, "DAQ detached")
	if err := d.notifier.NotifyError(ctx, errors.New("DAQ detached"), "acquisition hardware"); err != nil {
		d.logger.Warn("detach notification failed", logging.Error(err))
	}
}

func (d *Daemon) journal(ctx context.Context, event archive.Event, detail string) {
	status := "unknown"
	if lockStatus, err := d.manager.Status(ctx); err == nil {
		status = lockStatus.String()
	}
	if err := d.store.RecordEvent(ctx, event, status, detail); err != nil {
		d.logger.Warn("journal write failed", logging.Error(err))
	}
}

func (d *Daemon) retention() time.Duration {
	days := d.cfg.Logging.RetentionDays
	if days <= 0 {
		return 0
	}
	return time.Duration(days) * 24 * time.Hour
}
