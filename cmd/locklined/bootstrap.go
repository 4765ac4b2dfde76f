package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lockline/internal/archive"
	"lockline/internal/config"
	"lockline/internal/daemon"
	"lockline/internal/locator"
	"lockline/internal/locker"
	"lockline/internal/logging"
	"lockline/internal/notifications"
	"lockline/internal/rig"
	"lockline/internal/tuner"
)

// buildDaemon wires the rig, actuators, locator, archive and notifier into a
// ready-to-start daemon. The daemon owns the archive store and closes it.
func buildDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	sim := rig.NewSim(rig.SimConfig{
		SpanMHz:       cfg.DAQ.ScanSpanMHz,
		RampAmplitude: cfg.DAQ.RampAmplitude,
		CurrentScale:  cfg.Tuners.Current.ScaleMHz,
		TempScale:     cfg.Tuners.Temp.ScaleMHz,
		LockboxScale:  cfg.Tuners.Lockbox.ScaleMHz,
		SFG:           cfg.Lock.SFGFactor,
	})

	current, err := buildTuner("current", cfg.Tuners.Current, sim.Current, sim.SetCurrent, logger)
	if err != nil {
		return nil, err
	}
	temp, err := buildTuner("temp", cfg.Tuners.Temp, sim.Temp, sim.SetTemp, logger)
	if err != nil {
		return nil, err
	}
	lockbox, err := buildTuner("lockbox", cfg.Tuners.Lockbox, sim.LockboxLevel, sim.SetLockbox, logger)
	if err != nil {
		return nil, err
	}

	var loc *locator.Locator
	if cfg.Paths.ReferenceFile != "" {
		loc, err = locator.New(cfg.Lock.FeatureThreshold, logger)
		if err != nil {
			return nil, err
		}
		samples, err := loc.LoadReferenceFile(cfg.Paths.ReferenceFile)
		if err != nil {
			return nil, fmt.Errorf("load reference spectrum: %w", err)
		}
		logger.Info("reference spectrum loaded",
			logging.String("path", cfg.Paths.ReferenceFile),
			logging.Int("samples", samples))
	} else {
		logger.Warn("no reference spectrum configured",
			logging.String(logging.FieldImpact, "feature matching unavailable"))
	}

	mgr, err := locker.NewManager(cfg, locker.Deps{
		Scanner:      sim,
		Lockbox:      sim,
		LockboxTuner: lockbox,
		Current:      current,
		Temp:         temp,
		Locator:      loc,
	}, logger)
	if err != nil {
		return nil, err
	}

	store, err := archive.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open scan archive: %w", err)
	}

	notifier := notifications.NewService(cfg)
	d, err := daemon.New(cfg, store, mgr, notifier, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, nil
}

func buildTuner(name string, act config.Actuator, get func(ctx context.Context) (float64, error), set func(ctx context.Context, v float64) error, logger *slog.Logger) (*tuner.Tuner, error) {
	return tuner.New(tuner.Config{
		Name:        name,
		ScaleMHz:    act.ScaleMHz,
		Granularity: act.Granularity,
		Delay:       time.Duration(act.DelaySeconds * float64(time.Second)),
		Get:         get,
		Set:         set,
		Logger:      logger,
	})
}
