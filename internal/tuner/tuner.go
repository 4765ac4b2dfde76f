// Package tuner wraps a single laser actuator behind a normalized interface.
//
// Every tunable quantity, whether diode current, diode temperature or the
// lockbox ramp offset, is commanded in [0, 1] of its usable range. The Tuner
// carries the physical scale of that range, the actuator's granularity and
// its settling delay, so callers can reason in frequency units without
// knowing which knob they are turning.
package tuner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lockline/internal/logging"
	"lockline/internal/rig"
)

// ErrRange is returned when a requested value falls outside [0, 1].
var ErrRange = errors.New("tuner target outside [0, 1]")

// Config describes one actuator.
type Config struct {
	// Name identifies the actuator in logs and errors.
	Name string
	// ScaleMHz is the laser-MHz excursion covered by the full [0, 1] range.
	ScaleMHz float64
	// Granularity is the smallest normalized step the actuator resolves.
	Granularity float64
	// Delay is the settling time to wait after commanding a new value.
	Delay time.Duration
	// Get reads the current normalized value from the hardware.
	Get func(ctx context.Context) (float64, error)
	// Set commands a new normalized value.
	Set func(ctx context.Context, value float64) error

	Logger *slog.Logger
}

// Tuner is a validated, ready-to-use actuator handle.
type Tuner struct {
	name        string
	scale       float64
	granularity float64
	delay       time.Duration
	get         func(ctx context.Context) (float64, error)
	set         func(ctx context.Context, value float64) error
	logger      *slog.Logger
}

// New validates cfg and returns a Tuner.
func New(cfg Config) (*Tuner, error) {
	if cfg.Name == "" {
		return nil, errors.New("tuner needs a name")
	}
	if cfg.ScaleMHz <= 0 {
		return nil, fmt.Errorf("tuner %s: scale %v must be positive", cfg.Name, cfg.ScaleMHz)
	}
	if cfg.Granularity <= 0 || cfg.Granularity >= 1 {
		return nil, fmt.Errorf("tuner %s: granularity %v outside (0, 1)", cfg.Name, cfg.Granularity)
	}
	if cfg.Delay < 0 {
		return nil, fmt.Errorf("tuner %s: negative delay %v", cfg.Name, cfg.Delay)
	}
	if cfg.Get == nil || cfg.Set == nil {
		return nil, fmt.Errorf("tuner %s: get and set callbacks are required", cfg.Name)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tuner{
		name:        cfg.Name,
		scale:       cfg.ScaleMHz,
		granularity: cfg.Granularity,
		delay:       cfg.Delay,
		get:         cfg.Get,
		set:         cfg.Set,
		logger:      logging.NewComponentLogger(logger, "tuner"),
	}, nil
}

// Name returns the actuator identifier.
func (t *Tuner) Name() string { return t.name }

// Scale returns the laser-MHz excursion of the full [0, 1] range.
func (t *Tuner) Scale() float64 { return t.scale }

// Granularity returns the smallest normalized step the actuator resolves.
func (t *Tuner) Granularity() float64 { return t.granularity }

// Delay returns the settling time applied after each Set.
func (t *Tuner) Delay() time.Duration { return t.delay }

// Get reads the current normalized value. Hardware failures and garbage
// readings surface as connectivity errors.
func (t *Tuner) Get(ctx context.Context) (float64, error) {
	value, err := t.get(ctx)
	if err != nil {
		return 0, fmt.Errorf("read %s tuner: %w: %v", t.name, rig.ErrConnectivity, err)
	}
	if value < 0 || value > 1 {
		return 0, fmt.Errorf("read %s tuner: %w: reading %v outside [0, 1]", t.name, rig.ErrConnectivity, value)
	}
	return value, nil
}

// Set commands a new normalized value and waits out the settling delay.
// Values outside [0, 1] fail with ErrRange before anything is sent to the
// hardware.
func (t *Tuner) Set(ctx context.Context, value float64) error {
	if value < 0 || value > 1 {
		return fmt.Errorf("%w: %s to %v", ErrRange, t.name, value)
	}
	if err := t.set(ctx, value); err != nil {
		return fmt.Errorf("command %s tuner: %w: %v", t.name, rig.ErrConnectivity, err)
	}
	t.logger.Debug("tuner set",
		logging.String(logging.FieldTuner, t.name),
		logging.Float64("value", value))
	if t.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(t.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MaxJumps reports the physical headroom in laser MHz below and above the
// current value.
func (t *Tuner) MaxJumps(ctx context.Context) (down, up float64, err error) {
	value, err := t.Get(ctx)
	if err != nil {
		return 0, 0, err
	}
	return value * t.scale, (1 - value) * t.scale, nil
}
