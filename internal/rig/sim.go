package rig

import (
	"context"
	"fmt"
	"math"
	"sync"

	"lockline/internal/signals"
)

// SimConfig shapes the simulated spectroscopy rig.
type SimConfig struct {
	// SpanMHz is the spectroscopy width swept at relRange 1.
	SpanMHz float64
	// Samples per scan record, excluding the settling edges.
	Samples int
	// RampAmplitude of the looped-back ramp at relRange 1, in DAQ units.
	RampAmplitude float64
	// DipDepth and DipWidthMHz shape the doppler-broadened absorption dip
	// sitting at spectroscopy frequency zero.
	DipDepth    float64
	DipWidthMHz float64
	// Actuator scales in laser MHz per normalized unit.
	CurrentScale float64
	TempScale    float64
	LockboxScale float64
	// SFG is the frequency multiplication of the sum-frequency stage:
	// spectroscopy MHz per laser MHz.
	SFG float64
}

// DefaultSimConfig returns a rig that roughly resembles the real instrument.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		SpanMHz:       2000,
		Samples:       1000,
		RampAmplitude: 5000,
		DipDepth:      0.4,
		DipWidthMHz:   300,
		CurrentScale:  5180,
		TempScale:     8660,
		LockboxScale:  1171,
		SFG:           2,
	}
}

// dispersive hyperfine features riding on the error signal, as spectroscopy
// MHz offsets from the dip center.
var simFeatures = []struct{ center, width, amplitude float64 }{
	{-42, 4, 0.6},
	{-15, 3, 1.0},
	{0, 2.5, 0.8},
	{11, 3.5, 0.9},
	{31, 3, 0.5},
	{58, 5, 0.7},
}

// Sim is a deterministic in-memory spectroscopy rig. It implements Scanner
// and Lockbox and exposes tuner callbacks for the three actuators. Safe for
// concurrent use.
type Sim struct {
	cfg SimConfig

	mu        sync.Mutex
	current   float64
	temp      float64
	lockbox   float64
	drift     float64 // laser MHz, test hook
	engaged   bool
	lockPoint float64 // free-running detuning absorbed at engage time
	undefined bool
	failure   error
}

// NewSim creates a simulator with all actuators centered and the servo open.
func NewSim(cfg SimConfig) *Sim {
	def := DefaultSimConfig()
	if cfg.SpanMHz <= 0 {
		cfg.SpanMHz = def.SpanMHz
	}
	if cfg.Samples < 10 {
		cfg.Samples = def.Samples
	}
	if cfg.RampAmplitude <= 0 {
		cfg.RampAmplitude = def.RampAmplitude
	}
	if cfg.DipDepth <= 0 {
		cfg.DipDepth = def.DipDepth
	}
	if cfg.DipWidthMHz <= 0 {
		cfg.DipWidthMHz = def.DipWidthMHz
	}
	if cfg.CurrentScale <= 0 {
		cfg.CurrentScale = def.CurrentScale
	}
	if cfg.TempScale <= 0 {
		cfg.TempScale = def.TempScale
	}
	if cfg.LockboxScale <= 0 {
		cfg.LockboxScale = def.LockboxScale
	}
	if cfg.SFG <= 0 {
		cfg.SFG = def.SFG
	}
	return &Sim{
		cfg:     cfg,
		current: 0.5,
		temp:    0.5,
		lockbox: 0.5,
	}
}

// freeDetuning is the laser detuning in MHz with the servo contribution from
// the lockbox actuator's commanded value. Callers hold s.mu.
func (s *Sim) freeDetuning() float64 {
	return (s.current-0.5)*s.cfg.CurrentScale +
		(s.temp-0.5)*s.cfg.TempScale +
		s.drift
}

// servoLevel is the lockbox output required to hold the laser at the point
// the servo acquired on engage, clamped to the actuator range. Callers hold
// s.mu.
func (s *Sim) servoLevel() float64 {
	level := 0.5 - (s.freeDetuning()-s.lockPoint)/s.cfg.LockboxScale
	return math.Max(0, math.Min(1, level))
}

// laserDetuning is the effective laser detuning in MHz, servo included.
// Callers hold s.mu.
func (s *Sim) laserDetuning() float64 {
	level := s.lockbox
	if s.engaged {
		level = s.servoLevel()
	}
	return s.freeDetuning() + (level-0.5)*s.cfg.LockboxScale
}

// Scan implements Scanner. The record has a Z-shaped ramp with settling
// edges, a hyperfine error signal and a logarithmic absorption channel with
// the doppler dip at spectroscopy frequency zero.
func (s *Sim) Scan(ctx context.Context, relRange float64) (signals.Scan, error) {
	if err := ctx.Err(); err != nil {
		return signals.Scan{}, err
	}
	if relRange <= 0 || relRange > 1 {
		return signals.Scan{}, fmt.Errorf("scan range %v outside (0, 1]", relRange)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return signals.Scan{}, s.failure
	}

	detuning := s.cfg.SFG * s.laserDetuning()
	span := relRange * s.cfg.SpanMHz
	amplitude := relRange * s.cfg.RampAmplitude

	edge := s.cfg.Samples / 20
	body := s.cfg.Samples
	n := body + 2*edge
	scan := signals.Scan{
		Ramp: make([]float64, n),
		Err:  make([]float64, n),
		Log:  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		j := i - edge
		if j < 0 {
			j = 0
		}
		if j > body-1 {
			j = body - 1
		}
		frac := float64(j) / float64(body-1)
		freq := detuning + (frac-0.5)*span

		if i < edge || i >= edge+body {
			scan.Ramp[i] = 0
		} else {
			scan.Ramp[i] = frac * amplitude
		}
		d := freq / s.cfg.DipWidthMHz
		scan.Log[i] = 1 - s.cfg.DipDepth*math.Exp(-d*d)

		errVal := 0.0
		for _, f := range simFeatures {
			fd := (freq - f.center) / f.width
			errVal += f.amplitude * fd * math.Exp(-fd*fd)
		}
		scan.Err[i] = errVal
	}
	return scan, nil
}

// Engage implements Lockbox. The servo acquires at the laser's current
// free-running position, centering its output, as a real loop relocking on
// the nearest zero crossing does.
func (s *Sim) Engage(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	if !s.engaged {
		s.lockPoint = s.freeDetuning()
		s.engaged = true
	}
	return nil
}

// Disengage implements Lockbox. The lockbox actuator keeps the level the
// servo last held, as the real instrument does.
func (s *Sim) Disengage(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	if s.engaged {
		s.lockbox = s.servoLevel()
		s.engaged = false
	}
	return nil
}

// Engagement implements Lockbox.
func (s *Sim) Engagement(ctx context.Context) (Engagement, error) {
	if err := ctx.Err(); err != nil {
		return EngagementUndefined, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return EngagementUndefined, s.failure
	}
	if s.undefined {
		return EngagementUndefined, nil
	}
	if s.engaged {
		return Engaged, nil
	}
	return Disengaged, nil
}

// Current and SetCurrent are the diode current tuner callbacks.
func (s *Sim) Current(ctx context.Context) (float64, error) { return s.get(ctx, &s.current) }
func (s *Sim) SetCurrent(ctx context.Context, v float64) error {
	return s.set(ctx, &s.current, v)
}

// Temp and SetTemp are the diode temperature tuner callbacks.
func (s *Sim) Temp(ctx context.Context) (float64, error) { return s.get(ctx, &s.temp) }
func (s *Sim) SetTemp(ctx context.Context, v float64) error {
	return s.set(ctx, &s.temp, v)
}

// LockboxLevel reports the lockbox output: the servo level while engaged,
// the commanded value otherwise.
func (s *Sim) LockboxLevel(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return 0, s.failure
	}
	if s.engaged {
		return s.servoLevel(), nil
	}
	return s.lockbox, nil
}

// SetLockbox commands the lockbox actuator directly. Only meaningful while
// the servo is open.
func (s *Sim) SetLockbox(ctx context.Context, v float64) error {
	return s.set(ctx, &s.lockbox, v)
}

func (s *Sim) get(ctx context.Context, field *float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return 0, s.failure
	}
	return *field, nil
}

func (s *Sim) set(ctx context.Context, field *float64, v float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	*field = v
	return nil
}

// Drift shifts the laser by the given amount of laser MHz, emulating slow
// cavity or temperature drift. Test and demo hook.
func (s *Sim) Drift(laserMHz float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drift += laserMHz
}

// Fail makes every hardware call return err until Restore is called.
func (s *Sim) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// Restore clears a failure injected with Fail.
func (s *Sim) Restore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = nil
}

// SetUndefined makes Engagement report an undetermined servo state.
func (s *Sim) SetUndefined(undefined bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.undefined = undefined
}

// Detuning reports the effective laser detuning in MHz. Test hook.
func (s *Sim) Detuning() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.laserDetuning()
}
