package rig

import (
	"context"
	"errors"
	"math"
	"testing"

	"lockline/internal/signals"
)

func simLine(t *testing.T, s *Sim, relRange float64) *signals.DopplerLine {
	t.Helper()
	scan, err := s.Scan(context.Background(), relRange)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	trimmed, err := signals.Trim(scan, signals.TrimOptions{MinRampAmplitude: 500})
	if err != nil {
		t.Fatalf("trim: %v", err)
	}
	line, err := signals.LocateDopplerLine(trimmed, relRange*s.cfg.RampAmplitude, relRange*s.cfg.SpanMHz, signals.DopplerOptions{
		SmoothingWindow: 31,
		MinDipDepth:     0.1,
	})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	return line
}

func TestSimCenteredScanHasCenteredDip(t *testing.T) {
	s := NewSim(SimConfig{})
	line := simLine(t, s, 1)
	if line == nil {
		t.Fatal("expected a doppler line")
	}
	if math.Abs(line.Distance) > 30 {
		t.Fatalf("centered rig should show dip near 0, got %v MHz", line.Distance)
	}
}

func TestSimDriftMovesDipOppositeToDistance(t *testing.T) {
	s := NewSim(SimConfig{})
	s.Drift(100) // laser MHz, doubled by the SFG stage

	line := simLine(t, s, 1)
	if line == nil {
		t.Fatal("expected a doppler line")
	}
	// Tuning by Distance must center the dip, so Distance is the negated
	// spectroscopy detuning.
	if math.Abs(line.Distance-(-200)) > 30 {
		t.Fatalf("distance %v MHz, want ~-200", line.Distance)
	}
}

func TestSimServoCancelsDrift(t *testing.T) {
	ctx := context.Background()
	s := NewSim(SimConfig{})
	if err := s.Engage(ctx); err != nil {
		t.Fatalf("engage: %v", err)
	}
	s.Drift(100)

	if d := s.Detuning(); math.Abs(d) > 1e-9 {
		t.Fatalf("servo should cancel drift, residual %v MHz", d)
	}
	level, err := s.LockboxLevel(ctx)
	if err != nil {
		t.Fatalf("lockbox level: %v", err)
	}
	want := 0.5 - 100/s.cfg.LockboxScale
	if math.Abs(level-want) > 1e-9 {
		t.Fatalf("level %v, want %v", level, want)
	}
}

func TestSimDisengageHoldsServoLevel(t *testing.T) {
	ctx := context.Background()
	s := NewSim(SimConfig{})
	if err := s.Engage(ctx); err != nil {
		t.Fatal(err)
	}
	s.Drift(100)
	if err := s.Disengage(ctx); err != nil {
		t.Fatal(err)
	}
	// The actuator keeps the level the servo last held, so the laser stays
	// roughly where it was.
	if d := s.Detuning(); math.Abs(d) > 1e-9 {
		t.Fatalf("laser jumped on disengage: %v MHz", d)
	}
}

func TestSimReengageRecentersServo(t *testing.T) {
	ctx := context.Background()
	s := NewSim(SimConfig{})
	if err := s.Engage(ctx); err != nil {
		t.Fatal(err)
	}
	s.Drift(500)
	if level, _ := s.LockboxLevel(ctx); level > 0.1 {
		t.Fatalf("drift should rail the servo, level %v", level)
	}

	if err := s.Disengage(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Engage(ctx); err != nil {
		t.Fatal(err)
	}
	level, err := s.LockboxLevel(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(level-0.5) > 1e-9 {
		t.Fatalf("re-engage should center the servo, level %v", level)
	}
}

func TestSimEngagementStates(t *testing.T) {
	ctx := context.Background()
	s := NewSim(SimConfig{})

	e, err := s.Engagement(ctx)
	if err != nil || e != Disengaged {
		t.Fatalf("got %v, %v; want disengaged", e, err)
	}
	if err := s.Engage(ctx); err != nil {
		t.Fatal(err)
	}
	if e, _ := s.Engagement(ctx); e != Engaged {
		t.Fatalf("got %v, want engaged", e)
	}
	s.SetUndefined(true)
	if e, _ := s.Engagement(ctx); e != EngagementUndefined {
		t.Fatalf("got %v, want undefined", e)
	}
}

func TestSimFailureInjection(t *testing.T) {
	ctx := context.Background()
	s := NewSim(SimConfig{})
	boom := errors.New("usb gone")
	s.Fail(boom)

	if _, err := s.Scan(ctx, 1); !errors.Is(err, boom) {
		t.Fatalf("scan error %v, want injected failure", err)
	}
	if _, err := s.Current(ctx); !errors.Is(err, boom) {
		t.Fatalf("get error %v, want injected failure", err)
	}
	if _, err := s.Engagement(ctx); !errors.Is(err, boom) {
		t.Fatalf("engagement error %v, want injected failure", err)
	}

	s.Restore()
	if _, err := s.Scan(ctx, 1); err != nil {
		t.Fatalf("scan after restore: %v", err)
	}
}

func TestSimTunerCallbacks(t *testing.T) {
	ctx := context.Background()
	s := NewSim(SimConfig{})
	if err := s.SetCurrent(ctx, 0.7); err != nil {
		t.Fatal(err)
	}
	v, err := s.Current(ctx)
	if err != nil || v != 0.7 {
		t.Fatalf("got %v, %v; want 0.7", v, err)
	}
	// Moving the current off center detunes the laser.
	want := 0.2 * s.cfg.CurrentScale
	if d := s.Detuning(); math.Abs(d-want) > 1e-9 {
		t.Fatalf("detuning %v, want %v", d, want)
	}
}

func TestSimRejectsBadScanRange(t *testing.T) {
	ctx := context.Background()
	s := NewSim(SimConfig{})
	for _, r := range []float64{0, -0.5, 1.5} {
		if _, err := s.Scan(ctx, r); err == nil {
			t.Errorf("range %v accepted", r)
		}
	}
}
