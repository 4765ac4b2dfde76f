package rig

import (
	"context"
	"errors"

	"lockline/internal/signals"
)

// ErrConnectivity indicates that the hardware did not respond or answered
// garbage. Operations wrap it so callers can trigger reconnection handling.
var ErrConnectivity = errors.New("hardware connectivity problem")

// Engagement is the reported state of the lockbox servo loop.
type Engagement int

const (
	// EngagementUndefined means the lockbox state could not be determined.
	EngagementUndefined Engagement = iota
	// Disengaged means the servo loop is open.
	Disengaged
	// Engaged means the servo loop is closed and steering the laser.
	Engaged
)

func (e Engagement) String() string {
	switch e {
	case Disengaged:
		return "disengaged"
	case Engaged:
		return "engaged"
	default:
		return "undefined"
	}
}

// Scanner sweeps the laser over a portion of its tuning range and records the
// detector channels. relRange in (0, 1] selects the swept fraction of the
// full ramp amplitude.
type Scanner interface {
	Scan(ctx context.Context, relRange float64) (signals.Scan, error)
}

// Lockbox drives the servo loop that holds the laser on a feature.
type Lockbox interface {
	Engage(ctx context.Context) error
	Disengage(ctx context.Context) error
	Engagement(ctx context.Context) (Engagement, error)
}
