package locker

import (
	"context"
	"fmt"

	"lockline/internal/rig"
)

// LockStatus describes the lock, derived fresh on every query.
type LockStatus int

const (
	// StatusOff means the lockbox is disengaged.
	StatusOff LockStatus = iota
	// StatusOnLine means the lock is engaged and the lockbox output is
	// comfortably away from its rails.
	StatusOnLine
	// StatusRail means the lock is engaged but the lockbox output sits
	// within the rail zone of 0 or 1, about to run out of range.
	StatusRail
	// StatusDegraded means the engagement signals are inconsistent.
	StatusDegraded
)

func (s LockStatus) String() string {
	switch s {
	case StatusOff:
		return "off"
	case StatusOnLine:
		return "on_line"
	case StatusRail:
		return "rail"
	case StatusDegraded:
		return "degraded"
	default:
		return fmt.Sprintf("lockstatus(%d)", int(s))
	}
}

// Status derives the current lock status from the engagement predicate and
// the lockbox tuner position.
func (m *Manager) Status(ctx context.Context) (LockStatus, error) {
	engagement, err := m.lockbox.Engagement(ctx)
	if err != nil {
		return StatusDegraded, fmt.Errorf("query lockbox engagement: %w: %v", rig.ErrConnectivity, err)
	}
	switch engagement {
	case rig.Disengaged:
		return StatusOff, nil
	case rig.Engaged:
	default:
		return StatusDegraded, nil
	}

	level, err := m.lockboxTuner.Get(ctx)
	if err != nil {
		return StatusDegraded, err
	}
	zone := m.cfg.Lock.RailZone
	if level <= zone || level >= 1-zone {
		return StatusRail, nil
	}
	return StatusOnLine, nil
}
