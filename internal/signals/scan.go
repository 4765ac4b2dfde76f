package signals

import (
	"errors"
	"fmt"
)

// Scan holds the readings from one frequency sweep. All present columns have
// equal length. Log may be nil when the acquisition ran without the
// absorption detector channel.
type Scan struct {
	Ramp []float64
	Err  []float64
	Log  []float64
}

// Len returns the number of samples per column.
func (s Scan) Len() int {
	return len(s.Ramp)
}

func (s Scan) validate() error {
	if len(s.Ramp) == 0 {
		return errors.New("scan has no samples")
	}
	if len(s.Err) != len(s.Ramp) {
		return fmt.Errorf("error column has %d samples, ramp has %d", len(s.Err), len(s.Ramp))
	}
	if s.Log != nil && len(s.Log) != len(s.Ramp) {
		return fmt.Errorf("log column has %d samples, ramp has %d", len(s.Log), len(s.Ramp))
	}
	return nil
}

// TrimOptions controls how much of a scan's edges are discarded.
type TrimOptions struct {
	// MinRampAmplitude is the smallest peak-to-peak ramp excursion that is
	// considered a valid sweep.
	MinRampAmplitude float64
	// TrimFactors holds the (begin, end) fractions of the detected ramp
	// that are shaved off in addition to the flank regions.
	TrimFactors []float64
}

// Trim extracts the reliable central part of a full sweep.
//
// The acquisition unit drives a Z-shaped ramp, so the head and tail of each
// record hold settling artifacts. Sample index is an unsafe base for the
// cut because the sweep start jitters; the looped-back ramp amplitude is
// used instead.
func Trim(s Scan, opts TrimOptions) (Scan, error) {
	if err := s.validate(); err != nil {
		return Scan{}, err
	}

	start, err := findFirstFlank(s.Ramp, opts.MinRampAmplitude, 0, false)
	if err != nil {
		return Scan{}, fmt.Errorf("locate sweep start: %w", err)
	}
	stop, err := findFirstFlank(s.Ramp, opts.MinRampAmplitude, len(s.Ramp)-1, true)
	if err != nil {
		return Scan{}, fmt.Errorf("locate sweep end: %w", err)
	}
	if stop <= start {
		return Scan{}, errors.New("sweep boundaries out of order")
	}

	begin, end := 0.0, 0.0
	if len(opts.TrimFactors) == 2 {
		begin, end = opts.TrimFactors[0], opts.TrimFactors[1]
	}
	span := float64(stop - start)
	lower := start + int(begin*span)
	upper := stop - int(end*span)
	if upper <= lower {
		return Scan{}, errors.New("trim factors leave no samples")
	}

	trimmed := Scan{
		Ramp: s.Ramp[lower:upper],
		Err:  s.Err[lower:upper],
	}
	if s.Log != nil {
		trimmed.Log = s.Log[lower:upper]
	}
	return trimmed, nil
}

// findFirstFlank locates the first full-height flank after (or, reversed,
// before) start and returns the index at which it has risen to its full
// amplitude. plungeDepth guards against calling noise a maximum: the signal
// must drop back by that fraction of the local excursion first.
func findFirstFlank(series []float64, minHeight float64, start int, reverse bool) (int, error) {
	const (
		plungeDepth  = 0.9
		triggerLevel = 0.9
	)
	if len(series) == 0 {
		return 0, errors.New("empty series")
	}
	if start < 0 || start >= len(series) {
		return 0, fmt.Errorf("start index %d out of range", start)
	}

	step := 1
	if reverse {
		step = -1
	}

	candidate := start
	lastMax := series[start]
	lastMin := series[start]
	for i := start + step; i >= 0 && i < len(series); i += step {
		value := series[i]
		if value > lastMax {
			candidate = i
			lastMax = value
		} else if value < lastMin {
			lastMin = value
		}
		if lastMax-lastMin > minHeight && value < lastMax-plungeDepth*(lastMax-lastMin) {
			break
		}
	}

	// Track back from the maximum to the point where the flank has risen.
	for j := candidate; j >= 0 && j < len(series); j -= step {
		if series[j] < lastMax-triggerLevel*(lastMax-lastMin) {
			return j, nil
		}
	}
	return 0, errors.New("no flank found")
}
