package signals

import (
	"errors"
)

// DopplerLine describes one doppler-broadened absorption dip.
type DopplerLine struct {
	// Depth is the dip depth in detector units, measured against the
	// smoothed baseline.
	Depth float64
	// Distance is the signed spectroscopy-MHz offset from the scan center
	// to the dip. Tuning the swept quantity by Distance centers the dip.
	Distance float64
}

// DopplerOptions controls dip extraction.
type DopplerOptions struct {
	// SmoothingWindow is the moving-average width applied to the detector
	// column before searching. Must be odd; widened windows suppress the
	// narrow hyperfine features riding on the doppler profile.
	SmoothingWindow int
	// MinDipDepth is the smallest depth accepted as a real line.
	MinDipDepth float64
}

// LocateDopplerLine finds the deepest absorption dip in a trimmed scan.
//
// rampAmplitude is the full excursion of the Z-ramp in loopback units and
// spanMHz the spectroscopy width that excursion covers. The dip position is
// read off the ramp column rather than the sample index, so trimming the
// scan's settling edges does not skew the result.
//
// Returns (nil, nil) when no dip clears MinDipDepth; finding nothing is an
// expected outcome while searching, not a failure.
func LocateDopplerLine(s Scan, rampAmplitude, spanMHz float64, opts DopplerOptions) (*DopplerLine, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if s.Log == nil {
		return nil, errors.New("scan has no absorption detector column")
	}
	if rampAmplitude <= 0 {
		return nil, errors.New("ramp amplitude must be positive")
	}
	if spanMHz <= 0 {
		return nil, errors.New("scan span must be positive")
	}

	smoothed := movingAverage(s.Log, opts.SmoothingWindow)

	baseline := smoothed[0]
	dipValue := smoothed[0]
	dipIndex := 0
	for i, v := range smoothed {
		if v > baseline {
			baseline = v
		}
		if v < dipValue {
			dipValue = v
			dipIndex = i
		}
	}

	depth := baseline - dipValue
	if depth < opts.MinDipDepth {
		return nil, nil
	}

	fraction := s.Ramp[dipIndex] / rampAmplitude
	return &DopplerLine{
		Depth:    depth,
		Distance: (fraction - 0.5) * spanMHz,
	}, nil
}

// movingAverage smooths values with a centered window, shrinking the window
// symmetrically near the edges. A window of 1 or less returns a copy.
func movingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 || len(values) < 3 {
		copy(out, values)
		return out
	}
	if window > len(values) {
		window = len(values)
	}
	if window%2 == 0 {
		window--
	}
	half := window / 2
	for i := range values {
		reach := half
		if i < reach {
			reach = i
		}
		if rest := len(values) - 1 - i; rest < reach {
			reach = rest
		}
		sum := 0.0
		for j := i - reach; j <= i+reach; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(2*reach+1)
	}
	return out
}
