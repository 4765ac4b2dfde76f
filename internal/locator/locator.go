package locator

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"

	"lockline/internal/logging"
)

const (
	// matchThreshold is the minimum cross-correlation quality for a local
	// maximum to count as a match candidate at all.
	matchThreshold = 0.1

	// confidenceExponent shapes the reliability assigned to the best of
	// several candidates. Raising it gives higher reliabilities.
	confidenceExponent = 3

	// featurelessDivisor replaces the normalization factor for reference
	// windows that carry no features. Regular divisors never exceed 1, so
	// this blocks featureless windows from matching anything and avoids
	// dividing by near-zero norms.
	featurelessDivisor = 1.11111111
)

// Sentinel errors returned by Locator methods.
var (
	ErrNotReady        = errors.New("no reference spectrum loaded")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Sample is a measured trace as (position, amplitude) pairs. X values do not
// need to be equidistant or to scale with the reference; only their order and
// the stated span matter.
type Sample struct {
	X []float64
	Y []float64
}

// Match is one candidate origin of a sample within the reference.
type Match struct {
	// Position of the sample's left edge in reference units, in [0, refSpan).
	Position float64
	// Quality in [-1, 1]: 1 is perfect correlation, -1 perfect
	// anti-correlation, 0 none.
	Quality float64
	// Reliability in [0, 1]: how probable it is that this candidate, rather
	// than a competing one, is the true origin.
	Reliability float64
}

// Locator finds distorted samples' positions inside a reference spectrum.
// Safe for concurrent use.
type Locator struct {
	logger *slog.Logger

	mu               sync.Mutex
	featureThreshold float64
	ref              []float64
	refSpan          float64
	norms            map[int][]float64
}

// New creates a Locator. featureThreshold is the fraction of the maximum
// window norm below which a reference window counts as featureless.
func New(featureThreshold float64, logger *slog.Logger) (*Locator, error) {
	if featureThreshold <= 0 || featureThreshold >= 1 {
		return nil, fmt.Errorf("%w: feature threshold %v outside (0, 1)", ErrInvalidArgument, featureThreshold)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Locator{
		logger:           logging.NewComponentLogger(logger, "locator"),
		featureThreshold: featureThreshold,
		norms:            make(map[int][]float64),
	}, nil
}

// SetReference installs a new reference spectrum spanning the given width in
// reference units. Cached per-window norms are discarded.
func (l *Locator) SetReference(signal []float64, span float64) error {
	if len(signal) < 2 {
		return fmt.Errorf("%w: reference needs at least 2 samples, got %d", ErrInvalidArgument, len(signal))
	}
	if span <= 0 {
		return fmt.Errorf("%w: reference span %v must be positive", ErrInvalidArgument, span)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.ref = append([]float64(nil), signal...)
	l.refSpan = span
	l.norms = make(map[int][]float64)
	l.logger.Debug("reference spectrum set",
		logging.Int("samples", len(signal)),
		logging.Float64("span", span))
	return nil
}

// Ready reports whether a reference spectrum has been loaded.
func (l *Locator) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ref != nil
}

// LocateSample finds the positions in the reference the sample may have
// originated from. span is the sample's width in reference units and must lie
// in (0, refSpan). Candidates are sorted by descending quality; an empty
// result means nothing in the reference resembles the sample.
func (l *Locator) LocateSample(sample Sample, span float64) ([]Match, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ref == nil {
		return nil, ErrNotReady
	}
	if len(sample.X) != len(sample.Y) {
		return nil, fmt.Errorf("%w: sample columns differ in length (%d vs %d)",
			ErrInvalidArgument, len(sample.X), len(sample.Y))
	}
	if len(sample.X) < 2 {
		return nil, fmt.Errorf("%w: sample needs at least 2 points, got %d", ErrInvalidArgument, len(sample.X))
	}
	if span <= 0 || span >= l.refSpan {
		return nil, fmt.Errorf("%w: sample span %v outside (0, %v)", ErrInvalidArgument, span, l.refSpan)
	}

	resampled, err := l.resample(sample, span)
	if err != nil {
		return nil, err
	}

	corr, err := l.correlate(resampled)
	if err != nil {
		return nil, err
	}

	// Local maxima, endpoints excluded: a maximum at the very start or end
	// of the correlation trace cannot give an accurate position.
	var maxima []Match
	for i := 1; i < len(corr)-1; i++ {
		if corr[i] > corr[i-1] && corr[i] > corr[i+1] {
			maxima = append(maxima, Match{
				Position: float64(i) / float64(len(l.ref)) * l.refSpan,
				Quality:  corr[i],
			})
		}
	}

	matches := rateFinds(maxima, corr)
	l.logger.Debug("sample located",
		logging.Int("candidates", len(matches)),
		logging.Float64("span", span))
	return matches, nil
}

// resample interpolates the sample onto the reference's sample density. The
// result is normalized to unit Euclidean norm so correlation results are
// comparable across acquisitions.
func (l *Locator) resample(sample Sample, span float64) ([]float64, error) {
	// Normalize x into [0, 1]. Akima splines approximate spectroscopy
	// signals much better than linear interpolation does.
	lo, hi := sample.X[0], sample.X[0]
	for _, x := range sample.X {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if hi == lo {
		return nil, fmt.Errorf("%w: sample x values span zero width", ErrInvalidArgument)
	}
	xs := make([]float64, len(sample.X))
	for i, x := range sample.X {
		xs[i] = (x - lo) / (hi - lo)
	}

	var spline interp.AkimaSpline
	if err := spline.Fit(xs, sample.Y); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	n := int(math.Round(span / l.refSpan * float64(len(l.ref))))
	if n < 2 {
		return nil, fmt.Errorf("%w: sample too narrow to resample (%d points at reference density)", ErrInvalidArgument, n)
	}
	if n > len(l.ref) {
		n = len(l.ref)
	}

	resampled := make([]float64, n)
	for i := range resampled {
		resampled[i] = spline.Predict(float64(i) / float64(n-1))
	}

	norm := floats.Norm(resampled, 2)
	if norm == 0 {
		return nil, fmt.Errorf("%w: sample carries no signal", ErrInvalidArgument)
	}
	floats.Scale(1/norm, resampled)
	return resampled, nil
}

// correlate computes the valid-mode cross-correlation of the reference with
// the unit-norm sample, normalized per window so that high-amplitude
// ill-fitting reference regions cannot overpower well-fitting low-amplitude
// ones.
func (l *Locator) correlate(sample []float64) ([]float64, error) {
	if len(sample) > len(l.ref) {
		return nil, fmt.Errorf("%w: sample longer than reference", ErrInvalidArgument)
	}

	norms := l.windowNorms(len(sample))
	corr := make([]float64, len(l.ref)-len(sample)+1)
	for i := range corr {
		sum := 0.0
		for j, v := range sample {
			sum += l.ref[i+j] * v
		}
		corr[i] = sum / norms[i]
	}
	return corr, nil
}

// windowNorms returns the Euclidean norm of every sample-sized reference
// window, with featureless windows replaced by featurelessDivisor. Results
// are cached per window size; a lock run recomputes them at most once.
func (l *Locator) windowNorms(width int) []float64 {
	if cached, ok := l.norms[width]; ok {
		return cached
	}

	// Naive per-window norms are O(m*n). The add/subtract recurrence is
	// O(m); its long summation runs pick up numerical error, so the sum is
	// Kahan-compensated.
	count := len(l.ref) - width + 1
	squares := make([]float64, count)
	for _, v := range l.ref[:width] {
		squares[0] += v * v
	}
	lost := 0.0
	for i := 1; i < count; i++ {
		change := l.ref[width+i-1]*l.ref[width+i-1] - l.ref[i-1]*l.ref[i-1] - lost
		squares[i] = squares[i-1] + change
		lost = (squares[i] - squares[i-1]) - change
	}

	norms := make([]float64, count)
	maxNorm := 0.0
	for i, sq := range squares {
		norms[i] = math.Sqrt(math.Max(sq, 0))
		maxNorm = math.Max(maxNorm, norms[i])
	}
	featureless := 0
	for i, n := range norms {
		if n < maxNorm*l.featureThreshold {
			norms[i] = featurelessDivisor
			featureless++
		}
	}
	if featureless > 0 {
		l.logger.Debug("featureless reference windows blocked from matching",
			logging.Int("windows", featureless),
			logging.Int("width", width))
	}

	l.norms[width] = norms
	return norms
}

// rateFinds filters, sorts and scores match candidates. Candidates below the
// quality threshold are dropped; survivors get a reliability in [0, 1].
func rateFinds(maxima []Match, corr []float64) []Match {
	matches := make([]Match, 0, len(maxima))
	for _, m := range maxima {
		if m.Quality > matchThreshold {
			matches = append(matches, m)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Quality > matches[j].Quality })

	switch {
	case len(matches) == 1:
		// With a single candidate, judge it against the shape of the whole
		// correlation trace. Guards against false positives on references
		// dull enough to produce only one maximum.
		maxVal := matches[0].Quality
		minVal := floats.Min(corr)
		mean := stat.Mean(corr, nil)
		matches[0].Reliability = (mean - minVal) / (maxVal - minVal)
	case len(matches) > 1:
		// Compare the best candidate against the runner-up; the rest get
		// reliabilities scaled down by their relative quality.
		best := 1 - math.Pow(matches[1].Quality/matches[0].Quality, confidenceExponent)
		matches[0].Reliability = best
		for i := 1; i < len(matches); i++ {
			matches[i].Reliability = best * matches[i].Quality / matches[0].Quality
		}
	}
	return matches
}
