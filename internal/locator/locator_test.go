package locator

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// testReference builds a feature-rich zero-baseline spectrum: Gaussian dips
// of distinct widths and depths, as an error signal would show them.
func testReference(n int) []float64 {
	type bump struct{ center, width, depth float64 }
	bumps := []bump{
		{0.15, 0.010, 0.9},
		{0.31, 0.025, 0.5},
		{0.48, 0.008, 0.7},
		{0.63, 0.030, 0.3},
		{0.80, 0.015, 0.6},
	}
	ref := make([]float64, n)
	for i := range ref {
		x := float64(i) / float64(n-1)
		v := 0.0
		for _, b := range bumps {
			d := (x - b.center) / b.width
			v -= b.depth * math.Exp(-d*d)
		}
		ref[i] = v
	}
	return ref
}

func sliceSample(ref []float64, lo, hi int) Sample {
	n := hi - lo
	s := Sample{X: make([]float64, n), Y: make([]float64, n)}
	for i := 0; i < n; i++ {
		s.X[i] = float64(i)
		s.Y[i] = ref[lo+i]
	}
	return s
}

func newTestLocator(t *testing.T) *Locator {
	t.Helper()
	l, err := New(0.001, nil)
	if err != nil {
		t.Fatalf("new locator: %v", err)
	}
	return l
}

func TestLocateSampleExactSubsequence(t *testing.T) {
	const refLen, refSpan = 1000, 100.0
	l := newTestLocator(t)
	ref := testReference(refLen)
	if err := l.SetReference(ref, refSpan); err != nil {
		t.Fatalf("set reference: %v", err)
	}

	// Cut a 100-sample slice at index 250, i.e. position 25 of 100.
	sample := sliceSample(ref, 250, 350)
	matches, err := l.LocateSample(sample, 10)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("exact subsequence produced no match")
	}
	best := matches[0]
	if math.Abs(best.Position-25) > 0.5 {
		t.Fatalf("best position %v, want ~25", best.Position)
	}
	if best.Quality < 0.99 {
		t.Fatalf("exact slice should correlate near 1, got %v", best.Quality)
	}
	if best.Reliability < 0.2 || best.Reliability > 1 {
		t.Fatalf("implausible reliability %v", best.Reliability)
	}
}

func TestLocateSampleToleratesDistortion(t *testing.T) {
	const refLen, refSpan = 1000, 100.0
	l := newTestLocator(t)
	ref := testReference(refLen)
	if err := l.SetReference(ref, refSpan); err != nil {
		t.Fatalf("set reference: %v", err)
	}

	// Rescaled amplitude plus a slow additive drift.
	sample := sliceSample(ref, 250, 350)
	for i := range sample.Y {
		sample.Y[i] = 2.5*sample.Y[i] + 0.02*float64(i)/float64(len(sample.Y))
	}
	matches, err := l.LocateSample(sample, 10)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("distorted slice produced no match")
	}
	if math.Abs(matches[0].Position-25) > 1 {
		t.Fatalf("best position %v, want ~25", matches[0].Position)
	}
	if matches[0].Quality < 0.9 {
		t.Fatalf("distorted slice should still correlate well, got %v", matches[0].Quality)
	}
}

func TestLocateSampleRejectsForeignSignal(t *testing.T) {
	const refLen, refSpan = 1000, 100.0
	l := newTestLocator(t)
	if err := l.SetReference(testReference(refLen), refSpan); err != nil {
		t.Fatalf("set reference: %v", err)
	}

	// An alternating-sign signal shares nothing with the smooth reference.
	sample := Sample{X: make([]float64, 100), Y: make([]float64, 100)}
	for i := range sample.X {
		sample.X[i] = float64(i)
		if i%2 == 0 {
			sample.Y[i] = 1
		} else {
			sample.Y[i] = -1
		}
	}
	matches, err := l.LocateSample(sample, 10)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("foreign signal matched: %+v", matches)
	}
}

func TestLocateSamplePeriodicReferenceIsAmbiguous(t *testing.T) {
	const refLen, refSpan = 1000, 100.0
	ref := make([]float64, refLen)
	for i := range ref {
		ref[i] = 1 + 0.5*math.Sin(2*math.Pi*10*float64(i)/float64(refLen))
	}
	l := newTestLocator(t)
	if err := l.SetReference(ref, refSpan); err != nil {
		t.Fatalf("set reference: %v", err)
	}

	matches, err := l.LocateSample(sliceSample(ref, 100, 200), 10)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if len(matches) < 2 {
		t.Fatalf("periodic reference should yield several candidates, got %d", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Quality > matches[i-1].Quality {
			t.Fatalf("matches not sorted by quality: %v after %v", matches[i].Quality, matches[i-1].Quality)
		}
	}
	// Near-identical candidates must pull the best one's reliability down.
	if matches[0].Reliability > 0.5 {
		t.Fatalf("ambiguous match rated too reliable: %v", matches[0].Reliability)
	}
	for _, m := range matches {
		if m.Reliability < 0 || m.Reliability > 1 {
			t.Fatalf("reliability %v outside [0, 1]", m.Reliability)
		}
	}
}

func TestLocateSampleSharpIsolatedDip(t *testing.T) {
	const refLen, refSpan = 1000, 100.0
	ref := make([]float64, refLen)
	for i := range ref {
		d := (float64(i) - 500) / 4
		ref[i] = -math.Exp(-d * d)
	}
	l := newTestLocator(t)
	if err := l.SetReference(ref, refSpan); err != nil {
		t.Fatalf("set reference: %v", err)
	}

	matches, err := l.LocateSample(sliceSample(ref, 475, 525), 5)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("one isolated feature should give one candidate, got %d", len(matches))
	}
	best := matches[0]
	if math.Abs(best.Position-47.5) > 1 {
		t.Fatalf("position %v, want ~47.5", best.Position)
	}
	if best.Quality < 0.99 {
		t.Fatalf("exact dip slice should correlate near 1, got %v", best.Quality)
	}
	// Away from the dip the reference is featureless and correlates near
	// zero, so the mean of the correlation curve stays low and the
	// mean-over-extent rating comes out modest even for a perfect hit.
	if best.Reliability <= 0 || best.Reliability > 0.5 {
		t.Fatalf("reliability %v outside the expected low band", best.Reliability)
	}
}

func TestLocateSampleArgumentChecks(t *testing.T) {
	l := newTestLocator(t)
	sample := sliceSample(testReference(1000), 0, 100)

	if _, err := l.LocateSample(sample, 10); !errors.Is(err, ErrNotReady) {
		t.Fatalf("want ErrNotReady, got %v", err)
	}

	if err := l.SetReference(testReference(1000), 100); err != nil {
		t.Fatalf("set reference: %v", err)
	}
	cases := []struct {
		name   string
		sample Sample
		span   float64
	}{
		{"span too large", sample, 100},
		{"span zero", sample, 0},
		{"span negative", sample, -1},
		{"mismatched columns", Sample{X: []float64{0, 1, 2}, Y: []float64{0, 1}}, 10},
		{"too few points", Sample{X: []float64{0}, Y: []float64{1}}, 10},
		{"zero signal", Sample{X: []float64{0, 1, 2, 3}, Y: []float64{0, 0, 0, 0}}, 10},
	}
	for _, tc := range cases {
		if _, err := l.LocateSample(tc.sample, tc.span); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("%s: want ErrInvalidArgument, got %v", tc.name, err)
		}
	}
}

func TestWindowNormsMatchDirectComputation(t *testing.T) {
	const refLen = 700
	ref := make([]float64, refLen)
	for i := range ref {
		x := float64(i)
		ref[i] = 1 + math.Sin(0.1*x) + 0.3*math.Cos(0.037*x)
	}
	l := newTestLocator(t)
	if err := l.SetReference(ref, 100); err != nil {
		t.Fatalf("set reference: %v", err)
	}

	const width = 37
	norms := l.windowNorms(width)
	if len(norms) != refLen-width+1 {
		t.Fatalf("got %d norms, want %d", len(norms), refLen-width+1)
	}
	for i, got := range norms {
		sum := 0.0
		for _, v := range ref[i : i+width] {
			sum += v * v
		}
		want := math.Sqrt(sum)
		if math.Abs(got-want)/want > 1e-8 {
			t.Fatalf("norm %d: sliding %v vs direct %v", i, got, want)
		}
	}
}

func TestWindowNormsBlockFeaturelessRegions(t *testing.T) {
	// First half silent, second half carries the features.
	const refLen = 400
	ref := make([]float64, refLen)
	for i := refLen / 2; i < refLen; i++ {
		ref[i] = math.Sin(0.2 * float64(i))
	}
	l := newTestLocator(t)
	if err := l.SetReference(ref, 100); err != nil {
		t.Fatalf("set reference: %v", err)
	}

	norms := l.windowNorms(20)
	if norms[0] != featurelessDivisor {
		t.Fatalf("silent window should get the blocking divisor, got %v", norms[0])
	}
	if norms[len(norms)-1] == featurelessDivisor {
		t.Fatal("feature-bearing window was blocked")
	}
}

func TestSetReferenceInvalidatesNormCache(t *testing.T) {
	l := newTestLocator(t)
	if err := l.SetReference(testReference(500), 100); err != nil {
		t.Fatalf("set reference: %v", err)
	}
	l.windowNorms(50)
	if len(l.norms) != 1 {
		t.Fatalf("expected cached norms, got %d entries", len(l.norms))
	}
	if err := l.SetReference(testReference(600), 100); err != nil {
		t.Fatalf("set reference: %v", err)
	}
	if len(l.norms) != 0 {
		t.Fatal("norm cache survived reference replacement")
	}
}

func TestLoadReferenceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reference.txt")
	content := "# frequency amplitude\n0.0 1.0\n1.0 0.8\n\n2.0 0.9\n3.0 1.0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	l := newTestLocator(t)
	n, err := l.LoadReferenceFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 4 {
		t.Fatalf("loaded %d rows, want 4", n)
	}
	if !l.Ready() {
		t.Fatal("locator should be ready after loading")
	}
	if l.refSpan != 3 {
		t.Fatalf("span %v, want 3", l.refSpan)
	}
}

func TestLoadReferenceFileErrors(t *testing.T) {
	l := newTestLocator(t)
	if _, err := l.LoadReferenceFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.txt")
	if err := os.WriteFile(bad, []byte("1.0 2.0\nnot-a-number 3.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := l.LoadReferenceFile(bad); err == nil {
		t.Fatal("expected error for malformed row")
	}
}
