package signals

import (
	"math"
	"testing"
)

// zRampScan builds a scan resembling the acquisition unit's Z-shaped sweep:
// flat head, linear ramp of the given amplitude, flat tail.
func zRampScan(head, body, tail int, amplitude float64) Scan {
	n := head + body + tail
	ramp := make([]float64, n)
	errSig := make([]float64, n)
	logSig := make([]float64, n)
	for i := 0; i < n; i++ {
		switch {
		case i < head:
			ramp[i] = 0
		case i < head+body:
			ramp[i] = amplitude * float64(i-head) / float64(body-1)
		default:
			ramp[i] = 0
		}
		errSig[i] = float64(i)
		logSig[i] = 1
	}
	return Scan{Ramp: ramp, Err: errSig, Log: logSig}
}

func TestTrimCutsSettlingEdges(t *testing.T) {
	scan := zRampScan(50, 400, 50, 5000)
	trimmed, err := Trim(scan, TrimOptions{MinRampAmplitude: 1000, TrimFactors: []float64{0.1, 0.05}})
	if err != nil {
		t.Fatalf("trim: %v", err)
	}
	if trimmed.Len() >= scan.Len() {
		t.Fatalf("nothing trimmed: %d >= %d", trimmed.Len(), scan.Len())
	}
	if trimmed.Len() < 300 {
		t.Fatalf("trimmed too aggressively: %d samples left", trimmed.Len())
	}
	// The flat head must be gone: first ramp value well above zero.
	if trimmed.Ramp[0] < 100 {
		t.Fatalf("settling head still present, ramp[0]=%v", trimmed.Ramp[0])
	}
}

func TestTrimRejectsFlatScan(t *testing.T) {
	n := 200
	flat := make([]float64, n)
	scan := Scan{Ramp: flat, Err: make([]float64, n), Log: nil}
	if _, err := Trim(scan, TrimOptions{MinRampAmplitude: 1000}); err == nil {
		t.Fatal("expected error for scan without a ramp")
	}
}

func TestTrimRejectsMismatchedColumns(t *testing.T) {
	scan := Scan{Ramp: make([]float64, 10), Err: make([]float64, 9)}
	if _, err := Trim(scan, TrimOptions{MinRampAmplitude: 1}); err == nil {
		t.Fatal("expected error for mismatched columns")
	}
}

func dipScan(n int, dipCenter, dipWidth, dipDepth float64) Scan {
	ramp := make([]float64, n)
	errSig := make([]float64, n)
	logSig := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n-1)
		ramp[i] = x * 5000
		d := (x - dipCenter) / dipWidth
		logSig[i] = 1 - dipDepth*math.Exp(-d*d)
		errSig[i] = -2 * d * logSig[i]
	}
	return Scan{Ramp: ramp, Err: errSig, Log: logSig}
}

func TestLocateDopplerLineFindsCenteredDip(t *testing.T) {
	scan := dipScan(1001, 0.5, 0.05, 0.4)
	line, err := LocateDopplerLine(scan, 5000, 1000, DopplerOptions{SmoothingWindow: 31, MinDipDepth: 0.1})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if line == nil {
		t.Fatal("expected a line")
	}
	if math.Abs(line.Distance) > 5 {
		t.Fatalf("centered dip should have ~zero distance, got %v MHz", line.Distance)
	}
	if line.Depth < 0.3 || line.Depth > 0.45 {
		t.Fatalf("unexpected depth %v", line.Depth)
	}
}

func TestLocateDopplerLineReportsSignedDistance(t *testing.T) {
	scan := dipScan(1001, 0.75, 0.05, 0.4)
	line, err := LocateDopplerLine(scan, 5000, 1000, DopplerOptions{SmoothingWindow: 31, MinDipDepth: 0.1})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if line == nil {
		t.Fatal("expected a line")
	}
	if math.Abs(line.Distance-250) > 10 {
		t.Fatalf("dip at 3/4 span should be ~+250 MHz from center, got %v", line.Distance)
	}
}

func TestLocateDopplerLineIgnoresShallowDip(t *testing.T) {
	scan := dipScan(1001, 0.5, 0.05, 0.05)
	line, err := LocateDopplerLine(scan, 5000, 1000, DopplerOptions{SmoothingWindow: 31, MinDipDepth: 0.1})
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if line != nil {
		t.Fatalf("shallow dip should be ignored, got %+v", line)
	}
}

func TestLocateDopplerLineRequiresLogColumn(t *testing.T) {
	scan := Scan{Ramp: make([]float64, 10), Err: make([]float64, 10)}
	if _, err := LocateDopplerLine(scan, 5000, 1000, DopplerOptions{}); err == nil {
		t.Fatal("expected error without detector column")
	}
}

func TestMovingAverageFlattensSpikes(t *testing.T) {
	values := make([]float64, 101)
	values[50] = 100
	smoothed := movingAverage(values, 11)
	if smoothed[50] > 10 {
		t.Fatalf("spike survived smoothing: %v", smoothed[50])
	}
	// The window shrinks at the edges instead of zero-padding.
	if smoothed[0] != 0 {
		t.Fatalf("edge value distorted: %v", smoothed[0])
	}
}

func TestFindFirstFlankReverse(t *testing.T) {
	scan := zRampScan(30, 200, 30, 5000)
	forward, err := findFirstFlank(scan.Ramp, 1000, 0, false)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	backward, err := findFirstFlank(scan.Ramp, 1000, len(scan.Ramp)-1, true)
	if err != nil {
		t.Fatalf("backward: %v", err)
	}
	if forward >= backward {
		t.Fatalf("flanks out of order: %d >= %d", forward, backward)
	}
}
