package locator

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadReferenceFile reads a two-column whitespace-separated text file of
// (position, amplitude) rows, installs the amplitudes as the reference
// spectrum with the span covered by the position column, and returns the
// number of samples loaded. Blank lines and lines starting with '#' are
// skipped.
func (l *Locator) LoadReferenceFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open reference file: %w", err)
	}
	defer f.Close()

	var xs, ys []float64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, fmt.Errorf("reference file %s line %d: need 2 columns, got %d", path, lineNo, len(fields))
		}
		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return 0, fmt.Errorf("reference file %s line %d: %w", path, lineNo, err)
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0, fmt.Errorf("reference file %s line %d: %w", path, lineNo, err)
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read reference file: %w", err)
	}
	if len(xs) < 2 {
		return 0, fmt.Errorf("reference file %s: need at least 2 rows, got %d", path, len(xs))
	}

	lo, hi := xs[0], xs[0]
	for _, x := range xs {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	if err := l.SetReference(ys, hi-lo); err != nil {
		return 0, fmt.Errorf("reference file %s: %w", path, err)
	}
	return len(ys), nil
}
