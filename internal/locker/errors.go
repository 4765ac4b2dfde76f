package locker

import "errors"

// Algorithmic failure kinds. Callers branch on these, so search and
// verification operations return them instead of generic errors.
var (
	// ErrNoLine means a search exhausted its range without an accepted
	// doppler line.
	ErrNoLine = errors.New("no doppler line found")

	// ErrNoFeature means feature matching saw nothing resembling the
	// reference at all.
	ErrNoFeature = errors.New("no feature present in sample")

	// ErrLowConfidence means exactly one candidate matched but its
	// reliability stayed below the confidence threshold.
	ErrLowConfidence = errors.New("insufficient match confidence")

	// ErrAmbiguous means a real feature was seen but several candidates
	// scored too similarly to pick one.
	ErrAmbiguous = errors.New("ambiguous feature match")

	// ErrDrift means iterative centering did not converge within its
	// attempt budget.
	ErrDrift = errors.New("line drifting, centering did not converge")

	// ErrTuningRange means a requested tuning target would leave the
	// actuator's usable range. Nothing is mutated when it is returned.
	ErrTuningRange = errors.New("tuning target outside actuator range")

	// ErrWrongStatus means the operation is not allowed in the current
	// lock status.
	ErrWrongStatus = errors.New("wrong lock status for operation")
)
