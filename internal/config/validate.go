package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all configured values are usable. It collects every
// problem rather than stopping at the first one.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must be set")
	}

	if c.Lock.RailZone <= 0 || c.Lock.RailZone >= 0.5 {
		problems = append(problems, "lock.rail_zone must be in (0, 0.5)")
	}
	if c.Lock.BalancePoint <= 0 || c.Lock.BalancePoint >= 1 {
		problems = append(problems, "lock.balance_point must be in (0, 1)")
	}
	if c.Lock.AllowableImbalance < 0 || c.Lock.AllowableImbalance > 0.5 {
		problems = append(problems, "lock.allowable_imbalance must be in [0, 0.5]")
	}
	if c.Lock.BalanceIntervalSeconds <= 0 {
		problems = append(problems, "lock.balance_interval_seconds must be positive")
	}
	if c.Lock.RailCheckIntervalSeconds <= 0 {
		problems = append(problems, "lock.rail_check_interval_seconds must be positive")
	}
	if c.Lock.MatchThreshold <= 0 || c.Lock.MatchThreshold >= 1 {
		problems = append(problems, "lock.match_threshold must be in (0, 1)")
	}
	if c.Lock.ConfidenceThreshold <= 0 || c.Lock.ConfidenceThreshold >= 1 {
		problems = append(problems, "lock.confidence_threshold must be in (0, 1)")
	}
	if c.Lock.FeatureThreshold <= 0 || c.Lock.FeatureThreshold >= 1 {
		problems = append(problems, "lock.feature_threshold must be in (0, 1)")
	}
	if c.Lock.TuningAttempts <= 0 {
		problems = append(problems, "lock.tuning_attempts must be positive")
	}
	if c.Lock.TuningPrecisionMHz <= 0 {
		problems = append(problems, "lock.tuning_precision_mhz must be positive")
	}
	if c.Lock.PrelockStepMHz <= 0 {
		problems = append(problems, "lock.prelock_step_mhz must be positive")
	}
	if c.Lock.PrelockMaxRangeMHz < c.Lock.PrelockStepMHz {
		problems = append(problems, "lock.prelock_max_range_mhz must be at least one step")
	}
	if c.Lock.SFGFactor == 0 {
		problems = append(problems, "lock.sfg_factor must be nonzero")
	}

	for role, actuator := range map[string]Actuator{
		"current": c.Tuners.Current,
		"temp":    c.Tuners.Temp,
		"lockbox": c.Tuners.Lockbox,
	} {
		if actuator.ScaleMHz <= 0 {
			problems = append(problems, fmt.Sprintf("tuners.%s.scale_mhz must be positive", role))
		}
		if actuator.Granularity <= 0 || actuator.Granularity >= 1 {
			problems = append(problems, fmt.Sprintf("tuners.%s.granularity must be in (0, 1)", role))
		}
		if actuator.DelaySeconds < 0 {
			problems = append(problems, fmt.Sprintf("tuners.%s.delay_seconds must not be negative", role))
		}
	}

	switch c.DAQ.Driver {
	case "sim", "":
	default:
		problems = append(problems, fmt.Sprintf("daq.driver %q is not supported", c.DAQ.Driver))
	}
	if c.DAQ.ScanTimeSeconds <= 0 {
		problems = append(problems, "daq.scan_time_seconds must be positive")
	}
	if c.DAQ.ScanSpanMHz <= 0 {
		problems = append(problems, "daq.scan_span_mhz must be positive")
	}
	if c.DAQ.RampAmplitude <= 0 {
		problems = append(problems, "daq.ramp_amplitude must be positive")
	}
	if c.DAQ.MinRampAmplitude <= 0 || c.DAQ.MinRampAmplitude >= c.DAQ.RampAmplitude {
		problems = append(problems, "daq.min_ramp_amplitude must be in (0, daq.ramp_amplitude)")
	}
	if len(c.DAQ.ErrTrimFactors) != 2 || len(c.DAQ.LogTrimFactors) != 2 {
		problems = append(problems, "daq trim factors need exactly two entries (begin, end)")
	}
	if c.DAQ.SmoothingWindow < 1 {
		problems = append(problems, "daq.smoothing_window must be at least 1")
	}
	if c.DAQ.MinLogDipDepth <= 0 {
		problems = append(problems, "daq.min_log_dip_depth must be positive")
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported", c.Logging.Format))
	}
	if c.Logging.RetentionDays < 0 {
		problems = append(problems, "logging.retention_days must not be negative")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
