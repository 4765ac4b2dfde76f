package config

// Default returns the built-in configuration.
//
// The lock parameters are the values the system was commissioned with; the
// thresholds were tuned against the exact confidence formulas in the feature
// locator, so change them together or not at all.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: "~/.local/share/lockline",
		},
		Lock: Lock{
			RailZone:                 0.1,
			BalancePoint:             0.45,
			AllowableImbalance:       0.015,
			BalanceIntervalSeconds:   1.08,
			RailCheckIntervalSeconds: 0.84,
			MatchThreshold:           0.1,
			ConfidenceThreshold:      0.5,
			FeatureThreshold:         0.001,
			DipDecidingDepth:         (0.397 + 0.231) / 2,
			TuningPrecisionMHz:       50,
			TuningAttempts:           10,
			PrelockStepMHz:           800,
			PrelockMaxRangeMHz:       10000,
			SFGFactor:                2,
		},
		Tuners: Tuners{
			Current: Actuator{ScaleMHz: 5180, Granularity: 0.002, DelaySeconds: 1},
			Temp:    Actuator{ScaleMHz: 8660, Granularity: 0.00025, DelaySeconds: 30},
			Lockbox: Actuator{ScaleMHz: 1171, Granularity: 0.0001, DelaySeconds: 0.2},
		},
		DAQ: DAQ{
			Driver:           "sim",
			ScanTimeSeconds:  0.5,
			ScanSpanMHz:      2000,
			RampAmplitude:    5000,
			MinRampAmplitude: 1000,
			ErrTrimFactors:   []float64{0.05, 0.02},
			LogTrimFactors:   []float64{0.1, 0.05},
			SmoothingWindow:  301,
			MinLogDipDepth:   0.1,
			UdevDeviceMatch:  "",
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			LockEvents:     true,
			DaemonEvents:   true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        "console",
			Level:         "info",
			RetentionDays: 14,
		},
	}
}
