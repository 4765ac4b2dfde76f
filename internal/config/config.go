package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, database, and socket locations.
type Paths struct {
	LogDir        string `toml:"log_dir"`
	ReferenceFile string `toml:"reference_file"`
	ArchiveDB     string `toml:"archive_db"`
	Socket        string `toml:"socket"`
}

// Lock contains the closed-loop lock management parameters.
type Lock struct {
	// RailZone is the normalized distance from 0 or 1 within which the
	// lockbox output is considered railed.
	RailZone float64 `toml:"rail_zone"`
	// BalancePoint is the lockbox equilibrium position in [0, 1].
	BalancePoint float64 `toml:"balance_point"`
	// AllowableImbalance is the acceptable deviation from BalancePoint
	// before the balancer intervenes.
	AllowableImbalance       float64 `toml:"allowable_imbalance"`
	BalanceIntervalSeconds   float64 `toml:"balance_interval_seconds"`
	RailCheckIntervalSeconds float64 `toml:"rail_check_interval_seconds"`

	// MatchThreshold is the minimum correlation quality for a feature
	// match candidate to be considered at all.
	MatchThreshold float64 `toml:"match_threshold"`
	// ConfidenceThreshold is the minimum reliability a candidate needs to
	// be accepted without further disambiguation.
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	// FeatureThreshold marks reference windows as feature-less when their
	// norm falls below this fraction of the maximum window norm.
	FeatureThreshold float64 `toml:"feature_threshold"`

	// DipDecidingDepth separates the target transition's doppler dip from
	// neighboring features.
	DipDecidingDepth   float64 `toml:"dip_deciding_depth"`
	TuningPrecisionMHz float64 `toml:"tuning_precision_mhz"`
	TuningAttempts     int     `toml:"tuning_attempts"`
	PrelockStepMHz     float64 `toml:"prelock_step_mhz"`
	PrelockMaxRangeMHz float64 `toml:"prelock_max_range_mhz"`
	// SFGFactor relates laser frequency to spectroscopy frequency for
	// sum-frequency-generation setups.
	SFGFactor float64 `toml:"sfg_factor"`
}

// Actuator describes one tuner's physical characteristics.
type Actuator struct {
	// ScaleMHz is the laser-MHz excursion covered by the actuator's full
	// normalized [0, 1] range. Spectroscopy frequencies differ by the SFG
	// factor.
	ScaleMHz float64 `toml:"scale_mhz"`
	// Granularity is the smallest normalized step that makes a difference.
	Granularity  float64 `toml:"granularity"`
	DelaySeconds float64 `toml:"delay_seconds"`
}

// Tuners groups the actuator configurations by role.
type Tuners struct {
	Current Actuator `toml:"current"`
	Temp    Actuator `toml:"temp"`
	Lockbox Actuator `toml:"lockbox"`
}

// DAQ contains acquisition-unit settings.
type DAQ struct {
	Driver          string  `toml:"driver"`
	ScanTimeSeconds float64 `toml:"scan_time_seconds"`
	ScanSpanMHz     float64 `toml:"scan_span_mhz"`
	// RampAmplitude is the loopback excursion of a full-range sweep; scan
	// positions are mapped to frequency through it.
	RampAmplitude    float64   `toml:"ramp_amplitude"`
	MinRampAmplitude float64   `toml:"min_ramp_amplitude"`
	ErrTrimFactors   []float64 `toml:"err_trim_factors"`
	LogTrimFactors   []float64 `toml:"log_trim_factors"`
	SmoothingWindow  int       `toml:"smoothing_window"`
	MinLogDipDepth   float64   `toml:"min_log_dip_depth"`
	UdevDeviceMatch  string    `toml:"udev_device_match"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	LockEvents     bool   `toml:"lock_events"`
	DaemonEvents   bool   `toml:"daemon_events"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for lockline.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Lock          Lock          `toml:"lock"`
	Tuners        Tuners        `toml:"tuners"`
	DAQ           DAQ           `toml:"daq"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/lockline/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("lockline.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon needs at runtime.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir}
	if db := strings.TrimSpace(c.Paths.ArchiveDB); db != "" {
		dirs = append(dirs, filepath.Dir(db))
	}
	if sock := strings.TrimSpace(c.Paths.Socket); sock != "" {
		dirs = append(dirs, filepath.Dir(sock))
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LogFilePath returns the daemon log file location, or "" when no log
// directory is configured.
func (c *Config) LogFilePath() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "lockline.log")
}

// BalanceInterval returns the balancer period as a duration.
func (c *Config) BalanceInterval() time.Duration {
	return secondsToDuration(c.Lock.BalanceIntervalSeconds)
}

// RailCheckInterval returns the watchdog poll period as a duration.
func (c *Config) RailCheckInterval() time.Duration {
	return secondsToDuration(c.Lock.RailCheckIntervalSeconds)
}

// ScanTime returns the configured scan duration.
func (c *Config) ScanTime() time.Duration {
	return secondsToDuration(c.DAQ.ScanTimeSeconds)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
