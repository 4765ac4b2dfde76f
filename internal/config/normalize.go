package config

import (
	"path/filepath"
	"strings"
)

// normalize expands user paths and fills in locations derived from the log
// directory. Runs before validation so validators see final values.
func (c *Config) normalize() error {
	var err error
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.ReferenceFile != "" {
		if c.Paths.ReferenceFile, err = expandPath(c.Paths.ReferenceFile); err != nil {
			return err
		}
	}

	if strings.TrimSpace(c.Paths.ArchiveDB) == "" {
		c.Paths.ArchiveDB = filepath.Join(c.Paths.LogDir, "archive.db")
	} else if c.Paths.ArchiveDB, err = expandPath(c.Paths.ArchiveDB); err != nil {
		return err
	}

	if strings.TrimSpace(c.Paths.Socket) == "" {
		c.Paths.Socket = filepath.Join(c.Paths.LogDir, "locklined.sock")
	} else if c.Paths.Socket, err = expandPath(c.Paths.Socket); err != nil {
		return err
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.DAQ.Driver = strings.ToLower(strings.TrimSpace(c.DAQ.Driver))

	if len(c.DAQ.ErrTrimFactors) == 0 {
		c.DAQ.ErrTrimFactors = []float64{0.05, 0.02}
	}
	if len(c.DAQ.LogTrimFactors) == 0 {
		c.DAQ.LogTrimFactors = []float64{0.1, 0.05}
	}
	if c.DAQ.SmoothingWindow%2 == 0 {
		// Moving-average smoothing needs an odd window.
		c.DAQ.SmoothingWindow++
	}
	return nil
}
