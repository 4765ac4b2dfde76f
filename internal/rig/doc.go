// Package rig defines the narrow interfaces the lock engine needs from the
// spectroscopy hardware: a scanner that sweeps the laser and records the
// detector channels, and a lockbox that closes the servo loop. A deterministic
// simulator backs both interfaces for tests and for running the daemon
// without hardware attached.
package rig
