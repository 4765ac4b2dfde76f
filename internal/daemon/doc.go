// Package daemon coordinates the long-running lockline process and system
// integration points.
//
// It wires configuration, the scan archive, the lock manager, notifications
// and the DAQ hot-plug monitor into a single lifecycle with flock-based
// locking to prevent multiple instances. The daemon owns the lock maintenance
// lifecycle: engaging spawns the balancer and relocker, releasing tears them
// down again.
//
// Keep orchestration logic here: the lock algorithms live in internal/locker
// while the daemon focuses on startup, shutdown, and high level coordination.
package daemon
