// Package locker manages the closed-loop frequency lock.
//
// The Manager layers everything between raw hardware access and the daemon's
// intent of "stay locked on the right line": signal acquisition, doppler line
// search and verification, feature matching against a reference spectrum,
// lock engagement and the maintenance daemons (watchdog, relocker, balancer)
// that keep an engaged lock healthy.
//
// Lock status is never stored. Every query derives it from the lockbox
// engagement state and the lockbox tuner position, so the Manager can never
// disagree with the hardware about whether the laser is locked.
package locker
