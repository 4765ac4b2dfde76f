// Package signals extracts information from spectroscopy scans.
//
// A Scan is the raw multi-column output of one acquisition sweep: the
// looped-back ramp, the error signal, and optionally the logarithmic
// absorption detector. The functions here trim the unreliable edges of a
// Z-ramp scan and locate doppler-broadened absorption dips in the detector
// signal.
package signals
