// Package preflight provides readiness checks for the filesystem paths and
// services the lock daemon depends on.
//
// These checks run in two contexts:
//   - The daemon launcher calls RunAll before starting; a failed check is
//     reported up front instead of surfacing later as a confusing scan or
//     archival error.
//   - The CLI "lockline status" command uses individual check functions to
//     display environment health.
//
// Checks gated on optional configuration (reference spectrum, ntfy) are
// skipped when the feature is not configured.
package preflight
