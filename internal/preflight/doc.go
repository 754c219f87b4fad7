// Package preflight provides readiness checks for the filesystem paths and
// external services trawl depends on.
//
// `trawl doctor` runs RunAll and prints one row per check. Redis is checked
// only when a checkpoint backend other than "file" is configured, and the
// catalog check follows the configured backend.
package preflight
