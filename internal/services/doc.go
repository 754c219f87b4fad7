// Package services defines shared utilities consumed by the discovery,
// download, and workflow packages.
//
// Key responsibilities:
//   - Context helpers that stamp session names, run identifiers, and the
//     artist under processing for logging.
//   - Structured error markers plus the Wrap helper, so callers classify
//     failures with errors.Is (lookup miss vs transport vs configuration)
//     and the CLI maps them onto exit codes.
package services
