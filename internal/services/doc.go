// Package services defines shared utilities consumed by the upload pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp batch IDs, file paths, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can decide
//     whether a failed batch is worth retrying and what to tell the operator.
//
// Use these helpers when wiring new pipeline logic so error handling and
// observability stay uniform across components.
package services
