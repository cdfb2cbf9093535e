// Package logging assembles the slog loggers used across lockersync.
//
// It owns the console and JSON handlers, writes a JSON copy of every record to
// the log directory, and exposes context-aware helpers so pipeline code tags
// lines with batch IDs, file paths, and stages without threading them by hand.
// NewNop serves tests and wiring code that cannot fail.
package logging
