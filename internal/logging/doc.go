// Package logging assembles structured slog loggers and formatting helpers used
// across capturesync.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so worker code automatically tags
// log lines with queue item IDs, record IDs, upload steps, and correlation IDs.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail, a tee for writing a second destination, and log retention.
package logging
