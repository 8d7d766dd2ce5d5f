// Package logging assembles structured slog loggers and formatting helpers used
// across herdscreen.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so request code can tag log
// lines with job and correlation ids. The package also provides a no-op logger
// for tests and a progress sampler that keeps poll loops from flooding the log.
package logging
