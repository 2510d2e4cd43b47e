// Package logging builds the structured slog loggers used across shiftsync.
//
// It owns the console and JSON handlers, level parsing, and output routing
// (every configured destination gets its own handler, so terminal colour
// never leaks into log files). Context helpers tag lines with the refresh
// cycle ID and site being processed, and NewNop gives tests and wiring code
// a logger that cannot fail.
package logging
