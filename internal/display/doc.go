// Package display keeps rendered schedule views up to date.
//
// A Refresher owns a set of registered targets and periodically re-renders
// the relevant day's roster into each one. It only reads the stored snapshot
// and never triggers ingestion. A target that reports ErrTargetGone is
// deregistered; any other render error is logged and the target is retried
// on the next tick.
package display
