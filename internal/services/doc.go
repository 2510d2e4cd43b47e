// Package services defines shared utilities consumed by the refresh pipeline
// and its collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp refresh cycle IDs, roster sites, triggers,
//     and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so fetch, storage, and
//     validation failures can be classified with errors.Is.
//   - IsRetryable, which the retry policy consults before scheduling another
//     attempt.
//
// Use these helpers when wiring new pipeline steps so operational behaviour
// (error handling, observability, retries) stays uniform.
package services
