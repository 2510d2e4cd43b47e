// Package refresh runs ingestion cycles.
//
// A cycle collects every roster site (retrying per the configured policy),
// diffs the scribe roster against the stored snapshot, commits the new
// snapshot, optionally repairs duplicate rows, delivers change alerts, marks
// the delivered changes alerted, and finally persists any names learned
// during the cycle. A cycle that fails before the commit leaves the stored
// snapshot untouched.
//
// Runner serializes cycles. Concurrent callers of Run share the in-flight
// cycle instead of starting another one.
package refresh
