// Package notifications delivers roster change alerts via ntfy.
//
// NewService returns a no-op implementation when no topic is configured so
// refresh code can notify unconditionally. Change lists are split into
// messages of at most max_changes_per_message lines and paced by a rate
// limiter. NotifyChanges reports which changes reached ntfy; only those
// should be marked alerted.
package notifications
