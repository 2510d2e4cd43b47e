// Package pairing matches scribe shifts with the provider they work beside
// and arranges the result for display.
//
// Pairer.Pair is the core: every scribe record gets at most one companion.
// A scribe on the PA label pairs with an MLP whose start time is within the
// tolerance window; any other scribe pairs with the physician holding the
// identical label and time range. GroupByPeriod, GroupByZone, MergeLines,
// OnDuty, and RelevantDate are pure helpers over records and pairs.
package pairing
