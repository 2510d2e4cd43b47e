// Package parser turns roster calendar pages into raw shift records.
//
// Parse handles a single free-text fragment such as "SJH A 0530-1400:
// MERJANIAN". Fragments are whitespace-normalized and then matched against an
// ordered rule list where the first matching rule wins; the last rule always
// succeeds, so Parse never fails. Range validation is deliberately left to the
// reconciler.
//
// ParseCalendar walks one month page of the roster HTML, derives the month
// from the page header, and feeds every span found in a day cell through Parse.
package parser
