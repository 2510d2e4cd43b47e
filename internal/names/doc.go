// Package names maps raw roster name tokens to curated display names.
//
// The Normalizer owns the name legend: one map for physicians and one for
// mid-level providers, keyed by the upper-cased raw token. Unknown provider
// names get a generated placeholder and are remembered as pending until
// SaveUpdates writes placeholders back to the legend store, so an operator
// can later replace them with proper display names. Scribe names are only
// title-cased.
//
// The legend has a single writer: refresh cycles are serialized upstream, so
// the Normalizer does no locking of its own.
package names
