// Package reconcile turns a freshly parsed roster into the stored snapshot.
//
// A refresh cycle calls Compare first, against the snapshot about to be
// replaced, and then Update, which standardizes names, validates, removes
// identity duplicates, sorts, and swaps the snapshot in one atomic store
// operation. Change notification is a two-phase handshake: Compare omits
// changes already recorded as alerted, and the caller calls MarkAlerted only
// for the changes it actually delivered.
//
// Validation problems are data, not errors: they come back as Rejections in
// the UpdateResult and never abort the batch.
package reconcile
