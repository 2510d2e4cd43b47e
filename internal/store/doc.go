// Package store persists the current shift snapshot, the delivered-change
// markers, the name legend, and refresh metadata.
//
// Two backends implement Store: a SQLite database (the default) and a
// directory of JSON documents guarded by a cross-process file lock. Both
// replace the snapshot atomically, so readers see either the previous or the
// new snapshot and never a mix. Duplicate repair uses the same rule in both:
// within a (date, label, time, role) slot the most recently updated row
// survives, and later insertion breaks ties.
package store
