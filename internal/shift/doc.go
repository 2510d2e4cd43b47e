// Package shift defines the roster data model shared by the parser,
// normalizer, reconciler, and pairer.
//
// A Record is one scheduled working block. Its identity key is
// (date, label, time, person, role); the near-identity SlotKey drops the
// person and should hold at most one live row. Change values describe
// Scribe-level differences between two snapshots and carry a content hash used
// to suppress repeat notifications. Range parses the HHMM-HHMM (or HMM) time
// strings found in the roster into minutes since midnight.
package shift
