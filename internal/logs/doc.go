// Package logs reads the shiftsync log file for the `logs` command.
//
// Last returns the final matching lines with bounded memory; Follow streams
// lines appended afterwards, waking on fsnotify events and resetting when
// the file is truncated or replaced.
package logs
