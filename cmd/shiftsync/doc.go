// Command shiftsync ingests the emergency department roster, keeps the local
// snapshot reconciled, and prints schedule views.
//
// One-shot commands (refresh, show, dupes, legend, ...) open the store
// directly; `shiftsync daemon` runs the scheduled loop in the foreground.
// Both load the TOML config named by --config or the default path.
package main
