// Package daemon coordinates the long-running shiftsync process.
//
// It holds a flock-based instance lock, schedules refresh cycles and nightly
// maintenance with cron, keeps display targets current, and reloads the name
// legend when the file store's legend is edited by hand.
//
// Cycle logic lives in package refresh; the daemon only decides when things
// run and shuts them down cleanly.
package daemon
