// Package preflight provides readiness checks for the filesystem paths and
// external services shiftsync depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failing check before
//     scheduling refresh cycles.
//   - The CLI "shiftsync status" command renders the same results next to
//     snapshot statistics.
package preflight
