// Package errs classifies every failure into an operational error kind with
// structured context, and decides at the entry points (CLI command handler,
// HTTP route handler) how each kind is reported.
//
// Operational kinds are expected and recoverable by the caller: the message
// is shown to the user and the process exits 1 (or the HTTP request fails).
// KindInternal marks invariant violations; those are logged at error level
// and exit 2.
package errs
