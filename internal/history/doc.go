// Package history persists a ledger of composition requests in SQLite.
//
// Every request gets a row keyed by its request id plus one transitions row
// per state change, so `montage history` can show what ran, how far it got,
// and why it failed. The database uses WAL mode and retries briefly on
// SQLITE_BUSY so concurrent CLI invocations for different outputs can share
// one ledger.
package history
