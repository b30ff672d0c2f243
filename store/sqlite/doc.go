// Package sqlite provides an embedded SQLite implementation of store.Store
// using the pure-Go modernc.org/sqlite driver. No external service is
// required, which makes it the default durable backend for single-host
// harness runs.
//
// Checkpoint results and policies are stored as JSON columns; scalar
// counters get their own columns so external tooling can query them.
package sqlite
