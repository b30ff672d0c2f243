// Package bunstore provides a PostgreSQL-backed store built on the Bun ORM.
//
// It persists harness run state, session results, and checkpoints, and is
// the backend of choice when several coordinators share one database. Schema
// management runs through embedded SQL migrations tracked in a
// harness_migrations table, so Migrate is safe to call on every start.
//
// The caller owns the *bun.DB lifecycle; the store never closes it.
package bunstore
