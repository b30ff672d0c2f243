// Package store defines the aggregate persistence interface.
//
// Each subsystem (run state, session results, checkpoints) defines its
// own store interface. The composite [Store] composes them all. A single
// backend need only implement Store to satisfy every subsystem's
// persistence contract.
//
// The composite interface:
//
//	type Store interface {
//	    harness.StateStore
//	    session.ResultStore
//	    checkpoint.Store
//
//	    Migrate(ctx context.Context) error
//	    Ping(ctx context.Context) error
//	    Close() error
//	}
//
// # Available Backends
//
//   - store/memory — in-memory store for development and testing
//   - store/sqlite — embedded SQLite backend (no external service)
//   - store/bun — PostgreSQL backend using the Bun ORM
//
// # Usage
//
//	import "github.com/xraph/harness/store/sqlite"
//
//	s, err := sqlite.New("harness.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
// # Migrations
//
// Call Migrate once at startup to create or update the schema:
//
//	if err := s.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package store
