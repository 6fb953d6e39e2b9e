// Package storage persists the job collection.
//
// The collection is read and written whole: Load returns every stored job in
// order, Save replaces the stored collection. Drivers:
//   - "file": a single JSON document, replaced atomically on every save
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//   - "postgres": PostgreSQL via lib/pq
//   - "memory": process-local, for tests and dry runs
package storage
