// Package sqlite stores chunk text and conversation history in a single
// SQLite database file.
//
// The adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO, accessed through jmoiron/sqlx. One Store serves two ports:
//
//   - TextStore: chunk text keyed by id, deduplicated by content hash
//   - HistoryStore: append-only conversation turns keyed by user
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.kbchat/data/kbchat.db
//
// # Thread Safety
//
// All operations are safe for concurrent use. The database runs in WAL mode
// with a busy timeout so the history writer and ingestion can share it.
package sqlite
