// Package store is the durable side of the workspace: an append-only message
// table queryable by created-after cursor, the singleton shared document and
// a small key-value table for sync checkpoints, all in one sqlite file per
// session.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// dsnParams enable WAL so the daemon's poll reads never block its writes,
// and a busy timeout instead of immediate SQLITE_BUSY on contention.
const dsnParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// DB wraps the session's sqlite connection.
type DB struct {
	*sql.DB
}

// Open connects to the sqlite file at path, creating it on first use, and
// verifies the connection before returning.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{db}, nil
}
