// Package relstore is AETHER's relational store: durable SQLite-backed
// storage for symbols, canonical SIR blobs, SIR history, unresolved edges,
// test intents, project notes, and analysis bookkeeping. All write paths
// are transactional, mirroring the teacher's LocalStore single-writer
// discipline (one *sql.DB, one sync.RWMutex serializing every mutation).
package relstore

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"aether/internal/logging"
)

// Store is the relational store. All exported methods are safe for
// concurrent use; writers serialize on mu, readers may run concurrently
// with each other but not with a writer.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open opens (creating if absent) a SQLite database at path and applies the
// schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("relstore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer discipline; sqlite3 serializes anyway

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	logging.RelStore("closing relational store")
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for read-only access beyond this
// package's surface. No package in this module calls it.
func (s *Store) DB() *sql.DB {
	return s.db
}
