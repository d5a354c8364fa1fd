package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed persistence layer for snapshots, history,
// alerts and the notification log.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and brings the schema up to
// date.
func Open(path string) (*Store, error) {
	if err := ensureDirectory(path); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: every write goes through the same handle, so per-disk
	// transactions never contend with each other inside SQLite.
	conn.SetMaxOpenConns(1)
	enableWAL(conn)

	s, err := New(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open connection and runs migrations.
func New(conn *sql.DB) (*Store, error) {
	if err := Migrate(conn); err != nil {
		return nil, err
	}
	return &Store{db: conn}, nil
}

// DB exposes the underlying handle for packages that keep their own tables.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func ensureDirectory(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}
	return nil
}

func enableWAL(conn *sql.DB) {
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Printf("⚠️  Could not enable WAL mode: %v", err)
	}
}
