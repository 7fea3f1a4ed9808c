// Package storage persists profiles, the selection pointer and cached
// renders in SQLite. Callers may hold a nil *DB when storage is
// unavailable; every method degrades to an empty no-op store instead
// of crashing the render path.
package storage

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrUnavailable is returned by mutating calls on a degraded store.
var ErrUnavailable = errors.New("storage unavailable")

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS profiles (
  id         TEXT PRIMARY KEY,
  url        TEXT NOT NULL UNIQUE,
  unit_name  TEXT NOT NULL,
  stake_name TEXT NOT NULL,
  last_used  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS renders (
  source_url  TEXT PRIMARY KEY,
  payload     TEXT NOT NULL,
  rendered_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// unavailable reports whether this store is degraded (nil or closed).
func (d *DB) unavailable() bool {
	return d == nil || d.sql == nil
}

// DefaultPath resolves the database location, creating the config
// directory if needed.
func DefaultPath(override string) (string, error) {
	if override != "" {
		return filepath.Abs(override)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".config", "wardprogram")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create config dir: %w", err)
	}
	return filepath.Join(dir, "wardprogram.sqlite"), nil
}

// newProfileID returns an opaque id, stable once assigned.
func newProfileID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// Fall back to a time-only id; uniqueness is still near
		// certain at profile-creation rates.
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return fmt.Sprintf("%x-%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}
