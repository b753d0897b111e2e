// Package store provides SQLite-based storage for the local issuance
// history. Recording is advisory: the certificate itself is complete
// before anything is written here.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Issuance describes one signed certificate.
type Issuance struct {
	ID          string    `json:"id" yaml:"id"`
	KeyID       string    `json:"key_id" yaml:"key_id"`
	Principals  []string  `json:"principals" yaml:"principals"`
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
	ValidAfter  time.Time `json:"valid_after" yaml:"valid_after"`
	ValidBefore time.Time `json:"valid_before" yaml:"valid_before"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Store provides issuance history operations.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the default database path following the XDG spec.
func DefaultPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "sshca", "issuances.db")
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate creates the schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS issuances (
		id TEXT PRIMARY KEY,
		key_id TEXT NOT NULL,
		principals TEXT DEFAULT '',
		fingerprint TEXT NOT NULL,
		valid_after INTEGER NOT NULL,
		valid_before INTEGER NOT NULL,
		created_at INTEGER DEFAULT (strftime('%s', 'now'))
	);
	CREATE INDEX IF NOT EXISTS idx_issuances_key_id ON issuances(key_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts an issuance.
func (s *Store) Record(iss *Issuance) error {
	if iss.CreatedAt.IsZero() {
		iss.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(
		`INSERT INTO issuances (id, key_id, principals, fingerprint, valid_after, valid_before, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		iss.ID, iss.KeyID, strings.Join(iss.Principals, ","), iss.Fingerprint,
		iss.ValidAfter.Unix(), iss.ValidBefore.Unix(), iss.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record issuance: %w", err)
	}
	return nil
}

// List returns issuances newest first. limit <= 0 returns all.
func (s *Store) List(limit int) ([]*Issuance, error) {
	query := `SELECT id, key_id, principals, fingerprint, valid_after, valid_before, created_at
	          FROM issuances ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list issuances: %w", err)
	}
	defer rows.Close()

	var out []*Issuance
	for rows.Next() {
		var iss Issuance
		var principals string
		var after, before, created int64
		if err := rows.Scan(&iss.ID, &iss.KeyID, &principals, &iss.Fingerprint, &after, &before, &created); err != nil {
			return nil, fmt.Errorf("failed to scan issuance: %w", err)
		}
		if principals != "" {
			iss.Principals = strings.Split(principals, ",")
		}
		iss.ValidAfter = time.Unix(after, 0)
		iss.ValidBefore = time.Unix(before, 0)
		iss.CreatedAt = time.Unix(created, 0)
		out = append(out, &iss)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
