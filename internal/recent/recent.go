// Package recent remembers which vault folders the user has opened, and
// which one is the stored default for the next launch.
package recent

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS vaults (
	folder    TEXT PRIMARY KEY,
	opened_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vaults_opened_at ON vaults(opened_at);
`

const storedVaultKey = "stored_vault"

// DefaultLimit caps List when no limit is given.
const DefaultLimit = 10

// Vault is one remembered folder.
type Vault struct {
	Folder   string    `json:"folder"`
	OpenedAt time.Time `json:"opened_at"`
}

// DB wraps the registry database.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens (or creates) the registry at dsn and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("recent: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("recent: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("recent: apply schema: %w", err)
	}
	return &DB{conn: conn, now: time.Now}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Stored returns the default vault folder. ok is false when none is set.
func (db *DB) Stored() (folder string, ok bool, err error) {
	err = db.conn.QueryRow(`SELECT value FROM settings WHERE key = ?`, storedVaultKey).Scan(&folder)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("recent: stored vault: %w", err)
	}
	return folder, true, nil
}

// SetStored makes folder the default vault and records it as opened now.
func (db *DB) SetStored(folder string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("recent: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, storedVaultKey, folder); err != nil {
		return fmt.Errorf("recent: set stored vault: %w", err)
	}
	if err := touch(tx, folder, db.now()); err != nil {
		return err
	}
	return tx.Commit()
}

// ClearStored forgets the default vault. The recent list is kept.
func (db *DB) ClearStored() error {
	if _, err := db.conn.Exec(`DELETE FROM settings WHERE key = ?`, storedVaultKey); err != nil {
		return fmt.Errorf("recent: clear stored vault: %w", err)
	}
	return nil
}

// Touch records folder as opened now.
func (db *DB) Touch(folder string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("recent: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := touch(tx, folder, db.now()); err != nil {
		return err
	}
	return tx.Commit()
}

func touch(tx *sql.Tx, folder string, at time.Time) error {
	_, err := tx.Exec(`
		INSERT INTO vaults (folder, opened_at) VALUES (?, ?)
		ON CONFLICT(folder) DO UPDATE SET opened_at = excluded.opened_at
	`, folder, at.UTC())
	if err != nil {
		return fmt.Errorf("recent: touch %s: %w", folder, err)
	}
	return nil
}

// List returns up to limit folders, most recently opened first.
func (db *DB) List(limit int) ([]Vault, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := db.conn.Query(`SELECT folder, opened_at FROM vaults ORDER BY opened_at DESC, folder LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent: list: %w", err)
	}
	defer rows.Close()

	out := []Vault{}
	for rows.Next() {
		var v Vault
		if err := rows.Scan(&v.Folder, &v.OpenedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Forget removes folder from the recent list and clears it as the default
// if it was.
func (db *DB) Forget(folder string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("recent: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM vaults WHERE folder = ?`, folder); err != nil {
		return fmt.Errorf("recent: forget %s: %w", folder, err)
	}
	if _, err := tx.Exec(`DELETE FROM settings WHERE key = ? AND value = ?`, storedVaultKey, folder); err != nil {
		return fmt.Errorf("recent: forget %s: %w", folder, err)
	}
	return tx.Commit()
}
