// Package store provides the SQLite persistence layer: the full-text
// document index, its staleness metadata, and the auth tables.
//
// Full-text search uses FTS5 when built with the sqlite_fts5 tag and a
// LIKE-based fallback otherwise.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id              INTEGER PRIMARY KEY,
	username        TEXT UNIQUE NOT NULL,
	password_hash   TEXT NOT NULL,
	failed_attempts INTEGER NOT NULL DEFAULT 0,
	locked_until    REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sessions (
	id         INTEGER PRIMARY KEY,
	user_id    INTEGER NOT NULL,
	token      TEXT UNIQUE NOT NULL,
	created_at REAL NOT NULL,
	expires_at REAL NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS notes_index_meta (
	path  TEXT PRIMARY KEY,
	mtime REAL NOT NULL
);
`

// Doc is one row of the full-text document table.
type Doc struct {
	Path  string
	Title string
	Body  string
}

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Conn exposes the underlying connection for the auth tables.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// AllMeta returns the full staleness map: path → last-indexed mtime.
func (db *DB) AllMeta() (map[string]float64, error) {
	rows, err := db.conn.Query(`SELECT path, mtime FROM notes_index_meta`)
	if err != nil {
		return nil, fmt.Errorf("store: all meta: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var p string
		var mt float64
		if err := rows.Scan(&p, &mt); err != nil {
			return nil, err
		}
		out[p] = mt
	}
	return out, rows.Err()
}

// ReplaceDoc removes any existing document for path and inserts the new
// one together with its staleness row, all in a single transaction so a
// crash can never leave a document half-written.
func (db *DB) ReplaceDoc(doc Doc, mtime float64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := ftsReplace(tx, doc); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO notes_index_meta (path, mtime) VALUES (?, ?)`,
		doc.Path, mtime,
	); err != nil {
		return fmt.Errorf("store: upsert meta: %w", err)
	}
	return tx.Commit()
}

// DeleteDoc removes a document and its staleness row.
func (db *DB) DeleteDoc(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM notes_index_meta WHERE path = ?`, path)

	return tx.Commit()
}
