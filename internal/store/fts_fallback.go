//go:build !sqlite_fts5

package store

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	// FTS5 not compiled in; a plain table keeps the same layout and
	// Search degrades to LIKE matching.
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS notes_fts (
			path  TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			body  TEXT NOT NULL DEFAULT ''
		);
	`)
	return err
}

func ftsReplace(tx *sql.Tx, doc Doc) error {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE path = ?`, doc.Path)
	_, err := tx.Exec(`INSERT INTO notes_fts (path, title, body) VALUES (?, ?, ?)`,
		doc.Path, doc.Title, doc.Body)
	if err != nil {
		return fmt.Errorf("store: insert doc: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE path = ?`, path)
}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]Doc, error) {
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT path, title, body
		FROM notes_fts
		WHERE title LIKE ? OR body LIKE ?
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var out []Doc
	for rows.Next() {
		var d Doc
		if err := rows.Scan(&d.Path, &d.Title, &d.Body); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
