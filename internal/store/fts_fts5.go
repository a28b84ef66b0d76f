//go:build sqlite_fts5

package store

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			path UNINDEXED,
			title,
			body
		);
	`)
	return err
}

func ftsReplace(tx *sql.Tx, doc Doc) error {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE path = ?`, doc.Path)
	_, err := tx.Exec(`INSERT INTO notes_fts (path, title, body) VALUES (?, ?, ?)`,
		doc.Path, doc.Title, doc.Body)
	if err != nil {
		return fmt.Errorf("store: insert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE path = ?`, path)
}

// Search runs a ranked FTS5 match, best match first. A malformed query
// surfaces as an error from SQLite; the engine absorbs it.
func (db *DB) Search(query string, limit int) ([]Doc, error) {
	rows, err := db.conn.Query(`
		SELECT path, title, body
		FROM notes_fts
		WHERE notes_fts MATCH ?
		ORDER BY bm25(notes_fts)
		LIMIT ?
	`, query, limit)
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
