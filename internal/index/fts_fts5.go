//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS tasks_fts USING fts5(
			path UNINDEXED,
			line UNINDEXED,
			section,
			text,
			notes,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func dropFTS(conn *sql.DB) error {
	_, err := conn.Exec(`DROP TABLE IF EXISTS tasks_fts`)
	return err
}

func ftsInsert(tx *sql.Tx, path string, t TaskRow) error {
	_, err := tx.Exec(`INSERT INTO tasks_fts (path, line, section, text, notes) VALUES (?, ?, ?, ?, ?)`,
		path, t.Line, t.Section, t.Text, t.Notes)
	if err != nil {
		return fmt.Errorf("index: insert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM tasks_fts WHERE path = ?`, path)
}

// Search performs an FTS5 full-text search over task text and notes.
// The query is matched as a phrase.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	phrase := `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
	rows, err := db.conn.Query(`
		SELECT t.path, t.line, t.text, t.completed, t.section, t.indent, t.notes,
		       snippet(tasks_fts, 3, '<b>', '</b>', '...', 32)
		FROM tasks_fts
		JOIN tasks t ON t.path = tasks_fts.path AND t.line = tasks_fts.line
		WHERE tasks_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, phrase, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}
