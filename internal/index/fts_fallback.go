//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

// Without FTS5 the index has no virtual table and Search scans the tasks
// table with LIKE.

func initFTS(_ *sql.DB) error { return nil }

func dropFTS(_ *sql.DB) error { return nil }

func ftsInsert(_ *sql.Tx, _ string, _ TaskRow) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches query as a case-insensitive substring of task text or
// notes. Open tasks come first, then document order.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + likeEscaper.Replace(query) + "%"
	rows, err := db.conn.Query(`
		SELECT path, line, text, completed, section, indent, notes, substr(text, 1, 200)
		FROM tasks
		WHERE text LIKE ? ESCAPE '\' OR notes LIKE ? ESCAPE '\'
		ORDER BY completed, path, line
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}
