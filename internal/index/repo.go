package index

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/mdql/internal/models"
)

// FileRow represents a row in the files table.
type FileRow struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Tasks     int       `json:"tasks"`
	Done      int       `json:"done"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskRow represents a row in the tasks table.
type TaskRow struct {
	Path      string `json:"path"`
	Line      int    `json:"line"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	Section   string `json:"section"`
	Indent    int    `json:"indent_level"`
	Notes     string `json:"notes,omitempty"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	TaskRow
	Snippet string `json:"snippet"`
}

// RowsFor flattens a parsed document into index rows.
func RowsFor(path, sum string, doc *models.Document) (FileRow, []TaskRow) {
	f := FileRow{Path: path, Checksum: sum, UpdatedAt: time.Now().UTC()}
	tasks := make([]TaskRow, 0, len(doc.Tasks))
	for _, t := range doc.Tasks {
		f.Tasks++
		if t.Completed {
			f.Done++
		}
		tasks = append(tasks, TaskRow{
			Path:      path,
			Line:      t.Line,
			Text:      t.Text,
			Completed: t.Completed,
			Section:   t.Section,
			Indent:    t.Indent,
			Notes:     strings.Join(t.Notes, "\n"),
		})
	}
	return f, tasks
}

// UpsertFile replaces a file row and all of its tasks within a transaction.
func (db *DB) UpsertFile(f FileRow, tasks []TaskRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO files (path, checksum, tasks, done, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum   = excluded.checksum,
			tasks      = excluded.tasks,
			done       = excluded.done,
			updated_at = excluded.updated_at
	`, f.Path, f.Checksum, f.Tasks, f.Done, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert file: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM tasks WHERE path = ?`, f.Path); err != nil {
		return fmt.Errorf("index: clear tasks: %w", err)
	}
	ftsDelete(tx, f.Path)

	if len(tasks) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO tasks (path, line, text, completed, section, indent, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("index: prepare task insert: %w", err)
		}
		defer stmt.Close()
		for _, t := range tasks {
			if _, err := stmt.Exec(f.Path, t.Line, t.Text, t.Completed, t.Section, t.Indent, t.Notes); err != nil {
				return fmt.Errorf("index: insert task: %w", err)
			}
			if err := ftsInsert(tx, f.Path, t); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// DeleteFile removes a file and its tasks from the index.
func (db *DB) DeleteFile(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM tasks WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM files WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a file, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM files WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum %s: %w", path, err)
	}
	return cs, nil
}

// AllChecksums returns path -> checksum for every indexed file.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM files`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// ListFiles returns every indexed file ordered by path.
func (db *DB) ListFiles() ([]FileRow, error) {
	rows, err := db.conn.Query(`SELECT path, checksum, tasks, done, updated_at FROM files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("index: list files: %w", err)
	}
	defer rows.Close()

	out := make([]FileRow, 0)
	for rows.Next() {
		var f FileRow
		if err := rows.Scan(&f.Path, &f.Checksum, &f.Tasks, &f.Done, &f.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
