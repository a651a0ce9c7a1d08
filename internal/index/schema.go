// Package index keeps a SQLite cache of the tasks found in a vault of
// markdown files, with optional FTS5 full-text search over task text.
// The markdown files stay authoritative; the index can always be rebuilt.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS files (
	path       TEXT PRIMARY KEY,
	checksum   TEXT NOT NULL DEFAULT '',
	tasks      INTEGER NOT NULL DEFAULT 0,
	done       INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
	path      TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
	line      INTEGER NOT NULL,
	text      TEXT NOT NULL,
	completed INTEGER NOT NULL DEFAULT 0,
	section   TEXT NOT NULL DEFAULT '',
	indent    INTEGER NOT NULL DEFAULT 0,
	notes     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (path, line)
);

CREATE INDEX IF NOT EXISTS idx_tasks_section ON tasks(section);
`

// schemaVersion is stored in PRAGMA user_version. A database written with
// another version is dropped and rebuilt by the next Sync.
const schemaVersion = 1

// DB is the SQLite task index.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the index database at path and brings its schema
// to the current version.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

func migrate(conn *sql.DB) error {
	var version int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("index: read schema version: %w", err)
	}
	if version != schemaVersion {
		if err := dropFTS(conn); err != nil {
			return fmt.Errorf("index: drop fts: %w", err)
		}
		if _, err := conn.Exec(`DROP TABLE IF EXISTS tasks; DROP TABLE IF EXISTS files;`); err != nil {
			return fmt.Errorf("index: drop outdated schema: %w", err)
		}
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		return fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		return fmt.Errorf("index: apply fts schema: %w", err)
	}
	if _, err := conn.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("index: write schema version: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
