//go:build sqlite_fts5

package index

import (
	"strings"
	"testing"
	"time"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM tasks_fts`).Scan(&count); err != nil {
		t.Fatalf("tasks_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	row := FileRow{Path: "fts.md", Checksum: "f1", UpdatedAt: time.Now()}
	tasks := []TaskRow{{Line: 2, Text: "benchmark the powerful parser", Section: "Perf"}}
	if err := db.UpsertFile(row, tasks); err != nil {
		t.Fatalf("UpsertFile: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != "fts.md" || results[0].Line != 2 {
		t.Errorf("hit = %+v", results[0])
	}
	if !strings.Contains(results[0].Snippet, "<b>") {
		t.Errorf("snippet = %q, want highlight markers", results[0].Snippet)
	}
}

func TestFTS5_QuotesAreEscaped(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertFile(FileRow{Path: "q.md", Checksum: "q", UpdatedAt: time.Now()}, []TaskRow{{Line: 1, Text: "say hi"}})

	if _, err := db.Search(`say "hi`, 10); err != nil {
		t.Fatalf("Search with quote: %v", err)
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertFile(FileRow{Path: "gone.md", Checksum: "g", UpdatedAt: time.Now()}, []TaskRow{{Line: 1, Text: "vanishing task"}})
	_ = db.DeleteFile("gone.md")

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.Path == "gone.md" {
			t.Error("deleted file still in FTS index")
		}
	}
}
