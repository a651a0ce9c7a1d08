//go:build !sqlite_fts5

package index

import (
	"testing"
	"time"
)

func TestSearch_LiteralWildcards(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertFile(FileRow{Path: "w.md", Checksum: "1", UpdatedAt: time.Now()}, []TaskRow{
		{Line: 1, Text: "reach 100% coverage"},
		{Line: 2, Text: "reach 1000 users"},
		{Line: 3, Text: "rename snake_case keys"},
		{Line: 4, Text: "rename snakeXcase keys"},
	})

	for q, want := range map[string]int{"100%": 1, "snake_case": 3} {
		results, err := db.Search(q, 10)
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		if len(results) != 1 || results[0].Line != want {
			t.Errorf("Search(%q) = %+v, want only line %d", q, results, want)
		}
	}
}

func TestSearch_OpenTasksFirst(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertFile(FileRow{Path: "o.md", Checksum: "1", UpdatedAt: time.Now()}, []TaskRow{
		{Line: 1, Text: "deploy api", Completed: true},
		{Line: 2, Text: "deploy web"},
	})

	results, err := db.Search("deploy", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].Line != 2 {
		t.Errorf("results = %+v, want the open task on line 2 first", results)
	}
}
