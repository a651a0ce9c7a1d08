package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/mdql/internal/apperr"
)

const todo = `# Project

## Backlog
**Priority:** High

- [ ] write docs
- [x] fix sink
`

func writeTodo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "todo.md")
	if err := os.WriteFile(path, []byte(todo), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run(context.Background(), append([]string{"mdql"}, args...))
	return out.String(), err
}

func TestQueryCount(t *testing.T) {
	path := writeTodo(t)
	out, err := run(t, "query", "--format", "count", path, "SELECT * FROM todo.md WHERE completed = false")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "1" {
		t.Errorf("output = %q, want 1", out)
	}
}

func TestQuerySyntaxError(t *testing.T) {
	path := writeTodo(t)
	_, err := run(t, "query", path, "GIMME tasks")
	if !errors.Is(err, apperr.ErrQuerySyntax) {
		t.Fatalf("err = %v, want ErrQuerySyntax", err)
	}
}

func TestDoneRewritesCheckbox(t *testing.T) {
	path := writeTodo(t)
	out, err := run(t, "done", path, "6")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "write docs (line 6)") {
		t.Errorf("output = %q", out)
	}
	data, _ := os.ReadFile(path)
	want := strings.Replace(todo, "- [ ] write docs", "- [x] write docs", 1)
	if string(data) != want {
		t.Errorf("file =\n%s\nwant\n%s", data, want)
	}
}

func TestAddJoinsWords(t *testing.T) {
	path := writeTodo(t)
	if _, err := run(t, "add", "--section", "Backlog", path, "ship", "it"); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !strings.HasSuffix(string(data), "- [x] fix sink\n- [ ] ship it\n") {
		t.Errorf("file =\n%s", data)
	}
}

func TestRemoveLine(t *testing.T) {
	path := writeTodo(t)
	if _, err := run(t, "rm", path, "7"); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "fix sink") {
		t.Errorf("line 7 not removed:\n%s", data)
	}
}

func TestBadLineArgument(t *testing.T) {
	path := writeTodo(t)
	if _, err := run(t, "undo", path, "zero"); err == nil {
		t.Fatal("expected error for non-numeric line")
	}
}

func TestSummary(t *testing.T) {
	path := writeTodo(t)
	out, err := run(t, "summary", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Backlog") || !strings.Contains(out, "1/2") {
		t.Errorf("output = %q", out)
	}
}
