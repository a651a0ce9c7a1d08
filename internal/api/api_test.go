package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/starford/mdql/internal/checksum"
	"github.com/starford/mdql/internal/index"
	"github.com/starford/mdql/internal/taskservice"
	"github.com/starford/mdql/internal/testutil"
	"github.com/starford/mdql/internal/writer"
)

const todo = `# Home
**Priority:** High
- [ ] fix sink
  - call plumber
- [x] paint fence
# Work
- [ ] ship release
`

// testEnv sets up a temp vault holding todo.md, an index, the service and
// the router. An empty authToken disables auth.
func testEnv(t *testing.T, authToken string) (http.Handler, string) {
	t.Helper()
	return testEnvWithSSE(t, authToken, nil)
}

func testEnvWithSSE(t *testing.T, authToken string, sseHandler http.Handler) (http.Handler, string) {
	t.Helper()
	vaultDir, store := testutil.TestVault(t)
	testutil.WriteFile(t, vaultDir, "todo.md", todo)

	db := testutil.TestDB(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	if _, err := index.Sync(db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	svc := taskservice.NewService(store, db, logger)
	return NewRouter(svc, authToken != "", authToken, sseHandler), vaultDir
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestListFiles(t *testing.T) {
	router, _ := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/files", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decodeBody[FileListResponse](t, w)
	if resp.Total != 1 || resp.Files[0].Path != "todo.md" || resp.Files[0].Tasks != 3 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGetFile(t *testing.T) {
	router, _ := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/files/todo.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got, want := w.Header().Get("ETag"), strconv.Quote(checksum.Sum([]byte(todo))); got != want {
		t.Errorf("ETag = %q, want %q", got, want)
	}
	var resp struct {
		Path     string `json:"path"`
		Checksum string `json:"checksum"`
		Tasks    []struct {
			Text  string   `json:"text"`
			Line  int      `json:"line"`
			Notes []string `json:"notes"`
		} `json:"tasks"`
		Sections map[string]struct {
			Priority string `json:"priority"`
		} `json:"sections"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Path != "todo.md" || len(resp.Tasks) != 3 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Tasks[0].Notes[0] != "call plumber" {
		t.Errorf("notes = %v", resp.Tasks[0].Notes)
	}
	if resp.Sections["Home"].Priority != "High" {
		t.Errorf("sections = %+v", resp.Sections)
	}
}

func TestGetFile_NotFound(t *testing.T) {
	router, _ := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/files/nope.md", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing file = %d, want 404", w.Code)
	}
}

func TestQuery(t *testing.T) {
	router, _ := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/query", QueryRequest{
		Path:   "todo.md",
		Filter: map[string]any{"completed": false, "indent_level": 0},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decodeBody[struct{ Total int }](t, w)
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
}

func TestQuery_Errors(t *testing.T) {
	router, _ := testEnv(t, "")
	tests := []struct {
		name string
		body any
		want int
	}{
		{"unknown predicate", QueryRequest{Path: "todo.md", Filter: map[string]any{"colour": "red"}}, http.StatusBadRequest},
		{"wrong type", QueryRequest{Path: "todo.md", Filter: map[string]any{"completed": "yes"}}, http.StatusBadRequest},
		{"missing path", QueryRequest{}, http.StatusBadRequest},
		{"missing file", QueryRequest{Path: "ghost.md"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/query", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestQuery_InvalidJSON(t *testing.T) {
	router, _ := testEnv(t, "")
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestMQL(t *testing.T) {
	router, _ := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/mql", MQLRequest{
		Query: "SELECT text, section FROM todo.md WHERE completed = false",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decodeBody[struct {
		Columns []string
		Rows    [][]string
	}](t, w)
	if len(resp.Rows) != 2 || resp.Rows[1][0] != "ship release" || resp.Rows[1][1] != "Work" {
		t.Errorf("rows = %v", resp.Rows)
	}
}

func TestMQL_SyntaxError(t *testing.T) {
	router, _ := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/mql", MQLRequest{Query: "SELECT text"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestMutate(t *testing.T) {
	router, dir := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/mutate", map[string]any{
		"path":     "todo.md",
		"mutation": map[string]any{"op": "complete", "line": 3},
		"if_match": checksum.Sum([]byte(todo)),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(testutil.ReadFile(t, dir, "todo.md"), "- [x] fix sink") {
		t.Error("file was not updated")
	}
	if w.Header().Get("ETag") == "" {
		t.Error("missing ETag")
	}
}

func TestMutate_IfMatchHeader(t *testing.T) {
	router, _ := testEnv(t, "")
	b, _ := json.Marshal(map[string]any{
		"path":     "todo.md",
		"mutation": map[string]any{"op": "delete", "line": 3},
	})
	req := httptest.NewRequest(http.MethodPost, "/mutate", bytes.NewReader(b))
	req.Header.Set("If-Match", `"stale"`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestMutate_Errors(t *testing.T) {
	router, _ := testEnv(t, "")
	tests := []struct {
		name     string
		mutation map[string]any
		want     int
	}{
		{"unknown op", map[string]any{"op": "explode", "line": 3}, http.StatusBadRequest},
		{"missing text", map[string]any{"op": "retext", "line": 3}, http.StatusBadRequest},
		{"missing section", map[string]any{"op": "add", "section": "Garden", "text": "weed"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/mutate", map[string]any{"path": "todo.md", "mutation": tt.mutation})
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestSummary(t *testing.T) {
	router, _ := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/summary/todo.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decodeBody[Summary](t, w)
	if len(resp.Sections) != 2 || resp.Total != 3 {
		t.Errorf("summary = %+v", resp)
	}
}

func TestSearchEndpoint(t *testing.T) {
	router, _ := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/search?q=plumber", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decodeBody[SearchResponse](t, w)
	if len(resp.Results) != 1 || resp.Results[0].Line != 3 {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	router, _ := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing q = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/files", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")
	w := do(t, router, http.MethodGet, "/files", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/files", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	router, _ := testEnvWithSSE(t, "secret", blockingSSE)
	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router, _ := testEnvWithSSE(t, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestAuthMiddleware_QueryTokenOnlyForGet(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/files?access_token=secret123", nil)
	if w.Code != http.StatusOK {
		t.Errorf("GET with access_token = %d, want 200", w.Code)
	}

	w = do(t, router, http.MethodPost, "/mql?access_token=secret123",
		MQLRequest{Query: "SELECT * FROM todo.md"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("POST with access_token = %d, want 401", w.Code)
	}
}

func TestPathOutsideVault(t *testing.T) {
	router, _ := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/mutate", MutateRequest{
		Path:     "../escape.md",
		Mutation: writer.Mutation{Op: writer.OpComplete, Line: 1},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("mutate outside vault = %d, want 400", w.Code)
	}
}
