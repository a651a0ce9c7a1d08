package internal

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/mdql/internal/apperr"
	"github.com/starford/mdql/internal/taskservice"
	"github.com/starford/mdql/internal/testutil"
	pkgconfig "github.com/starford/mdql/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestEventsConfig_NegativeThrottle(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Events.Throttle = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative throttle should fail validation")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
	if !strings.HasPrefix(err.Error(), "auth: ") {
		t.Errorf("error = %q, want auth: prefix", err)
	}
}

func TestIndexConfig_PathOptionalWhenDisabled(t *testing.T) {
	cfg := IndexConfig{Disabled: true}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled index without path should pass: %v", err)
	}
	cfg.Disabled = false
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled index without path should fail")
	}
}

func TestHTTPConfig_Address(t *testing.T) {
	c := HTTPConfig{Host: "127.0.0.1", Port: 8081}
	if got := c.Address(); got != "127.0.0.1:8081" {
		t.Errorf("address = %q, want %q", got, "127.0.0.1:8081")
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("MDQL_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `app:
  log_level: debug
  http:
    port: 9090
vault:
  path: /srv/tasks
index:
  path: /var/lib/mdql/index.db
auth:
  mode: token
  token: ${MDQL_TEST_TOKEN}
events:
  throttle: 500ms
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Address() != ":9090" {
		t.Errorf("address = %q, want %q", cfg.App.HTTP.Address(), ":9090")
	}
	if cfg.Auth.Token != "s3cret" {
		t.Errorf("token = %q, want env expansion", cfg.Auth.Token)
	}
	if cfg.Events.Throttle != 500*time.Millisecond {
		t.Errorf("throttle = %v, want 500ms", cfg.Events.Throttle)
	}
	if cfg.Index.Path != "/var/lib/mdql/index.db" {
		t.Errorf("index path = %q", cfg.Index.Path)
	}
	if cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("log level = %v, want DEBUG", cfg.App.LogLevel)
	}
}

func TestHTTPHandler_HealthAndAPI(t *testing.T) {
	dir, store := testutil.TestVault(t)
	testutil.WriteFile(t, dir, "todo.md", "- [ ] one\n")
	h := NewHTTPHandler(taskservice.NewService(store, nil, nil), AuthConfig{Mode: AuthModeDisabled}, nil)

	for _, target := range []string{"/health/live", "/health/ready", "/api/files/todo.md"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", target, w.Code)
		}
	}
}

func testApp(t *testing.T, mutate func(*Config)) *application {
	t.Helper()
	dir, _ := testutil.TestVault(t)
	testutil.WriteFile(t, dir, "todo.md", "## Inbox\n- [ ] call bank\n")
	cfg := NewDefaultConfig()
	cfg.Vault.Path = dir
	cfg.Index.Path = filepath.Join(t.TempDir(), "db", "index.db")
	mutate(cfg)
	app, err := newApplication([]Option{WithConfig(cfg), WithLogOutput(io.Discard)})
	if err != nil {
		t.Fatal(err)
	}
	return app
}

func TestBootstrap_IndexesVault(t *testing.T) {
	rt, err := bootstrap(testApp(t, func(*Config) {}))
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer rt.close()

	if rt.db == nil {
		t.Fatal("index not opened")
	}
	hits, err := rt.svc.Search(context.Background(), "bank", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Line != 2 {
		t.Errorf("hits = %+v, want one hit on line 2", hits)
	}
}

func TestBootstrap_IndexDisabled(t *testing.T) {
	rt, err := bootstrap(testApp(t, func(c *Config) { c.Index.Disabled = true }))
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer rt.close()

	if rt.db != nil {
		t.Error("index opened although disabled")
	}
	if _, err := rt.svc.Search(context.Background(), "bank", 10); !errors.Is(err, apperr.ErrNoIndex) {
		t.Errorf("Search err = %v, want ErrNoIndex", err)
	}
}

func TestNewApplication_RequiresConfig(t *testing.T) {
	if _, err := newApplication(nil); err == nil {
		t.Fatal("expected error without config")
	}
}
