package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "tasks")
	p := writeConfig(t, "name: ${SAMPLE_NAME}\nport: 8080\n")

	var s sample
	if err := Load(p, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "tasks" || s.Port != 8080 {
		t.Errorf("got = %+v", s)
	}
}

func TestLoad_KeepsDefaults(t *testing.T) {
	p := writeConfig(t, "name: only-name\n")
	s := sample{Port: 7000}
	if err := Load(p, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Port != 7000 {
		t.Errorf("port = %d, want default 7000", s.Port)
	}
}

func TestLoad_Validates(t *testing.T) {
	p := writeConfig(t, "port: 0\n")
	var s sample
	err := Load(p, &s)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("err = %v, want validation failure", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	p := writeConfig(t, "port: [\n")
	var s sample
	if err := Load(p, &s); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadOptional_MissingFile(t *testing.T) {
	s := sample{Port: 1}
	if err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &s); err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}

	s = sample{}
	if err := LoadOptional("", &s); err == nil {
		t.Error("invalid defaults should still fail validation")
	}
}

func TestLoadOptional_PresentFile(t *testing.T) {
	p := writeConfig(t, "port: 9\n")
	var s sample
	if err := LoadOptional(p, &s); err != nil {
		t.Fatal(err)
	}
	if s.Port != 9 {
		t.Errorf("port = %d, want 9", s.Port)
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	p := writeConfig(t, "port: 80\nprot: 81\n")
	var s sample
	err := Load(p, &s)
	if err == nil || !strings.Contains(err.Error(), "prot") {
		t.Errorf("err = %v, want unknown field error naming prot", err)
	}
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	p := writeConfig(t, "")
	s := sample{Port: 3}
	if err := Load(p, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Port != 3 {
		t.Errorf("port = %d, want 3", s.Port)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("MDQL_SET", "value")
	t.Setenv("MDQL_EMPTY", "")
	tests := map[string]string{
		"${MDQL_SET}":               "value",
		"$MDQL_SET/x":               "value/x",
		"${MDQL_UNSET}":             "",
		"${MDQL_UNSET:-fallback}":   "fallback",
		"${MDQL_EMPTY:-fallback}":   "fallback",
		"${MDQL_SET:-fallback}":     "value",
		"port: ${MDQL_UNSET:-8080}": "port: 8080",
	}
	for in, want := range tests {
		if got := ExpandEnv(in); got != want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", in, got, want)
		}
	}
}
