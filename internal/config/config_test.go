package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "parley.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "parley" {
		t.Errorf("expected default name, got %q", cfg.Name)
	}
	if cfg.ModesDir != filepath.Join(dir, "modes") {
		t.Errorf("modes dir should be rooted at the config dir, got %q", cfg.ModesDir)
	}
	if cfg.Observer.Addr == "" || cfg.Store.Path == "" {
		t.Errorf("defaults incomplete: %+v", cfg)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parley.yaml")
	content := `
name: studio
modes_dir: /srv/modes
observer:
  addr: "0.0.0.0:9000"
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "studio" || cfg.ModesDir != "/srv/modes" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Observer.Addr != "0.0.0.0:9000" {
		t.Errorf("nested value not applied: %q", cfg.Observer.Addr)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Logging.Level)
	}
	// Unspecified sections keep their defaults.
	if cfg.Store.Path != filepath.Join(dir, "parley.db") {
		t.Errorf("store default lost: %q", cfg.Store.Path)
	}
}

func TestLoad_EnvOverridesWin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parley.yaml")
	if err := os.WriteFile(path, []byte("modes_dir: /from/file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PARLEY_MODES_DIR", "/from/env")
	t.Setenv("PARLEY_DEBUG", "1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ModesDir != "/from/env" {
		t.Errorf("env must win over the file, got %q", cfg.ModesDir)
	}
	if !cfg.Logging.DebugMode {
		t.Error("PARLEY_DEBUG=1 should enable debug mode")
	}
}

func TestLoad_MalformedFileFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parley.yaml")
	if err := os.WriteFile(path, []byte("observer: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed YAML must fail")
	}
}
