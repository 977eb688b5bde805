package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewConfigDefaultsWhenMissing(t *testing.T) {
	projectDir := t.TempDir()
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if cfg.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", cfg.Project.Version)
	}
	if cfg.Project.Server.BaseURL != DefaultServerURL {
		t.Fatalf("base url = %q, want %q", cfg.Project.Server.BaseURL, DefaultServerURL)
	}
	if cfg.Project.Server.MaxAttempts != 1 {
		t.Fatalf("max attempts = %d, want 1", cfg.Project.Server.MaxAttempts)
	}
	if !cfg.JournalEnabled() {
		t.Fatalf("journal should default to enabled")
	}
}

func TestInitProjectDirWritesParsableDefault(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitProjectDir(projectDir); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(projectDir, ProjectDirName, "logs")); err != nil {
		t.Fatalf("logs dir missing: %v", err)
	}
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("default template must load: %v", err)
	}
	if cfg.Project.Server.Timeout != 30*time.Second {
		t.Fatalf("timeout = %s, want 30s", cfg.Project.Server.Timeout)
	}
	if cfg.Project.DevServer.Address() != "127.0.0.1:8765" {
		t.Fatalf("dev address = %s", cfg.Project.DevServer.Address())
	}
	if err := InitProjectDir(projectDir); err != nil {
		t.Fatalf("second init should be a no-op: %v", err)
	}
}

func TestNewConfigParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	stateDir := filepath.Join(projectDir, ProjectDirName)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
server:
  base_url: https://ci.example.com/
  timeout: 5s
  max_attempts: 3
dev_server:
  host: 0.0.0.0
  port: 9000
notifications:
  journal: false
`)
	if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if cfg.Project.Server.BaseURL != "https://ci.example.com" {
		t.Fatalf("base url not normalized: %q", cfg.Project.Server.BaseURL)
	}
	if cfg.Project.Server.Timeout != 5*time.Second || cfg.Project.Server.MaxAttempts != 3 {
		t.Fatalf("unexpected server config: %+v", cfg.Project.Server)
	}
	if cfg.Project.DevServer.Port != 9000 {
		t.Fatalf("dev port = %d", cfg.Project.DevServer.Port)
	}
	if cfg.JournalEnabled() {
		t.Fatalf("journal should be disabled")
	}
}

func TestNewConfigValidation(t *testing.T) {
	projectDir := t.TempDir()
	stateDir := filepath.Join(projectDir, ProjectDirName)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	invalid := "version: 1\nserver:\n  base_url: ftp://nope\n"
	if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte(invalid), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewConfig(projectDir); err == nil {
		t.Fatalf("expected validation error for ftp url")
	}
}

func TestNewConfigHonorsEnv(t *testing.T) {
	t.Setenv("PATCHMATRIX_SERVER_URL", "http://override:9999/")
	t.Setenv("PATCHMATRIX_DEV_HOST", "0.0.0.0")
	t.Setenv("PATCHMATRIX_DEV_PORT", "9001")
	cfg, err := NewConfig(t.TempDir())
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.Project.Server.BaseURL != "http://override:9999" {
		t.Fatalf("expected env base url, got %s", cfg.Project.Server.BaseURL)
	}
	if cfg.Project.DevServer.Host != "0.0.0.0" || cfg.Project.DevServer.Port != 9001 {
		t.Fatalf("expected env dev server, got %+v", cfg.Project.DevServer)
	}
}

func TestSetServerURLPersists(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitProjectDir(projectDir); err != nil {
		t.Fatalf("init: %v", err)
	}
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if err := cfg.SetServerURL("not a url"); err == nil {
		t.Fatalf("expected invalid url to fail")
	}
	if err := cfg.SetServerURL("https://ci.example.com"); err != nil {
		t.Fatalf("SetServerURL: %v", err)
	}
	reloaded, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Project.Server.BaseURL != "https://ci.example.com" {
		t.Fatalf("persisted url = %s", reloaded.Project.Server.BaseURL)
	}
}

func TestStatePaths(t *testing.T) {
	projectDir := t.TempDir()
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	state := filepath.Join(projectDir, ProjectDirName)
	if cfg.LogsDir() != filepath.Join(state, "logs") {
		t.Fatalf("logs dir = %s", cfg.LogsDir())
	}
	if cfg.JournalPath() != filepath.Join(state, "logs", "notifications.log") {
		t.Fatalf("journal path = %s", cfg.JournalPath())
	}
	if cfg.VersionsDir() != filepath.Join(state, "versions") {
		t.Fatalf("versions dir = %s", cfg.VersionsDir())
	}
}
