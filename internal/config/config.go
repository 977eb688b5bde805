// internal/config/config.go
//
// This package handles configuration and the .patchmatrix directory.
// Every project that uses patchmatrix gets a .patchmatrix/ folder holding
// config.yaml and the logs written by the editor.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ProjectDirName is the directory we create in each project
	ProjectDirName = ".patchmatrix"

	DefaultServerURL   = "http://127.0.0.1:8765"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 1
	DefaultDevHost     = "127.0.0.1"
	DefaultDevPort     = 8765
)

const defaultProjectConfigYAML = `# patchmatrix project configuration
version: 1

# Patch server receiving submissions (POST /patch/{id}).
server:
  base_url: http://127.0.0.1:8765
  timeout: 30s
  # Submissions are not idempotent; raise with care.
  max_attempts: 1

# Local development server started by "patchmatrix serve".
dev_server:
  host: 127.0.0.1
  port: 8765

notifications:
  # Append submission failures to .patchmatrix/logs/notifications.log
  journal: true
`

// ServerConfig describes the remote patch server.
type ServerConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// DevServerConfig describes the local development server.
type DevServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns host:port.
func (d DevServerConfig) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// NotificationConfig toggles notification sinks.
type NotificationConfig struct {
	Journal *bool `yaml:"journal,omitempty"`
}

// ProjectConfig models .patchmatrix/config.yaml.
type ProjectConfig struct {
	Version       int                `yaml:"version"`
	Server        ServerConfig       `yaml:"server"`
	DevServer     DevServerConfig    `yaml:"dev_server"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// Config holds the runtime configuration.
type Config struct {
	// ProjectDir is the directory patchmatrix was started from
	ProjectDir string

	// StateDir is ProjectDir/.patchmatrix
	StateDir string

	Project ProjectConfig
}

// InitProjectDir creates .patchmatrix/ and .patchmatrix/logs/ and writes the
// default config.yaml when none exists yet.
func InitProjectDir(projectDir string) error {
	stateDir := filepath.Join(projectDir, ProjectDirName)
	if err := os.MkdirAll(filepath.Join(stateDir, "logs"), 0o755); err != nil {
		return err
	}
	return ensureProjectConfig(filepath.Join(stateDir, "config.yaml"))
}

// NewConfig loads the project configuration, applying environment overrides
// on top of the file.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir: projectDir,
		StateDir:   filepath.Join(projectDir, ProjectDirName),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	cfg.Project.applyEnvOverrides()
	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// JournalPath returns the notification journal file.
func (c *Config) JournalPath() string {
	return filepath.Join(c.LogsDir(), "notifications.log")
}

// VersionsDir is where "patchmatrix serve --persist" keeps accepted versions.
func (c *Config) VersionsDir() string {
	return filepath.Join(c.StateDir, "versions")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// JournalEnabled reports whether failures are appended to the journal.
func (c *Config) JournalEnabled() bool {
	if c.Project.Notifications.Journal == nil {
		return true
	}
	return *c.Project.Notifications.Journal
}

// SetServerURL updates the patch server URL and persists it.
func (c *Config) SetServerURL(raw string) error {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if err := validateURL(raw); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.Project.Server.BaseURL = raw
	return c.saveProjectConfig()
}

func (c *Config) saveProjectConfig() error {
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.MkdirAll(c.StateDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure %s: %w", c.StateDir, err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", c.ProjectConfigPath(), err)
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	pc := ProjectConfig{}
	pc.applyDefaults()
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.Server.BaseURL) == "" {
		pc.Server.BaseURL = DefaultServerURL
	}
	if pc.Server.Timeout <= 0 {
		pc.Server.Timeout = DefaultTimeout
	}
	if pc.Server.MaxAttempts <= 0 {
		pc.Server.MaxAttempts = DefaultMaxAttempts
	}
	if strings.TrimSpace(pc.DevServer.Host) == "" {
		pc.DevServer.Host = DefaultDevHost
	}
	if pc.DevServer.Port == 0 {
		pc.DevServer.Port = DefaultDevPort
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Server.BaseURL = strings.TrimRight(strings.TrimSpace(pc.Server.BaseURL), "/")
	pc.DevServer.Host = strings.TrimSpace(pc.DevServer.Host)
}

func (pc *ProjectConfig) applyEnvOverrides() {
	if value := strings.TrimSpace(os.Getenv("PATCHMATRIX_SERVER_URL")); value != "" {
		pc.Server.BaseURL = strings.TrimRight(value, "/")
	}
	if host := strings.TrimSpace(os.Getenv("PATCHMATRIX_DEV_HOST")); host != "" {
		pc.DevServer.Host = host
	}
	if port := strings.TrimSpace(os.Getenv("PATCHMATRIX_DEV_PORT")); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil && isValidPort(parsed) {
			pc.DevServer.Port = parsed
		}
	}
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if err := validateURL(pc.Server.BaseURL); err != nil {
		return fmt.Errorf("server.base_url: %w", err)
	}
	if !isValidPort(pc.DevServer.Port) {
		return fmt.Errorf("dev_server.port %d out of range", pc.DevServer.Port)
	}
	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url %q must use http or https", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

func isValidPort(port int) bool {
	return port > 0 && port <= 65535
}
