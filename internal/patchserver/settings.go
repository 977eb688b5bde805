package patchserver

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/patchmatrix/internal/config"
)

const (
	// DefaultMaxBodyBytes limits submission payloads to 1 MB.
	DefaultMaxBodyBytes int64 = 1 << 20
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds handler writes.
	DefaultWriteTimeout = 15 * time.Second
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second
)

// Settings captures runtime configuration for the development patch server.
// Port 0 binds an ephemeral port.
type Settings struct {
	Host         string
	Port         int
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SettingsFromConfig builds Settings from the project's dev_server block.
// Environment overrides are already folded in by config.NewConfig.
func SettingsFromConfig(cfg *config.Config) Settings {
	settings := Settings{
		Host: config.DefaultDevHost,
		Port: config.DefaultDevPort,
	}
	if cfg != nil {
		if host := strings.TrimSpace(cfg.Project.DevServer.Host); host != "" {
			settings.Host = host
		}
		if cfg.Project.DevServer.Port > 0 && cfg.Project.DevServer.Port <= 65535 {
			settings.Port = cfg.Project.DevServer.Port
		}
	}
	settings.normalize()
	return settings
}

func (s *Settings) normalize() {
	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		s.Host = config.DefaultDevHost
	}
	if s.Port < 0 || s.Port > 65535 {
		s.Port = config.DefaultDevPort
	}
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the HTTP base URL for the server.
func (s Settings) URL() string {
	return "http://" + s.Address()
}
