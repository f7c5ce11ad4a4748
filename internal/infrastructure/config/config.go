package config

import (
	"fmt"
	"net"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all service configuration. Values resolve in three
// layers: compiled defaults, then an optional config file, then
// TERMBRIDGE_* environment variables. Later layers win.
type Config struct {
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Shell      ShellConfig      `yaml:"shell" toml:"shell"`
	Session    SessionConfig    `yaml:"session" toml:"session"`
	Events     EventsConfig     `yaml:"events" toml:"events"`
	Transcript TranscriptConfig `yaml:"transcript" toml:"transcript"`
	Logging    LogConfig        `yaml:"logging" toml:"logging"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" toml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port                   string `envconfig:"PORT" yaml:"port" toml:"port"`
	Host                   string `envconfig:"HOST" yaml:"host" toml:"host"`
	ShutdownTimeoutSeconds int    `envconfig:"SHUTDOWN_TIMEOUT_SECONDS" yaml:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// ShutdownTimeout returns the graceful shutdown window.
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// ShellConfig holds the shell command and terminal environment handed
// to every session. An empty Path falls back to $SHELL, then /bin/zsh;
// an empty Locale falls back to $LANG, then en_US.UTF-8.
type ShellConfig struct {
	Path      string `envconfig:"SHELL_PATH" yaml:"path" toml:"path"`
	Login     bool   `envconfig:"SHELL_LOGIN" yaml:"login" toml:"login"`
	Term      string `envconfig:"SHELL_TERM" yaml:"term" toml:"term"`
	ColorTerm string `envconfig:"SHELL_COLORTERM" yaml:"colorterm" toml:"colorterm"`
	Locale    string `envconfig:"SHELL_LOCALE" yaml:"locale" toml:"locale"`
}

// SessionConfig holds per-session tuning.
type SessionConfig struct {
	ScrollbackBytes int `envconfig:"SCROLLBACK_BYTES" yaml:"scrollback_bytes" toml:"scrollback_bytes"`
}

// EventsConfig holds outbound event delivery configuration. An empty
// WebhookURL disables the webhook sink.
type EventsConfig struct {
	WebhookURL            string `envconfig:"WEBHOOK_URL" yaml:"webhook_url" toml:"webhook_url"`
	WebhookTimeoutSeconds int    `envconfig:"WEBHOOK_TIMEOUT_SECONDS" yaml:"webhook_timeout_seconds" toml:"webhook_timeout_seconds"`
}

// WebhookTimeout returns the per-delivery HTTP timeout.
func (e EventsConfig) WebhookTimeout() time.Duration {
	return time.Duration(e.WebhookTimeoutSeconds) * time.Second
}

// TranscriptConfig holds session transcript recording configuration.
type TranscriptConfig struct {
	Enabled bool   `envconfig:"TRANSCRIPT_ENABLED" yaml:"enabled" toml:"enabled"`
	Dir     string `envconfig:"TRANSCRIPT_DIR" yaml:"dir" toml:"dir"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled"`
}

// Default returns the compiled default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                   "9180",
			Host:                   "0.0.0.0",
			ShutdownTimeoutSeconds: 10,
		},
		Shell: ShellConfig{
			Login:     true,
			Term:      "xterm-256color",
			ColorTerm: "truecolor",
		},
		Session: SessionConfig{
			ScrollbackBytes: 256 * 1024,
		},
		Events: EventsConfig{
			WebhookTimeoutSeconds: 10,
		},
		Transcript: TranscriptConfig{
			Enabled: false,
			Dir:     "/tmp/termbridge/transcripts",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Load resolves configuration from defaults and TERMBRIDGE_* environment
// variables. Defaults live in Default rather than struct tags so that
// environment values layer over file values instead of resetting them.
func Load() (*Config, error) {
	cfg := Default()
	if err := envconfig.Process("termbridge", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from the environment or returns
// defaults when the environment cannot be parsed.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}
