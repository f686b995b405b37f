// Package config handles skillchat configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/andertben/skillspot-chat/internal/logging"
)

// Config is the root configuration structure for skillchat.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// API is the chat backend connection.
	API APIConfig `yaml:"api" mapstructure:"api"`

	// Auth supplies the bearer token.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Chat tunes the conversation synchronizer.
	Chat ChatConfig `yaml:"chat" mapstructure:"chat"`

	// Directory tunes the thread directory and unread badge.
	Directory DirectoryConfig `yaml:"directory" mapstructure:"directory"`

	// Database settings
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Metrics settings
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// GlobalConfig contains global settings.
type GlobalConfig struct {
	// DataDir is where skillchat stores its data (default: ~/.local/share/skillchat).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/skillchat).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// APIConfig describes the chat backend.
type APIConfig struct {
	// BaseURL is the backend root, e.g. http://localhost:8080.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// RateLimit is the maximum outbound requests per second (0 disables).
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`

	// RateBurst is the limiter burst size.
	RateBurst int `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// AuthConfig selects how bearer tokens are obtained. The first non-empty
// source wins: Token, TokenFile, then OAuth client credentials.
type AuthConfig struct {
	// Token is a static bearer token.
	Token string `yaml:"token" mapstructure:"token"`

	// TokenFile is a file containing the bearer token; re-read on every request.
	TokenFile string `yaml:"token_file" mapstructure:"token_file"`

	// OAuth configures the client-credentials flow.
	OAuth OAuthConfig `yaml:"oauth" mapstructure:"oauth"`

	// Subject is the caller's own sender ID, used to mark own messages.
	Subject string `yaml:"subject" mapstructure:"subject"`
}

// OAuthConfig holds client-credentials settings.
type OAuthConfig struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	TokenURL     string `yaml:"token_url" mapstructure:"token_url"`
	Audience     string `yaml:"audience" mapstructure:"audience"`
}

// Enabled reports whether the client-credentials flow is configured.
func (o OAuthConfig) Enabled() bool {
	return o.ClientID != "" && o.TokenURL != ""
}

// ChatConfig tunes the conversation synchronizer.
type ChatConfig struct {
	// PollInterval is how often an open thread re-fetches its history.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// MaxConcurrentPolls limits overlapping history fetches.
	MaxConcurrentPolls int `yaml:"max_concurrent_polls" mapstructure:"max_concurrent_polls"`

	// ScrollThreshold is the distance from the bottom, in rows or pixels,
	// within which new messages auto-scroll the view. Zero means 30.
	ScrollThreshold int `yaml:"scroll_threshold" mapstructure:"scroll_threshold"`
}

// DirectoryConfig tunes the thread directory.
type DirectoryConfig struct {
	// RefreshInterval is how often summaries are re-fetched.
	RefreshInterval time.Duration `yaml:"refresh_interval" mapstructure:"refresh_interval"`

	// BadgeCap is the largest unread count rendered verbatim.
	BadgeCap int `yaml:"badge_cap" mapstructure:"badge_cap"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" mapstructure:"path"`

	// BusyTimeoutMs is how long to wait for a locked database.
	BusyTimeoutMs int `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables it.
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "skillchat"),
			ConfigDir: filepath.Join(homeDir, ".config", "skillchat"),
		},
		API: APIConfig{
			BaseURL:   "http://localhost:8080",
			Timeout:   15 * time.Second,
			RateLimit: 10,
			RateBurst: 5,
		},
		Chat: ChatConfig{
			PollInterval:       3 * time.Second,
			MaxConcurrentPolls: 2,
			ScrollThreshold:    30,
		},
		Directory: DirectoryConfig{
			RefreshInterval: 30 * time.Second,
			BadgeCap:        99,
		},
		Database: DatabaseConfig{
			Path:          "", // Will be set to DataDir/skillchat.db
			BusyTimeoutMs: 5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative")
	}
	if c.API.RateLimit > 0 && c.API.RateBurst < 1 {
		return fmt.Errorf("api.rate_burst must be at least 1 when rate limiting")
	}

	if c.Chat.PollInterval < 500*time.Millisecond {
		return fmt.Errorf("chat.poll_interval must be at least 500ms")
	}
	if c.Chat.MaxConcurrentPolls < 1 {
		return fmt.Errorf("chat.max_concurrent_polls must be at least 1")
	}
	if c.Chat.ScrollThreshold < 0 {
		return fmt.Errorf("chat.scroll_threshold must not be negative")
	}

	if c.Directory.RefreshInterval < time.Second {
		return fmt.Errorf("directory.refresh_interval must be at least 1s")
	}
	if c.Directory.BadgeCap < 1 {
		return fmt.Errorf("directory.badge_cap must be at least 1")
	}

	if c.Auth.OAuth.ClientID != "" && c.Auth.OAuth.TokenURL == "" {
		return fmt.Errorf("auth.oauth.token_url is required with auth.oauth.client_id")
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DatabasePath returns the full database path.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Global.DataDir, "skillchat.db")
}

// ContextPath returns the path of the persisted CLI context.
func (c *Config) ContextPath() string {
	return filepath.Join(c.Global.ConfigDir, "context.yaml")
}
