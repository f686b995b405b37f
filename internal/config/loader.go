package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// SKILLCHAT_API_BASE_URL for api.base_url.
const EnvPrefix = "SKILLCHAT"

// Loader resolves a Config from, lowest first: defaults, the config file,
// .env and the environment, then values pinned with Set.
type Loader struct {
	v          *viper.Viper
	configFile string
	envFile    string
}

func NewLoader() *Loader {
	return &Loader{v: viper.New(), envFile: ".env"}
}

// SetConfigFile makes path mandatory instead of searching for config.yaml.
func (l *Loader) SetConfigFile(path string) { l.configFile = path }

// SetEnvFile names the dotenv file. Empty disables it.
func (l *Loader) SetEnvFile(path string) { l.envFile = path }

// Set pins key above every other source. Flags use it.
func (l *Loader) Set(key string, value any) { l.v.Set(key, value) }

// ConfigFileUsed is the file Load read, if any.
func (l *Loader) ConfigFileUsed() string { return l.v.ConfigFileUsed() }

func (l *Loader) Load() (*Config, error) {
	if l.envFile != "" {
		// Variables already in the environment win over .env.
		_ = godotenv.Load(l.envFile)
	}

	cfg := DefaultConfig()
	for key, value := range settings(cfg) {
		l.v.SetDefault(key, value)
		_ = l.v.BindEnv(key, envName(key))
	}

	if err := l.readConfigFile(); err != nil {
		return nil, err
	}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	for _, p := range []*string{
		&cfg.Global.DataDir,
		&cfg.Global.ConfigDir,
		&cfg.Database.Path,
		&cfg.Logging.File,
		&cfg.Auth.TokenFile,
	} {
		*p = expandHome(*p)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (l *Loader) readConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", l.configFile, err)
		}
		return nil
	}

	l.v.SetConfigName("config")
	l.v.SetConfigType("yaml")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		l.v.AddConfigPath(filepath.Join(xdg, "skillchat"))
	}
	if home, _ := os.UserHomeDir(); home != "" {
		l.v.AddConfigPath(filepath.Join(home, ".config", "skillchat"))
	}
	l.v.AddConfigPath(".")

	err := l.v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// settings lists every config key with its default. Viper only applies
// environment overrides to keys it knows, so each one is bound here.
func settings(cfg *Config) map[string]any {
	return map[string]any{
		"global.data_dir":   cfg.Global.DataDir,
		"global.config_dir": cfg.Global.ConfigDir,

		"api.base_url":   cfg.API.BaseURL,
		"api.timeout":    cfg.API.Timeout,
		"api.rate_limit": cfg.API.RateLimit,
		"api.rate_burst": cfg.API.RateBurst,

		"auth.token":               cfg.Auth.Token,
		"auth.token_file":          cfg.Auth.TokenFile,
		"auth.subject":             cfg.Auth.Subject,
		"auth.oauth.client_id":     cfg.Auth.OAuth.ClientID,
		"auth.oauth.client_secret": cfg.Auth.OAuth.ClientSecret,
		"auth.oauth.token_url":     cfg.Auth.OAuth.TokenURL,
		"auth.oauth.audience":      cfg.Auth.OAuth.Audience,

		"chat.poll_interval":        cfg.Chat.PollInterval,
		"chat.max_concurrent_polls": cfg.Chat.MaxConcurrentPolls,
		"chat.scroll_threshold":     cfg.Chat.ScrollThreshold,

		"directory.refresh_interval": cfg.Directory.RefreshInterval,
		"directory.badge_cap":        cfg.Directory.BadgeCap,

		"database.path":            cfg.Database.Path,
		"database.busy_timeout_ms": cfg.Database.BusyTimeoutMs,

		"logging.level":         cfg.Logging.Level,
		"logging.format":        cfg.Logging.Format,
		"logging.file":          cfg.Logging.File,
		"logging.enable_caller": cfg.Logging.EnableCaller,

		"metrics.addr": cfg.Metrics.Addr,
	}
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}
