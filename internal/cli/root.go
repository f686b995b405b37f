// Package cli implements the skillchat command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andertben/skillspot-chat/internal/config"
	"github.com/andertben/skillspot-chat/internal/logging"
)

var (
	cfgFile     string
	envFile     string
	baseURL     string
	logLevel    string
	logFormat   string
	jsonOutput  bool
	jsonlOutput bool
	verbose     bool
	quiet       bool

	appConfig *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "skillchat",
	Short: "Chat with service providers from the terminal",
	Long: `skillchat keeps marketplace conversations in sync from the terminal.

Open a thread to follow it live, send messages, and watch the unread badge
update across threads.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
			logCloser = nil
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOpen(cmd, nil)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/skillchat/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "chat backend URL (overrides api.base_url)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override logging format (json, console)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&jsonlOutput, "jsonl", false, "output in JSON Lines format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress hints and non-essential output")
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute(version string) error {
	rootCmd.Version = version
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func initConfig() error {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}
	loader.SetEnvFile(envFile)
	if baseURL != "" {
		loader.Set("api.base_url", baseURL)
	}
	if logLevel != "" {
		loader.Set("logging.level", logLevel)
	}
	if logFormat != "" {
		loader.Set("logging.format", logFormat)
	}

	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	appConfig = cfg

	logCfg := logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       os.Stderr,
		EnableCaller: cfg.Logging.EnableCaller,
	}
	if verbose {
		logCfg.Level = "debug"
	}
	if path := strings.TrimSpace(cfg.Logging.File); path != "" {
		f, err := logging.OpenFile(path)
		if err != nil {
			return err
		}
		logCfg.Output = f
		logCfg.Format = "json"
		logCloser = f
	}
	logging.Init(logCfg)

	if used := loader.ConfigFileUsed(); used != "" {
		logger := logging.Component("cli")
		logger.Debug().Str("file", used).Msg("loaded config")
	}
	return nil
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return appConfig
}

// IsJSONOutput reports whether --json was given.
func IsJSONOutput() bool {
	return jsonOutput
}

// IsJSONLOutput reports whether --jsonl was given.
func IsJSONLOutput() bool {
	return jsonlOutput
}
