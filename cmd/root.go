package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"morph/internal/config"
	"morph/internal/logger"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	logFile    string

	cfg       *config.Config
	appLogger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "morph",
	Short: "morph - convert images between PNG, JPEG, GIF and WebP",
	Long:  "morph converts single images or whole directory trees between PNG, JPEG, GIF and WebP through a pausable conversion queue.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		flags := cmd.Flags()
		if flags.Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if flags.Changed("log-format") {
			cfg.Log.Format = logFormat
		}
		if flags.Changed("log-file") {
			cfg.Log.File = logFile
		}

		appLogger = logger.Init(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		return nil
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// quietLogger sends logs to the configured log file, or nowhere, while the
// terminal UI owns the screen. The returned close func is never nil.
func quietLogger() (*slog.Logger, func(), error) {
	if cfg.Log.File == "" {
		l := logger.Discard()
		slog.SetDefault(l)
		return l, func() {}, nil
	}
	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logger.Init(f, cfg.Log.Level, cfg.Log.Format), func() { _ = f.Close() }, nil
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "text", "log format: text or json")
	flags.StringVar(&logFile, "log-file", "", "write logs to this file while the terminal UI is shown")
}
