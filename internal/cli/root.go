// Package cli wires configuration, storage and services into the pressroom commands.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"pressroom/internal/config"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envPath    string
)

var rootCmd = &cobra.Command{
	Use:           "pressroom",
	Short:         "Article publishing site with editorial review and Telegram two-factor login",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Version should be injected via ldflags.
var Version = "dev"

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env-file", config.DefaultEnv, "path to a .env file")
	rootCmd.Version = Version

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createSuperuserCmd)
	rootCmd.AddCommand(botCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig loads settings and builds the logger every command uses.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath, envPath)
	if err != nil {
		return nil, nil, err
	}
	log := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(log)
	return cfg, log, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
