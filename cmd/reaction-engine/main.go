// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the reaction-engine CLI. It runs
// staged reaction-path pipelines from plan files and inspects the
// checkpoints and run history they leave behind.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/reaction-engine/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

var logger = slog.Default()

var rootCmd = &cobra.Command{
	Use:   "reaction-engine",
	Short: "Run staged QC/MM reaction-path simulations with checkpoint resumption",
	Long: `reaction-engine runs a chain of simulation stages (system preparation,
geometry optimization, relaxed surface scans, and semi-empirical energy
refinement) against an external simulation engine. Every stage publishes a
named checkpoint; re-running a plan skips stages whose checkpoints exist and
resumes from the first missing one.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(viper.GetString("log_level"))
		slog.SetDefault(logger)

		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		dir := viper.GetString("secrets_dir")
		s, err := secrets.Load(dir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", "dir", dir, "keys", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./reaction-engine.yaml or ~/.config/reaction-engine/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets", "directory of credential files")
	rootCmd.PersistentFlags().String("store-dir", "", "checkpoint directory (overrides store.dir)")
	rootCmd.PersistentFlags().String("backend", "", "checkpoint backend: fs, sqlite, postgres, minio (overrides store.backend)")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("secrets_dir", rootCmd.PersistentFlags().Lookup("secrets-dir"))
	viper.BindPFlag("store.dir", rootCmd.PersistentFlags().Lookup("store-dir"))
	viper.BindPFlag("store.backend", rootCmd.PersistentFlags().Lookup("backend"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("reaction-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "reaction-engine"))
		}
	}

	setDefaults(viper.GetViper())
	viper.SetEnvPrefix("REACTION_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
