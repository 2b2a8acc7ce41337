// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/reaction-engine/internal/checkpoint"
	"github.com/pdiddy/reaction-engine/internal/container"
	"github.com/pdiddy/reaction-engine/internal/engine"
	"github.com/pdiddy/reaction-engine/internal/ledger"
	"github.com/pdiddy/reaction-engine/internal/secrets"
	"github.com/pdiddy/reaction-engine/internal/sqldb"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

const (
	defaultStoreDir = "checkpoints"
	defaultImage    = "pdynamo3:latest"
	ledgerFile      = "ledger.db"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("secrets_dir", ".secrets")

	v.SetDefault("store.backend", string(types.BackendFS))
	v.SetDefault("store.dir", defaultStoreDir)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.compression", 3)
	v.SetDefault("store.exports", []string{string(types.ExportPDB), string(types.ExportProfile)})
	v.SetDefault("store.object_store.endpoint", "localhost:9000")
	v.SetDefault("store.object_store.access_key", "")
	v.SetDefault("store.object_store.secret_key", "")
	v.SetDefault("store.object_store.region", "us-east-1")
	v.SetDefault("store.object_store.use_ssl", false)
	v.SetDefault("store.object_store.bucket", "checkpoints")
	v.SetDefault("store.object_store.prefix", "")

	v.SetDefault("engine.runner", string(types.RunnerContainer))
	v.SetDefault("engine.image", defaultImage)
	v.SetDefault("engine.command", []string{})
	v.SetDefault("engine.work_dir", "work")

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.base_delay", "1s")

	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.driver", sqldb.DriverSQLite)
	v.SetDefault("ledger.dsn", "")

	v.SetDefault("resume", "")
}

// loadConfig decodes the merged flag, environment, and file settings and
// fills missing credentials from the secrets directory.
func loadConfig(v *viper.Viper) (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	})
	if err != nil {
		return types.PipelineConfig{}, fmt.Errorf("decoding configuration: %w", err)
	}
	secrets.Apply(loadedSecrets, &cfg)

	if cfg.Ledger.Driver == sqldb.DriverSQLite && cfg.Ledger.DSN == "" {
		cfg.Ledger.DSN = filepath.Join(cfg.Store.Dir, ledgerFile)
	}
	if cfg.Ledger.Driver == sqldb.DriverPostgres && cfg.Ledger.DSN == "" {
		cfg.Ledger.DSN = cfg.Store.DatabaseURL
	}
	if !cfg.Resume.Valid() {
		return types.PipelineConfig{}, fmt.Errorf("unknown resume policy %q (want skip, overwrite, or rerun-changed)", cfg.Resume)
	}
	return cfg, nil
}

func openStore(ctx context.Context) (checkpoint.Store, types.PipelineConfig, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, cfg, err
	}
	store, err := checkpoint.Open(ctx, cfg.Store)
	if err != nil {
		return nil, cfg, fmt.Errorf("opening %s checkpoint store: %w", cfg.Store.Backend, err)
	}
	return store, cfg, nil
}

func openLedger(ctx context.Context, cfg types.LedgerConfig) (*ledger.Ledger, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("ledger dsn is required for driver %s", cfg.Driver)
	}
	l, err := ledger.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	return l, nil
}

func openEngine(ctx context.Context, cfg types.EngineConfig) (*engine.External, error) {
	runner, err := container.NewRunner(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("starting engine runner: %w", err)
	}
	logger.Info("engine ready", "runner", runner.Name())
	return engine.NewExternal(runner, logger), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with credentials masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		masked := redact(cfg)
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(masked); err != nil {
			return err
		}
		return enc.Close()
	},
}

func redact(cfg types.PipelineConfig) types.PipelineConfig {
	mask := func(s *string) {
		if *s != "" {
			*s = "********"
		}
	}
	mask(&cfg.Store.ObjectStore.AccessKey)
	mask(&cfg.Store.ObjectStore.SecretKey)
	mask(&cfg.Store.DatabaseURL)
	if cfg.Ledger.Driver == sqldb.DriverPostgres {
		mask(&cfg.Ledger.DSN)
	}
	return cfg
}

func init() {
	rootCmd.AddCommand(configCmd)
}
