// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads storage credentials from a directory of plain-text
// files. Each file holds one secret: the filename is the key and the
// trimmed contents are the value.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/reaction-engine/pkg/types"
)

// Recognized key files.
const (
	MinIOAccessKey = "minio-access-key"
	MinIOSecretKey = "minio-secret-key"
	DatabaseURL    = "database-url"
	LedgerDSN      = "ledger-dsn"
)

// Load reads all files in dir and returns a map of filename to trimmed
// contents. A missing directory is not an error. Unreadable files are
// logged and skipped.
func Load(dir string, logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("skipping unreadable secret", "name", name, "error", err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Apply fills credential fields of cfg that are still empty from s.
// Values already set by flags, environment, or config file win.
func Apply(s map[string]string, cfg *types.PipelineConfig) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = s[key]
		}
	}
	fill(&cfg.Store.ObjectStore.AccessKey, MinIOAccessKey)
	fill(&cfg.Store.ObjectStore.SecretKey, MinIOSecretKey)
	fill(&cfg.Store.DatabaseURL, DatabaseURL)
	fill(&cfg.Ledger.DSN, LedgerDSN)
}
