// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// StoreBackend identifies the checkpoint storage medium.
type StoreBackend string

const (
	BackendFS       StoreBackend = "fs"
	BackendSQLite   StoreBackend = "sqlite"
	BackendPostgres StoreBackend = "postgres"
	BackendMinIO    StoreBackend = "minio"
)

// ExportFormat names a human-readable file written beside a checkpoint.
type ExportFormat string

const (
	ExportPDB     ExportFormat = "pdb"
	ExportXYZ     ExportFormat = "xyz"
	ExportProfile ExportFormat = "profile"
)

// StoreConfig holds settings for the checkpoint store.
type StoreConfig struct {
	// Backend selects the storage medium: fs, sqlite, postgres, or minio.
	Backend StoreBackend `json:"backend" yaml:"backend"`

	// Dir is the base directory for the fs backend and the database
	// location for the sqlite backend (Dir/checkpoints.db).
	Dir string `json:"dir" yaml:"dir"`

	// DatabaseURL is the connection string for the postgres backend.
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty"`

	// Compression is the zstd encoder level (1-4, default 3).
	Compression int `json:"compression" yaml:"compression"`

	// Exports lists the human-readable formats written beside each
	// checkpoint (default pdb and profile).
	Exports []ExportFormat `json:"exports" yaml:"exports"`

	ObjectStore ObjectStoreConfig `json:"object_store" yaml:"object_store"`
}

// ObjectStoreConfig holds settings for the minio backend.
type ObjectStoreConfig struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	AccessKey string `json:"access_key,omitempty" yaml:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty" yaml:"secret_key,omitempty"`
	Region    string `json:"region" yaml:"region"`
	UseSSL    bool   `json:"use_ssl" yaml:"use_ssl"`
	Bucket    string `json:"bucket" yaml:"bucket"`

	// Prefix is prepended to every object key (e.g. "runs/7tim").
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// RunnerKind selects how the external engine process is started.
type RunnerKind string

const (
	RunnerContainer RunnerKind = "container"
	RunnerExec      RunnerKind = "exec"
)

// EngineConfig holds settings for the external simulation engine.
type EngineConfig struct {
	// Runner selects container (docker/podman) or a local executable.
	Runner RunnerKind `json:"runner" yaml:"runner"`

	// Image is the container image for the container runner.
	Image string `json:"image" yaml:"image"`

	// Command is the executable and arguments for the exec runner.
	Command []string `json:"command" yaml:"command"`

	// WorkDir is where the engine writes trajectories and scratch files.
	WorkDir string `json:"work_dir" yaml:"work_dir"`
}

// RetryConfig bounds retries of transient persistence failures.
type RetryConfig struct {
	// Attempts is the total number of save attempts (default 3).
	Attempts int `json:"attempts" yaml:"attempts"`

	// BaseDelay is the first backoff delay; it doubles on each retry
	// (default 1s).
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`
}

// LedgerConfig holds settings for the run history ledger.
type LedgerConfig struct {
	// Enabled turns ledger recording on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Driver is "sqlite3" (default) or "pgx".
	Driver string `json:"driver" yaml:"driver"`

	// DSN is the data source; for sqlite3 it defaults to
	// <store dir>/ledger.db.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// PipelineConfig groups the settings for one pipeline invocation.
type PipelineConfig struct {
	Store  StoreConfig  `json:"store" yaml:"store"`
	Engine EngineConfig `json:"engine" yaml:"engine"`
	Retry  RetryConfig  `json:"retry" yaml:"retry"`
	Ledger LedgerConfig `json:"ledger" yaml:"ledger"`

	// Resume overrides the plan's resumption policy when set.
	Resume ResumePolicy `json:"resume,omitempty" yaml:"resume,omitempty"`
}
