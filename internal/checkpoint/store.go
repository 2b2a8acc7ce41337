// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package checkpoint persists SystemStates as named, durable checkpoints.
// A checkpoint is published atomically: readers either see the complete
// previous version or the complete new one, never a partial write.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdiddy/reaction-engine/pkg/types"
)

// Store is the durable checkpoint repository used by pipeline stages.
type Store interface {
	// Exists reports whether a published checkpoint with id exists. It is
	// never true for a save still in progress.
	Exists(ctx context.Context, id string) (bool, error)

	// Save persists state under id, replacing any previous version.
	// I/O failures are returned as *PersistenceError and states Load would
	// reject as *InvalidStateError.
	Save(ctx context.Context, id string, state *types.SystemState, meta types.CheckpointMeta) (types.Checkpoint, error)

	// Load reconstructs the state stored under id. It returns ErrNotFound
	// when absent and *CorruptionError when the payload is unreadable.
	Load(ctx context.Context, id string) (*types.SystemState, error)

	// Stat returns the manifest of id without loading the payload.
	Stat(ctx context.Context, id string) (types.Checkpoint, error)

	// List returns every published checkpoint sorted by id.
	List(ctx context.Context) ([]types.Checkpoint, error)

	// Delete removes id. Deleting a missing checkpoint returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	Close() error
}

// ErrNotFound is returned when no checkpoint exists under an id.
var ErrNotFound = errors.New("checkpoint not found")

// ErrInvalidID is returned for identifiers that cannot name a checkpoint.
var ErrInvalidID = errors.New("invalid checkpoint id")

// CorruptionError reports a checkpoint whose payload cannot be decoded or
// fails its checksum.
type CorruptionError struct {
	ID  string
	Err error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("checkpoint %s is corrupt: %v", e.ID, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// PersistenceError reports an I/O failure while writing or removing a
// checkpoint. Callers may retry.
type PersistenceError struct {
	ID  string
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s checkpoint %s: %v", e.Op, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// InvalidStateError reports a state that cannot be stored in a form Load
// would accept. Retrying does not help.
type InvalidStateError struct {
	ID  string
	Err error
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("checkpoint %s cannot be stored: %v", e.ID, e.Err)
}

func (e *InvalidStateError) Unwrap() error { return e.Err }

// Retryable reports whether err is a transient persistence failure.
func Retryable(err error) bool {
	var perr *PersistenceError
	return errors.As(err, &perr)
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)

// ValidateID checks that id is a relative folder/stem path made of safe
// characters.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidID)
	case strings.HasPrefix(id, "/"):
		return fmt.Errorf("%w %q: must be relative", ErrInvalidID, id)
	case strings.HasSuffix(id, "/"):
		return fmt.Errorf("%w %q: missing stem", ErrInvalidID, id)
	case !idPattern.MatchString(id):
		return fmt.Errorf("%w %q: allowed characters are letters, digits, '.', '_', '-', '/'", ErrInvalidID, id)
	}
	for _, part := range strings.Split(id, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w %q: empty or relative path segment", ErrInvalidID, id)
		}
	}
	return nil
}

// Open returns the Store selected by cfg.Backend. The fs backend is the
// default.
func Open(ctx context.Context, cfg types.StoreConfig) (Store, error) {
	exports := cfg.Exports
	if exports == nil {
		exports = []types.ExportFormat{types.ExportPDB, types.ExportProfile}
	}

	switch cfg.Backend {
	case "", types.BackendFS:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("store dir is required for the fs backend")
		}
		c, err := newCodec(cfg.Compression)
		if err != nil {
			return nil, err
		}
		return &FSStore{dir: cfg.Dir, codec: c, exports: exports}, nil
	case types.BackendSQLite:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("store dir is required for the sqlite backend")
		}
		return OpenSQL(ctx, DriverSQLite, filepath.Join(cfg.Dir, sqliteFile), cfg.Compression)
	case types.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database_url is required for the postgres backend")
		}
		return OpenSQL(ctx, DriverPostgres, cfg.DatabaseURL, cfg.Compression)
	case types.BackendMinIO:
		return OpenMinIO(ctx, cfg.ObjectStore, cfg.Compression, exports)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// splitID returns the folder and stem of a checkpoint id.
func splitID(id string) (folder, stem string) {
	i := strings.LastIndexByte(id, '/')
	if i < 0 {
		return "", id
	}
	return id[:i], id[i+1:]
}
