// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/reaction-engine/pkg/types"
)

// FSStore keeps checkpoints in a directory tree. The id
// "QM_opt/7tim_rm1_opt_PF" maps to
//
//	<dir>/QM_opt/7tim_rm1_opt_PF.checkpoint.yaml   manifest
//	<dir>/QM_opt/7tim_rm1_opt_PF.<sum>.zst         payload
//	<dir>/QM_opt/7tim_rm1_opt_PF.pdb               exports
//
// The manifest is renamed into place last; its presence is what makes a
// checkpoint exist.
type FSStore struct {
	dir     string
	codec   *codec
	exports []types.ExportFormat
}

// NewFSStore returns a filesystem store rooted at dir with default
// compression and the given export formats.
func NewFSStore(dir string, exports ...types.ExportFormat) *FSStore {
	c, _ := newCodec(0)
	return &FSStore{dir: dir, codec: c, exports: exports}
}

func (s *FSStore) Close() error { return nil }

func (s *FSStore) manifestPath(id string) string {
	return filepath.Join(s.dir, filepath.FromSlash(id)+manifestSuffix)
}

func (s *FSStore) Exists(_ context.Context, id string) (bool, error) {
	if err := ValidateID(id); err != nil {
		return false, err
	}
	_, err := os.Stat(s.manifestPath(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("checking checkpoint %s: %w", id, err)
}

func (s *FSStore) Save(ctx context.Context, id string, state *types.SystemState, meta types.CheckpointMeta) (types.Checkpoint, error) {
	if err := ValidateID(id); err != nil {
		return types.Checkpoint{}, err
	}
	payload, sum, err := s.codec.encode(id, state)
	if err != nil {
		return types.Checkpoint{}, err
	}
	folder, stem := splitID(id)
	folderPath := filepath.Join(s.dir, filepath.FromSlash(folder))
	if err := os.MkdirAll(folderPath, 0o755); err != nil {
		return types.Checkpoint{}, &PersistenceError{ID: id, Op: "save", Err: err}
	}

	// Previous version, if any, so its payload can be removed once the
	// new manifest is published.
	prev, prevErr := s.Stat(ctx, id)

	payloadPath := filepath.Join(folderPath, payloadName(stem, sum))
	if err := writeAtomic(payloadPath, payload); err != nil {
		return types.Checkpoint{}, &PersistenceError{ID: id, Op: "save", Err: err}
	}

	exports, err := renderExports(stem, state, s.exports)
	if err != nil {
		os.Remove(payloadPath)
		return types.Checkpoint{}, err
	}
	for _, e := range exports {
		if err := writeAtomic(filepath.Join(folderPath, e.name), e.data); err != nil {
			os.Remove(payloadPath)
			return types.Checkpoint{}, &PersistenceError{ID: id, Op: "save", Err: err}
		}
	}

	cp := manifest(id, state, meta, sum, len(payload))
	cp.Exports = exportNames(exports)
	data, err := marshalManifest(cp)
	if err != nil {
		os.Remove(payloadPath)
		return types.Checkpoint{}, err
	}
	if err := writeAtomic(s.manifestPath(id), data); err != nil {
		os.Remove(payloadPath)
		return types.Checkpoint{}, &PersistenceError{ID: id, Op: "publish", Err: err}
	}

	if prevErr == nil && prev.SHA256 != sum {
		os.Remove(filepath.Join(folderPath, payloadName(stem, prev.SHA256)))
	}
	return cp, nil
}

func (s *FSStore) Stat(_ context.Context, id string) (types.Checkpoint, error) {
	if err := ValidateID(id); err != nil {
		return types.Checkpoint{}, err
	}
	data, err := os.ReadFile(s.manifestPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return types.Checkpoint{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return types.Checkpoint{}, fmt.Errorf("reading manifest %s: %w", id, err)
	}
	return unmarshalManifest(id, data)
}

func (s *FSStore) Load(ctx context.Context, id string) (*types.SystemState, error) {
	cp, err := s.Stat(ctx, id)
	if err != nil {
		return nil, err
	}
	folder, stem := splitID(id)
	path := filepath.Join(s.dir, filepath.FromSlash(folder), payloadName(stem, cp.SHA256))
	payload, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &CorruptionError{ID: id, Err: fmt.Errorf("payload %s missing", filepath.Base(path))}
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint %s: %w", id, err)
	}
	return s.codec.decode(id, payload, cp.SHA256)
}

func (s *FSStore) List(_ context.Context) ([]types.Checkpoint, error) {
	var out []types.Checkpoint
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == s.dir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), manifestSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		id := strings.TrimSuffix(filepath.ToSlash(rel), manifestSuffix)
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		cp, err := unmarshalManifest(id, data)
		if err != nil {
			return err
		}
		out = append(out, cp)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing checkpoints: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *FSStore) Delete(ctx context.Context, id string) error {
	cp, err := s.Stat(ctx, id)
	if err != nil {
		return err
	}
	if err := os.Remove(s.manifestPath(id)); err != nil {
		return &PersistenceError{ID: id, Op: "delete", Err: err}
	}
	folder, stem := splitID(id)
	folderPath := filepath.Join(s.dir, filepath.FromSlash(folder))
	os.Remove(filepath.Join(folderPath, payloadName(stem, cp.SHA256)))
	for _, name := range cp.Exports {
		os.Remove(filepath.Join(folderPath, name))
	}
	return nil
}

// writeAtomic writes data to a temp file in the destination directory,
// syncs it, and renames it over path.
func writeAtomic(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	syncErr := tmpFile.Sync()
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), writeErr)
	}
	if syncErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), syncErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
