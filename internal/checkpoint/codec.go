// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/reaction-engine/internal/structure"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

const (
	formatVersion   = 1
	defaultLevel    = 3
	manifestSuffix  = ".checkpoint.yaml"
	payloadSuffix   = ".zst"
	profileCSVName  = "_profile.csv"
	profilePNGName  = "_profile.png"
	sumPrefixLength = 16
)

// envelope is the serialized form of a checkpoint payload before
// compression.
type envelope struct {
	Version int                `json:"version"`
	ID      string             `json:"id"`
	State   *types.SystemState `json:"state"`
}

// codec compresses payloads with zstd and checksums the compressed bytes.
type codec struct {
	level zstd.EncoderLevel
}

func newCodec(level int) (*codec, error) {
	if level == 0 {
		level = defaultLevel
	}
	if level < 1 || level > 4 {
		return nil, fmt.Errorf("compression level %d out of range 1-4", level)
	}
	return &codec{level: zstd.EncoderLevel(level)}, nil
}

// encode serializes state and returns the compressed payload and its hex
// SHA-256 digest.
func (c *codec) encode(id string, state *types.SystemState) ([]byte, string, error) {
	if err := checkState(state); err != nil {
		return nil, "", &InvalidStateError{ID: id, Err: err}
	}
	raw, err := json.Marshal(envelope{Version: formatVersion, ID: id, State: state})
	if err != nil {
		return nil, "", &InvalidStateError{ID: id, Err: fmt.Errorf("encoding state: %w", err)}
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(c.level))
	if err != nil {
		return nil, "", fmt.Errorf("creating encoder: %w", err)
	}
	defer enc.Close()
	payload := enc.EncodeAll(raw, make([]byte, 0, len(raw)/4))
	return payload, digest(payload), nil
}

// decode verifies payload against wantSum (when non-empty) and
// reconstructs the state. Every failure is a *CorruptionError.
func (c *codec) decode(id string, payload []byte, wantSum string) (*types.SystemState, error) {
	if wantSum != "" {
		if got := digest(payload); got != wantSum {
			return nil, &CorruptionError{ID: id, Err: fmt.Errorf("checksum mismatch: manifest %s, payload %s", short(wantSum), short(got))}
		}
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, &CorruptionError{ID: id, Err: fmt.Errorf("decompressing: %w", err)}
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &CorruptionError{ID: id, Err: fmt.Errorf("decoding: %w", err)}
	}
	if env.Version != formatVersion {
		return nil, &CorruptionError{ID: id, Err: fmt.Errorf("unsupported format version %d", env.Version)}
	}
	if err := checkState(env.State); err != nil {
		return nil, &CorruptionError{ID: id, Err: err}
	}
	return env.State, nil
}

// checkState holds the shape rules shared by encode and decode.
func checkState(s *types.SystemState) error {
	if s == nil {
		return fmt.Errorf("payload has no state")
	}
	if len(s.Coordinates) != 3*len(s.Atoms) {
		return fmt.Errorf("%d coordinates for %d atoms", len(s.Coordinates), len(s.Atoms))
	}
	return nil
}

// manifest builds the Checkpoint record for a freshly encoded payload.
func manifest(id string, state *types.SystemState, meta types.CheckpointMeta, sum string, size int) types.Checkpoint {
	return types.Checkpoint{
		ID:          id,
		Stage:       meta.Stage,
		CreatedAt:   time.Now().UTC(),
		Fingerprint: meta.Fingerprint,
		Atoms:       state.NumAtoms(),
		Energy:      state.Energy,
		Converged:   state.Convergence.Converged,
		Method:      state.Method,
		SHA256:      sum,
		Size:        int64(size),
	}
}

func marshalManifest(cp types.Checkpoint) ([]byte, error) {
	data, err := yaml.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return data, nil
}

func unmarshalManifest(id string, data []byte) (types.Checkpoint, error) {
	var cp types.Checkpoint
	if err := yaml.Unmarshal(data, &cp); err != nil {
		return types.Checkpoint{}, &CorruptionError{ID: id, Err: fmt.Errorf("decoding manifest: %w", err)}
	}
	if cp.ID != id {
		return types.Checkpoint{}, &CorruptionError{ID: id, Err: fmt.Errorf("manifest names checkpoint %q", cp.ID)}
	}
	return cp, nil
}

// payloadName returns the content-addressed payload file name for a stem.
// Distinct versions of one checkpoint never share a payload name, so a
// new version can be written completely before it is published.
func payloadName(stem, sum string) string {
	return stem + "." + short(sum) + payloadSuffix
}

// export is one rendered human-readable file.
type export struct {
	name string
	data []byte
}

// renderExports renders the requested formats for state. Formats that do
// not apply (a profile for a state without scan frames) are skipped.
func renderExports(stem string, state *types.SystemState, formats []types.ExportFormat) ([]export, error) {
	var out []export
	for _, f := range formats {
		var buf bytes.Buffer
		switch f {
		case types.ExportPDB:
			if err := structure.WritePDB(&buf, state); err != nil {
				return nil, fmt.Errorf("rendering pdb: %w", err)
			}
			out = append(out, export{name: stem + ".pdb", data: buf.Bytes()})
		case types.ExportXYZ:
			if err := structure.WriteXYZ(&buf, state); err != nil {
				return nil, fmt.Errorf("rendering xyz: %w", err)
			}
			out = append(out, export{name: stem + ".xyz", data: buf.Bytes()})
		case types.ExportProfile:
			points := structure.Profile(state)
			if len(points) == 0 {
				continue
			}
			if err := structure.WriteProfileCSV(&buf, points); err != nil {
				return nil, fmt.Errorf("rendering profile csv: %w", err)
			}
			out = append(out, export{name: stem + profileCSVName, data: bytes.Clone(buf.Bytes())})
			buf.Reset()
			if err := structure.WriteProfilePNG(&buf, stem, points); err != nil {
				return nil, fmt.Errorf("rendering profile plot: %w", err)
			}
			out = append(out, export{name: stem + profilePNGName, data: buf.Bytes()})
		default:
			return nil, fmt.Errorf("unknown export format %q", f)
		}
	}
	return out, nil
}

func exportNames(exports []export) []string {
	names := make([]string, len(exports))
	for i, e := range exports {
		names[i] = e.name
	}
	return names
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func short(sum string) string {
	if len(sum) > sumPrefixLength {
		return sum[:sumPrefixLength]
	}
	return sum
}
