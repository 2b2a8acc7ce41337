// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Checkpoint describes a durable, named snapshot of a SystemState. It is
// stored as a manifest beside the serialized state.
type Checkpoint struct {
	// ID is the checkpoint identifier, a folder/stem path such as
	// "Prep_prune/7tim_optMM".
	ID string `json:"id" yaml:"id"`

	// Stage is the name of the stage that produced the checkpoint.
	Stage string `json:"stage" yaml:"stage"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// Fingerprint is the configuration fingerprint of the producing stage.
	Fingerprint string `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`

	Atoms     int     `json:"atoms" yaml:"atoms"`
	Energy    float64 `json:"energy" yaml:"energy"`
	Converged bool    `json:"converged" yaml:"converged"`
	Method    string  `json:"method,omitempty" yaml:"method,omitempty"`

	// SHA256 is the hex digest of the stored (compressed) payload.
	SHA256 string `json:"sha256" yaml:"sha256"`
	Size   int64  `json:"size" yaml:"size"`

	// Exports lists human-readable files written beside the checkpoint
	// (e.g. "7tim_optMM.pdb").
	Exports []string `json:"exports,omitempty" yaml:"exports,omitempty"`
}

// CheckpointMeta is the stage-supplied part of a Checkpoint.
type CheckpointMeta struct {
	Stage       string
	Fingerprint string
}
