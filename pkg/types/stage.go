// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SimulationKind is the closed set of stage kinds. Each kind has its own
// configuration vocabulary.
type SimulationKind string

const (
	KindGeometryOptimization SimulationKind = "geometry_optimization"
	KindRelaxedSurfaceScan   SimulationKind = "relaxed_surface_scan"
	KindEnergyRefinement     SimulationKind = "energy_refinement"
)

// Valid reports whether k is one of the known simulation kinds.
func (k SimulationKind) Valid() bool {
	switch k {
	case KindGeometryOptimization, KindRelaxedSurfaceScan, KindEnergyRefinement:
		return true
	}
	return false
}

// InputKind is where a stage obtains its starting system.
type InputKind string

const (
	InputForceField InputKind = "forcefield"
	InputCheckpoint InputKind = "checkpoint"
)

// StageStatus is a state of the per-stage state machine.
type StageStatus string

const (
	StatusPending      StageStatus = "pending"
	StatusLoadingInput StageStatus = "loading_input"
	StatusConfiguring  StageStatus = "configuring"
	StatusRunning      StageStatus = "running"
	StatusPersisting   StageStatus = "persisting"
	StatusDone         StageStatus = "done"
	StatusSkipped      StageStatus = "skipped"
	StatusFailed       StageStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s StageStatus) Terminal() bool {
	return s == StatusDone || s == StatusSkipped || s == StatusFailed
}

// ResumePolicy decides what happens when a stage's output already exists.
type ResumePolicy string

const (
	// ResumeSkip reuses an existing checkpoint. It is the default.
	ResumeSkip ResumePolicy = "skip"

	// ResumeOverwrite always re-runs the stage and replaces the checkpoint.
	ResumeOverwrite ResumePolicy = "overwrite"

	// ResumeRerunChanged re-runs the stage only when the stored checkpoint
	// was produced from a different configuration fingerprint.
	ResumeRerunChanged ResumePolicy = "rerun-changed"
)

// Valid reports whether p is a known policy. The empty policy is valid and
// means ResumeSkip.
func (p ResumePolicy) Valid() bool {
	switch p {
	case "", ResumeSkip, ResumeOverwrite, ResumeRerunChanged:
		return true
	}
	return false
}

// FailureKind classifies why a stage failed or warned.
type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureConfiguration FailureKind = "configuration"
	FailureNotFound      FailureKind = "not-found"
	FailureCorruption    FailureKind = "corruption"
	FailureConvergence   FailureKind = "convergence"
	FailureFault         FailureKind = "fault"
	FailurePersistence   FailureKind = "persistence"
	FailureCanceled      FailureKind = "canceled"
)

// StageOutcome is the ledger record of one stage in one pipeline run.
type StageOutcome struct {
	RunID       string        `json:"run_id" yaml:"run_id"`
	Stage       string        `json:"stage" yaml:"stage"`
	Position    int           `json:"position" yaml:"position"`
	Status      StageStatus   `json:"status" yaml:"status"`
	FailureKind FailureKind   `json:"failure_kind,omitempty" yaml:"failure_kind,omitempty"`
	Message     string        `json:"message,omitempty" yaml:"message,omitempty"`
	Outputs     []string      `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Warnings    []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

// RunStatus is the overall state of a pipeline run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// PipelineRun is the ledger record of one pipeline invocation.
type PipelineRun struct {
	ID         string         `json:"id" yaml:"id"`
	Plan       string         `json:"plan" yaml:"plan"`
	Policy     ResumePolicy   `json:"policy" yaml:"policy"`
	Status     RunStatus      `json:"status" yaml:"status"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time      `json:"finished_at,omitzero" yaml:"finished_at,omitempty"`
	Stages     []StageOutcome `json:"stages,omitempty" yaml:"stages,omitempty"`
}
