// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"time"

	"github.com/pdiddy/reaction-engine/pkg/types"
)

// StageReport is the outcome of one stage within a run. Stages after a
// failure are reported as pending.
type StageReport struct {
	Name     string
	Position int
	Status   types.StageStatus
	Failure  types.FailureKind
	Err      error

	// Outputs lists every checkpoint the stage owns that now exists.
	Outputs  []string
	Written  []string
	Reused   []string
	Partial  []string
	Warnings []string

	StartedAt time.Time
	Duration  time.Duration
}

// Report summarises a pipeline run.
type Report struct {
	RunID      string
	Plan       string
	Policy     types.ResumePolicy
	StartedAt  time.Time
	FinishedAt time.Time
	Stages     []StageReport
}

// Counts returns the number of executed, skipped, failed, and unreached
// stages.
func (r *Report) Counts() (executed, skipped, failed, pending int) {
	for _, s := range r.Stages {
		switch s.Status {
		case types.StatusDone:
			executed++
		case types.StatusSkipped:
			skipped++
		case types.StatusFailed:
			failed++
		default:
			pending++
		}
	}
	return executed, skipped, failed, pending
}

// Failed returns the stage that halted the run, if any.
func (r *Report) Failed() (StageReport, bool) {
	for _, s := range r.Stages {
		if s.Status == types.StatusFailed {
			return s, true
		}
	}
	return StageReport{}, false
}

// Err returns the error of the failed stage, or nil.
func (r *Report) Err() error {
	s, ok := r.Failed()
	if !ok {
		return nil
	}
	return s.Err
}

// Warnings returns the warnings of every stage in order.
func (r *Report) Warnings() []string {
	var out []string
	for _, s := range r.Stages {
		out = append(out, s.Warnings...)
	}
	return out
}

// Status returns the overall run status.
func (r *Report) Status() types.RunStatus {
	if r.FinishedAt.IsZero() {
		return types.RunRunning
	}
	if _, failed := r.Failed(); failed {
		return types.RunFailed
	}
	return types.RunSucceeded
}

func (s StageReport) outcome(runID string) types.StageOutcome {
	o := types.StageOutcome{
		RunID:       runID,
		Stage:       s.Name,
		Position:    s.Position,
		Status:      s.Status,
		FailureKind: s.Failure,
		Outputs:     s.Outputs,
		Warnings:    s.Warnings,
		StartedAt:   s.StartedAt,
		Duration:    s.Duration,
	}
	if s.Err != nil {
		o.Message = s.Err.Error()
	}
	return o
}

// Run converts the report to its ledger record.
func (r *Report) Run() types.PipelineRun {
	run := types.PipelineRun{
		ID:         r.RunID,
		Plan:       r.Plan,
		Policy:     r.Policy,
		Status:     r.Status(),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	for _, s := range r.Stages {
		if s.Status == types.StatusPending {
			continue
		}
		run.Stages = append(run.Stages, s.outcome(r.RunID))
	}
	return run
}
