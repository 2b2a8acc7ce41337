// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline executes an ordered chain of stages, resuming from
// existing checkpoints and halting at the first fatal failure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/reaction-engine/internal/checkpoint"
	"github.com/pdiddy/reaction-engine/internal/engine"
	"github.com/pdiddy/reaction-engine/internal/params"
	"github.com/pdiddy/reaction-engine/internal/retry"
	"github.com/pdiddy/reaction-engine/internal/stage"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

// ErrRunning is returned by Run while a previous Run of the same
// orchestrator has not finished.
var ErrRunning = errors.New("pipeline is already running")

// Recorder persists run history. Implemented by the ledger.
type Recorder interface {
	BeginRun(ctx context.Context, run types.PipelineRun) error
	RecordStage(ctx context.Context, outcome types.StageOutcome) error
	FinishRun(ctx context.Context, run types.PipelineRun) error
}

// Options configures an Orchestrator. Store and Engine are required.
type Options struct {
	Store   checkpoint.Store
	Engine  engine.Engine
	Refiner engine.Refiner

	// Plan names the run in status output and the ledger.
	Plan   string
	Policy types.ResumePolicy
	Retry  retry.Policy

	// Ledger, when set, receives the run and every stage outcome.
	Ledger Recorder

	Logger *slog.Logger

	// Out receives one status line per stage and a summary. Nil discards
	// them.
	Out io.Writer
}

// Orchestrator runs a validated chain of stages.
type Orchestrator struct {
	stages  []stage.Descriptor
	opts    Options
	running atomic.Bool
}

// New validates the chain and returns an orchestrator for it. Stage names
// and output ids must be unique, and every input must be the output of an
// earlier stage.
func New(stages []stage.Descriptor, opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("pipeline: no checkpoint store")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("pipeline: no engine")
	}
	if !opts.Policy.Valid() {
		return nil, &params.ConfigurationError{Fields: []params.FieldError{{
			Key:     "resume",
			Message: fmt.Sprintf("unknown policy %q (want skip, overwrite, or rerun-changed)", opts.Policy),
		}}}
	}
	if opts.Policy == "" {
		opts.Policy = types.ResumeSkip
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if err := validateChain(stages); err != nil {
		return nil, err
	}
	return &Orchestrator{stages: slices.Clone(stages), opts: opts}, nil
}

func validateChain(stages []stage.Descriptor) error {
	if len(stages) == 0 {
		return &params.ConfigurationError{Fields: []params.FieldError{{Key: "stages", Message: "at least one stage is required"}}}
	}
	names := make(map[string]int, len(stages))
	produced := make(map[string]string)
	for i, d := range stages {
		cerr := &params.ConfigurationError{Kind: d.Kind(), Stage: d.Name()}
		if !d.Record().Valid() || d.Name() == "" {
			cerr.Fields = append(cerr.Fields, params.FieldError{Key: "stage", Message: fmt.Sprintf("stage %d was not constructed with stage.New", i)})
			return cerr
		}
		if j, dup := names[d.Name()]; dup {
			cerr.Fields = append(cerr.Fields, params.FieldError{Key: "name", Message: fmt.Sprintf("duplicates stage %d", j)})
		}
		names[d.Name()] = i

		for _, in := range d.Inputs() {
			if _, ok := produced[in]; !ok {
				cerr.Fields = append(cerr.Fields, params.FieldError{Key: "inputs", Message: fmt.Sprintf("%s is not produced by an earlier stage", in)})
			}
		}
		if src := d.Source(); src != "" && !slices.Contains(d.Inputs(), src) {
			cerr.Fields = append(cerr.Fields, params.FieldError{Key: params.KeyCheckpoint, Message: fmt.Sprintf("%s is not one of the stage inputs", src)})
		}
		for _, out := range d.Outputs() {
			if owner, dup := produced[out]; dup {
				cerr.Fields = append(cerr.Fields, params.FieldError{Key: "output", Message: fmt.Sprintf("%s is already produced by %s", out, owner)})
			}
		}
		if len(cerr.Fields) > 0 {
			return cerr
		}
		for _, out := range d.Outputs() {
			produced[out] = d.Name()
		}
	}
	return nil
}

// Stages returns the validated chain.
func (o *Orchestrator) Stages() []stage.Descriptor { return slices.Clone(o.stages) }

// Run executes the stages in order and stops at the first failed stage.
// The returned error is non-nil only when the run could not start; stage
// failures are reported through Report.Err.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrRunning
	}
	defer o.running.Store(false)

	rep := &Report{
		RunID:     uuid.NewString(),
		Plan:      o.opts.Plan,
		Policy:    o.opts.Policy,
		StartedAt: time.Now().UTC(),
	}
	logger := o.opts.Logger.With("run", rep.RunID)
	o.record(ctx, logger, "begin run", func(ctx context.Context, l Recorder) error {
		return l.BeginRun(ctx, rep.Run())
	})

	env := stage.Env{
		Store:   o.opts.Store,
		Engine:  o.opts.Engine,
		Refiner: o.opts.Refiner,
		Policy:  o.opts.Policy,
		Retry:   o.opts.Retry,
		Guard:   inFlight,
		Logger:  logger,
		OnTransition: func(name string, from, to types.StageStatus) {
			logger.Debug("stage transition", "stage", name, "from", from, "to", to)
		},
	}

	halted := false
	for i, d := range o.stages {
		if halted {
			rep.Stages = append(rep.Stages, StageReport{Name: d.Name(), Position: i, Status: types.StatusPending})
			continue
		}
		res := stage.Execute(ctx, d, env)
		sr := StageReport{
			Name:      d.Name(),
			Position:  i,
			Status:    res.Status,
			Failure:   Classify(res.Err),
			Err:       res.Err,
			Outputs:   append(slices.Clone(res.Reused), res.Written...),
			Written:   res.Written,
			Reused:    res.Reused,
			Partial:   res.Partial,
			Warnings:  res.Warnings,
			StartedAt: res.StartedAt,
			Duration:  res.Duration,
		}
		if sr.Failure == types.FailureNone && len(sr.Partial) > 0 {
			sr.Failure = types.FailureConvergence
		}
		rep.Stages = append(rep.Stages, sr)
		o.printStage(sr)
		o.record(ctx, logger, "record stage", func(ctx context.Context, l Recorder) error {
			return l.RecordStage(ctx, sr.outcome(rep.RunID))
		})

		if res.Status == types.StatusFailed {
			halted = true
		}
	}

	rep.FinishedAt = time.Now().UTC()
	executed, skipped, failed, pending := rep.Counts()
	fmt.Fprintf(o.opts.Out, "\nPipeline summary: %d executed, %d skipped, %d failed, %d not run (total: %d)\n",
		executed, skipped, failed, pending, len(rep.Stages))
	o.record(ctx, logger, "finish run", func(ctx context.Context, l Recorder) error {
		return l.FinishRun(ctx, rep.Run())
	})
	return rep, nil
}

func (o *Orchestrator) printStage(s StageReport) {
	w := o.opts.Out
	switch s.Status {
	case types.StatusSkipped:
		fmt.Fprintf(w, "skipped: %s (%d checkpoint(s) already exist)\n", s.Name, len(s.Reused))
	case types.StatusDone:
		fmt.Fprintf(w, "executed: %s -> %v (%s)\n", s.Name, s.Written, s.Duration.Round(time.Millisecond))
		for _, warn := range s.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warn)
		}
	case types.StatusFailed:
		fmt.Fprintf(w, "failed:  %s [%s] (%v)\n", s.Name, s.Failure, s.Err)
		for _, id := range s.Written {
			fmt.Fprintf(w, "  kept: %s\n", id)
		}
	}
}

// record writes to the ledger when one is configured. Ledger failures are
// logged; they never change the outcome of a run.
func (o *Orchestrator) record(ctx context.Context, logger *slog.Logger, op string, fn func(context.Context, Recorder) error) {
	if o.opts.Ledger == nil {
		return
	}
	if err := fn(context.WithoutCancel(ctx), o.opts.Ledger); err != nil {
		logger.Warn("ledger write failed", "op", op, "error", err)
	}
}
