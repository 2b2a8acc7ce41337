// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdiddy/reaction-engine/internal/checkpoint"
	"github.com/pdiddy/reaction-engine/internal/engine"
	"github.com/pdiddy/reaction-engine/internal/params"
	"github.com/pdiddy/reaction-engine/internal/refine"
	"github.com/pdiddy/reaction-engine/internal/retry"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

// Claimer guards checkpoint ids against concurrent writers.
type Claimer interface {
	// Claim reserves id for writing. The returned func releases it.
	Claim(id string) (release func(), err error)
}

// Env holds the collaborators a stage executes against.
type Env struct {
	Store  checkpoint.Store
	Engine engine.Engine

	// Refiner performs energy refinements. When nil, Engine is used if it
	// implements engine.Refiner.
	Refiner engine.Refiner

	Policy types.ResumePolicy
	Retry  retry.Policy
	Guard  Claimer
	Logger *slog.Logger

	// OnTransition, when set, observes every status change.
	OnTransition func(stage string, from, to types.StageStatus)
}

// Result is the outcome of one stage execution.
type Result struct {
	Stage  string
	Status types.StageStatus

	// Written lists checkpoints persisted by this execution; Reused lists
	// outputs that already existed and were kept.
	Written []string
	Reused  []string

	// Partial lists written checkpoints whose run did not converge.
	Partial []string

	Warnings []string
	Err      error

	StartedAt time.Time
	Duration  time.Duration
}

// Execute runs d to a terminal status. It never returns an error; the
// failure, if any, is recorded on the Result.
func Execute(ctx context.Context, d Descriptor, env Env) (res Result) {
	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("stage", d.name)

	res = Result{Stage: d.name, StartedAt: time.Now()}
	m := newMachine(d.name, env.OnTransition)
	defer func() {
		res.Status = m.status
		res.Duration = time.Since(res.StartedAt)
	}()
	fail := func(err error) {
		m.to(types.StatusFailed)
		res.Err = err
	}

	pending, reused, err := d.pendingOutputs(ctx, env)
	if err != nil {
		fail(err)
		return res
	}
	res.Reused = reused
	if len(pending) == 0 {
		m.to(types.StatusSkipped)
		return res
	}

	if err := ctx.Err(); err != nil {
		fail(err)
		return res
	}
	m.to(types.StatusLoadingInput)
	state, err := d.loadInput(ctx, env)
	if err != nil {
		fail(err)
		return res
	}

	m.to(types.StatusConfiguring)
	state, err = env.Engine.Configure(ctx, state, d.record)
	if err != nil {
		var cerr *params.ConfigurationError
		if errors.As(err, &cerr) && cerr.Stage == "" {
			cerr.Stage = d.name
		}
		fail(fmt.Errorf("configuring: %w", err))
		return res
	}

	if err := ctx.Err(); err != nil {
		fail(err)
		return res
	}
	m.to(types.StatusRunning)

	meta := types.CheckpointMeta{Stage: d.name, Fingerprint: d.record.Fingerprint()}
	if ref, ok := d.record.Refinement(); ok {
		refiner := env.Refiner
		if refiner == nil {
			refiner, _ = env.Engine.(engine.Refiner)
		}
		if refiner == nil {
			fail(&engine.Fault{Op: "refine", Err: fmt.Errorf("engine does not support energy refinement")})
			return res
		}
		methods := make([]string, len(pending))
		for i, id := range pending {
			methods[i] = pendingMethod(d.output, id)
		}
		results, runErr := refine.Run(ctx, refiner, refine.Job{
			State:      state,
			Record:     d.record,
			Methods:    methods,
			MaxThreads: ref.MaxThreads,
		}, logger)

		// Methods that finished are persisted even when the batch failed so
		// a rerun resumes with the remaining ones.
		m.to(types.StatusPersisting)
		for _, r := range results {
			if r.State == nil {
				continue
			}
			id := MethodOutput(d.output, r.Method)
			if err := d.persist(ctx, env, logger, id, r.State, r.Err, meta, &res); err != nil {
				fail(err)
				return res
			}
		}
		if runErr != nil {
			fail(runErr)
			return res
		}
		m.to(types.StatusDone)
		return res
	}

	out, runErr := env.Engine.Run(ctx, state, d.record)
	var cf *engine.ConvergenceFailure
	if runErr != nil && !errors.As(runErr, &cf) {
		fail(runErr)
		return res
	}
	if cf != nil && cf.State != nil {
		out = cf.State
	}
	if out == nil {
		fail(&engine.Fault{Op: "run", Err: fmt.Errorf("engine returned no state")})
		return res
	}

	m.to(types.StatusPersisting)
	if err := d.persist(ctx, env, logger, d.output, out, runErr, meta, &res); err != nil {
		fail(err)
		return res
	}
	m.to(types.StatusDone)
	return res
}

// pendingOutputs splits the stage outputs into those that must be
// produced and those reused under the resumption policy.
func (d Descriptor) pendingOutputs(ctx context.Context, env Env) (pending, reused []string, err error) {
	for _, id := range d.Outputs() {
		run, err := d.needsRun(ctx, env, id)
		if err != nil {
			return nil, nil, err
		}
		if run {
			pending = append(pending, id)
		} else {
			reused = append(reused, id)
		}
	}
	return pending, reused, nil
}

func (d Descriptor) needsRun(ctx context.Context, env Env, id string) (bool, error) {
	switch env.Policy {
	case types.ResumeOverwrite:
		return true, nil
	case types.ResumeRerunChanged:
		cp, err := env.Store.Stat(ctx, id)
		if errors.Is(err, checkpoint.ErrNotFound) {
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("checking output %s: %w", id, err)
		}
		return cp.Fingerprint != d.record.Fingerprint(), nil
	default:
		ok, err := env.Store.Exists(ctx, id)
		if err != nil {
			return false, fmt.Errorf("checking output %s: %w", id, err)
		}
		return !ok, nil
	}
}

func (d Descriptor) loadInput(ctx context.Context, env Env) (*types.SystemState, error) {
	src := d.Source()
	if src == "" {
		s, err := env.Engine.Build(ctx, d.record)
		if err != nil {
			return nil, fmt.Errorf("building system: %w", err)
		}
		return s, nil
	}
	s, err := env.Store.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("loading input %s: %w", src, err)
	}
	return s, nil
}

// persist saves one output, retrying transient failures. runErr is nil or
// the convergence failure that produced state.
func (d Descriptor) persist(ctx context.Context, env Env, logger *slog.Logger, id string, state *types.SystemState, runErr error, meta types.CheckpointMeta, res *Result) error {
	if env.Guard != nil {
		release, err := env.Guard.Claim(id)
		if err != nil {
			return err
		}
		defer release()
	}

	state.Provenance = append(state.Provenance, d.name)
	p := env.Retry
	p.Retryable = checkpoint.Retryable
	if p.Logger == nil {
		p.Logger = logger
	}
	err := retry.Do(ctx, p, "save "+id, func(ctx context.Context) error {
		_, err := env.Store.Save(ctx, id, state, meta)
		return err
	})
	if err != nil {
		return fmt.Errorf("persisting %s: %w", id, err)
	}

	res.Written = append(res.Written, id)
	if runErr != nil {
		res.Partial = append(res.Partial, id)
		res.Warnings = append(res.Warnings, fmt.Sprintf("%v; saved %s unconverged", runErr, id))
		logger.Warn("saved unconverged checkpoint", "checkpoint", id, "error", runErr)
	}
	return nil
}

func pendingMethod(prefix, id string) string {
	return id[len(prefix)+1:]
}
