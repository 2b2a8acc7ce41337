// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package refine runs single-point energy refinements of a scan with
// several semi-empirical methods in parallel.
package refine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/reaction-engine/internal/engine"
	"github.com/pdiddy/reaction-engine/internal/params"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

// Job describes one refinement batch.
type Job struct {
	// State is the scanned system. Each worker receives its own clone.
	State *types.SystemState

	Record  params.Record
	Methods []string

	// MaxThreads bounds concurrent refinements. Values below 1 mean 1.
	MaxThreads int
}

// Result is the outcome of one method.
type Result struct {
	Method string

	// State is the refined system. It is set on success and on a
	// convergence failure.
	State *types.SystemState

	// Err is nil, a *engine.ConvergenceFailure, or the error that stopped
	// the method.
	Err error
}

// Converged reports whether the method finished normally.
func (r Result) Converged() bool { return r.Err == nil }

// Run refines job.State with every method, at most job.MaxThreads at a
// time. Results are returned in method order. A convergence failure is
// recorded on its result and does not stop the batch. A method that
// returns no state is a fault. Any other failure
// cancels the methods still running and is returned as the error, with
// the results of methods that finished first still populated.
func Run(ctx context.Context, r engine.Refiner, job Job, logger *slog.Logger) ([]Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	limit := job.MaxThreads
	if limit < 1 {
		limit = 1
	}

	results := make([]Result, len(job.Methods))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, method := range job.Methods {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			logger.Debug("refining", "method", method)
			out, err := r.Refine(gCtx, job.State.Clone(), method, job.Record)

			var cf *engine.ConvergenceFailure
			switch {
			case err == nil:
			case errors.As(err, &cf):
				if out == nil {
					out = cf.State
				}
				logger.Warn("refinement did not converge", "method", method, "iterations", cf.Iterations)
			default:
				mu.Lock()
				results[i] = Result{Method: method, Err: err}
				mu.Unlock()
				return err
			}
			if out == nil {
				fault := &engine.Fault{Op: engine.OpRefine, Err: fmt.Errorf("%s returned no state", method)}
				mu.Lock()
				results[i] = Result{Method: method, Err: fault}
				mu.Unlock()
				return fault
			}

			mu.Lock()
			results[i] = Result{Method: method, State: out, Err: err}
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	for i, m := range job.Methods {
		if results[i].Method == "" {
			results[i] = Result{Method: m, Err: context.Canceled}
		}
	}
	return results, err
}
