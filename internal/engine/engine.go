// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine defines the contract between pipeline stages and the
// numerical simulation engine, and provides the structural setup that
// runs in-process plus an implementation that delegates the numerical work
// to an external runner process.
package engine

import (
	"context"
	"fmt"

	"github.com/pdiddy/reaction-engine/internal/params"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

// Engine builds, configures, and runs molecular systems. Implementations
// must not retain the states they are given or return.
type Engine interface {
	// Build creates a system from the force-field files named by rec.
	Build(ctx context.Context, rec params.Record) (*types.SystemState, error)

	// Configure applies structural setup (pruning, fixed atoms, energy
	// model, QC region, reaction coordinates) without running dynamics.
	Configure(ctx context.Context, state *types.SystemState, rec params.Record) (*types.SystemState, error)

	// Run performs the optimization or scan described by rec.
	Run(ctx context.Context, state *types.SystemState, rec params.Record) (*types.SystemState, error)
}

// Refiner computes single-point energies of scan frames with one
// semi-empirical method.
type Refiner interface {
	Refine(ctx context.Context, state *types.SystemState, method string, rec params.Record) (*types.SystemState, error)
}

// ConvergenceFailure reports a run that stopped at its iteration cap
// without meeting the gradient tolerance. State holds the partial result,
// which is still worth persisting.
type ConvergenceFailure struct {
	Op          string
	State       *types.SystemState
	Iterations  int
	RMSGradient float64
}

func (e *ConvergenceFailure) Error() string {
	return fmt.Sprintf("%s did not converge after %d iterations (rms gradient %.4g)", e.Op, e.Iterations, e.RMSGradient)
}

// Fault reports an unrecoverable engine failure. No usable state exists.
type Fault struct {
	Op  string
	Err error
}

func (e *Fault) Error() string {
	return fmt.Sprintf("engine fault during %s: %v", e.Op, e.Err)
}

func (e *Fault) Unwrap() error { return e.Err }
