// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enginetest provides an in-memory engine for tests of code that
// drives stages.
package enginetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/pdiddy/reaction-engine/internal/engine"
	"github.com/pdiddy/reaction-engine/internal/params"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

// System returns a small active site laid out along the x axis: a ligand
// C-H pair, a glutamate carboxylate oxygen, and one distant water.
func System() *types.SystemState {
	return &types.SystemState{
		Label: "7tim",
		Atoms: []types.Atom{
			{Name: "C02", Symbol: "C", Residue: "LIG", ResID: 248, Segment: "A"},
			{Name: "H02", Symbol: "H", Residue: "LIG", ResID: 248, Segment: "A"},
			{Name: "OE2", Symbol: "O", Residue: "GLU", ResID: 164, Segment: "A"},
			{Name: "O", Symbol: "O", Residue: "WAT", ResID: 300, Segment: "W"},
		},
		Coordinates:  []float64{0, 0, 0, 1.1, 0, 0, 2.4, 0, 0, 30, 0, 0},
		Multiplicity: 1,
		EnergyModel:  types.EnergyModel{Kind: types.EnergyMM},
	}
}

// Fake implements engine.Engine and engine.Refiner without numerical work.
// Hooks left nil use a default that succeeds. Fake is safe for concurrent
// use.
type Fake struct {
	OnBuild  func(rec params.Record) (*types.SystemState, error)
	OnRun    func(state *types.SystemState, rec params.Record) (*types.SystemState, error)
	OnRefine func(state *types.SystemState, method string, rec params.Record) (*types.SystemState, error)

	mu    sync.Mutex
	calls []string
}

var (
	_ engine.Engine  = (*Fake)(nil)
	_ engine.Refiner = (*Fake)(nil)
)

// Calls returns the operations performed so far, e.g. "build",
// "configure", "run:geometry_optimization", "refine:am1".
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *Fake) Build(ctx context.Context, rec params.Record) (*types.SystemState, error) {
	f.record("build")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.OnBuild != nil {
		return f.OnBuild(rec)
	}
	return System(), nil
}

// Configure applies the real structural setup.
func (f *Fake) Configure(_ context.Context, state *types.SystemState, rec params.Record) (*types.SystemState, error) {
	f.record("configure")
	return engine.Setup(state, rec)
}

func (f *Fake) Run(ctx context.Context, state *types.SystemState, rec params.Record) (*types.SystemState, error) {
	f.record("run:" + string(rec.Kind()))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.OnRun != nil {
		return f.OnRun(state, rec)
	}
	return Relax(state, rec), nil
}

func (f *Fake) Refine(ctx context.Context, state *types.SystemState, method string, rec params.Record) (*types.SystemState, error) {
	f.record("refine:" + method)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.OnRefine != nil {
		return f.OnRefine(state, method, rec)
	}
	return Refined(state, method)
}

// Relax returns state with a lowered energy. For a scan record it adds
// one frame per step.
func Relax(state *types.SystemState, rec params.Record) *types.SystemState {
	s := state.Clone()
	s.Energy -= 100
	s.Convergence = types.Convergence{Converged: true, Iterations: 10, RMSGradient: 0.05}
	if scan, ok := rec.Scan(); ok {
		s.Scan = nil
		for i := range scan.Steps + 1 {
			s.Scan = append(s.Scan, types.ScanFrame{
				Step:   i,
				Values: []float64{-1.3 + float64(i)*scan.Increment},
				Energy: s.Energy + float64(i*(scan.Steps-i)),
			})
		}
	}
	return s
}

// Refined returns state with a profile computed from its scan frames.
func Refined(state *types.SystemState, method string) (*types.SystemState, error) {
	if len(state.Scan) == 0 {
		return nil, &engine.Fault{Op: engine.OpRefine, Err: fmt.Errorf("no scan frames")}
	}
	s := state.Clone()
	s.Method = method
	s.Profile = nil
	for _, fr := range s.Scan {
		s.Profile = append(s.Profile, types.ProfilePoint{Step: fr.Step, Coordinate: fr.Values[0], Energy: fr.Energy / 2})
	}
	s.Convergence = types.Convergence{Converged: true}
	return s, nil
}

// NotConverged returns a hook result that reports a convergence failure
// carrying the relaxed state.
func NotConverged(state *types.SystemState, rec params.Record) (*types.SystemState, error) {
	s := Relax(state, rec)
	s.Convergence = types.Convergence{Converged: false, Iterations: 100, RMSGradient: 2.5}
	return s, &engine.ConvergenceFailure{Op: string(rec.Kind()), State: s, Iterations: 100, RMSGradient: 2.5}
}
