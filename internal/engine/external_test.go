// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/reaction-engine/pkg/types"
)

// scriptedRunner answers each request with handle.
type scriptedRunner struct {
	handle func(req Request) (Response, error)
	got    []Request
}

func (r *scriptedRunner) Name() string { return "scripted" }

func (r *scriptedRunner) Run(_ context.Context, stdin io.Reader, stdout, stderr io.Writer) error {
	var req Request
	if err := json.NewDecoder(stdin).Decode(&req); err != nil {
		return err
	}
	r.got = append(r.got, req)
	resp, err := r.handle(req)
	if err != nil {
		io.WriteString(stderr, "traceback line 1\nengine exploded\n")
		return err
	}
	return json.NewEncoder(stdout).Encode(resp)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExternal_RunConverged(t *testing.T) {
	runner := &scriptedRunner{handle: func(req Request) (Response, error) {
		s := req.State
		s.Energy = -1234.5
		return Response{State: s, Converged: true, Iterations: 42, RMSGradient: 0.05}, nil
	}}
	e := NewExternal(runner, quietLogger())
	rec := record(t, types.KindGeometryOptimization, nil)

	out, err := e.Run(context.Background(), enzyme(), rec)
	require.NoError(t, err)
	assert.Equal(t, -1234.5, out.Energy)
	assert.Equal(t, types.Convergence{Converged: true, Iterations: 42, RMSGradient: 0.05}, out.Convergence)

	require.Len(t, runner.got, 1)
	assert.Equal(t, OpRun, runner.got[0].Op)
	assert.Equal(t, types.KindGeometryOptimization, runner.got[0].Kind)
	assert.EqualValues(t, 100, runner.got[0].Options["max_iterations"])
}

func TestExternal_RunNotConverged(t *testing.T) {
	runner := &scriptedRunner{handle: func(req Request) (Response, error) {
		return Response{State: req.State, Converged: false, Iterations: 100, RMSGradient: 3.2}, nil
	}}
	e := NewExternal(runner, quietLogger())

	out, err := e.Run(context.Background(), enzyme(), record(t, types.KindGeometryOptimization, nil))
	var cf *ConvergenceFailure
	require.True(t, errors.As(err, &cf), "got %v", err)
	assert.Equal(t, 100, cf.Iterations)
	require.NotNil(t, cf.State)
	assert.Same(t, out, cf.State)
	assert.False(t, cf.State.Convergence.Converged)
}

func TestExternal_Faults(t *testing.T) {
	tests := []struct {
		name   string
		handle func(Request) (Response, error)
	}{
		{"process fails", func(Request) (Response, error) { return Response{}, errors.New("exit status 2") }},
		{"runner reports error", func(Request) (Response, error) { return Response{Error: "SCF did not start"}, nil }},
		{"no state", func(Request) (Response, error) { return Response{Converged: true}, nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExternal(&scriptedRunner{handle: tt.handle}, quietLogger())
			_, err := e.Run(context.Background(), enzyme(), record(t, types.KindGeometryOptimization, nil))
			var fault *Fault
			require.True(t, errors.As(err, &fault), "got %v", err)
			assert.Equal(t, OpRun, fault.Op)
		})
	}
}

func TestExternal_FaultIncludesStderr(t *testing.T) {
	e := NewExternal(&scriptedRunner{handle: func(Request) (Response, error) {
		return Response{}, errors.New("exit status 1")
	}}, quietLogger())
	_, err := e.Run(context.Background(), enzyme(), record(t, types.KindGeometryOptimization, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine exploded")
}

func TestExternal_Build(t *testing.T) {
	runner := &scriptedRunner{handle: func(req Request) (Response, error) {
		if req.Options["crd_file"] != "7tim.crd" {
			return Response{Error: "missing crd"}, nil
		}
		return Response{State: enzyme(), Converged: true}, nil
	}}
	e := NewExternal(runner, quietLogger())
	rec := record(t, types.KindGeometryOptimization, map[string]any{
		"input_type": "forcefield", "crd_file": "7tim.crd", "top_file": "7tim.top",
	})

	s, err := e.Build(context.Background(), rec)
	require.NoError(t, err)
	assert.Len(t, s.Atoms, 6)
	assert.Equal(t, OpBuild, runner.got[0].Op)
	assert.Nil(t, runner.got[0].State)

	empty := NewExternal(&scriptedRunner{handle: func(Request) (Response, error) {
		return Response{State: &types.SystemState{}}, nil
	}}, quietLogger())
	_, err = empty.Build(context.Background(), rec)
	var fault *Fault
	assert.True(t, errors.As(err, &fault))
}

func TestExternal_Refine(t *testing.T) {
	runner := &scriptedRunner{handle: func(req Request) (Response, error) {
		s := req.State
		for _, f := range s.Scan {
			s.Profile = append(s.Profile, types.ProfilePoint{Step: f.Step, Coordinate: f.Values[0], Energy: f.Energy / 2})
		}
		return Response{State: s, Converged: true}, nil
	}}
	e := NewExternal(runner, quietLogger())
	rec := record(t, types.KindEnergyRefinement, nil)

	in := enzyme()
	in.Scan = []types.ScanFrame{{Step: 0, Values: []float64{-1}, Energy: -10}}
	out, err := e.Refine(context.Background(), in, "pm7", rec)
	require.NoError(t, err)
	assert.Equal(t, "pm7", out.Method)
	assert.Equal(t, []types.ProfilePoint{{Step: 0, Coordinate: -1, Energy: -5}}, out.Profile)
	assert.Equal(t, "pm7", runner.got[0].Method)

	_, err = e.Refine(context.Background(), enzyme(), "pm7", rec)
	var fault *Fault
	assert.True(t, errors.As(err, &fault))
}

func TestExternal_ConfigureRunsInProcess(t *testing.T) {
	runner := &scriptedRunner{handle: func(Request) (Response, error) {
		t.Fatal("configure must not start the runner")
		return Response{}, nil
	}}
	e := NewExternal(runner, quietLogger())
	out, err := e.Configure(context.Background(), enzyme(), record(t, types.KindGeometryOptimization, map[string]any{
		"set_fixed_atoms": "*:LIG.248:C02", "free_atoms_radius": 5.0,
	}))
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, out.FixedAtoms)
}

func TestExternal_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := NewExternal(&scriptedRunner{handle: func(Request) (Response, error) {
		cancel()
		return Response{}, errors.New("signal: killed")
	}}, quietLogger())
	_, err := e.Run(ctx, enzyme(), record(t, types.KindGeometryOptimization, nil))
	assert.ErrorIs(t, err, context.Canceled)
}
