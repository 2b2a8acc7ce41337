// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/reaction-engine/internal/engine"
	"github.com/pdiddy/reaction-engine/internal/params"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

// fakeRefiner tracks concurrency and fails on demand.
type fakeRefiner struct {
	active    atomic.Int32
	maxActive atomic.Int32
	calls     atomic.Int32
	fail      map[string]error
	delay     time.Duration
}

func (f *fakeRefiner) Refine(ctx context.Context, s *types.SystemState, method string, _ params.Record) (*types.SystemState, error) {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(f.delay):
	}

	s.Method = method
	s.Profile = []types.ProfilePoint{{Step: 0, Energy: float64(len(method))}}
	if err := f.fail[method]; err != nil {
		var cf *engine.ConvergenceFailure
		if errors.As(err, &cf) {
			cf.State = s
			return s, cf
		}
		return nil, err
	}
	return s, nil
}

func job(t *testing.T, threads int, methods ...string) Job {
	t.Helper()
	ms := make([]any, len(methods))
	for i, m := range methods {
		ms[i] = m
	}
	rec, err := params.New(types.KindEnergyRefinement, map[string]any{
		"input_type":  "checkpoint",
		"checkpoint":  "scan/ScanTraj",
		"methods":     ms,
		"max_threads": threads,
	}, params.Strict)
	require.NoError(t, err)
	return Job{
		State:      &types.SystemState{Label: "7tim", Scan: []types.ScanFrame{{Step: 0, Energy: -1}}},
		Record:     rec,
		Methods:    methods,
		MaxThreads: threads,
	}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRun_AllMethodsWithinThreadLimit(t *testing.T) {
	r := &fakeRefiner{delay: 20 * time.Millisecond}
	j := job(t, 4, "am1", "pm3", "rm1", "pm6", "pm7")

	results, err := Run(context.Background(), r, j, quiet())
	require.NoError(t, err)
	require.Len(t, results, 5)
	for i, m := range j.Methods {
		assert.Equal(t, m, results[i].Method)
		assert.True(t, results[i].Converged())
		require.NotNil(t, results[i].State)
		assert.Equal(t, m, results[i].State.Method)
	}
	assert.LessOrEqual(t, r.maxActive.Load(), int32(4))
	assert.Equal(t, int32(5), r.calls.Load())

	// Workers never share the input state.
	assert.Empty(t, j.State.Method)
	assert.Nil(t, j.State.Profile)
}

func TestRun_SingleThreadIsSequential(t *testing.T) {
	r := &fakeRefiner{delay: time.Millisecond}
	_, err := Run(context.Background(), r, job(t, 1, "am1", "pm3", "rm1"), quiet())
	require.NoError(t, err)
	assert.Equal(t, int32(1), r.maxActive.Load())
}

func TestRun_ConvergenceFailureDoesNotStopBatch(t *testing.T) {
	r := &fakeRefiner{fail: map[string]error{"pm6": &engine.ConvergenceFailure{Op: "refinement with pm6", Iterations: 50}}}
	results, err := Run(context.Background(), r, job(t, 2, "am1", "pm6", "pm7"), quiet())
	require.NoError(t, err)

	assert.True(t, results[0].Converged())
	assert.False(t, results[1].Converged())
	var cf *engine.ConvergenceFailure
	assert.True(t, errors.As(results[1].Err, &cf))
	require.NotNil(t, results[1].State)
	assert.Equal(t, "pm6", results[1].State.Method)
	assert.True(t, results[2].Converged())
}

func TestRun_FaultCancelsRemainingMethods(t *testing.T) {
	fault := &engine.Fault{Op: "refine", Err: errors.New("mopac crashed")}
	r := &fakeRefiner{fail: map[string]error{"am1": fault}, delay: 10 * time.Millisecond}

	results, err := Run(context.Background(), r, job(t, 1, "am1", "pm3", "rm1"), quiet())
	assert.ErrorIs(t, err, fault)
	require.Len(t, results, 3)
	assert.ErrorIs(t, results[0].Err, fault)
	for _, res := range results[1:] {
		assert.Nil(t, res.State)
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
}

type refinerFunc func(ctx context.Context, s *types.SystemState, method string, rec params.Record) (*types.SystemState, error)

func (f refinerFunc) Refine(ctx context.Context, s *types.SystemState, method string, rec params.Record) (*types.SystemState, error) {
	return f(ctx, s, method, rec)
}

func TestRun_MissingStateIsFault(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"convergence failure without state", &engine.ConvergenceFailure{Op: "refinement with pm3", Iterations: 10}},
		{"success without state", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := refinerFunc(func(_ context.Context, s *types.SystemState, method string, _ params.Record) (*types.SystemState, error) {
				if method == "pm3" {
					return nil, tt.err
				}
				s.Method = method
				return s, nil
			})

			results, err := Run(context.Background(), r, job(t, 1, "am1", "pm3", "rm1"), quiet())
			var fault *engine.Fault
			require.ErrorAs(t, err, &fault)
			assert.Contains(t, fault.Error(), "pm3 returned no state")
			require.Len(t, results, 3)
			assert.NotNil(t, results[0].State)
			assert.Nil(t, results[1].State)
			assert.ErrorAs(t, results[1].Err, &fault)
		})
	}
}
