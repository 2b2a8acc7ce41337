// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdiddy/reaction-engine/internal/container"
	"github.com/pdiddy/reaction-engine/internal/params"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

// Operations of the runner protocol.
const (
	OpBuild  = "build"
	OpRun    = "run"
	OpRefine = "refine"
)

// Request is the JSON document written to the runner's stdin.
type Request struct {
	Op      string               `json:"op"`
	Kind    types.SimulationKind `json:"kind"`
	Options map[string]any       `json:"options"`
	Method  string               `json:"method,omitempty"`
	State   *types.SystemState   `json:"state,omitempty"`
}

// Response is the JSON document the runner writes to stdout.
type Response struct {
	State       *types.SystemState `json:"state,omitempty"`
	Converged   bool               `json:"converged"`
	Iterations  int                `json:"iterations,omitempty"`
	RMSGradient float64            `json:"rms_gradient,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// External runs structural setup in-process and hands building,
// simulation, and refinement to a runner process, one process per call.
type External struct {
	runner container.Runner
	logger *slog.Logger
}

// NewExternal returns an engine backed by runner.
func NewExternal(runner container.Runner, logger *slog.Logger) *External {
	if logger == nil {
		logger = slog.Default()
	}
	return &External{runner: runner, logger: logger}
}

func (e *External) Build(ctx context.Context, rec params.Record) (*types.SystemState, error) {
	resp, err := e.call(ctx, Request{Op: OpBuild, Kind: rec.Kind(), Options: rec.Map()})
	if err != nil {
		return nil, err
	}
	if resp.State == nil || len(resp.State.Atoms) == 0 {
		return nil, &Fault{Op: OpBuild, Err: fmt.Errorf("runner returned an empty system")}
	}
	return resp.State, nil
}

func (e *External) Configure(_ context.Context, state *types.SystemState, rec params.Record) (*types.SystemState, error) {
	return Setup(state, rec)
}

func (e *External) Run(ctx context.Context, state *types.SystemState, rec params.Record) (*types.SystemState, error) {
	return e.simulate(ctx, Request{Op: OpRun, Kind: rec.Kind(), Options: rec.Map(), State: state}, string(rec.Kind()))
}

func (e *External) Refine(ctx context.Context, state *types.SystemState, method string, rec params.Record) (*types.SystemState, error) {
	if len(state.Scan) == 0 {
		return nil, &Fault{Op: OpRefine, Err: fmt.Errorf("input system has no scan frames to refine")}
	}
	out, err := e.simulate(ctx, Request{Op: OpRefine, Kind: rec.Kind(), Options: rec.Map(), Method: method, State: state}, "refinement with "+method)
	if out != nil && out.Method == "" {
		out.Method = method
	}
	return out, err
}

// simulate calls the runner and converts a non-converged response into a
// ConvergenceFailure carrying the partial state.
func (e *External) simulate(ctx context.Context, req Request, label string) (*types.SystemState, error) {
	resp, err := e.call(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.State == nil {
		return nil, &Fault{Op: req.Op, Err: fmt.Errorf("runner returned no state")}
	}
	resp.State.Convergence = types.Convergence{
		Converged:   resp.Converged,
		Iterations:  resp.Iterations,
		RMSGradient: resp.RMSGradient,
	}
	if !resp.Converged {
		return resp.State, &ConvergenceFailure{
			Op:          label,
			State:       resp.State,
			Iterations:  resp.Iterations,
			RMSGradient: resp.RMSGradient,
		}
	}
	return resp.State, nil
}

func (e *External) call(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Fault{Op: req.Op, Err: fmt.Errorf("encoding request: %w", err)}
	}

	var stdout, stderr bytes.Buffer
	e.logger.Debug("starting engine runner", "runner", e.runner.Name(), "op", req.Op, "kind", req.Kind, "method", req.Method)
	runErr := e.runner.Run(ctx, bytes.NewReader(body), &stdout, &stderr)
	if stderr.Len() > 0 {
		e.logger.Debug("engine runner stderr", "op", req.Op, "output", tail(stderr.String(), 20))
	}
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &Fault{Op: req.Op, Err: withStderr(runErr, stderr.String())}
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, &Fault{Op: req.Op, Err: fmt.Errorf("decoding runner response: %w", err)}
	}
	if resp.Error != "" {
		return nil, &Fault{Op: req.Op, Err: errors.New(resp.Error)}
	}
	return &resp, nil
}

func withStderr(err error, stderr string) error {
	if t := tail(stderr, 5); t != "" {
		return fmt.Errorf("%w: %s", err, t)
	}
	return err
}

// tail returns the last n non-empty lines of s joined by " | ".
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}
