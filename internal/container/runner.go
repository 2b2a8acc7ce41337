// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"context"
	"fmt"
	"io"

	"github.com/pdiddy/reaction-engine/pkg/types"
)

// Runner starts one engine process per call, feeding it stdin and
// collecting stdout and stderr.
type Runner interface {
	// Name describes the runner for logs (e.g. "docker:reaction-engine-runner:latest").
	Name() string

	Run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) error
}

// ImageRunner runs the engine image on a container runtime.
type ImageRunner struct {
	rt      Runtime
	image   string
	workDir string
}

func (r *ImageRunner) Name() string { return r.rt.Name() + ":" + r.image }

func (r *ImageRunner) Run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) error {
	return r.rt.Run(ctx, r.image, r.workDir, stdin, stdout, stderr)
}

// ExecRunner runs a local engine executable in the work directory.
type ExecRunner struct {
	command []string
	workDir string
	exec    executor
}

func (r *ExecRunner) Name() string { return "exec:" + r.command[0] }

func (r *ExecRunner) Run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) error {
	if err := r.exec.RunPiped(ctx, r.workDir, r.command[0], r.command[1:], stdin, stdout, stderr); err != nil {
		return fmt.Errorf("running %s: %w", r.command[0], err)
	}
	return nil
}

// NewRunner returns the Runner selected by cfg. The container runner
// detects docker or podman and checks that the image is present.
func NewRunner(ctx context.Context, cfg types.EngineConfig) (Runner, error) {
	return newRunner(ctx, cfg, defaultExec)
}

func newRunner(ctx context.Context, cfg types.EngineConfig, exec executor) (Runner, error) {
	switch cfg.Runner {
	case "", types.RunnerContainer:
		if cfg.Image == "" {
			return nil, fmt.Errorf("engine image is required for the container runner")
		}
		rt, err := detectRuntime(ctx, exec)
		if err != nil {
			return nil, err
		}
		if err := rt.ImageExists(ctx, cfg.Image); err != nil {
			return nil, err
		}
		return &ImageRunner{rt: rt, image: cfg.Image, workDir: cfg.WorkDir}, nil
	case types.RunnerExec:
		if len(cfg.Command) == 0 {
			return nil, fmt.Errorf("engine command is required for the exec runner")
		}
		if _, err := exec.LookPath(cfg.Command[0]); err != nil {
			return nil, fmt.Errorf("engine command %s: %w", cfg.Command[0], err)
		}
		return &ExecRunner{command: cfg.Command, workDir: cfg.WorkDir, exec: exec}, nil
	default:
		return nil, fmt.Errorf("unknown engine runner %q", cfg.Runner)
	}
}
