// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/pdiddy/reaction-engine/pkg/types"
)

// mockExecutor records calls and returns configured responses.
type mockExecutor struct {
	availableBins map[string]bool // binary -> whether LookPath succeeds
	runnableCmds  map[string]bool // "bin arg1 arg2" -> whether RunSilent succeeds
	runPipedFunc  func(dir, name string, args []string, stdin io.Reader, stdout io.Writer) error
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.availableBins[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) RunSilent(_ context.Context, name string, args ...string) error {
	key := name + " " + strings.Join(args, " ")
	if m.runnableCmds[key] {
		return nil
	}
	return errors.New("command failed: " + key)
}

func (m *mockExecutor) RunPiped(_ context.Context, dir, name string, args []string, stdin io.Reader, stdout, _ io.Writer) error {
	if m.runPipedFunc != nil {
		return m.runPipedFunc(dir, name, args, stdin, stdout)
	}
	return nil
}

func TestDetectRuntime(t *testing.T) {
	tests := []struct {
		name     string
		exec     *mockExecutor
		wantName string
		wantErr  bool
	}{
		{
			name: "docker available",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true},
				runnableCmds:  map[string]bool{"docker info": true},
			},
			wantName: "docker",
		},
		{
			name: "podman fallback when docker missing",
			exec: &mockExecutor{
				availableBins: map[string]bool{"podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
		{
			name: "neither available",
			exec: &mockExecutor{
				availableBins: map[string]bool{},
				runnableCmds:  map[string]bool{},
			},
			wantErr: true,
		},
		{
			name: "docker on PATH but info fails, podman works",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true, "podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := detectRuntime(context.Background(), tt.exec)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), "no container runtime available") {
					t.Errorf("error should mention no runtime available, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rt.Name() != tt.wantName {
				t.Errorf("got runtime %q, want %q", rt.Name(), tt.wantName)
			}
		})
	}
}

func TestImageExists(t *testing.T) {
	tests := []struct {
		name    string
		mkRT    func(*mockExecutor) Runtime
		cmds    map[string]bool
		wantErr bool
	}{
		{
			name: "docker image exists",
			mkRT: func(e *mockExecutor) Runtime { return newDockerRuntime(e) },
			cmds: map[string]bool{"docker image inspect engine:latest": true},
		},
		{
			name:    "docker image not found",
			mkRT:    func(e *mockExecutor) Runtime { return newDockerRuntime(e) },
			wantErr: true,
		},
		{
			name: "podman image exists",
			mkRT: func(e *mockExecutor) Runtime { return newPodmanRuntime(e) },
			cmds: map[string]bool{"podman image exists engine:latest": true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := tt.mkRT(&mockExecutor{runnableCmds: tt.cmds})
			err := rt.ImageExists(context.Background(), "engine:latest")
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "engine:latest") {
					t.Fatalf("expected error naming the image, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRuntimeRun_MountsWorkDir(t *testing.T) {
	var gotArgs []string
	exec := &mockExecutor{
		runPipedFunc: func(_, name string, args []string, stdin io.Reader, stdout io.Writer) error {
			if name != "podman" {
				return errors.New("expected podman binary")
			}
			gotArgs = args
			data, _ := io.ReadAll(stdin)
			_, _ = stdout.Write([]byte("ok: " + string(data)))
			return nil
		},
	}
	rt := newPodmanRuntime(exec)

	var out bytes.Buffer
	if err := rt.Run(context.Background(), "engine:latest", "/tmp/scratch", strings.NewReader("req"), &out, io.Discard); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "run --rm -i -v /tmp/scratch:/work -w /work engine:latest"
	if got := strings.Join(gotArgs, " "); got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
	if out.String() != "ok: req" {
		t.Errorf("got output %q", out.String())
	}
}

func TestRuntimeRun_WrapsFailure(t *testing.T) {
	exec := &mockExecutor{
		runPipedFunc: func(string, string, []string, io.Reader, io.Writer) error {
			return errors.New("container exited with code 1")
		},
	}
	err := newDockerRuntime(exec).Run(context.Background(), "engine:latest", "", nil, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "docker container engine:latest") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestNewRunner(t *testing.T) {
	dockerOK := &mockExecutor{
		availableBins: map[string]bool{"docker": true, "pdynamo-runner": true},
		runnableCmds: map[string]bool{
			"docker info":                         true,
			"docker image inspect engine:latest": true,
		},
	}
	tests := []struct {
		name     string
		cfg      types.EngineConfig
		exec     *mockExecutor
		wantName string
		wantErr  bool
	}{
		{"container default", types.EngineConfig{Image: "engine:latest"}, dockerOK, "docker:engine:latest", false},
		{"container without image", types.EngineConfig{Runner: types.RunnerContainer}, dockerOK, "", true},
		{"container image missing", types.EngineConfig{Image: "other:1"}, dockerOK, "", true},
		{"exec runner", types.EngineConfig{Runner: types.RunnerExec, Command: []string{"pdynamo-runner", "--json"}}, dockerOK, "exec:pdynamo-runner", false},
		{"exec without command", types.EngineConfig{Runner: types.RunnerExec}, dockerOK, "", true},
		{"exec command not on PATH", types.EngineConfig{Runner: types.RunnerExec, Command: []string{"missing"}}, dockerOK, "", true},
		{"unknown runner", types.EngineConfig{Runner: "ssh"}, dockerOK, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := newRunner(context.Background(), tt.cfg, tt.exec)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Name() != tt.wantName {
				t.Errorf("runner name = %q, want %q", r.Name(), tt.wantName)
			}
		})
	}
}

func TestExecRunner_RunsInWorkDir(t *testing.T) {
	var gotDir string
	exec := &mockExecutor{
		runPipedFunc: func(dir, name string, args []string, _ io.Reader, stdout io.Writer) error {
			gotDir = dir
			_, _ = stdout.Write([]byte(name + " " + strings.Join(args, " ")))
			return nil
		},
	}
	r := &ExecRunner{command: []string{"runner", "--json"}, workDir: "/scratch", exec: exec}
	var out bytes.Buffer
	if err := r.Run(context.Background(), strings.NewReader(""), &out, io.Discard); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotDir != "/scratch" || out.String() != "runner --json" {
		t.Errorf("dir = %q, output = %q", gotDir, out.String())
	}
}
