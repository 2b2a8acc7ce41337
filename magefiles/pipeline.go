//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Pipeline groups targets that drive the CLI against a local plan.
type Pipeline mg.Namespace

const planFile = "plan.yaml"

func cli(args ...string) error {
	return sh.RunV(filepath.Join(binDir, binName), args...)
}

// Plan writes the built-in TIM reaction plan to plan.yaml if it is missing.
func (Pipeline) Plan() error {
	mg.Deps(Build)
	if _, err := os.Stat(planFile); err == nil {
		return cli("plan", "validate", planFile)
	}
	return cli("plan", "init", planFile)
}

// Run executes plan.yaml, skipping stages whose checkpoints exist.
func (Pipeline) Run() error {
	mg.Deps(Init, Pipeline.Plan)
	return cli("run", planFile)
}

// Rerun executes plan.yaml again, re-running stages whose options changed.
func (Pipeline) Rerun() error {
	mg.Deps(Init, Pipeline.Plan)
	return cli("run", planFile, "--resume", "rerun-changed")
}

// Status lists checkpoints and the most recent runs.
func (Pipeline) Status() error {
	mg.Deps(Build)
	if err := cli("checkpoint", "list"); err != nil {
		return err
	}
	return cli("history", "--limit", "5")
}
