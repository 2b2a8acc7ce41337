// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/reaction-engine/internal/checkpoint"
	"github.com/pdiddy/reaction-engine/internal/pipeline"
	"github.com/pdiddy/reaction-engine/internal/plan"
	"github.com/pdiddy/reaction-engine/internal/retry"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run <plan.yaml>",
	Short: "Run every stage of a plan, resuming from existing checkpoints",
	Long: `Run executes the stages of a plan in order. A stage whose output
checkpoints already exist is skipped (or re-run, with --resume overwrite or
rerun-changed). The first fatal failure halts the run; a stage that did not
converge saves its unconverged state and the run continues with a warning.

Run exits non-zero when any stage failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().String("resume", "", "resumption policy: skip, overwrite, rerun-changed (default from plan)")
	runCmd.Flags().Bool("no-ledger", false, "do not record the run in the history ledger")
	viper.BindPFlag("resume", runCmd.Flags().Lookup("resume"))

	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := plan.Load(args[0])
	if err != nil {
		return err
	}
	stages, err := p.Descriptors()
	if err != nil {
		return fmt.Errorf("plan %s: %w", p.Name, err)
	}
	for _, d := range stages {
		for _, key := range d.Record().Ignored() {
			fmt.Fprintf(os.Stdout, "  warning: %s: ignoring unknown option %q\n", d.Name(), key)
		}
	}

	store, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	eng, err := openEngine(ctx, cfg.Engine)
	if err != nil {
		return err
	}

	policy := p.Resume
	if cfg.Resume != "" {
		policy = cfg.Resume
	}

	opts := pipeline.Options{
		Store:   store,
		Engine:  eng,
		Refiner: eng,
		Plan:    p.Name,
		Policy:  policy,
		Retry: retry.Policy{
			Attempts:  cfg.Retry.Attempts,
			Delay:     cfg.Retry.BaseDelay,
			Retryable: checkpoint.Retryable,
			Logger:    logger,
		},
		Logger: logger,
		Out:    os.Stdout,
	}

	noLedger, _ := cmd.Flags().GetBool("no-ledger")
	if cfg.Ledger.Enabled && !noLedger {
		l, err := openLedger(ctx, cfg.Ledger)
		if err != nil {
			return err
		}
		defer l.Close()
		opts.Ledger = l
	}

	orch, err := pipeline.New(stages, opts)
	if err != nil {
		return err
	}
	report, err := orch.Run(ctx)
	if err != nil {
		return err
	}
	return reportError(ctx, report)
}

// reportError turns a failed run into the command's error so the process
// exits non-zero.
func reportError(ctx context.Context, report *pipeline.Report) error {
	failed, ok := report.Failed()
	if !ok {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	}
	if failed.Failure == types.FailureCanceled {
		return fmt.Errorf("run %s interrupted during %s", report.RunID, failed.Name)
	}
	return fmt.Errorf("run %s: stage %s failed [%s]", report.RunID, failed.Name, failed.Failure)
}
