// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/reaction-engine/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past pipeline runs from the ledger",
	Long: `History lists recent runs, newest first. With a run id (or an
unambiguous prefix of one) it prints every stage outcome of that run.
With --stage it lists the outcomes of one stage across runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	stageName, _ := cmd.Flags().GetString("stage")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	l, err := openLedger(ctx, cfg.Ledger)
	if err != nil {
		return err
	}
	defer l.Close()

	var v any
	switch {
	case len(args) == 1:
		run, err := l.Run(ctx, args[0])
		if err != nil {
			return err
		}
		if !jsonOutput {
			printRun(os.Stdout, run)
			return nil
		}
		v = run
	case stageName != "":
		outcomes, err := l.StageHistory(ctx, stageName, limit)
		if err != nil {
			return err
		}
		if !jsonOutput {
			printOutcomes(os.Stdout, outcomes, true)
			return nil
		}
		v = outcomes
	default:
		runs, err := l.Runs(ctx, limit)
		if err != nil {
			return err
		}
		if !jsonOutput {
			printRuns(os.Stdout, runs)
			return nil
		}
		v = runs
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRuns(w io.Writer, runs []types.PipelineRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	fmt.Fprintf(w, "%-8s  %-24s  %-13s  %-9s  %-16s  %s\n", "Run", "Plan", "Resume", "Status", "Started", "Duration")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, r := range runs {
		fmt.Fprintf(w, "%-8s  %-24s  %-13s  %-9s  %-16s  %s\n",
			shortID(r.ID), r.Plan, r.Policy, r.Status, r.StartedAt.Local().Format("2006-01-02 15:04"), runDuration(r))
	}
}

func printRun(w io.Writer, r types.PipelineRun) {
	fmt.Fprintf(w, "run %s\n", r.ID)
	fmt.Fprintf(w, "plan:    %s (resume: %s)\n", r.Plan, r.Policy)
	fmt.Fprintf(w, "status:  %s\n", r.Status)
	fmt.Fprintf(w, "started: %s (%s)\n\n", r.StartedAt.Local().Format(time.DateTime), runDuration(r))
	printOutcomes(w, r.Stages, false)
}

func printOutcomes(w io.Writer, outcomes []types.StageOutcome, withRun bool) {
	if len(outcomes) == 0 {
		fmt.Fprintln(w, "No stage outcomes recorded.")
		return
	}
	for _, o := range outcomes {
		prefix := fmt.Sprintf("%d", o.Position+1)
		if withRun {
			prefix = shortID(o.RunID)
		}
		status := string(o.Status)
		if o.FailureKind != types.FailureNone {
			status += " [" + string(o.FailureKind) + "]"
		}
		fmt.Fprintf(w, "%-8s  %-24s  %-24s  %s\n", prefix, o.Stage, status, o.Duration.Round(time.Millisecond))
		for _, out := range o.Outputs {
			fmt.Fprintf(w, "          -> %s\n", out)
		}
		for _, warn := range o.Warnings {
			fmt.Fprintf(w, "          warning: %s\n", warn)
		}
		if o.Message != "" && o.Status == types.StatusFailed {
			fmt.Fprintf(w, "          error: %s\n", o.Message)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runDuration(r types.PipelineRun) string {
	if r.FinishedAt.IsZero() {
		return "unfinished"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum runs or outcomes to list (0 = all)")
	historyCmd.Flags().String("stage", "", "list the outcomes of one stage across runs")
	historyCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(historyCmd)
}
