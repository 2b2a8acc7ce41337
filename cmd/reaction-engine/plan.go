// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/reaction-engine/internal/params"
	"github.com/pdiddy/reaction-engine/internal/plan"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Create, validate, and inspect plan files",
}

var planInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the built-in TIM reaction-path plan",
	Long: `Init writes the five-stage triosephosphate isomerase workflow
(prepare, prune, QC/MM optimization, distance scan, semi-empirical
refinement) to path (default plan.yaml). An existing file is kept unless
--force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "plan.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		hamiltonian, _ := cmd.Flags().GetString("hamiltonian")
		methods, _ := cmd.Flags().GetStringSlice("methods")
		force, _ := cmd.Flags().GetBool("force")

		p := plan.Reaction(hamiltonian, methods)
		if _, err := p.Descriptors(); err != nil {
			return err
		}
		if err := p.Write(path, force); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%d stages)\n", path, len(p.Stages))
		return nil
	},
}

var planValidateCmd = &cobra.Command{
	Use:   "validate <plan.yaml>",
	Short: "Check a plan file without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := plan.Load(args[0])
		if err != nil {
			return err
		}
		stages, err := p.Descriptors()
		if err != nil {
			return err
		}
		for _, d := range stages {
			for _, key := range d.Record().Ignored() {
				fmt.Printf("  warning: %s: ignoring unknown option %q\n", d.Name(), key)
			}
		}
		fmt.Printf("valid: %s (%d stages)\n", p.Name, len(stages))
		return nil
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show <plan.yaml>",
	Short: "Print the stage chain of a plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := plan.Load(args[0])
		if err != nil {
			return err
		}
		stages, err := p.Descriptors()
		if err != nil {
			return err
		}

		resume := p.Resume
		if resume == "" {
			resume = types.ResumeSkip
		}
		fmt.Fprintf(os.Stdout, "%s  (resume: %s, strict: %t)\n", p.Name, resume, p.Policy() == params.Strict)
		if p.Description != "" {
			fmt.Fprintln(os.Stdout, p.Description)
		}
		fmt.Fprintln(os.Stdout)
		fmt.Fprintf(os.Stdout, "%-3s  %-24s  %-24s  %-12s  %s\n", "#", "Stage", "Kind", "Fingerprint", "Output")
		fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
		for i, d := range stages {
			fmt.Fprintf(os.Stdout, "%-3d  %-24s  %-24s  %-12s  %s\n",
				i+1, d.Name(), d.Kind(), d.Record().Fingerprint()[:12], strings.Join(d.Outputs(), ", "))
			if src := d.Source(); src != "" {
				fmt.Fprintf(os.Stdout, "     from %s\n", src)
			}
		}
		return nil
	},
}

func init() {
	planInitCmd.Flags().String("hamiltonian", "rm1", "QC hamiltonian for the optimization and scan stages")
	planInitCmd.Flags().StringSlice("methods", plan.DefaultMethods, "semi-empirical methods for the refinement stage")
	planInitCmd.Flags().Bool("force", false, "overwrite an existing plan file")

	planCmd.AddCommand(planInitCmd)
	planCmd.AddCommand(planValidateCmd)
	planCmd.AddCommand(planShowCmd)

	rootCmd.AddCommand(planCmd)
}
