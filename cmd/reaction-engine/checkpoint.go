// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/reaction-engine/internal/structure"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

var checkpointCmd = &cobra.Command{
	Use:     "checkpoint",
	Aliases: []string{"cp"},
	Short:   "List, inspect, export, and remove checkpoints",
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List published checkpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, _, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		cps, err := store.List(ctx)
		if err != nil {
			return err
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cps)
		}
		if len(cps) == 0 {
			fmt.Println("No checkpoints found.")
			return nil
		}

		fmt.Fprintf(os.Stdout, "%-40s  %-22s  %6s  %14s  %-9s  %s\n",
			"ID", "Stage", "Atoms", "Energy", "Converged", "Created")
		fmt.Fprintln(os.Stdout, strings.Repeat("-", 120))
		for _, cp := range cps {
			fmt.Fprintf(os.Stdout, "%-40s  %-22s  %6d  %14.4f  %-9t  %s\n",
				cp.ID, cp.Stage, cp.Atoms, cp.Energy, cp.Converged, cp.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		fmt.Fprintf(os.Stdout, "\n%d checkpoints\n", len(cps))
		return nil
	},
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a checkpoint manifest and a summary of its state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, _, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		cp, err := store.Stat(ctx, args[0])
		if err != nil {
			return err
		}
		state, err := store.Load(ctx, args[0])
		if err != nil {
			return err
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cp); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
		fmt.Println()
		printStateSummary(os.Stdout, state)
		return nil
	},
}

func printStateSummary(w io.Writer, s *types.SystemState) {
	fmt.Fprintf(w, "system:       %s (%d atoms, charge %d, multiplicity %d)\n", s.Label, s.NumAtoms(), s.Charge, s.Multiplicity)
	fmt.Fprintf(w, "energy model: %s", s.EnergyModel.Kind)
	if s.EnergyModel.Hamiltonian != "" {
		fmt.Fprintf(w, " %s", s.EnergyModel.Hamiltonian)
	}
	fmt.Fprintln(w)
	if len(s.QCRegion) > 0 {
		fmt.Fprintf(w, "qc region:    %d atoms\n", len(s.QCRegion))
	}
	if len(s.FixedAtoms) > 0 {
		fmt.Fprintf(w, "fixed atoms:  %d\n", len(s.FixedAtoms))
	}
	if len(s.Provenance) > 0 {
		fmt.Fprintf(w, "provenance:   %s\n", strings.Join(s.Provenance, " -> "))
	}
	if points := structure.Profile(s); len(points) > 0 {
		sum := structure.Summarize(points)
		fmt.Fprintf(w, "profile:      %d points, barrier %.2f kJ/mol at step %d, reaction energy %.2f kJ/mol\n",
			sum.Points, sum.Barrier, sum.BarrierStep, sum.ReactionEnergy)
	}
}

var checkpointExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Write a checkpoint as PDB, XYZ, or an energy profile",
	Long: `Export renders a stored checkpoint into a human-readable file in --out
(default: current directory). Formats: pdb, xyz, profile (CSV), profile-png.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckpointExport,
}

func runCheckpointExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	outDir, _ := cmd.Flags().GetString("out")
	id := args[0]

	ctx := cmd.Context()
	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	state, err := store.Load(ctx, id)
	if err != nil {
		return err
	}

	stem := path.Base(id)
	var (
		name  string
		write func(io.Writer) error
	)
	switch format {
	case string(types.ExportPDB):
		name, write = stem+".pdb", func(w io.Writer) error { return structure.WritePDB(w, state) }
	case string(types.ExportXYZ):
		name, write = stem+".xyz", func(w io.Writer) error { return structure.WriteXYZ(w, state) }
	case string(types.ExportProfile), "profile-png":
		points := structure.Profile(state)
		if len(points) == 0 {
			return fmt.Errorf("checkpoint %s has no energy profile", id)
		}
		if format == "profile-png" {
			name, write = stem+"_profile.png", func(w io.Writer) error { return structure.WriteProfilePNG(w, stem, points) }
		} else {
			name, write = stem+"_profile.csv", func(w io.Writer) error { return structure.WriteProfileCSV(w, points) }
		}
	default:
		return fmt.Errorf("unsupported format %q: use pdb, xyz, profile, or profile-png", format)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	dest := filepath.Join(outDir, name)
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("exported: %s -> %s\n", id, dest)
	return nil
}

var checkpointRmCmd = &cobra.Command{
	Use:   "rm <id>...",
	Short: "Delete checkpoints so the stages that produce them run again",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, _, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		return removeCheckpoints(ctx, store, args)
	},
}

type deleter interface {
	Delete(ctx context.Context, id string) error
}

func removeCheckpoints(ctx context.Context, store deleter, ids []string) error {
	failed := 0
	for _, id := range ids {
		if err := store.Delete(ctx, id); err != nil {
			fmt.Fprintf(os.Stdout, "failed:  %s (%v)\n", id, err)
			failed++
			continue
		}
		fmt.Fprintf(os.Stdout, "removed: %s\n", id)
	}
	if failed > 0 {
		return fmt.Errorf("%d checkpoint(s) could not be removed", failed)
	}
	return nil
}

func init() {
	checkpointListCmd.Flags().Bool("json", false, "output manifests as JSON")
	checkpointExportCmd.Flags().String("format", string(types.ExportPDB), "export format: pdb, xyz, profile, profile-png")
	checkpointExportCmd.Flags().String("out", ".", "output directory")

	checkpointCmd.AddCommand(checkpointListCmd)
	checkpointCmd.AddCommand(checkpointShowCmd)
	checkpointCmd.AddCommand(checkpointExportCmd)
	checkpointCmd.AddCommand(checkpointRmCmd)

	rootCmd.AddCommand(checkpointCmd)
}
