// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package structure writes human-readable exports of a SystemState:
// PDB and XYZ coordinates and the energy profile of a scan or refinement.
package structure

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pdiddy/reaction-engine/pkg/types"
)

// WritePDB writes the current coordinates of s as a single-model PDB file.
// Atoms in the QC region are written as HETATM records so viewers can
// highlight them.
func WritePDB(w io.Writer, s *types.SystemState) error {
	if err := checkShape(s); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "REMARK     %s\n", title(s))

	qc := make(map[int]bool, len(s.QCRegion))
	for _, i := range s.QCRegion {
		qc[i] = true
	}
	fixed := make(map[int]bool, len(s.FixedAtoms))
	for _, i := range s.FixedAtoms {
		fixed[i] = true
	}

	prevSeg := ""
	for i, a := range s.Atoms {
		if i > 0 && a.Segment != prevSeg {
			fmt.Fprintln(bw, "TER")
		}
		prevSeg = a.Segment

		record := "ATOM"
		if qc[i] {
			record = "HETATM"
		}
		// Occupancy 0 marks fixed atoms.
		occ := 1.0
		if fixed[i] {
			occ = 0.0
		}
		chain := ' '
		if a.Segment != "" {
			chain = rune(a.Segment[0])
		}
		name := a.Name
		if len(name) < 4 {
			name = " " + name
		}
		p := s.Position(i)
		fmt.Fprintf(bw, "%-6s%5d %-4.4s %3.3s %c%4d    %8.3f%8.3f%8.3f%6.2f%6.2f          %2.2s\n",
			record, (i+1)%100000, name, a.Residue, chain, a.ResID%10000,
			p[0], p[1], p[2], occ, 0.0, a.Symbol)
	}
	fmt.Fprintln(bw, "END")
	return bw.Flush()
}

// WriteXYZ writes the current coordinates of s in XYZ format.
func WriteXYZ(w io.Writer, s *types.SystemState) error {
	if err := checkShape(s); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n%s\n", s.NumAtoms(), title(s))
	for i, a := range s.Atoms {
		p := s.Position(i)
		fmt.Fprintf(bw, "%-2s %12.6f %12.6f %12.6f\n", a.Symbol, p[0], p[1], p[2])
	}
	return bw.Flush()
}

func checkShape(s *types.SystemState) error {
	if s == nil {
		return fmt.Errorf("nil system state")
	}
	if len(s.Coordinates) != 3*len(s.Atoms) {
		return fmt.Errorf("system %q has %d coordinates for %d atoms", s.Label, len(s.Coordinates), len(s.Atoms))
	}
	return nil
}

func title(s *types.SystemState) string {
	t := s.Label
	if s.EnergyModel.Hamiltonian != "" {
		t += " " + s.EnergyModel.Hamiltonian
	}
	return fmt.Sprintf("%s energy=%.6f", t, s.Energy)
}
