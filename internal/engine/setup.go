// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/pdiddy/reaction-engine/internal/params"
	"github.com/pdiddy/reaction-engine/internal/selection"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

// Setup applies the structural options of rec to a copy of state:
//
//  1. spherical_prune keeps only residues with an atom within
//     spherical_prune_radius of the centre atom;
//  2. set_fixed_atoms fixes every residue with no atom within
//     free_atoms_radius of the centre atom;
//  3. an explicit energy_model replaces the energy model, and for qm
//     selects the QC region from qc_region plus every residue with an
//     atom within qc_radius of the qc_center atom;
//  4. rc_atoms defines the reaction coordinate.
//
// Selection problems are returned as *params.ConfigurationError.
func Setup(state *types.SystemState, rec params.Record) (*types.SystemState, error) {
	if state == nil {
		return nil, &Fault{Op: "configure", Err: fmt.Errorf("no input system")}
	}
	if len(state.Coordinates) != 3*len(state.Atoms) {
		return nil, &Fault{Op: "configure", Err: fmt.Errorf("%d coordinates for %d atoms", len(state.Coordinates), len(state.Atoms))}
	}
	s := state.Clone()
	opts := rec.Setup()

	if opts.SphericalPrune != "" {
		center, err := selection.One(s.Atoms, opts.SphericalPrune)
		if err != nil {
			return nil, setupError(rec, params.KeySphericalPrune, err)
		}
		keep := residuesWithin(s, center, opts.PruneRadius)
		if err := prune(s, keep); err != nil {
			return nil, setupError(rec, params.KeySphericalPrune, err)
		}
	}

	if opts.SetFixedAtoms != "" {
		center, err := selection.One(s.Atoms, opts.SetFixedAtoms)
		if err != nil {
			return nil, setupError(rec, params.KeySetFixedAtoms, err)
		}
		free := residuesWithin(s, center, opts.FreeRadius)
		s.FixedAtoms = complement(len(s.Atoms), free)
	}

	if rec.Explicit(params.KeyEnergyModel) {
		model := types.EnergyModel{
			Kind:         types.EnergyModelKind(opts.EnergyModel),
			Multiplicity: opts.Multiplicity,
		}
		s.QCRegion = nil
		if model.Kind == types.EnergyQM {
			region, key, err := qcRegion(s, opts)
			if err != nil {
				return nil, setupError(rec, key, err)
			}
			model.Hamiltonian = opts.Hamiltonian
			model.MethodClass = opts.MethodClass
			model.QCCharge = opts.QCCharge
			s.QCRegion = region
		}
		s.EnergyModel = model
		s.Multiplicity = opts.Multiplicity
	}

	if len(opts.RCAtoms) > 0 {
		idx, err := selection.Ordered(s.Atoms, opts.RCAtoms)
		if err != nil {
			return nil, setupError(rec, params.KeyRCAtoms, err)
		}
		rc := types.ReactionCoordinate{
			Type:         types.ReactionCoordinateType(opts.RCType),
			Atoms:        idx,
			Patterns:     slices.Clone(opts.RCAtoms),
			MassWeighted: opts.MassConstraint,
		}
		if scan, ok := rec.Scan(); ok {
			rc.ForceConstants = scan.ForceConstants
		}
		s.ReactionCoordinates = []types.ReactionCoordinate{rc}
	}
	return s, nil
}

// qcRegion resolves the QC atoms from the explicit patterns and the
// optional sphere around qc_center. On failure key names the option at
// fault.
func qcRegion(s *types.SystemState, opts params.Setup) (region []int, key string, err error) {
	if len(opts.QCRegion) > 0 {
		sel, err := selection.Select(s.Atoms, opts.QCRegion...)
		if err != nil {
			return nil, params.KeyQCRegion, err
		}
		region = append(region, sel...)
	}
	if opts.QCCenter != "" {
		center, err := selection.One(s.Atoms, opts.QCCenter)
		if err != nil {
			return nil, params.KeyQCCenter, err
		}
		region = append(region, residuesWithin(s, center, opts.QCRadius)...)
	}
	slices.Sort(region)
	region = slices.Compact(region)
	if len(region) == 0 {
		return nil, params.KeyQCRegion, fmt.Errorf("patterns %v match no atoms", opts.QCRegion)
	}
	return region, "", nil
}

func setupError(rec params.Record, key string, err error) error {
	return &params.ConfigurationError{
		Kind:   rec.Kind(),
		Fields: []params.FieldError{{Key: key, Message: err.Error()}},
	}
}

// positions views the coordinates of s as an N×3 matrix without copying.
func positions(s *types.SystemState) *mat.Dense {
	return mat.NewDense(len(s.Atoms), 3, s.Coordinates)
}

// Distance returns the distance between atoms i and j in Angstrom.
func Distance(s *types.SystemState, i, j int) float64 {
	pos := positions(s)
	return floats.Distance(mat.Row(nil, i, pos), mat.Row(nil, j, pos), 2)
}

// CoordinateValue evaluates a reaction coordinate on s: the distance for
// a distance coordinate, d(a,b) - d(b,c) for a multiple distance.
func CoordinateValue(s *types.SystemState, rc types.ReactionCoordinate) (float64, error) {
	if want := rc.Type.Atoms(); want == 0 || len(rc.Atoms) != want {
		return 0, fmt.Errorf("%s coordinate over %d atoms", rc.Type, len(rc.Atoms))
	}
	for _, i := range rc.Atoms {
		if i < 0 || i >= len(s.Atoms) {
			return 0, fmt.Errorf("coordinate atom %d out of range", i)
		}
	}
	a := rc.Atoms
	if rc.Type == types.CoordDistance {
		return Distance(s, a[0], a[1]), nil
	}
	return Distance(s, a[0], a[1]) - Distance(s, a[1], a[2]), nil
}

type residueKey struct {
	segment string
	name    string
	id      int
}

func residueOf(a types.Atom) residueKey {
	return residueKey{segment: a.Segment, name: a.Residue, id: a.ResID}
}

// residuesWithin returns the sorted indices of every atom belonging to a
// residue that has at least one atom within radius of atom center.
func residuesWithin(s *types.SystemState, center int, radius float64) []int {
	pos := positions(s)
	c := mat.Row(nil, center, pos)
	row := make([]float64, 3)

	near := make(map[residueKey]bool)
	for i, a := range s.Atoms {
		mat.Row(row, i, pos)
		if floats.Distance(row, c, 2) <= radius {
			near[residueOf(a)] = true
		}
	}
	var out []int
	for i, a := range s.Atoms {
		if near[residueOf(a)] {
			out = append(out, i)
		}
	}
	return out
}

// prune keeps only the atoms in keep (sorted) and remaps every index
// list. Reaction coordinates and QC atoms must survive the prune.
func prune(s *types.SystemState, keep []int) error {
	remap := make(map[int]int, len(keep))
	atoms := make([]types.Atom, 0, len(keep))
	coords := make([]float64, 0, 3*len(keep))
	for newIdx, old := range keep {
		remap[old] = newIdx
		atoms = append(atoms, s.Atoms[old])
		coords = append(coords, s.Coordinates[3*old:3*old+3]...)
	}

	qc, err := remapAll(s.QCRegion, remap, "QC region")
	if err != nil {
		return err
	}
	for i, rc := range s.ReactionCoordinates {
		idx, err := remapAll(rc.Atoms, remap, "reaction coordinate")
		if err != nil {
			return err
		}
		s.ReactionCoordinates[i].Atoms = idx
	}
	var fixed []int
	for _, old := range s.FixedAtoms {
		if n, ok := remap[old]; ok {
			fixed = append(fixed, n)
		}
	}

	s.Atoms = atoms
	s.Coordinates = coords
	s.QCRegion = qc
	s.FixedAtoms = fixed
	s.Scan = nil
	s.Profile = nil
	return nil
}

func remapAll(idx []int, remap map[int]int, what string) ([]int, error) {
	if idx == nil {
		return nil, nil
	}
	out := make([]int, len(idx))
	for i, old := range idx {
		n, ok := remap[old]
		if !ok {
			return nil, fmt.Errorf("%s atom %d lies outside the pruned sphere", what, old)
		}
		out[i] = n
	}
	return out, nil
}

// complement returns the indices in [0,n) not present in the sorted list.
func complement(n int, sorted []int) []int {
	var out []int
	j := 0
	for i := 0; i < n; i++ {
		if j < len(sorted) && sorted[j] == i {
			j++
			continue
		}
		out = append(out, i)
	}
	return out
}
