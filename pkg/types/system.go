// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EnergyModelKind selects how the energy of a system is evaluated.
type EnergyModelKind string

const (
	EnergyMM EnergyModelKind = "mm"
	EnergyQM EnergyModelKind = "qm"
)

// ReactionCoordinateType identifies the geometric definition of a
// reaction coordinate.
type ReactionCoordinateType string

const (
	// CoordDistance is the distance between two atoms.
	CoordDistance ReactionCoordinateType = "distance"

	// CoordMultipleDistance is the difference of two distances over three
	// atoms (d(a,b) - d(b,c)), used for proton and hydride transfers.
	CoordMultipleDistance ReactionCoordinateType = "multiple_distance"
)

// Distances returns how many interatomic distances the coordinate type
// combines. It is also the number of force constants a restrained scan
// expects per coordinate.
func (t ReactionCoordinateType) Distances() int {
	switch t {
	case CoordDistance:
		return 1
	case CoordMultipleDistance:
		return 2
	default:
		return 0
	}
}

// Atoms returns how many atoms define a coordinate of this type.
func (t ReactionCoordinateType) Atoms() int {
	switch t {
	case CoordDistance:
		return 2
	case CoordMultipleDistance:
		return 3
	default:
		return 0
	}
}

// Atom is one particle of the molecular model.
type Atom struct {
	// Name is the atom name within its residue (e.g. "C02", "OE2").
	Name string `json:"name" yaml:"name"`

	// Symbol is the chemical element symbol.
	Symbol string `json:"symbol" yaml:"symbol"`

	// Residue is the residue name (e.g. "GLU", "LIG").
	Residue string `json:"residue" yaml:"residue"`

	// ResID is the residue sequence number.
	ResID int `json:"resid" yaml:"resid"`

	// Segment is the chain or segment label; "*" patterns match any.
	Segment string `json:"segment,omitempty" yaml:"segment,omitempty"`

	// Charge is the force-field partial charge.
	Charge float64 `json:"charge,omitempty" yaml:"charge,omitempty"`
}

// EnergyModel records which Hamiltonian evaluates the system.
type EnergyModel struct {
	Kind         EnergyModelKind `json:"kind" yaml:"kind"`
	Hamiltonian  string          `json:"hamiltonian,omitempty" yaml:"hamiltonian,omitempty"`
	MethodClass  string          `json:"method_class,omitempty" yaml:"method_class,omitempty"`
	QCCharge     int             `json:"qc_charge,omitempty" yaml:"qc_charge,omitempty"`
	Multiplicity int             `json:"multiplicity,omitempty" yaml:"multiplicity,omitempty"`
}

// ReactionCoordinate is a restrained geometric coordinate over atom indices.
type ReactionCoordinate struct {
	Type           ReactionCoordinateType `json:"type" yaml:"type"`
	Atoms          []int                  `json:"atoms" yaml:"atoms"`
	Patterns       []string               `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	MassWeighted   bool                   `json:"mass_weighted,omitempty" yaml:"mass_weighted,omitempty"`
	ForceConstants []float64              `json:"force_constants,omitempty" yaml:"force_constants,omitempty"`
}

// ScanFrame is one constrained optimization of a relaxed surface scan.
type ScanFrame struct {
	Step        int       `json:"step" yaml:"step"`
	Values      []float64 `json:"values" yaml:"values"`
	Energy      float64   `json:"energy" yaml:"energy"`
	Coordinates []float64 `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
}

// ProfilePoint is one refined energy along the reaction coordinate.
type ProfilePoint struct {
	Step       int     `json:"step" yaml:"step"`
	Coordinate float64 `json:"coordinate" yaml:"coordinate"`
	Energy     float64 `json:"energy" yaml:"energy"`
}

// Convergence summarizes how the last engine run terminated.
type Convergence struct {
	Converged   bool    `json:"converged" yaml:"converged"`
	Iterations  int     `json:"iterations,omitempty" yaml:"iterations,omitempty"`
	RMSGradient float64 `json:"rms_gradient,omitempty" yaml:"rms_gradient,omitempty"`
}

// SystemState is the full molecular model handed between stages. A value is
// owned by exactly one holder at a time: stages pass it to the engine and
// the checkpoint store serializes it, so callers that need to keep a copy
// must use Clone.
type SystemState struct {
	// Label names the system (e.g. "7tim").
	Label string `json:"label" yaml:"label"`

	Atoms []Atom `json:"atoms" yaml:"atoms"`

	// Coordinates holds 3*len(Atoms) Cartesian values in Angstrom,
	// row-major by atom.
	Coordinates []float64 `json:"coordinates" yaml:"coordinates"`

	Charge       int `json:"charge" yaml:"charge"`
	Multiplicity int `json:"multiplicity" yaml:"multiplicity"`

	EnergyModel EnergyModel `json:"energy_model" yaml:"energy_model"`

	// QCRegion lists atom indices treated quantum mechanically.
	QCRegion []int `json:"qc_region,omitempty" yaml:"qc_region,omitempty"`

	// FixedAtoms lists atom indices held fixed during optimization.
	FixedAtoms []int `json:"fixed_atoms,omitempty" yaml:"fixed_atoms,omitempty"`

	ReactionCoordinates []ReactionCoordinate `json:"reaction_coordinates,omitempty" yaml:"reaction_coordinates,omitempty"`

	// Energy is the last computed total energy in kJ/mol.
	Energy float64 `json:"energy" yaml:"energy"`

	Convergence Convergence `json:"convergence" yaml:"convergence"`

	Scan    []ScanFrame    `json:"scan,omitempty" yaml:"scan,omitempty"`
	Profile []ProfilePoint `json:"profile,omitempty" yaml:"profile,omitempty"`

	// Method is the semi-empirical method that produced Profile.
	Method string `json:"method,omitempty" yaml:"method,omitempty"`

	// Provenance lists the stages that produced this state, oldest first.
	Provenance []string `json:"provenance,omitempty" yaml:"provenance,omitempty"`
}

// NumAtoms returns the number of atoms in the system.
func (s *SystemState) NumAtoms() int {
	return len(s.Atoms)
}

// Position returns the Cartesian coordinates of atom i.
func (s *SystemState) Position(i int) [3]float64 {
	return [3]float64{s.Coordinates[3*i], s.Coordinates[3*i+1], s.Coordinates[3*i+2]}
}

// Clone returns a deep copy that shares no memory with s.
func (s *SystemState) Clone() *SystemState {
	if s == nil {
		return nil
	}
	c := *s
	c.Atoms = append([]Atom(nil), s.Atoms...)
	c.Coordinates = append([]float64(nil), s.Coordinates...)
	c.QCRegion = append([]int(nil), s.QCRegion...)
	c.FixedAtoms = append([]int(nil), s.FixedAtoms...)
	c.Provenance = append([]string(nil), s.Provenance...)
	c.Profile = append([]ProfilePoint(nil), s.Profile...)

	if s.ReactionCoordinates != nil {
		c.ReactionCoordinates = make([]ReactionCoordinate, len(s.ReactionCoordinates))
		for i, rc := range s.ReactionCoordinates {
			rc.Atoms = append([]int(nil), rc.Atoms...)
			rc.Patterns = append([]string(nil), rc.Patterns...)
			rc.ForceConstants = append([]float64(nil), rc.ForceConstants...)
			c.ReactionCoordinates[i] = rc
		}
	}
	if s.Scan != nil {
		c.Scan = make([]ScanFrame, len(s.Scan))
		for i, f := range s.Scan {
			f.Values = append([]float64(nil), f.Values...)
			f.Coordinates = append([]float64(nil), f.Coordinates...)
			c.Scan[i] = f
		}
	}
	return &c
}
