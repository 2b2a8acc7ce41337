// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package params

import (
	"github.com/pdiddy/reaction-engine/pkg/types"
)

// Option names shared by every simulation kind.
const (
	KeyInputType            = "input_type"
	KeyCheckpoint           = "checkpoint"
	KeyCrdFile              = "crd_file"
	KeyTopFile              = "top_file"
	KeySaveFormat           = "save_format"
	KeySaveFrequency        = "save_frequency"
	KeyTrajectoryName       = "trajectory_name"
	KeySphericalPrune       = "spherical_prune"
	KeySphericalPruneRadius = "spherical_prune_radius"
	KeySetFixedAtoms        = "set_fixed_atoms"
	KeyFreeAtomsRadius      = "free_atoms_radius"
	KeyEnergyModel          = "energy_model"
	KeyHamiltonian          = "hamiltonian"
	KeyMethodClass          = "method_class"
	KeyQCRegion             = "qc_region"
	KeyQCCharge             = "qc_charge"
	KeyQCCenter             = "qc_center"
	KeyQCRadius             = "qc_radius"
	KeyMultiplicity         = "multiplicity"
	KeyRCAtoms              = "rc_atoms"
	KeyRCType               = "rc_type"
	KeyMassConstraint       = "mass_constraint"
)

// Option names specific to one or more simulation kinds.
const (
	KeyRMSGradient    = "rms_gradient"
	KeyMaxIterations  = "max_iterations"
	KeyOptimizer      = "optimizer"
	KeyRCIncrement    = "rc_increment"
	KeyRCSteps        = "rc_steps"
	KeyForceConstants = "force_constants"
	KeyMethods        = "methods"
	KeyMaxThreads     = "max_threads"
	KeyCharge         = "charge"
	KeySoftware       = "software"
	KeyBins           = "bins"
)

// DefaultForceConstant is the restraint force constant (kJ/mol/A^2) used
// for every scanned distance when force_constants is not given.
const DefaultForceConstant = 4000.0

type fieldType int

const (
	typeFloat fieldType = iota
	typeInt
	typeString
	typeBool
	typeStrings
	typeNumbers
)

func (t fieldType) String() string {
	switch t {
	case typeFloat:
		return "number"
	case typeInt:
		return "integer"
	case typeString:
		return "string"
	case typeBool:
		return "boolean"
	case typeStrings:
		return "list of strings"
	case typeNumbers:
		return "list of numbers"
	}
	return "unknown"
}

// accepts reports whether a value of kind k can populate a field of type t.
func (t fieldType) accepts(v Value) bool {
	switch t {
	case typeFloat:
		return v.Kind() == KindNumber
	case typeInt:
		_, ok := v.Int()
		return ok
	case typeString:
		return v.Kind() == KindString
	case typeBool:
		return v.Kind() == KindBool
	case typeStrings:
		return v.Kind() == KindStrings
	case typeNumbers:
		if v.Kind() == KindStrings {
			l, _ := v.List()
			return len(l) == 0
		}
		return v.Kind() == KindNumbers
	}
	return false
}

type field struct {
	name     string
	typ      fieldType
	required bool
	def      *Value
}

func def(v Value) *Value { return &v }

var commonFields = []field{
	{name: KeyInputType, typ: typeString, required: true},
	{name: KeyCheckpoint, typ: typeString},
	{name: KeyCrdFile, typ: typeString},
	{name: KeyTopFile, typ: typeString},
	{name: KeySaveFormat, typ: typeString, def: def(String(".dcd"))},
	{name: KeySaveFrequency, typ: typeInt},
	{name: KeyTrajectoryName, typ: typeString},
	{name: KeySphericalPrune, typ: typeString},
	{name: KeySphericalPruneRadius, typ: typeFloat},
	{name: KeySetFixedAtoms, typ: typeString},
	{name: KeyFreeAtomsRadius, typ: typeFloat},
	{name: KeyEnergyModel, typ: typeString, def: def(String(string(types.EnergyMM)))},
	{name: KeyHamiltonian, typ: typeString},
	{name: KeyMethodClass, typ: typeString},
	{name: KeyQCRegion, typ: typeStrings},
	{name: KeyQCCharge, typ: typeInt},
	{name: KeyQCCenter, typ: typeString},
	{name: KeyQCRadius, typ: typeFloat},
	{name: KeyMultiplicity, typ: typeInt, def: def(Number(1))},
	{name: KeyRCAtoms, typ: typeStrings},
	{name: KeyRCType, typ: typeString},
	{name: KeyMassConstraint, typ: typeBool},
}

var kindFields = map[types.SimulationKind][]field{
	types.KindGeometryOptimization: {
		{name: KeyRMSGradient, typ: typeFloat, required: true},
		{name: KeyMaxIterations, typ: typeInt, required: true},
		{name: KeyOptimizer, typ: typeString, def: def(String(OptimizerConjugateGradient))},
	},
	types.KindRelaxedSurfaceScan: {
		{name: KeyRCAtoms, typ: typeStrings, required: true},
		{name: KeyRCType, typ: typeString, required: true},
		{name: KeyRCIncrement, typ: typeFloat, required: true},
		{name: KeyRCSteps, typ: typeInt, required: true},
		{name: KeyForceConstants, typ: typeNumbers},
		{name: KeyMaxIterations, typ: typeInt, required: true},
		{name: KeyRMSGradient, typ: typeFloat, def: def(Number(0.1))},
		{name: KeyOptimizer, typ: typeString, def: def(String(OptimizerConjugateGradient))},
	},
	types.KindEnergyRefinement: {
		{name: KeyMethods, typ: typeStrings, required: true},
		{name: KeyMaxThreads, typ: typeInt, def: def(Number(1))},
		{name: KeyCharge, typ: typeInt},
		{name: KeySoftware, typ: typeString, def: def(String("mopac"))},
		{name: KeyBins, typ: typeInt},
	},
}

// schemaFor returns the fields for kind keyed by name. Kind-specific
// entries override common ones.
func schemaFor(kind types.SimulationKind) (map[string]field, []string) {
	fields := make(map[string]field)
	var order []string
	add := func(f field) {
		if _, ok := fields[f.name]; !ok {
			order = append(order, f.name)
		}
		fields[f.name] = f
	}
	for _, f := range commonFields {
		add(f)
	}
	for _, f := range kindFields[kind] {
		add(f)
	}
	return fields, order
}

// Vocabulary returns the option names accepted for kind, in schema order.
func Vocabulary(kind types.SimulationKind) []string {
	_, order := schemaFor(kind)
	return order
}
