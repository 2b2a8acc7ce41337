// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package params

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// Optimizer names accepted by the optimizer option.
const (
	OptimizerConjugateGradient = "ConjugateGradient"
	OptimizerSteepestDescent   = "SteepestDescent"
	OptimizerLBFGS             = "LBFGS"
	OptimizerFIRE              = "FIRE"
)

// Setup holds the structural options shared by every simulation kind.
type Setup struct {
	InputType      string  `mapstructure:"input_type" validate:"required,oneof=forcefield checkpoint"`
	Checkpoint     string  `mapstructure:"checkpoint"`
	CrdFile        string  `mapstructure:"crd_file"`
	TopFile        string  `mapstructure:"top_file"`
	SaveFormat     string  `mapstructure:"save_format"`
	SaveFrequency  *int    `mapstructure:"save_frequency" validate:"omitempty,gt=0"`
	TrajectoryName string  `mapstructure:"trajectory_name"`
	SphericalPrune string  `mapstructure:"spherical_prune"`
	PruneRadius    float64 `mapstructure:"spherical_prune_radius" validate:"gte=0"`
	SetFixedAtoms  string  `mapstructure:"set_fixed_atoms"`
	FreeRadius     float64 `mapstructure:"free_atoms_radius" validate:"gte=0"`

	EnergyModel  string   `mapstructure:"energy_model" validate:"oneof=mm qm"`
	Hamiltonian  string   `mapstructure:"hamiltonian"`
	MethodClass  string   `mapstructure:"method_class"`
	QCRegion     []string `mapstructure:"qc_region"`
	QCCharge     int      `mapstructure:"qc_charge"`
	QCCenter     string   `mapstructure:"qc_center"`
	QCRadius     float64  `mapstructure:"qc_radius" validate:"gte=0"`
	Multiplicity int      `mapstructure:"multiplicity" validate:"gte=1"`

	RCAtoms        []string `mapstructure:"rc_atoms"`
	RCType         string   `mapstructure:"rc_type" validate:"omitempty,oneof=distance multiple_distance"`
	MassConstraint bool     `mapstructure:"mass_constraint"`
}

// Optimization holds the options of a geometry optimization stage.
type Optimization struct {
	Setup `mapstructure:",squash"`

	RMSGradient   float64 `mapstructure:"rms_gradient" validate:"gt=0"`
	MaxIterations int     `mapstructure:"max_iterations" validate:"gt=0"`
	Optimizer     string  `mapstructure:"optimizer" validate:"oneof=ConjugateGradient SteepestDescent LBFGS FIRE"`
}

// Scan holds the options of a relaxed surface scan stage.
type Scan struct {
	Setup `mapstructure:",squash"`

	Increment      float64   `mapstructure:"rc_increment" validate:"ne=0"`
	Steps          int       `mapstructure:"rc_steps" validate:"gt=0"`
	ForceConstants []float64 `mapstructure:"force_constants" validate:"dive,gt=0"`
	MaxIterations  int       `mapstructure:"max_iterations" validate:"gt=0"`
	RMSGradient    float64   `mapstructure:"rms_gradient" validate:"gt=0"`
	Optimizer      string    `mapstructure:"optimizer" validate:"oneof=ConjugateGradient SteepestDescent LBFGS FIRE"`
}

// Refinement holds the options of an energy refinement stage.
type Refinement struct {
	Setup `mapstructure:",squash"`

	Methods    []string `mapstructure:"methods" validate:"min=1,unique,dive,required"`
	MaxThreads int      `mapstructure:"max_threads" validate:"gt=0"`
	Charge     int      `mapstructure:"charge"`
	Software   string   `mapstructure:"software" validate:"required"`
	Bins       int      `mapstructure:"bins" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeInto fills out from raw using mapstructure and checks ranges with
// the validator. Validation failures are returned as field errors keyed
// by option name.
func decodeInto(raw map[string]any, out any) ([]FieldError, error) {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decoding options: %w", err)
	}

	err = validate.Struct(out)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, fmt.Errorf("validating options: %w", err)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Key:     optionName(out, fe),
			Message: describe(fe),
		})
	}
	return fields, nil
}

// optionName maps a validator error back to the option key using the
// mapstructure tag of the failing field.
func optionName(out any, fe validator.FieldError) string {
	name := fe.StructField()
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	if key, ok := tagIndex(out)[name]; ok {
		return key
	}
	return strings.ToLower(name)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "ne":
		return "must not be " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " element(s)"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "unique":
		return "must not contain duplicates"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
