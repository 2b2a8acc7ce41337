// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stage runs one named unit of pipeline work: load or build the
// input system, configure it, run the engine, and persist the result as a
// checkpoint, skipping the work when the checkpoint already exists.
package stage

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/pdiddy/reaction-engine/internal/checkpoint"
	"github.com/pdiddy/reaction-engine/internal/params"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

// Descriptor is an immutable stage definition.
type Descriptor struct {
	name   string
	inputs []string
	record params.Record
	output string
}

// New validates a stage definition. For checkpoint input the record's
// checkpoint option must name one of inputs.
func New(name string, inputs []string, rec params.Record, output string) (Descriptor, error) {
	cerr := &params.ConfigurationError{Kind: rec.Kind(), Stage: name}
	if name == "" {
		cerr.Fields = append(cerr.Fields, params.FieldError{Key: "name", Message: "is required"})
	}
	if !rec.Valid() {
		cerr.Fields = append(cerr.Fields, params.FieldError{Key: "options", Message: "record was not validated"})
		return Descriptor{}, cerr
	}

	d := Descriptor{name: name, inputs: slices.Clone(inputs), record: rec, output: output}
	for _, id := range d.inputs {
		if err := checkpoint.ValidateID(id); err != nil {
			cerr.Fields = append(cerr.Fields, params.FieldError{Key: "inputs", Message: err.Error()})
		}
	}
	for _, id := range d.Outputs() {
		if err := checkpoint.ValidateID(id); err != nil {
			cerr.Fields = append(cerr.Fields, params.FieldError{Key: "output", Message: err.Error()})
		}
	}

	setup := rec.Setup()
	if types.InputKind(setup.InputType) == types.InputCheckpoint && !slices.Contains(d.inputs, setup.Checkpoint) {
		cerr.Fields = append(cerr.Fields, params.FieldError{
			Key:     params.KeyCheckpoint,
			Message: fmt.Sprintf("%q is not one of the stage inputs %v", setup.Checkpoint, d.inputs),
		})
	}
	if len(cerr.Fields) > 0 {
		return Descriptor{}, cerr
	}
	return d, nil
}

// FromOptions builds the record and the descriptor in one step. When the
// stage reads a checkpoint and options name none, the first input is
// used.
func FromOptions(name string, kind types.SimulationKind, inputs []string, options map[string]any, output string, policy params.Policy) (Descriptor, error) {
	opts := maps.Clone(options)
	if opts == nil {
		opts = make(map[string]any)
	}
	if opts[params.KeyInputType] == string(types.InputCheckpoint) && len(inputs) > 0 {
		if _, ok := opts[params.KeyCheckpoint]; !ok {
			opts[params.KeyCheckpoint] = inputs[0]
		}
	}
	rec, err := params.New(kind, opts, policy)
	if err != nil {
		var cerr *params.ConfigurationError
		if errors.As(err, &cerr) {
			cerr.Stage = name
		}
		return Descriptor{}, err
	}
	return New(name, inputs, rec, output)
}

func (d Descriptor) Name() string { return d.name }

// Inputs returns the checkpoint ids the stage reads.
func (d Descriptor) Inputs() []string { return slices.Clone(d.inputs) }

func (d Descriptor) Record() params.Record { return d.record }

func (d Descriptor) Kind() types.SimulationKind { return d.record.Kind() }

// Output returns the declared output id. For an energy refinement it is
// the prefix of the per-method outputs.
func (d Descriptor) Output() string { return d.output }

// Outputs returns every checkpoint id the stage owns.
func (d Descriptor) Outputs() []string {
	if ref, ok := d.record.Refinement(); ok {
		out := make([]string, len(ref.Methods))
		for i, m := range ref.Methods {
			out[i] = MethodOutput(d.output, m)
		}
		return out
	}
	return []string{d.output}
}

// Source returns the checkpoint the stage loads, or "" when it builds its
// system from force-field files.
func (d Descriptor) Source() string {
	s := d.record.Setup()
	if types.InputKind(s.InputType) == types.InputCheckpoint {
		return s.Checkpoint
	}
	return ""
}

// MethodOutput names the checkpoint of one refinement method.
func MethodOutput(prefix, method string) string {
	return prefix + "_" + method
}
