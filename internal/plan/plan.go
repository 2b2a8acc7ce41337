// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package plan reads pipeline definitions from YAML files and turns them
// into validated stage descriptors.
package plan

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/reaction-engine/internal/params"
	"github.com/pdiddy/reaction-engine/internal/stage"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

//go:embed schema.json
var schemaJSON string

var schema = mustSchema()

func mustSchema() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("plan schema: %v", err))
	}
	return s
}

// Plan is a named, ordered list of stages.
type Plan struct {
	Name        string             `yaml:"name" json:"name"`
	Description string             `yaml:"description,omitempty" json:"description,omitempty"`
	Resume      types.ResumePolicy `yaml:"resume,omitempty" json:"resume,omitempty"`

	// Strict rejects unknown option names. Nil means true.
	Strict *bool `yaml:"strict,omitempty" json:"strict,omitempty"`

	Stages []Stage `yaml:"stages" json:"stages"`
}

// Stage is the file form of one stage.
type Stage struct {
	Name    string               `yaml:"name" json:"name"`
	Kind    types.SimulationKind `yaml:"kind" json:"kind"`
	Inputs  []string             `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Output  string               `yaml:"output" json:"output"`
	Options map[string]any       `yaml:"options" json:"options"`
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a YAML plan and checks it against the plan schema.
// Schema violations are returned as a *params.ConfigurationError.
func Parse(data []byte) (*Plan, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if doc == nil {
		return nil, &params.ConfigurationError{Fields: []params.FieldError{{Key: "(root)", Message: "plan is empty"}}}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validating plan: %w", err)
	}
	if !result.Valid() {
		cerr := &params.ConfigurationError{}
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "" {
				field = "(root)"
			}
			cerr.Fields = append(cerr.Fields, params.FieldError{Key: field, Message: desc.Description()})
		}
		return nil, cerr
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	return &p, nil
}

// Policy returns the option policy for stage records.
func (p *Plan) Policy() params.Policy {
	if p.Strict != nil && !*p.Strict {
		return params.Lenient
	}
	return params.Strict
}

// Descriptors validates every stage record and returns the descriptors in
// plan order. Errors from all stages are joined.
func (p *Plan) Descriptors() ([]stage.Descriptor, error) {
	out := make([]stage.Descriptor, 0, len(p.Stages))
	var errs []error
	for _, s := range p.Stages {
		d, err := stage.FromOptions(s.Name, s.Kind, s.Inputs, s.Options, s.Output, p.Policy())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, d)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Marshal encodes p as YAML.
func (p *Plan) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding plan: %w", err)
	}
	return data, nil
}

// Write encodes p to path, refusing to replace an existing file unless
// force is set.
func (p *Plan) Write(path string, force bool) error {
	data, err := p.Marshal()
	if err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("writing plan: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing plan: %w", err)
	}
	return f.Close()
}
