// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package params

import (
	"strings"

	"github.com/pdiddy/reaction-engine/pkg/types"
)

// FieldError describes one invalid or missing option.
type FieldError struct {
	Key     string
	Message string
}

// ConfigurationError reports every problem found while validating a record.
type ConfigurationError struct {
	Kind   types.SimulationKind
	Stage  string
	Fields []FieldError
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid configuration")
	if e.Stage != "" {
		b.WriteString(" for stage " + e.Stage)
	}
	if e.Kind != "" {
		b.WriteString(" (" + string(e.Kind) + ")")
	}
	b.WriteString(": ")
	for i, f := range e.Fields {
		if i > 0 {
			b.WriteString("; ")
		}
		if f.Key != "" {
			b.WriteString(f.Key + " ")
		}
		b.WriteString(f.Message)
	}
	return b.String()
}

// Has reports whether key has at least one recorded problem.
func (e *ConfigurationError) Has(key string) bool {
	return e.has(key)
}

func (e *ConfigurationError) add(key, msg string) {
	e.Fields = append(e.Fields, FieldError{Key: key, Message: msg})
}

func (e *ConfigurationError) has(key string) bool {
	for _, f := range e.Fields {
		if f.Key == key {
			return true
		}
	}
	return false
}
