// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package params implements validated configuration records for pipeline
// stages. A Record is an immutable mapping of option names to typed values,
// checked at construction against the vocabulary of its simulation kind.
package params

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/pdiddy/reaction-engine/pkg/types"
)

// Policy controls how unknown option names are treated.
type Policy int

const (
	// Strict rejects unknown option names.
	Strict Policy = iota
	// Lenient ignores unknown option names and reports them via Ignored.
	Lenient
)

// Record is a validated, immutable set of options for one stage.
// The zero Record is empty and invalid.
type Record struct {
	kind     types.SimulationKind
	policy   Policy
	values   map[string]Value
	explicit map[string]bool
	ignored  []string
	typed    any
}

// New validates options against the schema of kind and returns a Record.
// Options may hold Values or plain Go values as produced by a YAML or JSON
// decoder. Any failure is reported as a *ConfigurationError.
func New(kind types.SimulationKind, options map[string]any, policy Policy) (Record, error) {
	if !kind.Valid() {
		return Record{}, &ConfigurationError{
			Kind:   kind,
			Fields: []FieldError{{Key: "kind", Message: fmt.Sprintf("unknown simulation kind %q", kind)}},
		}
	}

	vals := make(map[string]Value, len(options))
	var fieldErrs []FieldError
	for _, k := range sortedKeys(options) {
		v, err := ValueOf(options[k])
		if err != nil {
			fieldErrs = append(fieldErrs, FieldError{Key: k, Message: err.Error()})
			continue
		}
		vals[k] = v
	}
	if len(fieldErrs) > 0 {
		return Record{}, &ConfigurationError{Kind: kind, Fields: fieldErrs}
	}
	return build(kind, vals, policy)
}

// MustNew is like New but panics on error. It is intended for records
// defined in code.
func MustNew(kind types.SimulationKind, options map[string]any) Record {
	r, err := New(kind, options, Strict)
	if err != nil {
		panic(err)
	}
	return r
}

func build(kind types.SimulationKind, explicitVals map[string]Value, policy Policy) (Record, error) {
	fields, order := schemaFor(kind)
	cerr := &ConfigurationError{Kind: kind}

	r := Record{
		kind:     kind,
		policy:   policy,
		values:   make(map[string]Value, len(fields)),
		explicit: make(map[string]bool, len(explicitVals)),
	}

	for _, k := range sortedKeys(explicitVals) {
		v := explicitVals[k]
		f, known := fields[k]
		if !known {
			if policy == Strict {
				cerr.add(k, "unknown option for "+string(kind))
			} else {
				r.ignored = append(r.ignored, k)
			}
			continue
		}
		if !f.typ.accepts(v) {
			cerr.add(k, fmt.Sprintf("must be a %s, got %s", f.typ, v.Kind()))
			continue
		}
		if f.typ == typeNumbers && v.Kind() == KindStrings {
			v = Numbers()
		}
		r.values[k] = v
		r.explicit[k] = true
	}

	for _, name := range order {
		f := fields[name]
		if _, ok := r.values[name]; ok {
			continue
		}
		if f.def != nil {
			r.values[name] = *f.def
			continue
		}
		if f.required && !cerr.has(name) {
			cerr.add(name, "is required")
		}
	}
	if len(cerr.Fields) > 0 {
		return Record{}, cerr
	}

	r.applyDerivedDefaults()
	r.checkConditional(cerr)
	if len(cerr.Fields) > 0 {
		return Record{}, cerr
	}

	typed, ferrs, err := r.decode(fields)
	if err != nil {
		cerr.add("", err.Error())
		return Record{}, cerr
	}
	for _, fe := range ferrs {
		cerr.add(fe.Key, fe.Message)
	}
	r.checkCrossField(typed, cerr)
	if len(cerr.Fields) > 0 {
		return Record{}, cerr
	}
	r.typed = typed
	return r, nil
}

// applyDerivedDefaults fills defaults that depend on other options.
func (r *Record) applyDerivedDefaults() {
	if r.kind != types.KindRelaxedSurfaceScan {
		return
	}
	if _, ok := r.values[KeyForceConstants]; ok {
		return
	}
	n := types.ReactionCoordinateType(r.str(KeyRCType)).Distances()
	if n == 0 {
		return
	}
	fcs := make([]float64, n)
	for i := range fcs {
		fcs[i] = DefaultForceConstant
	}
	r.values[KeyForceConstants] = Numbers(fcs...)
}

// checkConditional enforces requirements that depend on other options.
func (r *Record) checkConditional(cerr *ConfigurationError) {
	requireWith := func(trigger string, keys ...string) {
		for _, k := range keys {
			if _, ok := r.values[k]; !ok {
				cerr.add(k, "is required when "+trigger)
			}
		}
	}

	switch types.InputKind(r.str(KeyInputType)) {
	case types.InputForceField:
		requireWith("input_type is forcefield", KeyCrdFile, KeyTopFile)
	case types.InputCheckpoint:
		requireWith("input_type is checkpoint", KeyCheckpoint)
	}
	if r.str(KeySphericalPrune) != "" {
		requireWith("spherical_prune is set", KeySphericalPruneRadius)
	}
	if r.str(KeySetFixedAtoms) != "" {
		requireWith("set_fixed_atoms is set", KeyFreeAtomsRadius)
	}
	if types.EnergyModelKind(r.str(KeyEnergyModel)) == types.EnergyQM {
		requireWith("energy_model is qm", KeyHamiltonian)
		if r.str(KeyQCCenter) == "" {
			requireWith("energy_model is qm without qc_center", KeyQCRegion)
		}
	}
	if r.str(KeyQCCenter) != "" {
		requireWith("qc_center is set", KeyQCRadius)
	}
	if _, ok := r.values[KeyRCAtoms]; ok {
		requireWith("rc_atoms is set", KeyRCType)
	}
}

// checkCrossField enforces rules spanning several typed fields.
func (r *Record) checkCrossField(typed any, cerr *ConfigurationError) {
	var setup Setup
	switch t := typed.(type) {
	case *Optimization:
		setup = t.Setup
	case *Scan:
		setup = t.Setup
		want := types.ReactionCoordinateType(t.RCType).Distances()
		if want > 0 && len(t.ForceConstants) != want {
			cerr.add(KeyForceConstants, fmt.Sprintf("has %d value(s), %s coordinates need %d", len(t.ForceConstants), t.RCType, want))
		}
	case *Refinement:
		setup = t.Setup
	}

	if setup.SphericalPrune != "" && setup.PruneRadius <= 0 {
		cerr.add(KeySphericalPruneRadius, "must be greater than 0")
	}
	if setup.SetFixedAtoms != "" && setup.FreeRadius <= 0 {
		cerr.add(KeyFreeAtomsRadius, "must be greater than 0")
	}
	if setup.EnergyModel == string(types.EnergyQM) && len(setup.QCRegion) == 0 && setup.QCCenter == "" {
		cerr.add(KeyQCRegion, "must select at least one atom pattern")
	}
	if setup.QCCenter != "" && setup.QCRadius <= 0 {
		cerr.add(KeyQCRadius, "must be greater than 0")
	}
	if setup.RCType != "" && len(setup.RCAtoms) > 0 {
		want := types.ReactionCoordinateType(setup.RCType).Atoms()
		if len(setup.RCAtoms) != want {
			cerr.add(KeyRCAtoms, fmt.Sprintf("has %d pattern(s), %s coordinates need %d", len(setup.RCAtoms), setup.RCType, want))
		}
	}
}

// decode converts the values into the typed parameter struct of the kind.
func (r *Record) decode(fields map[string]field) (any, []FieldError, error) {
	raw := make(map[string]any, len(r.values))
	for k, v := range r.values {
		if fields[k].typ == typeInt {
			n, _ := v.Int()
			raw[k] = n
			continue
		}
		raw[k] = v.Any()
	}

	var out any
	switch r.kind {
	case types.KindGeometryOptimization:
		out = &Optimization{}
	case types.KindRelaxedSurfaceScan:
		out = &Scan{}
	case types.KindEnergyRefinement:
		out = &Refinement{}
	}
	ferrs, err := decodeInto(raw, out)
	return out, ferrs, err
}

// Kind returns the simulation kind the record was validated against.
func (r Record) Kind() types.SimulationKind { return r.kind }

// Valid reports whether r was produced by a successful New.
func (r Record) Valid() bool { return r.typed != nil }

// Has reports whether key has a value, explicit or defaulted.
func (r Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Get returns the value for key.
func (r Record) Get(key string) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns every key with a value, sorted.
func (r Record) Keys() []string { return sortedKeys(r.values) }

// Explicit reports whether key was given rather than defaulted.
func (r Record) Explicit(key string) bool { return r.explicit[key] }

// Ignored returns unknown keys dropped under the Lenient policy.
func (r Record) Ignored() []string { return slices.Clone(r.ignored) }

// Map returns the options as plain Go values.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v.Any()
	}
	return out
}

// Setup returns the structural options common to all kinds.
func (r Record) Setup() Setup {
	switch t := r.typed.(type) {
	case *Optimization:
		return t.Setup
	case *Scan:
		return t.Setup
	case *Refinement:
		return t.Setup
	}
	return Setup{}
}

// Optimization returns the typed options of a geometry optimization record.
func (r Record) Optimization() (Optimization, bool) {
	t, ok := r.typed.(*Optimization)
	if !ok {
		return Optimization{}, false
	}
	return *t, true
}

// Scan returns the typed options of a relaxed surface scan record.
func (r Record) Scan() (Scan, bool) {
	t, ok := r.typed.(*Scan)
	if !ok {
		return Scan{}, false
	}
	out := *t
	out.ForceConstants = slices.Clone(t.ForceConstants)
	return out, true
}

// Refinement returns the typed options of an energy refinement record.
func (r Record) Refinement() (Refinement, bool) {
	t, ok := r.typed.(*Refinement)
	if !ok {
		return Refinement{}, false
	}
	out := *t
	out.Methods = slices.Clone(t.Methods)
	return out, true
}

// Merge returns a new record holding r's options overridden by the
// explicit options of override. Both records must share a kind.
func (r Record) Merge(override Record) (Record, error) {
	if override.kind != r.kind {
		return Record{}, &ConfigurationError{
			Kind:   r.kind,
			Fields: []FieldError{{Key: "kind", Message: fmt.Sprintf("cannot merge %s record into %s record", override.kind, r.kind)}},
		}
	}
	vals := r.explicitValues()
	for k := range override.explicit {
		vals[k] = override.values[k]
	}
	return build(r.kind, vals, r.policy)
}

// With returns a new record with the given options overriding r's. The
// overrides need not form a complete record on their own.
func (r Record) With(overrides map[string]any) (Record, error) {
	vals := r.explicitValues()
	for _, k := range sortedKeys(overrides) {
		v, err := ValueOf(overrides[k])
		if err != nil {
			return Record{}, &ConfigurationError{Kind: r.kind, Fields: []FieldError{{Key: k, Message: err.Error()}}}
		}
		vals[k] = v
	}
	return build(r.kind, vals, r.policy)
}

func (r Record) explicitValues() map[string]Value {
	vals := make(map[string]Value, len(r.explicit))
	for k := range r.explicit {
		vals[k] = r.values[k]
	}
	return vals
}

// Fingerprint returns a stable SHA-256 digest of the kind and every option,
// defaults included.
func (r Record) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "kind=%s\n", r.kind)
	for _, k := range r.Keys() {
		b, _ := json.Marshal(r.values[k].Any())
		fmt.Fprintf(h, "%s=%s\n", k, b)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// String renders the record as sorted key=value pairs.
func (r Record) String() string {
	parts := make([]string, 0, len(r.values))
	for _, k := range r.Keys() {
		parts = append(parts, k+"="+r.values[k].String())
	}
	return string(r.kind) + "{" + strings.Join(parts, ", ") + "}"
}

func (r Record) str(key string) string {
	s, _ := r.values[key].Str()
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := slices.Collect(maps.Keys(m))
	sort.Strings(keys)
	return keys
}

// tagIndex maps Go field names to mapstructure option names for the
// struct pointed to by out, including squashed embedded structs.
func tagIndex(out any) map[string]string {
	idx := make(map[string]string)
	var walk func(t reflect.Type)
	walk = func(t reflect.Type) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			tag := f.Tag.Get("mapstructure")
			if f.Anonymous && strings.Contains(tag, "squash") {
				walk(f.Type)
				continue
			}
			if name, _, _ := strings.Cut(tag, ","); name != "" {
				idx[f.Name] = name
			}
		}
	}
	t := reflect.TypeOf(out)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	walk(t)
	return idx
}
