// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package params

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/reaction-engine/pkg/types"
)

func prepareOptions() map[string]any {
	return map[string]any{
		"input_type":      "forcefield",
		"crd_file":        "7tim.crd",
		"top_file":        "7tim.top",
		"save_frequency":  20,
		"rms_gradient":    2.0,
		"max_iterations":  2200,
		"trajectory_name": "opt_full_tim.ptGeo",
	}
}

func scanOptions() map[string]any {
	return map[string]any{
		"input_type":      "checkpoint",
		"checkpoint":      "QM_opt/7tim_rm1_opt_PF",
		"rc_atoms":        []any{"*:LIG.*:C02", "*:LIG.*:H02", "*:GLU.164:OE2"},
		"rc_type":         "multiple_distance",
		"mass_constraint": true,
		"rc_increment":    0.1,
		"rc_steps":        20,
		"max_iterations":  2200,
		"force_constants": []any{4000.0, 4000.0},
	}
}

func refineOptions() map[string]any {
	return map[string]any{
		"input_type":  "checkpoint",
		"checkpoint":  "Multiple_Distance_rm1/ScanTraj",
		"methods":     []any{"am1", "pm3", "rm1", "pm6", "pm7"},
		"max_threads": 4,
		"charge":      -2,
	}
}

func requireConfigError(t *testing.T, err error, keys ...string) *ConfigurationError {
	t.Helper()
	require.Error(t, err)
	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr), "want *ConfigurationError, got %T: %v", err, err)
	for _, k := range keys {
		assert.True(t, cerr.Has(k), "expected problem for %q in %v", k, err)
	}
	return cerr
}

func TestNew_ValidRecordsApplyDefaults(t *testing.T) {
	r, err := New(types.KindGeometryOptimization, prepareOptions(), Strict)
	require.NoError(t, err)
	assert.True(t, r.Valid())
	assert.Equal(t, types.KindGeometryOptimization, r.Kind())

	opt, ok := r.Optimization()
	require.True(t, ok)
	assert.Equal(t, 2200, opt.MaxIterations)
	assert.Equal(t, 2.0, opt.RMSGradient)
	assert.Equal(t, OptimizerConjugateGradient, opt.Optimizer)
	assert.Equal(t, "mm", opt.EnergyModel)
	assert.Equal(t, 1, opt.Multiplicity)
	assert.Equal(t, ".dcd", opt.SaveFormat)
	assert.True(t, r.Explicit(KeyCrdFile))
	assert.False(t, r.Explicit(KeyOptimizer))

	_, ok = r.Scan()
	assert.False(t, ok)
}

func TestNew_MissingRequiredKeys(t *testing.T) {
	tests := []struct {
		name    string
		kind    types.SimulationKind
		opts    func() map[string]any
		drop    string
		wantKey string
	}{
		{"optimization without iteration cap", types.KindGeometryOptimization, prepareOptions, "max_iterations", "max_iterations"},
		{"optimization without tolerance", types.KindGeometryOptimization, prepareOptions, "rms_gradient", "rms_gradient"},
		{"optimization without input type", types.KindGeometryOptimization, prepareOptions, "input_type", "input_type"},
		{"forcefield input without topology", types.KindGeometryOptimization, prepareOptions, "top_file", "top_file"},
		{"scan without steps", types.KindRelaxedSurfaceScan, scanOptions, "rc_steps", "rc_steps"},
		{"scan without coordinate atoms", types.KindRelaxedSurfaceScan, scanOptions, "rc_atoms", "rc_atoms"},
		{"checkpoint input without checkpoint", types.KindRelaxedSurfaceScan, scanOptions, "checkpoint", "checkpoint"},
		{"refinement without methods", types.KindEnergyRefinement, refineOptions, "methods", "methods"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts()
			delete(opts, tt.drop)
			_, err := New(tt.kind, opts, Strict)
			cerr := requireConfigError(t, err, tt.wantKey)
			assert.Equal(t, tt.kind, cerr.Kind)
		})
	}
}

func TestNew_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		kind    types.SimulationKind
		opts    func() map[string]any
		set     map[string]any
		wantKey string
	}{
		{"negative iteration cap", types.KindGeometryOptimization, prepareOptions, map[string]any{"max_iterations": -5}, "max_iterations"},
		{"fractional iteration cap", types.KindGeometryOptimization, prepareOptions, map[string]any{"max_iterations": 10.5}, "max_iterations"},
		{"zero tolerance", types.KindGeometryOptimization, prepareOptions, map[string]any{"rms_gradient": 0.0}, "rms_gradient"},
		{"string tolerance", types.KindGeometryOptimization, prepareOptions, map[string]any{"rms_gradient": "tight"}, "rms_gradient"},
		{"unknown optimizer", types.KindGeometryOptimization, prepareOptions, map[string]any{"optimizer": "Newton"}, "optimizer"},
		{"unknown input type", types.KindGeometryOptimization, prepareOptions, map[string]any{"input_type": "pdb"}, "input_type"},
		{"negative save cadence", types.KindGeometryOptimization, prepareOptions, map[string]any{"save_frequency": -1}, "save_frequency"},
		{"zero save cadence", types.KindGeometryOptimization, prepareOptions, map[string]any{"save_frequency": 0}, "save_frequency"},
		{"prune without radius", types.KindGeometryOptimization, prepareOptions, map[string]any{"spherical_prune": "*:LIG.248:C02"}, "spherical_prune_radius"},
		{"non-positive prune radius", types.KindGeometryOptimization, prepareOptions, map[string]any{"spherical_prune": "*:LIG.248:C02", "spherical_prune_radius": -25.0}, "spherical_prune_radius"},
		{"qm without region", types.KindGeometryOptimization, prepareOptions, map[string]any{"energy_model": "qm", "hamiltonian": "rm1"}, "qc_region"},
		{"qc centre without radius", types.KindEnergyRefinement, refineOptions, map[string]any{"energy_model": "qm", "hamiltonian": "rm1", "qc_center": "*:LIG.*:H02"}, "qc_radius"},
		{"non-positive qc radius", types.KindEnergyRefinement, refineOptions, map[string]any{"energy_model": "qm", "hamiltonian": "rm1", "qc_center": "*:LIG.*:H02", "qc_radius": 0.0}, "qc_radius"},
		{"force constant count mismatch", types.KindRelaxedSurfaceScan, scanOptions, map[string]any{"force_constants": []any{4000.0}}, "force_constants"},
		{"coordinate atom count mismatch", types.KindRelaxedSurfaceScan, scanOptions, map[string]any{"rc_type": "distance"}, "rc_atoms"},
		{"zero increment", types.KindRelaxedSurfaceScan, scanOptions, map[string]any{"rc_increment": 0}, "rc_increment"},
		{"duplicate methods", types.KindEnergyRefinement, refineOptions, map[string]any{"methods": []any{"am1", "am1"}}, "methods"},
		{"zero threads", types.KindEnergyRefinement, refineOptions, map[string]any{"max_threads": 0}, "max_threads"},
		{"mixed list", types.KindEnergyRefinement, refineOptions, map[string]any{"methods": []any{"am1", 3}}, "methods"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts()
			for k, v := range tt.set {
				opts[k] = v
			}
			_, err := New(tt.kind, opts, Strict)
			requireConfigError(t, err, tt.wantKey)
		})
	}
}

func TestNew_UnknownKeysFollowPolicy(t *testing.T) {
	opts := prepareOptions()
	opts["Hamiltonian_typo"] = "rm1"

	_, err := New(types.KindGeometryOptimization, opts, Strict)
	requireConfigError(t, err, "Hamiltonian_typo")

	r, err := New(types.KindGeometryOptimization, opts, Lenient)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hamiltonian_typo"}, r.Ignored())
	assert.False(t, r.Has("Hamiltonian_typo"))
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New("molecular_dynamics", prepareOptions(), Strict)
	requireConfigError(t, err, "kind")
}

func TestNew_ScanDefaultsForceConstants(t *testing.T) {
	opts := scanOptions()
	delete(opts, "force_constants")
	r, err := New(types.KindRelaxedSurfaceScan, opts, Strict)
	require.NoError(t, err)

	scan, ok := r.Scan()
	require.True(t, ok)
	assert.Equal(t, []float64{DefaultForceConstant, DefaultForceConstant}, scan.ForceConstants)
	assert.Equal(t, 20, scan.Steps)
	assert.InDelta(t, 0.1, scan.Increment, 1e-12)
	assert.True(t, scan.MassConstraint)
}

func TestMerge_OverridePrecedence(t *testing.T) {
	base, err := New(types.KindEnergyRefinement, refineOptions(), Strict)
	require.NoError(t, err)

	override, err := New(types.KindEnergyRefinement, map[string]any{
		"input_type": "checkpoint",
		"checkpoint": "other/scan",
		"methods":    []any{"am1"},
	}, Strict)
	require.NoError(t, err)

	merged, err := base.Merge(override)
	require.NoError(t, err)

	ref, ok := merged.Refinement()
	require.True(t, ok)
	assert.Equal(t, "other/scan", ref.Checkpoint)
	assert.Equal(t, []string{"am1"}, ref.Methods)
	// Explicit base values survive even though override defaulted them.
	assert.Equal(t, 4, ref.MaxThreads)
	assert.Equal(t, -2, ref.Charge)

	// Inputs are untouched.
	orig, _ := base.Refinement()
	assert.Equal(t, "Multiple_Distance_rm1/ScanTraj", orig.Checkpoint)
	assert.Len(t, orig.Methods, 5)
}

func TestMerge_KindMismatch(t *testing.T) {
	a := MustNew(types.KindGeometryOptimization, prepareOptions())
	b := MustNew(types.KindEnergyRefinement, refineOptions())
	_, err := a.Merge(b)
	requireConfigError(t, err, "kind")
}

func TestWith_RevalidatesResult(t *testing.T) {
	r := MustNew(types.KindGeometryOptimization, prepareOptions())

	r2, err := r.With(map[string]any{"max_iterations": 10})
	require.NoError(t, err)
	opt, _ := r2.Optimization()
	assert.Equal(t, 10, opt.MaxIterations)

	_, err = r.With(map[string]any{"max_iterations": 0})
	requireConfigError(t, err, "max_iterations")

	opt, _ = r.Optimization()
	assert.Equal(t, 2200, opt.MaxIterations)
}

func TestFingerprint(t *testing.T) {
	a := MustNew(types.KindGeometryOptimization, prepareOptions())
	b := MustNew(types.KindGeometryOptimization, prepareOptions())
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)

	c, err := a.With(map[string]any{"rms_gradient": 1.0})
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestValueOf(t *testing.T) {
	v, err := ValueOf([]any{1, 2.5})
	require.NoError(t, err)
	fs, ok := v.Floats()
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2.5}, fs)

	v, err = ValueOf(3)
	require.NoError(t, err)
	n, ok := v.Int()
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, err = ValueOf(map[string]any{})
	assert.Error(t, err)
	_, err = ValueOf(nil)
	assert.Error(t, err)

	assert.True(t, Strings("a", "b").Equal(Strings("a", "b")))
	assert.False(t, Strings("a").Equal(Numbers(1)))
}
