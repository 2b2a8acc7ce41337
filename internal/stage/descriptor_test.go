// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/reaction-engine/internal/params"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

func TestFromOptions_DefaultsCheckpointToFirstInput(t *testing.T) {
	d := optimize(t, "Prep_prune/7tim_optMM", nil)
	assert.Equal(t, "Prep_prune/7tim_optMM", d.Source())
	assert.Equal(t, []string{"Prep_prune/7tim_optMM"}, d.Inputs())
	assert.Equal(t, []string{"QM_opt/7tim_rm1_opt"}, d.Outputs())
	assert.Equal(t, types.KindGeometryOptimization, d.Kind())
}

func TestFromOptions_ForceFieldHasNoSource(t *testing.T) {
	d := prepare(t)
	assert.Empty(t, d.Source())
	assert.Empty(t, d.Inputs())
}

func TestDescriptor_RefinementOutputsPerMethod(t *testing.T) {
	d := refinement(t, "Scan/ScanTraj", 2)
	assert.Equal(t, "Mopac_Refinement/7tim", d.Output())
	assert.Equal(t, []string{
		"Mopac_Refinement/7tim_am1",
		"Mopac_Refinement/7tim_pm3",
		"Mopac_Refinement/7tim_rm1",
	}, d.Outputs())
}

func TestNew_Rejects(t *testing.T) {
	qm := params.MustNew(types.KindGeometryOptimization, map[string]any{
		"input_type":     "checkpoint",
		"checkpoint":     "Prep_prune/7tim_optMM",
		"rms_gradient":   0.5,
		"max_iterations": 100,
	})
	tests := []struct {
		name    string
		stage   string
		inputs  []string
		rec     params.Record
		output  string
		wantKey string
	}{
		{"missing name", "", []string{"Prep_prune/7tim_optMM"}, qm, "QM_opt/out", "name"},
		{"invalid record", "QM_opt", nil, params.Record{}, "QM_opt/out", "options"},
		{"checkpoint not an input", "QM_opt", []string{"Prep_system/7tim"}, qm, "QM_opt/out", params.KeyCheckpoint},
		{"bad output id", "QM_opt", []string{"Prep_prune/7tim_optMM"}, qm, "../escape", "output"},
		{"bad input id", "QM_opt", []string{"Prep_prune/7tim_optMM", "/abs"}, qm, "QM_opt/out", "inputs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.stage, tt.inputs, tt.rec, tt.output)
			var cerr *params.ConfigurationError
			require.ErrorAs(t, err, &cerr)
			assert.True(t, cerr.Has(tt.wantKey), "got %v", err)
		})
	}
}

func TestFromOptions_InvalidOptionsNameStage(t *testing.T) {
	_, err := FromOptions("QM_opt", types.KindGeometryOptimization, []string{"a/b"}, map[string]any{
		"input_type": "checkpoint",
	}, "QM_opt/out", params.Strict)
	var cerr *params.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "QM_opt", cerr.Stage)
	assert.True(t, cerr.Has(params.KeyRMSGradient))
}
