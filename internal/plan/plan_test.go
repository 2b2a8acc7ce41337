// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/reaction-engine/internal/params"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

const twoStagePlan = `
name: 7tim-short
resume: rerun-changed
stages:
  - name: prepare
    kind: geometry_optimization
    output: Prep_system/7tim
    options:
      input_type: forcefield
      crd_file: 7tim.crd
      top_file: 7tim.top
      rms_gradient: 2
      max_iterations: 2200
  - name: prune
    kind: geometry_optimization
    inputs: [Prep_system/7tim]
    output: Prep_prune/7tim_optMM
    options:
      input_type: checkpoint
      spherical_prune: "*:LIG.248:C02"
      spherical_prune_radius: 25
      rms_gradient: 1
      max_iterations: 2200
`

func TestParse_ValidPlan(t *testing.T) {
	p, err := Parse([]byte(twoStagePlan))
	require.NoError(t, err)
	assert.Equal(t, "7tim-short", p.Name)
	assert.Equal(t, types.ResumeRerunChanged, p.Resume)
	assert.Equal(t, params.Strict, p.Policy())

	ds, err := p.Descriptors()
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, "prune", ds[1].Name())
	assert.Equal(t, "Prep_system/7tim", ds[1].Source())
	assert.Empty(t, ds[0].Source())
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty document", ``, "plan is empty"},
		{"no stages", `name: x`, "stages is required"},
		{"unknown top-level key", "name: x\nextra: 1\nstages: []", "Additional property extra"},
		{"empty stage list", "name: x\nstages: []", "stages"},
		{"unknown kind", `
name: x
stages:
  - {name: a, kind: molecular_dynamics, output: A/a, options: {input_type: forcefield}}
`, "stages.0.kind"},
		{"bad output id", `
name: x
stages:
  - {name: a, kind: geometry_optimization, output: ../a, options: {input_type: forcefield}}
`, "stages.0.output"},
		{"missing input type", `
name: x
stages:
  - {name: a, kind: geometry_optimization, output: A/a, options: {crd_file: a.crd}}
`, "input_type is required"},
		{"bad resume policy", "name: x\nresume: sometimes\nstages: [{name: a, kind: geometry_optimization, output: A/a, options: {input_type: forcefield}}]", "resume"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			var cerr *params.ConfigurationError
			require.ErrorAs(t, err, &cerr)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("name: [unclosed"))
	assert.ErrorContains(t, err, "parsing YAML")
}

func TestDescriptors_JoinsStageErrors(t *testing.T) {
	p, err := Parse([]byte(`
name: broken
stages:
  - name: a
    kind: geometry_optimization
    output: A/a
    options: {input_type: forcefield, crd_file: a.crd, rms_gradient: 1, max_iterations: 10}
  - name: b
    kind: energy_refinement
    inputs: [A/a]
    output: B/b
    options: {input_type: checkpoint, methods: []}
`))
	require.NoError(t, err)

	_, err = p.Descriptors()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage a")
	assert.Contains(t, err.Error(), "top_file")
	assert.Contains(t, err.Error(), "stage b")
}

func TestDescriptors_LenientPlanIgnoresUnknownOptions(t *testing.T) {
	doc := `
name: lenient
strict: false
stages:
  - name: a
    kind: geometry_optimization
    output: A/a
    options: {input_type: forcefield, crd_file: a.crd, top_file: a.top, rms_gradient: 1, max_iterations: 5, temperature: 300}
`
	p, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, params.Lenient, p.Policy())
	ds, err := p.Descriptors()
	require.NoError(t, err)
	assert.Equal(t, []string{"temperature"}, ds[0].Record().Ignored())
}

func TestReaction_Template(t *testing.T) {
	p := Reaction("am1", nil)
	ds, err := p.Descriptors()
	require.NoError(t, err)
	require.Len(t, ds, 5)

	names := make([]string, len(ds))
	for i, d := range ds {
		names[i] = d.Name()
	}
	assert.Equal(t, []string{"Prep_system", "Prep_prune", "QM_opt", "Multiple_Distance_am1", "Mopac_Refinement"}, names)
	assert.Equal(t, "QM_opt/7tim_am1_opt_PF", ds[2].Output())
	assert.Equal(t, types.KindRelaxedSurfaceScan, ds[3].Kind())
	assert.Equal(t, []string{
		"Mopac_Refinement/7tim_am1_am1",
		"Mopac_Refinement/7tim_am1_pm3",
		"Mopac_Refinement/7tim_am1_rm1",
		"Mopac_Refinement/7tim_am1_pm6",
		"Mopac_Refinement/7tim_am1_pm7",
	}, ds[4].Outputs())

	scan, ok := ds[3].Record().Scan()
	require.True(t, ok)
	assert.Equal(t, 20, scan.Steps)
	assert.Equal(t, []float64{4000, 4000}, scan.ForceConstants)

	ref, ok := ds[4].Record().Refinement()
	require.True(t, ok)
	assert.Equal(t, 4, ref.MaxThreads)
	assert.Equal(t, "qm", ref.EnergyModel)
	assert.Equal(t, "am1", ref.Hamiltonian)
	assert.Equal(t, "*:LIG.*:H02", ref.QCCenter)
	assert.Equal(t, 5.0, ref.QCRadius)
	assert.Empty(t, ref.QCRegion)
}

func TestReaction_SurvivesFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	orig := Reaction("rm1", []string{"am1", "pm7"})
	require.NoError(t, orig.Write(path, false))

	loaded, err := Load(path)
	require.NoError(t, err)
	want, err := orig.Descriptors()
	require.NoError(t, err)
	got, err := loaded.Descriptors()
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Record().Fingerprint(), got[i].Record().Fingerprint(), want[i].Name())
		assert.Equal(t, want[i].Outputs(), got[i].Outputs())
	}
}

func TestWrite_RefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keep me"), 0o644))

	err := Reaction("", nil).Write(path, false)
	assert.Error(t, err)
	data, _ := os.ReadFile(path)
	assert.Equal(t, "keep me", string(data))

	require.NoError(t, Reaction("", nil).Write(path, true))
	_, err = Load(path)
	assert.NoError(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
