// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package plan

import (
	"github.com/pdiddy/reaction-engine/pkg/types"
)

// DefaultMethods are the semi-empirical methods used to refine the scan.
var DefaultMethods = []string{"am1", "pm3", "rm1", "pm6", "pm7"}

// Reaction returns the five-stage triosephosphate isomerase reaction path
// workflow: prepare the MM system from force-field files, prune and relax
// it, optimise with a QC/MM model, scan the proton transfer coordinate,
// and refine the scan energies with several semi-empirical methods.
func Reaction(hamiltonian string, methods []string) *Plan {
	if hamiltonian == "" {
		hamiltonian = "rm1"
	}
	if len(methods) == 0 {
		methods = DefaultMethods
	}
	methodList := make([]any, len(methods))
	for i, m := range methods {
		methodList[i] = m
	}

	const (
		prepared = "Prep_system/7tim"
		pruned   = "Prep_prune/7tim_optMM"
	)
	qcmm := "QM_opt/7tim_" + hamiltonian + "_opt_PF"
	scan := "Multiple_Distance_" + hamiltonian + "/ScanTraj"
	strict := true

	return &Plan{
		Name:        "7tim_" + hamiltonian,
		Description: "TIM proton transfer reaction path with " + hamiltonian + " QC/MM",
		Resume:      types.ResumeSkip,
		Strict:      &strict,
		Stages: []Stage{
			{
				Name:   "Prep_system",
				Kind:   types.KindGeometryOptimization,
				Output: prepared,
				Options: map[string]any{
					"input_type":      "forcefield",
					"crd_file":        "7tim.crd",
					"top_file":        "7tim.top",
					"save_format":     ".dcd",
					"save_frequency":  20,
					"rms_gradient":    2.0,
					"max_iterations":  2200,
					"trajectory_name": "opt_full_tim.ptGeo",
				},
			},
			{
				Name:   "Prep_prune",
				Kind:   types.KindGeometryOptimization,
				Inputs: []string{prepared},
				Output: pruned,
				Options: map[string]any{
					"input_type":             "checkpoint",
					"spherical_prune":        "*:LIG.248:C02",
					"spherical_prune_radius": 25.0,
					"set_fixed_atoms":        "*:LIG.248:C02",
					"free_atoms_radius":      20.0,
					"save_format":            ".dcd",
					"save_frequency":         20,
					"rms_gradient":           1.0,
					"max_iterations":         2200,
					"trajectory_name":        "opt_pruned_tim.ptGeo",
				},
			},
			{
				Name:   "QM_opt",
				Kind:   types.KindGeometryOptimization,
				Inputs: []string{pruned},
				Output: qcmm,
				Options: map[string]any{
					"input_type":      "checkpoint",
					"energy_model":    "qm",
					"hamiltonian":     hamiltonian,
					"method_class":    "SMO",
					"qc_region":       []any{"*:LIG.248:*", "*:GLU.164:*", "*:HIE.94:*"},
					"qc_charge":       -3,
					"save_format":     ".dcd",
					"save_frequency":  20,
					"rms_gradient":    0.1,
					"max_iterations":  2200,
					"trajectory_name": "opt_qcmm_tim_" + hamiltonian + ".ptGeo",
				},
			},
			{
				Name:   "Multiple_Distance_" + hamiltonian,
				Kind:   types.KindRelaxedSurfaceScan,
				Inputs: []string{qcmm},
				Output: scan,
				Options: map[string]any{
					"input_type":      "checkpoint",
					"rc_atoms":        []any{"*:LIG.*:C02", "*:LIG.*:H02", "*:GLU.164:OE2"},
					"rc_type":         "multiple_distance",
					"mass_constraint": true,
					"rc_increment":    0.1,
					"rc_steps":        20,
					"force_constants": []any{4000.0, 4000.0},
					"optimizer":       "ConjugateGradient",
					"max_iterations":  2200,
				},
			},
			{
				Name:   "Mopac_Refinement",
				Kind:   types.KindEnergyRefinement,
				Inputs: []string{scan},
				Output: "Mopac_Refinement/7tim_" + hamiltonian,
				Options: map[string]any{
					"input_type":      "checkpoint",
					"energy_model":    "qm",
					"hamiltonian":     hamiltonian,
					"method_class":    "SMO",
					"qc_center":       "*:LIG.*:H02",
					"qc_radius":       5.0,
					"rc_atoms":        []any{"*:LIG.*:C02", "*:LIG.*:H02"},
					"rc_type":         "distance",
					"mass_constraint": true,
					"methods":         methodList,
					"max_threads":     4,
					"charge":          -2,
					"multiplicity":    1,
					"software":        "mopac",
					"bins":            20,
				},
			},
		},
	}
}
