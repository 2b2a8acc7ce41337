// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"fmt"
	"slices"

	"github.com/pdiddy/reaction-engine/pkg/types"
)

// transitions lists the legal successors of each non-terminal status.
// FAILED is reachable from every non-terminal status.
var transitions = map[types.StageStatus][]types.StageStatus{
	types.StatusPending:      {types.StatusLoadingInput, types.StatusSkipped},
	types.StatusLoadingInput: {types.StatusConfiguring},
	types.StatusConfiguring:  {types.StatusRunning},
	types.StatusRunning:      {types.StatusPersisting},
	types.StatusPersisting:   {types.StatusDone},
}

// CanTransition reports whether from → to is legal.
func CanTransition(from, to types.StageStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == types.StatusFailed {
		return true
	}
	return slices.Contains(transitions[from], to)
}

// machine tracks the status of one stage execution.
type machine struct {
	stage  string
	status types.StageStatus
	notify func(stage string, from, to types.StageStatus)
}

func newMachine(stage string, notify func(string, types.StageStatus, types.StageStatus)) *machine {
	return &machine{stage: stage, status: types.StatusPending, notify: notify}
}

// to moves the machine to next. An illegal transition is a programming
// error and panics.
func (m *machine) to(next types.StageStatus) {
	if !CanTransition(m.status, next) {
		panic(fmt.Sprintf("stage %s: illegal transition %s -> %s", m.stage, m.status, next))
	}
	prev := m.status
	m.status = next
	if m.notify != nil {
		m.notify(m.stage, prev, next)
	}
}
