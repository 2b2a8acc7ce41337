// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"

	"github.com/pdiddy/reaction-engine/internal/checkpoint"
	"github.com/pdiddy/reaction-engine/internal/engine"
	"github.com/pdiddy/reaction-engine/internal/params"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

// Classify maps a stage error to its failure kind. Unrecognised errors
// are faults.
func Classify(err error) types.FailureKind {
	var (
		cerr    *params.ConfigurationError
		corrupt *checkpoint.CorruptionError
		perr    *checkpoint.PersistenceError
		ierr    *checkpoint.InvalidStateError
		cf      *engine.ConvergenceFailure
		fault   *engine.Fault
	)
	switch {
	case err == nil:
		return types.FailureNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return types.FailureCanceled
	case errors.As(err, &cerr), errors.Is(err, checkpoint.ErrInvalidID):
		return types.FailureConfiguration
	case errors.Is(err, checkpoint.ErrNotFound):
		return types.FailureNotFound
	case errors.As(err, &corrupt):
		return types.FailureCorruption
	case errors.As(err, &perr), errors.As(err, &ierr):
		return types.FailurePersistence
	case errors.As(err, &cf):
		return types.FailureConvergence
	case errors.As(err, &fault):
		return types.FailureFault
	default:
		return types.FailureFault
	}
}
