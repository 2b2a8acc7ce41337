// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errTransient = errors.New("transient")

func init() {
	// Use a tiny base delay so tests finish quickly.
	BaseDelay = 1 * time.Millisecond
}

func quietPolicy(attempts int) Policy {
	return Policy{
		Attempts:  attempts,
		Retryable: func(err error) bool { return errors.Is(err, errTransient) },
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestDo(t *testing.T) {
	tests := []struct {
		name      string
		attempts  int
		failures  int
		failWith  error
		wantCalls int
		wantErr   error
	}{
		{"immediate success", 3, 0, nil, 1, nil},
		{"retries then succeeds", 3, 2, errTransient, 3, nil},
		{"exhausts attempts", 3, 10, errTransient, 3, errTransient},
		{"default attempts", 0, 10, errTransient, 3, errTransient},
		{"permanent error is not retried", 5, 10, io.ErrUnexpectedEOF, 1, io.ErrUnexpectedEOF},
		{"single attempt", 1, 10, errTransient, 1, errTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), quietPolicy(tt.attempts), "save", func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.failWith
				}
				return nil
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDo_NilRetryableIsPermanent(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 5}, "save", func(context.Context) error {
		calls++
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	p := quietPolicy(5)
	// Use a longer delay so the context cancels during the wait.
	p.Delay = 500 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := Do(ctx, p, "save", func(context.Context) error { return errTransient })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
