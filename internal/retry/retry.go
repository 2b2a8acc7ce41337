// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry retries transient failures with exponential backoff.
package retry

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// BaseDelay is the default first backoff delay. Tests override this to
// avoid real sleeps.
var BaseDelay = 1 * time.Second

const defaultAttempts = 3

// Policy bounds a retry loop.
type Policy struct {
	// Attempts is the total number of calls, including the first. Zero
	// selects the default (3).
	Attempts int

	// Delay is the first backoff delay; it doubles on each retry. Zero
	// selects BaseDelay.
	Delay time.Duration

	// Retryable decides whether an error is transient. A nil Retryable
	// treats every error as permanent.
	Retryable func(error) bool

	// Logger receives one record per retry. Nil uses slog.Default.
	Logger *slog.Logger
}

// Do calls fn until it succeeds, returns a permanent error, or the
// attempts are exhausted. The delay doubles after each failed attempt:
// with the default 1 s base the waits are 1 s, 2 s, 4 s, ...
//
// If the context is cancelled during a backoff wait Do returns ctx.Err().
// After exhausting attempts the last error is returned so the caller can
// classify it.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	delay := p.Delay
	if delay <= 0 {
		delay = BaseDelay
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if attempt >= attempts {
			return err
		}

		backoff := time.Duration(math.Pow(2, float64(attempt-1))) * delay
		logger.Warn("transient failure, retrying",
			"op", op, "attempt", attempt, "max_attempts", attempts,
			"backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}
