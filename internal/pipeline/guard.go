// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"errors"
	"sync"

	"github.com/pdiddy/reaction-engine/internal/checkpoint"
)

// ErrInFlight is returned when a checkpoint id is already being written
// by another stage in this process.
var ErrInFlight = errors.New("checkpoint write already in flight")

// guard tracks checkpoint ids with a save in progress.
type guard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// inFlight is shared by every orchestrator in the process.
var inFlight = &guard{held: make(map[string]struct{})}

// Claim reserves id. A held id yields a *checkpoint.PersistenceError
// wrapping ErrInFlight.
func (g *guard) Claim(id string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[id]; ok {
		return nil, &checkpoint.PersistenceError{ID: id, Op: "claim", Err: ErrInFlight}
	}
	g.held[id] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, id)
			g.mu.Unlock()
		})
	}, nil
}
