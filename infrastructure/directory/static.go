// Package directory resolves user ids to actors.
package directory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/felixgeelhaar/decision-ledger/domain/actor"
)

// Static is an in-process directory built from configuration.
type Static struct {
	mu     sync.RWMutex
	actors map[string]actor.Actor
}

// NewStatic creates a directory holding actors. Later entries with a
// duplicate id replace earlier ones.
func NewStatic(actors ...actor.Actor) *Static {
	d := &Static{actors: make(map[string]actor.Actor, len(actors))}
	for _, a := range actors {
		d.actors[a.ID] = a
	}
	return d
}

// Put adds or replaces an actor.
func (d *Static) Put(a actor.Actor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actors[a.ID] = a
}

// Resolve returns the actor for id.
func (d *Static) Resolve(_ context.Context, id string) (actor.Actor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	a, ok := d.actors[id]
	if !ok {
		return actor.Actor{}, actor.ErrActorNotFound
	}
	return a, nil
}

// ListByRoles returns every actor holding one of roles, ordered by id.
func (d *Static) ListByRoles(_ context.Context, roles []actor.Role) ([]actor.Actor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []actor.Actor
	for _, a := range d.actors {
		if slices.Contains(roles, a.Role) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var (
	_ actor.Directory = (*Static)(nil)
	_ actor.Lister    = (*Static)(nil)
)
