package dashboard

import (
	"errors"
	"sync"
)

// ErrStale is returned when a computation finished after its view had
// already moved on to a newer selection.
var ErrStale = errors.New("result superseded by a newer request")

// Generations keys in-flight computations by view. A result may only be
// applied while its generation is still the latest one begun for that view.
type Generations struct {
	mu   sync.Mutex
	gens map[string]uint64
}

func NewGenerations() *Generations {
	return &Generations{gens: make(map[string]uint64)}
}

// Begin starts a new computation for key and returns its generation.
func (g *Generations) Begin(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gens[key]++
	return g.gens[key]
}

// Current returns the latest generation begun for key.
func (g *Generations) Current(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gens[key]
}

// Commit runs apply under the lock if gen is still current for key and
// reports whether it did.
func (g *Generations) Commit(key string, gen uint64, apply func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gens[key] != gen {
		return false
	}
	if apply != nil {
		apply()
	}
	return true
}

// InvalidateAll bumps every known key so that nothing in flight commits.
func (g *Generations) InvalidateAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k := range g.gens {
		g.gens[k]++
	}
}
