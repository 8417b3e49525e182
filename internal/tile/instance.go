package tile

import (
	"fmt"
	"sync"

	"github.com/talgya/mini-city/internal/economy"
)

// Instance is one placed building. The tile is immutable; the state is owned
// by the instance and guarded by its lock. Every method that touches state
// expects the caller to hold the lock in the right mode.
type Instance struct {
	mu    sync.RWMutex
	tile  *Tile
	state economy.State
}

// NewInstance creates a building of type t with empty stock.
func NewInstance(t *Tile) *Instance {
	return &Instance{
		tile:  t,
		state: economy.NewState(t.Consumes, t.Produces),
	}
}

func (i *Instance) Lock() { i.mu.Lock() }
func (i *Instance) Unlock() { i.mu.Unlock() }
func (i *Instance) RLock() { i.mu.RLock() }
func (i *Instance) RUnlock() { i.mu.RUnlock() }
func (i *Instance) TryLock() bool { return i.mu.TryLock() }
func (i *Instance) TryRLock() bool { return i.mu.TryRLock() }

// Tile returns the building type.
func (i *Instance) Tile() *Tile { return i.tile }

// State returns the live stock, nil for stateless buildings. Mutating it
// requires the write lock.
func (i *Instance) State() economy.State { return i.state }

// Snapshot copies the stock. Requires at least the read lock.
func (i *Instance) Snapshot() economy.State { return i.state.Clone() }

// Available returns how much of g the building hands to neighbors. Storage
// offers everything; other buildings keep their recipe inputs.
func (i *Instance) Available(g economy.Good) economy.Amount {
	if i.state == nil {
		return 0
	}
	if !i.tile.Storage && i.tile.Produces.IsInput(g) {
		return 0
	}
	return i.state.Stock(g)
}

// room returns how many more units of g fit under the Consumes ceiling.
func (i *Instance) room(g economy.Good) economy.Amount {
	limit, ok := i.tile.Consumes.Limit(g)
	if !ok {
		return 0
	}
	stock := i.state.Stock(g)
	if stock >= limit {
		return 0
	}
	return limit - stock
}

// Consume pulls consumed goods from neighbor into i, never beyond i's
// ceilings. Goods i yields itself are not pulled, and storage buildings do
// not pull from each other. Both instances must be write-locked by the
// caller. It returns the number of units moved.
func (i *Instance) Consume(neighbor *Instance) uint64 {
	if i == neighbor || i.state == nil || neighbor.state == nil {
		return 0
	}
	if i.tile.Storage && neighbor.tile.Storage {
		return 0
	}
	var moved uint64
	for _, g := range i.tile.Consumes.Inventory().Goods() {
		if _, own := i.tile.Yields[g]; own {
			continue
		}
		n := min(neighbor.Available(g), i.room(g))
		if n == 0 {
			continue
		}
		if !neighbor.state.Debit(g, n) {
			continue
		}
		i.state.Credit(g, n)
		moved += uint64(n)
	}
	return moved
}

// Yield harvests the tile's yields, up to the Consumes ceiling. Requires the
// write lock.
func (i *Instance) Yield() uint64 {
	if i.state == nil {
		return 0
	}
	var harvested uint64
	for _, g := range i.tile.Yields.Goods() {
		n := min(i.tile.Yields[g], i.room(g))
		if n > 0 && i.state.Credit(g, n) {
			harvested += uint64(n)
		}
	}
	return harvested
}

// Produce runs every recipe as often as the stock allows. Passes over the
// recipes repeat until one pass produces nothing, so outputs that feed other
// recipes are used within the same call. It returns the number of units
// produced. Requires the write lock.
func (i *Instance) Produce() uint64 {
	if i.state == nil || len(i.tile.Produces) == 0 {
		return 0
	}
	outputs := i.tile.Produces.Outputs()
	var produced uint64
	for {
		progress := false
		for _, out := range outputs {
			if i.runRecipe(out) {
				produced++
				progress = true
			}
		}
		if !progress {
			return produced
		}
	}
}

// runRecipe makes one unit of out. A failed attempt restores every input it
// already debited.
func (i *Instance) runRecipe(out economy.Good) bool {
	recipe := i.tile.Produces[out]
	inputs := recipe.Inventory().Goods()
	for _, g := range inputs {
		if !i.state.Has(g) {
			panic(fmt.Sprintf("invariant: %s recipe for %s uses undeclared input %s", i.tile.Name, out, g))
		}
	}
	for n, g := range inputs {
		if !i.state.Debit(g, recipe[g]) {
			for _, done := range inputs[:n] {
				i.state.Credit(done, recipe[done])
			}
			return false
		}
	}
	i.state.Credit(out, 1)
	return true
}
