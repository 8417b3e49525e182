// Package buildings stores placed building instances by coordinate and pools
// the warehouses of a territory into one logical ledger.
//
// Locking is two-level: one lock guards the coordinate index and each
// instance carries its own lock for its stock. The index lock is never held
// while waiting on an instance lock.
package buildings

import (
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/talgya/mini-city/internal/economy"
	"github.com/talgya/mini-city/internal/observe"
	"github.com/talgya/mini-city/internal/tile"
	"github.com/talgya/mini-city/internal/world"
)

var (
	ErrNoBuilding = errors.New("no building at coordinate")
	ErrBusy       = errors.New("building is locked")
)

// BuildingCreated is emitted when an instance is placed.
type BuildingCreated struct {
	Coordinate world.HexCoord `json:"coordinate"`
	Tile       tile.Name      `json:"tile"`
	Epoch      uint64         `json:"epoch"` // Clock epoch when the change was made
}

// BuildingDestroyed is emitted when an instance is removed.
type BuildingDestroyed struct {
	Coordinate world.HexCoord `json:"coordinate"`
	Epoch      uint64         `json:"epoch"`
}

// Buildings maps coordinates to building instances. At most one instance
// stands on a coordinate.
type Buildings struct {
	mu        sync.RWMutex
	instances map[world.HexCoord]*tile.Instance
	epoch     func() uint64

	emitMu     sync.Mutex // keeps events in mutation order
	dispatcher *observe.Dispatcher
	created    *observe.Observers[BuildingCreated]
	destroyed  *observe.Observers[BuildingDestroyed]
}

// New creates an empty registry.
func New() *Buildings {
	d := observe.NewDispatcher(observe.DefaultQueue)
	return &Buildings{
		instances:  make(map[world.HexCoord]*tile.Instance),
		dispatcher: d,
		created:    observe.NewWithDispatcher[BuildingCreated](d),
		destroyed:  observe.NewWithDispatcher[BuildingDestroyed](d),
	}
}

// SetEpochSource makes every later event carry the epoch fn reports at the
// moment of the change.
func (b *Buildings) SetEpochSource(fn func() uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.epoch = fn
}

// stamp reads the current epoch. The caller holds b.mu.
func (b *Buildings) stamp() uint64 {
	if b.epoch == nil {
		return 0
	}
	return b.epoch()
}

// Created returns the registry of creation observers.
func (b *Buildings) Created() *observe.Observers[BuildingCreated] { return b.created }

// Destroyed returns the registry of destruction observers.
func (b *Buildings) Destroyed() *observe.Observers[BuildingDestroyed] { return b.destroyed }

// Sync waits until every event emitted so far has been delivered.
func (b *Buildings) Sync() { b.dispatcher.Sync() }

// Close stops event delivery.
func (b *Buildings) Close() { b.dispatcher.Close() }

func (b *Buildings) lookup(c world.HexCoord) (*tile.Instance, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	inst, ok := b.instances[c]
	return inst, ok
}

// Len returns the number of placed buildings.
func (b *Buildings) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.instances)
}

// Coordinates returns every occupied coordinate, row by row.
func (b *Buildings) Coordinates() []world.HexCoord {
	b.mu.RLock()
	coords := slices.Collect(maps.Keys(b.instances))
	b.mu.RUnlock()
	slices.SortFunc(coords, world.CompareCoords)
	return coords
}

// Occupied reports whether a building stands at c.
func (b *Buildings) Occupied(c world.HexCoord) bool {
	_, ok := b.lookup(c)
	return ok
}

// TileAt returns the type of the building at c without locking it.
func (b *Buildings) TileAt(c world.HexCoord) (*tile.Tile, bool) {
	inst, ok := b.lookup(c)
	if !ok {
		return nil, false
	}
	return inst.Tile(), true
}

// Get read-locks the building at c.
func (b *Buildings) Get(c world.HexCoord) (*Ref, bool) {
	inst, ok := b.lookup(c)
	if !ok {
		return nil, false
	}
	inst.RLock()
	return &Ref{coord: c, inst: inst}, true
}

// GetMut write-locks the building at c, waiting for other holders.
func (b *Buildings) GetMut(c world.HexCoord) (*Ref, bool) {
	inst, ok := b.lookup(c)
	if !ok {
		return nil, false
	}
	inst.Lock()
	return &Ref{coord: c, inst: inst, write: true}, true
}

// TryGetMut write-locks the building at c if nobody else holds it.
func (b *Buildings) TryGetMut(c world.HexCoord) (*Ref, error) {
	inst, ok := b.lookup(c)
	if !ok {
		return nil, ErrNoBuilding
	}
	if !inst.TryLock() {
		return nil, ErrBusy
	}
	return &Ref{coord: c, inst: inst, write: true}, nil
}

// SpinGetMut write-locks the building at c, retrying a non-blocking acquire
// with randomized exponential backoff.
func (b *Buildings) SpinGetMut(c world.HexCoord) (*Ref, bool) {
	inst, ok := b.lookup(c)
	if !ok {
		return nil, false
	}
	var bo backoff
	for !inst.TryLock() {
		bo.wait()
	}
	return &Ref{coord: c, inst: inst, write: true}, true
}

// SpinPair write-locks the buildings at a and b. It blocks only on a while
// holding nothing; b is tried without blocking, and on failure a is released
// before backing off, so two goroutines pairing the same buildings in
// opposite order cannot deadlock. It returns the number of retries.
func (b *Buildings) SpinPair(a, c world.HexCoord) (*Ref, *Ref, int, bool) {
	if a == c {
		return nil, nil, 0, false
	}
	first, ok := b.lookup(a)
	if !ok {
		return nil, nil, 0, false
	}
	second, ok := b.lookup(c)
	if !ok {
		return nil, nil, 0, false
	}
	var bo backoff
	for {
		first.Lock()
		if second.TryLock() {
			return &Ref{coord: a, inst: first, write: true},
				&Ref{coord: c, inst: second, write: true},
				bo.retries, true
		}
		first.Unlock()
		bo.wait()
	}
}

// Set places inst at c, replacing any previous building, or removes the
// building at c when inst is nil. Each change emits one event.
func (b *Buildings) Set(c world.HexCoord, inst *tile.Instance) {
	b.mu.Lock()
	_, existed := b.instances[c]
	if inst == nil {
		if !existed {
			b.mu.Unlock()
			return
		}
		delete(b.instances, c)
	} else {
		b.instances[c] = inst
	}
	epoch := b.stamp()
	b.emitMu.Lock()
	b.mu.Unlock()
	defer b.emitMu.Unlock()

	if inst == nil {
		b.destroyed.NotifyAll(BuildingDestroyed{Coordinate: c, Epoch: epoch})
	} else {
		b.created.NotifyAll(BuildingCreated{Coordinate: c, Tile: inst.Tile().Name, Epoch: epoch})
	}
}

// TrySet places inst at c only if c is free.
func (b *Buildings) TrySet(c world.HexCoord, inst *tile.Instance) bool {
	b.mu.Lock()
	if _, taken := b.instances[c]; taken {
		b.mu.Unlock()
		return false
	}
	b.instances[c] = inst
	epoch := b.stamp()
	b.emitMu.Lock()
	b.mu.Unlock()
	defer b.emitMu.Unlock()

	b.created.NotifyAll(BuildingCreated{Coordinate: c, Tile: inst.Tile().Name, Epoch: epoch})
	return true
}

// Ref is a locked handle on one building. Release it exactly once.
type Ref struct {
	coord    world.HexCoord
	inst     *tile.Instance
	write    bool
	released bool
}

// Coordinate returns where the building stands.
func (r *Ref) Coordinate() world.HexCoord { return r.coord }

// Instance returns the locked instance.
func (r *Ref) Instance() *tile.Instance { return r.inst }

// Tile returns the building type.
func (r *Ref) Tile() *tile.Tile { return r.inst.Tile() }

// State returns the live stock. Only write refs may mutate it.
func (r *Ref) State() economy.State { return r.inst.State() }

// Release unlocks the building.
func (r *Ref) Release() {
	if r.released {
		return
	}
	r.released = true
	if r.write {
		r.inst.Unlock()
	} else {
		r.inst.RUnlock()
	}
}
