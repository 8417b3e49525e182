package buildings

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/mini-city/internal/economy"
	"github.com/talgya/mini-city/internal/territory"
	"github.com/talgya/mini-city/internal/world"
)

var (
	ErrUnknownTerritory = errors.New("unknown territory")
	ErrPoolShortfall    = errors.New("pool cannot absorb change")
)

// ShortfallError reports a pool change that the warehouses of a territory
// cannot absorb: not enough stock for a decrease, or not enough room for an
// increase.
type ShortfallError struct {
	Good    economy.Good
	Missing uint64
	Room    bool
}

func (e *ShortfallError) Error() string {
	if e.Room {
		return fmt.Sprintf("pool has no room for %d more %s", e.Missing, e.Good)
	}
	return fmt.Sprintf("pool is short %d %s", e.Missing, e.Good)
}

// Is makes errors.Is(err, ErrPoolShortfall) match.
func (e *ShortfallError) Is(target error) bool { return target == ErrPoolShortfall }

// Pool treats every storage building of a territory as one account. Nothing
// is cached: each freeze reads the warehouses afresh.
type Pool struct {
	buildings   *Buildings
	territories *territory.Territories
	splitter    Splitter
}

// NewPool creates a pool over b and t. A nil splitter means RoundRobin.
func NewPool(b *Buildings, t *territory.Territories, s Splitter) *Pool {
	if s == nil {
		s = RoundRobin{}
	}
	return &Pool{buildings: b, territories: t, splitter: s}
}

// Freeze read-locks every warehouse of territory id and sums their stock.
// The locks are held until Release.
func (p *Pool) Freeze(id territory.ID) (*Frozen, error) {
	refs, err := p.lockWarehouses(id, false)
	if err != nil {
		return nil, err
	}
	return newFrozen(refs), nil
}

// FreezeMut write-locks every warehouse of territory id.
func (p *Pool) FreezeMut(id territory.ID) (*FrozenMut, error) {
	refs, err := p.lockWarehouses(id, true)
	if err != nil {
		return nil, err
	}
	return &FrozenMut{Frozen: *newFrozen(refs), splitter: p.splitter}, nil
}

// lockWarehouses takes all the warehouse locks or none, walking the
// territory in coordinate order and backing off whenever one is taken.
func (p *Pool) lockWarehouses(id territory.ID, write bool) ([]*Ref, error) {
	rg, ok := p.territories.Range(id)
	if !ok {
		return nil, fmt.Errorf("territory %d: %w", id, ErrUnknownTerritory)
	}
	var refs []*Ref
	for c := range rg.All() {
		inst, ok := p.buildings.lookup(c)
		if !ok || !inst.Tile().Storage || inst.State() == nil {
			continue
		}
		refs = append(refs, &Ref{coord: c, inst: inst, write: write})
	}

	var bo backoff
	for {
		held := 0
		for _, r := range refs {
			var locked bool
			if write {
				locked = r.inst.TryLock()
			} else {
				locked = r.inst.TryRLock()
			}
			if !locked {
				break
			}
			held++
		}
		if held == len(refs) {
			return refs, nil
		}
		for _, r := range refs[:held] {
			if write {
				r.inst.Unlock()
			} else {
				r.inst.RUnlock()
			}
		}
		bo.wait()
	}
}

// Frozen is a read-only aggregate over the locked warehouses of a territory.
type Frozen struct {
	refs  []*Ref
	state economy.State
}

func newFrozen(refs []*Ref) *Frozen {
	f := &Frozen{refs: refs}
	f.recompute()
	return f
}

func (f *Frozen) recompute() {
	states := make([]economy.State, len(f.refs))
	for i, r := range f.refs {
		states[i] = r.State()
	}
	f.state = economy.Sum(states...)
}

// State returns a copy of the aggregate stock.
func (f *Frozen) State() economy.State { return f.state.Clone() }

// Affords reports whether the aggregate covers costs.
func (f *Frozen) Affords(costs economy.Costs) bool { return f.state.Affords(costs) }

// Warehouses returns the coordinates of the pooled warehouses.
func (f *Frozen) Warehouses() []world.HexCoord {
	out := make([]world.HexCoord, len(f.refs))
	for i, r := range f.refs {
		out[i] = r.coord
	}
	return out
}

// Release unlocks every warehouse.
func (f *Frozen) Release() {
	for _, r := range f.refs {
		r.Release()
	}
}

// FrozenMut is a writable aggregate. Changes are planned on copies and only
// written to the warehouses when every good can be absorbed, so a failed
// change leaves the pool untouched.
type FrozenMut struct {
	Frozen
	splitter Splitter
}

// Add credits delta to the pool.
func (f *FrozenMut) Add(delta economy.Inventory[economy.Amount]) error {
	return f.apply(delta, 1)
}

// Sub debits delta from the pool.
func (f *FrozenMut) Sub(delta economy.Inventory[economy.Amount]) error {
	return f.apply(delta, -1)
}

func (f *FrozenMut) apply(delta economy.Inventory[economy.Amount], sign int64) error {
	plans := make(map[economy.Good][]Bin)
	for _, g := range delta.Goods() {
		n := delta[g]
		if n == 0 {
			continue
		}
		have := uint64(f.state.Stock(g))
		if sign < 0 && have < uint64(n) {
			return &ShortfallError{Good: g, Missing: uint64(n) - have}
		}
		bins := f.bins(g)
		room := freeRoom(bins)
		if !f.splitter.Split(g, sign*int64(n), bins) {
			missing := uint64(n)
			if sign > 0 {
				missing -= min(room, missing)
			}
			return &ShortfallError{Good: g, Missing: missing, Room: sign > 0}
		}
		plans[g] = bins
	}

	for g, bins := range plans {
		j := 0
		for _, r := range f.refs {
			if !r.State().Has(g) {
				continue
			}
			r.State()[g] = bins[j].Stock
			j++
		}
	}
	f.recompute()
	return nil
}

// bins copies the current stock of g from every warehouse that has a slot
// for it, in warehouse order.
func (f *FrozenMut) bins(g economy.Good) []Bin {
	var bins []Bin
	for _, r := range f.refs {
		st := r.State()
		if !st.Has(g) {
			continue
		}
		limit, ok := r.Tile().Consumes.Limit(g)
		if !ok {
			limit = math.MaxUint32
		}
		bins = append(bins, Bin{Stock: st.Stock(g), Limit: limit})
	}
	return bins
}

func freeRoom(bins []Bin) uint64 {
	var room uint64
	for _, b := range bins {
		if b.Limit > b.Stock {
			room += uint64(b.Limit - b.Stock)
		}
	}
	return room
}
