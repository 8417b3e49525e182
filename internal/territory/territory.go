// Package territory tracks which claimed region each coordinate belongs to.
package territory

import (
	"maps"
	"slices"
	"sync"

	"github.com/talgya/mini-city/internal/world"
)

// ID identifies one claimed region. IDs start at 1 and are never reused.
type ID uint32

// Territories maps coordinates to territory ids, with a reverse index from
// each id to its members. Both indexes are guarded by one lock and always
// agree; a territory without members does not exist.
type Territories struct {
	mu      sync.RWMutex
	byCoord map[world.HexCoord]ID
	byID    map[ID]map[world.HexCoord]struct{}
	nextID  ID
}

// New creates an empty store.
func New() *Territories {
	return &Territories{
		byCoord: make(map[world.HexCoord]ID),
		byID:    make(map[ID]map[world.HexCoord]struct{}),
		nextID:  1,
	}
}

// Get returns the territory c belongs to.
func (t *Territories) Get(c world.HexCoord) (ID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byCoord[c]
	return id, ok
}

// GetRange returns every member of the territory c belongs to.
func (t *Territories) GetRange(c world.HexCoord) (world.Range, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byCoord[c]
	if !ok {
		return world.Range{}, false
	}
	return t.rangeLocked(id), true
}

// Range returns the members of territory id.
func (t *Territories) Range(id ID) (world.Range, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.byID[id]; !ok {
		return world.Range{}, false
	}
	return t.rangeLocked(id), true
}

func (t *Territories) rangeLocked(id ID) world.Range {
	return world.NewRange(slices.Collect(maps.Keys(t.byID[id]))...)
}

// IDs returns the live territory ids in ascending order.
func (t *Territories) IDs() []ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Sorted(maps.Keys(t.byID))
}

// Len returns the number of live territories.
func (t *Territories) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// Create founds a territory from the unclaimed members of rg. It returns the
// new id and the number of cells claimed; when every cell is already taken
// nothing is created and claimed is zero.
func (t *Territories) Create(rg world.Range) (ID, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	claimed := t.claimLocked(id, rg)
	if claimed == 0 {
		return 0, 0
	}
	t.nextID++
	return id, claimed
}

// Extend adds the unclaimed members of rg to territory id. Cells owned by
// another territory are skipped. It returns the number of cells added.
func (t *Territories) Extend(id ID, rg world.Range) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[id]; !ok {
		return 0
	}
	return t.claimLocked(id, rg)
}

func (t *Territories) claimLocked(id ID, rg world.Range) int {
	claimed := 0
	for c := range rg.All() {
		if _, taken := t.byCoord[c]; taken {
			continue
		}
		members, ok := t.byID[id]
		if !ok {
			members = make(map[world.HexCoord]struct{})
			t.byID[id] = members
		}
		members[c] = struct{}{}
		t.byCoord[c] = id
		claimed++
	}
	return claimed
}

// Merge moves every member of from into into and deletes from.
func (t *Territories) Merge(into, from ID) bool {
	if into == from {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	dst, ok := t.byID[into]
	if !ok {
		return false
	}
	src, ok := t.byID[from]
	if !ok {
		return false
	}
	for c := range src {
		dst[c] = struct{}{}
		t.byCoord[c] = into
	}
	delete(t.byID, from)
	return true
}

// Remove releases c from its territory, deleting the territory when c was
// its last member.
func (t *Territories) Remove(c world.HexCoord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byCoord[c]
	if !ok {
		return
	}
	delete(t.byCoord, c)
	members := t.byID[id]
	delete(members, c)
	if len(members) == 0 {
		delete(t.byID, id)
	}
}

// RemoveTerritory releases every member of id.
func (t *Territories) RemoveTerritory(id ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	members, ok := t.byID[id]
	if !ok {
		return false
	}
	for c := range members {
		delete(t.byCoord, c)
	}
	delete(t.byID, id)
	return true
}
