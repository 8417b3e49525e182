package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/mini-city/internal/territory"
	"github.com/talgya/mini-city/internal/tile"
	"github.com/talgya/mini-city/internal/world"
)

// Construction outcomes. All are returned wrapped in a *ConstructionError.
var (
	ErrInvalidTerritory      = errors.New("coordinate is outside any territory")
	ErrCoordinateOccupied    = errors.New("coordinate is occupied")
	ErrInvalidTerrain        = errors.New("terrain does not allow this building")
	ErrInsufficientResources = errors.New("territory cannot afford this building")
	ErrUnknownTile           = errors.New("unknown tile")
)

// ConstructionError reports why a building could not be placed.
type ConstructionError struct {
	Coordinate world.HexCoord
	Tile       tile.Name
	Err        error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construct %s at %s: %v", e.Tile, e.Coordinate, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// Controller is the only way buildings come into existence.
type Controller struct {
	storage *Storage
	catalog *tile.Catalog
}

// NewController creates a controller placing tiles from catalog into s.
func NewController(s *Storage, catalog *tile.Catalog) *Controller {
	return &Controller{storage: s, catalog: catalog}
}

// placement is the outcome of the checks that precede payment. A founding
// building whose influence reaches an existing territory joins it instead,
// paying its costs like any other building there.
type placement struct {
	tile        *tile.Tile
	territory   territory.ID
	inTerritory bool
	joins       bool
}

// TryConstruct places a building of type name at c. Either the building is
// placed and paid for, or nothing changes and the error says why.
func (ctl *Controller) TryConstruct(c world.HexCoord, name tile.Name) error {
	s := ctl.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := ctl.check(c, name)
	if err != nil {
		return err
	}

	if p.inTerritory && len(p.tile.Costs) > 0 {
		pool, err := s.Pool.FreezeMut(p.territory)
		if err != nil {
			return &ConstructionError{Coordinate: c, Tile: name, Err: err}
		}
		if !pool.Affords(p.tile.Costs) {
			pool.Release()
			return &ConstructionError{Coordinate: c, Tile: name, Err: ErrInsufficientResources}
		}
		if err := pool.Sub(p.tile.Costs.Inventory()); err != nil {
			pool.Release()
			panic(fmt.Sprintf("invariant: debit of affordable costs failed: %v", err))
		}
		pool.Release()
	}

	// Paid. Nothing below may fail.
	ctl.place(c, p)
	return nil
}

// CanConstruct runs the checks of TryConstruct without changing anything.
func (ctl *Controller) CanConstruct(c world.HexCoord, name tile.Name) error {
	s := ctl.storage
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := ctl.check(c, name)
	if err != nil {
		return err
	}
	if p.inTerritory && len(p.tile.Costs) > 0 {
		pool, err := s.Pool.Freeze(p.territory)
		if err != nil {
			return &ConstructionError{Coordinate: c, Tile: name, Err: err}
		}
		defer pool.Release()
		if !pool.Affords(p.tile.Costs) {
			return &ConstructionError{Coordinate: c, Tile: name, Err: ErrInsufficientResources}
		}
	}
	return nil
}

// check applies the placement rules in order. The caller holds the storage lock.
func (ctl *Controller) check(c world.HexCoord, name tile.Name) (placement, error) {
	s := ctl.storage
	fail := func(err error) (placement, error) {
		return placement{}, &ConstructionError{Coordinate: c, Tile: name, Err: err}
	}

	t, ok := ctl.catalog.Lookup(name)
	if !ok {
		return fail(ErrUnknownTile)
	}
	id, inTerritory := s.Territories.Get(c)
	if !inTerritory && !t.FoundsTerritory {
		return fail(ErrInvalidTerritory)
	}
	joins := false
	if !inTerritory {
		id, joins = ctl.touching(t.InfluenceAt(c))
		inTerritory = joins
	}
	if s.Buildings.Occupied(c) {
		return fail(ErrCoordinateOccupied)
	}
	if !t.Allowed(c, s.Terrain) {
		return fail(ErrInvalidTerrain)
	}
	return placement{tile: t, territory: id, inTerritory: inTerritory, joins: joins}, nil
}

// touching returns the first territory with a member in influence.
func (ctl *Controller) touching(influence world.Range) (territory.ID, bool) {
	for c := range influence.All() {
		if id, ok := ctl.storage.Territories.Get(c); ok {
			return id, true
		}
	}
	return 0, false
}

// place commits a paid-for building. The caller holds the storage write lock,
// so the coordinate checked free is still free.
func (ctl *Controller) place(c world.HexCoord, p placement) {
	s := ctl.storage
	t := p.tile
	inst := tile.NewInstance(t)
	influence := t.InfluenceAt(c)

	id := p.territory
	founded := false
	if !p.inTerritory {
		var claimed int
		id, claimed = s.Territories.Create(influence)
		if claimed == 0 {
			panic(fmt.Sprintf("invariant: founding at unclaimed %s claimed nothing", c))
		}
		founded = true
		for _, g := range t.Grant.Goods() {
			inst.State().Credit(g, t.Grant[g])
		}
	}

	if !s.Buildings.TrySet(c, inst) {
		panic(fmt.Sprintf("invariant: %s taken under the storage write lock", c))
	}
	s.FOW.Fill(influence, true)

	if p.joins || (p.inTerritory && t.ExtendsTerritory) {
		s.Territories.Extend(id, influence)
	}
	merged := 0
	if t.Storage {
		merged = ctl.absorbNeighbors(id, influence)
	}
	slog.Info("building constructed", "tile", t.Name, "coordinate", c.String(),
		"territory", id, "founded", founded, "joined", p.joins, "merged", merged)
}

// absorbNeighbors merges every other territory reached by influence into id.
func (ctl *Controller) absorbNeighbors(id territory.ID, influence world.Range) int {
	merged := 0
	for c := range influence.All() {
		other, ok := ctl.storage.Territories.Get(c)
		if !ok || other == id {
			continue
		}
		if ctl.storage.Territories.Merge(id, other) {
			merged++
		}
	}
	return merged
}
