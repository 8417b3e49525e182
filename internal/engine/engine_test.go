package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-city/internal/economy"
	"github.com/talgya/mini-city/internal/tile"
	"github.com/talgya/mini-city/internal/world"
)

func testCatalog(t *testing.T) *tile.Catalog {
	t.Helper()
	grass := []world.Terrain{world.TerrainGrassland}
	cat, err := tile.NewCatalog(
		&tile.Tile{
			Name:             tile.Warehouse,
			Storage:          true,
			FoundsTerritory:  true,
			ExtendsTerritory: true,
			Influence:        6,
			Terrains:         grass,
			StoreCategories:  []economy.Category{economy.CategoryProduction, economy.CategoryImmaterial},
			StoreLimit:       100000,
			Costs:            economy.Costs{economy.Money: 100},
			Grant:            economy.Inventory[economy.Amount]{economy.Money: 1000},
		},
		&tile.Tile{
			Name:      tile.Farm,
			Influence: 1,
			Terrains:  grass,
			Consumes:  economy.Consumes{economy.Wheat: 20},
			Yields:    economy.Inventory[economy.Amount]{economy.Wheat: 2},
			Costs:     economy.Costs{economy.Money: 20},
		},
		&tile.Tile{
			Name:      tile.Mill,
			Influence: 2,
			Terrains:  grass,
			Consumes:  economy.Consumes{economy.Wheat: 10},
			Produces:  economy.Produces{economy.Flour: {economy.Wheat: 2}},
			Costs:     economy.Costs{economy.Money: 40},
		},
		&tile.Tile{
			Name:      tile.Bakery,
			Influence: 2,
			Terrains:  grass,
			Consumes:  economy.Consumes{economy.Flour: 10},
			Produces:  economy.Produces{economy.Bread: {economy.Flour: 1}},
			Costs:     economy.Costs{economy.Money: 5000},
		},
	)
	require.NoError(t, err)
	return cat
}

func newTestGame(t *testing.T, terrain world.TerrainView) *Game {
	t.Helper()
	g := NewGame(terrain, testCatalog(t), Options{Workers: 4})
	t.Cleanup(g.Close)
	return g
}

func poolMoney(t *testing.T, g *Game, at world.HexCoord) economy.Amount {
	t.Helper()
	id, ok := g.Storage.Territories.Get(at)
	require.True(t, ok)
	f, err := g.Storage.Pool.Freeze(id)
	require.NoError(t, err)
	defer f.Release()
	return f.State().Stock(economy.Money)
}

func TestFoundingWarehouse(t *testing.T) {
	g := newTestGame(t, world.NewUniform(10, world.TerrainGrassland))
	origin := world.HexCoord{}

	require.NoError(t, g.TryConstruct(origin, tile.Warehouse))

	s := g.Storage
	assert.Equal(t, 1, s.Buildings.Len())
	assert.Equal(t, 1, s.Territories.Len())
	rg, ok := s.Territories.GetRange(origin)
	require.True(t, ok)
	assert.Equal(t, 127, rg.Len())
	assert.Equal(t, 127, s.FOW.Count())
	// Founding is free and comes with the grant.
	assert.Equal(t, economy.Amount(1000), poolMoney(t, g, origin))
}

func TestInvalidTerrainHasNoSideEffects(t *testing.T) {
	m := world.NewUniform(4, world.TerrainGrassland)
	at := world.HexCoord{Q: 1}
	m.Get(at).Terrain = world.TerrainForest
	g := newTestGame(t, m)

	err := g.TryConstruct(at, tile.Warehouse)
	assert.ErrorIs(t, err, ErrInvalidTerrain)
	var ce *ConstructionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, at, ce.Coordinate)
	assert.Equal(t, tile.Warehouse, ce.Tile)

	assert.Zero(t, g.Storage.Buildings.Len())
	assert.Zero(t, g.Storage.Territories.Len())
	assert.Zero(t, g.Storage.FOW.Count())
}

func TestConstructionGates(t *testing.T) {
	g := newTestGame(t, world.NewUniform(10, world.TerrainGrassland))
	origin := world.HexCoord{}

	assert.ErrorIs(t, g.TryConstruct(origin, tile.Farm), ErrInvalidTerritory)
	assert.ErrorIs(t, g.TryConstruct(origin, "castle"), ErrUnknownTile)
	require.NoError(t, g.TryConstruct(origin, tile.Warehouse))
	assert.ErrorIs(t, g.TryConstruct(origin, tile.Farm), ErrCoordinateOccupied)

	farm := world.HexCoord{Q: 1}
	require.NoError(t, g.Controller.CanConstruct(farm, tile.Farm))
	require.NoError(t, g.TryConstruct(farm, tile.Farm))
	assert.Equal(t, economy.Amount(980), poolMoney(t, g, origin))

	bakery := world.HexCoord{Q: 2}
	assert.ErrorIs(t, g.Controller.CanConstruct(bakery, tile.Bakery), ErrInsufficientResources)
	assert.ErrorIs(t, g.TryConstruct(bakery, tile.Bakery), ErrInsufficientResources)
	assert.Equal(t, economy.Amount(980), poolMoney(t, g, origin))
	assert.False(t, g.Storage.Buildings.Occupied(bakery))
}

func TestNoDoublePlacement(t *testing.T) {
	g := newTestGame(t, world.NewUniform(10, world.TerrainGrassland))
	require.NoError(t, g.TryConstruct(world.HexCoord{}, tile.Warehouse))

	target := world.HexCoord{Q: 2, R: -1}
	errs := make([]error, 32)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = g.TryConstruct(target, tile.Farm)
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrCoordinateOccupied)
	}
	assert.Equal(t, 1, ok)
	// Paid exactly once.
	assert.Equal(t, economy.Amount(980), poolMoney(t, g, world.HexCoord{}))
}

func TestStorageBuildingMergesTerritories(t *testing.T) {
	g := newTestGame(t, world.NewUniform(20, world.TerrainGrassland))
	west, east := world.HexCoord{}, world.HexCoord{Q: 14}

	require.NoError(t, g.TryConstruct(west, tile.Warehouse))
	require.NoError(t, g.TryConstruct(east, tile.Warehouse))
	require.Equal(t, 2, g.Storage.Territories.Len())

	require.NoError(t, g.TryConstruct(world.HexCoord{Q: 6}, tile.Warehouse))
	assert.Equal(t, 1, g.Storage.Territories.Len())

	a, _ := g.Storage.Territories.Get(west)
	b, _ := g.Storage.Territories.Get(east)
	assert.Equal(t, a, b)
	assert.Equal(t, economy.Amount(1900), poolMoney(t, g, west))
}

func TestFoundingNextToTerritoryJoinsIt(t *testing.T) {
	g := newTestGame(t, world.NewUniform(30, world.TerrainGrassland))
	origin := world.HexCoord{}
	require.NoError(t, g.TryConstruct(origin, tile.Warehouse))

	// Each warehouse sits just past the border its predecessor drew.
	for _, q := range []int{7, 14, 21} {
		at := world.HexCoord{Q: q}
		_, claimed := g.Storage.Territories.Get(at)
		require.False(t, claimed)
		require.NoError(t, g.TryConstruct(at, tile.Warehouse))
	}
	assert.Equal(t, 1, g.Storage.Territories.Len())
	// No grants, three payments.
	assert.Equal(t, economy.Amount(700), poolMoney(t, g, origin))

	id, _ := g.Storage.Territories.Get(origin)
	f, err := g.Storage.Pool.FreezeMut(id)
	require.NoError(t, err)
	require.NoError(t, f.Sub(economy.Inventory[economy.Amount]{economy.Money: 700}))
	f.Release()

	err = g.TryConstruct(world.HexCoord{Q: 28}, tile.Warehouse)
	assert.ErrorIs(t, err, ErrInsufficientResources)
	assert.False(t, g.Storage.Buildings.Occupied(world.HexCoord{Q: 28}))
	assert.Equal(t, economy.Amount(0), poolMoney(t, g, origin))
}

func TestTickMovesYieldIntoWarehouse(t *testing.T) {
	g := newTestGame(t, world.NewUniform(10, world.TerrainGrassland))
	wh, farm := world.HexCoord{}, world.HexCoord{Q: 1}
	require.NoError(t, g.TryConstruct(wh, tile.Warehouse))
	require.NoError(t, g.TryConstruct(farm, tile.Farm))

	for range 3 {
		g.Tick()
	}
	assert.Equal(t, uint64(3), g.Clock.Epoch())

	stock := func(at world.HexCoord) economy.Amount {
		ref, ok := g.Storage.Buildings.Get(at)
		require.True(t, ok)
		defer ref.Release()
		return ref.State().Stock(economy.Wheat)
	}
	assert.Equal(t, economy.Amount(4), stock(wh))
	assert.Equal(t, economy.Amount(2), stock(farm))

	tick, tock := g.Updater.LastStats()
	assert.Equal(t, uint64(3), tick.Epoch)
	assert.Equal(t, uint64(2), tick.Moved)
	assert.Equal(t, uint64(2), tock.Harvested)
}

func TestProductionChainMakesBread(t *testing.T) {
	g := newTestGame(t, world.NewUniform(10, world.TerrainGrassland))
	require.NoError(t, g.TryConstruct(world.HexCoord{}, tile.Warehouse))
	require.NoError(t, g.TryConstruct(world.HexCoord{Q: 1}, tile.Farm))
	require.NoError(t, g.TryConstruct(world.HexCoord{Q: 2}, tile.Mill))

	// Fund the bakery through the pool.
	id, _ := g.Storage.Territories.Get(world.HexCoord{})
	f, err := g.Storage.Pool.FreezeMut(id)
	require.NoError(t, err)
	require.NoError(t, f.Add(economy.Inventory[economy.Amount]{economy.Money: 5000}))
	f.Release()
	// Out of the mill's reach, so flour has to pass through the warehouse.
	require.NoError(t, g.TryConstruct(world.HexCoord{Q: -1}, tile.Bakery))

	for range 30 {
		g.Tick()
	}

	var bread economy.Amount
	for _, at := range g.Storage.Buildings.Coordinates() {
		ref, ok := g.Storage.Buildings.Get(at)
		require.True(t, ok)
		bread += ref.State().Stock(economy.Bread)
		ref.Release()
	}
	assert.Positive(t, bread)

	report := g.Report()
	assert.Equal(t, 4, report.Buildings)
	require.Len(t, report.Territories, 1)
	assert.Equal(t, economy.Amount(1000-20-40), report.Total.Stock(economy.Money))
}

func TestEngineRunStopsOnCancel(t *testing.T) {
	g := newTestGame(t, world.NewUniform(3, world.TerrainGrassland))
	e := NewEngine(g, time.Millisecond, 5)
	reports := make(chan Report, 100)
	e.OnReport = func(r Report) { reports <- r }

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
	assert.False(t, e.Running())
	assert.Positive(t, g.Clock.Epoch())
	if g.Clock.Epoch() >= 5 {
		assert.NotEmpty(t, reports)
	}

	e.SetSpeed(-3)
	assert.Zero(t, e.Speed())
}

func TestConstructionErrorUnwraps(t *testing.T) {
	err := error(&ConstructionError{Tile: tile.Farm, Err: ErrInvalidTerritory})
	assert.True(t, errors.Is(err, ErrInvalidTerritory))
	assert.Contains(t, err.Error(), "farm")
}

func TestEngineStop(t *testing.T) {
	g := newTestGame(t, world.NewUniform(3, world.TerrainGrassland))
	e := NewEngine(g, time.Millisecond, 0)
	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()
	require.Eventually(t, e.Running, time.Second, time.Millisecond)
	e.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
}
