package engine

import (
	"github.com/talgya/mini-city/internal/buildings"
	"github.com/talgya/mini-city/internal/clock"
	"github.com/talgya/mini-city/internal/economy"
	"github.com/talgya/mini-city/internal/tile"
	"github.com/talgya/mini-city/internal/world"
)

// Options tune a game.
type Options struct {
	Workers  int                // Updater parallelism; 0 = GOMAXPROCS
	Splitter buildings.Splitter // Pool redistribution; nil = round robin
}

// Game is the handle every entry point receives. Nothing about a game lives
// in package state, so several games can run side by side.
type Game struct {
	Clock      *clock.Clock
	Storage    *Storage
	Controller *Controller
	Updater    *Updater
	Catalog    *tile.Catalog
}

// NewGame wires a clock, storage, controller and updater together.
func NewGame(terrain world.TerrainView, catalog *tile.Catalog, opts Options) *Game {
	s := NewStorage(terrain, opts.Splitter)
	g := &Game{
		Clock:      clock.New(),
		Storage:    s,
		Controller: NewController(s, catalog),
		Updater:    NewUpdater(s, opts.Workers),
		Catalog:    catalog,
	}
	g.Updater.Attach(g.Clock)
	s.Buildings.SetEpochSource(g.Clock.Epoch)
	return g
}

// Tick advances the clock one cycle and waits for both phases to finish.
func (g *Game) Tick() uint64 {
	epoch := g.Clock.Tick()
	g.Clock.Sync()
	return epoch
}

// TryConstruct places a building; see Controller.TryConstruct.
func (g *Game) TryConstruct(c world.HexCoord, name tile.Name) error {
	return g.Controller.TryConstruct(c, name)
}

// Close stops event delivery.
func (g *Game) Close() {
	g.Clock.Close()
	g.Storage.Close()
}

// TerritoryReport is the pooled stock of one territory.
type TerritoryReport struct {
	ID         uint32        `json:"id"`
	Cells      int           `json:"cells"`
	Warehouses int           `json:"warehouses"`
	Pool       economy.State `json:"pool"`
}

// Report is a point-in-time summary of a game.
type Report struct {
	Epoch       uint64            `json:"epoch"`
	Buildings   int               `json:"buildings"`
	Visible     int               `json:"visible"`
	Territories []TerritoryReport `json:"territories"`
	Total       economy.State     `json:"total"` // Sum over every pool
	LastTick    PhaseStats        `json:"last_tick"`
	LastTock    PhaseStats        `json:"last_tock"`
}

// Report summarizes the game, freezing each territory pool in turn.
func (g *Game) Report() Report {
	r := Report{Epoch: g.Clock.Epoch(), Total: economy.State{}}
	r.LastTick, r.LastTock = g.Updater.LastStats()
	_ = g.Storage.View(func(s *Storage) error {
		r.Buildings = s.Buildings.Len()
		r.Visible = s.FOW.Count()
		for _, id := range s.Territories.IDs() {
			rg, ok := s.Territories.Range(id)
			if !ok {
				continue
			}
			f, err := s.Pool.Freeze(id)
			if err != nil {
				continue
			}
			tr := TerritoryReport{
				ID:         uint32(id),
				Cells:      rg.Len(),
				Warehouses: len(f.Warehouses()),
				Pool:       f.State(),
			}
			f.Release()
			r.Total.Inventory().Add(tr.Pool.Inventory())
			r.Territories = append(r.Territories, tr)
		}
		return nil
	})
	return r
}
