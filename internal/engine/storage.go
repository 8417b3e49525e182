package engine

import (
	"sync"

	"github.com/talgya/mini-city/internal/buildings"
	"github.com/talgya/mini-city/internal/territory"
	"github.com/talgya/mini-city/internal/world"
)

// Storage is everything one game owns. Tick phases and readers hold the read
// side of its lock; construction holds the write side, so the set of
// buildings and territories never changes during a tick.
type Storage struct {
	mu sync.RWMutex

	Terrain     world.TerrainView
	Buildings   *buildings.Buildings
	Territories *territory.Territories
	FOW         *world.FogOfWar
	Pool        *buildings.Pool
}

// NewStorage creates empty game storage over terrain. A nil splitter uses
// the round-robin redistribution.
func NewStorage(terrain world.TerrainView, splitter buildings.Splitter) *Storage {
	b := buildings.New()
	t := territory.New()
	return &Storage{
		Terrain:     terrain,
		Buildings:   b,
		Territories: t,
		FOW:         world.NewFogOfWar(),
		Pool:        buildings.NewPool(b, t, splitter),
	}
}

// View runs fn while no construction can happen.
func (s *Storage) View(fn func(*Storage) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s)
}

// Close stops building event delivery.
func (s *Storage) Close() {
	s.Buildings.Close()
}
