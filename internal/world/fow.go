package world

import "sync"

// FogOfWar tracks which coordinates have been revealed.
type FogOfWar struct {
	mu      sync.RWMutex
	visible map[HexCoord]struct{}
}

// NewFogOfWar creates a fully fogged map.
func NewFogOfWar() *FogOfWar {
	return &FogOfWar{visible: make(map[HexCoord]struct{})}
}

// Fill reveals (visible=true) or hides every coordinate of rg.
func (f *FogOfWar) Fill(rg Range, visible bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range rg.All() {
		if visible {
			f.visible[c] = struct{}{}
		} else {
			delete(f.visible, c)
		}
	}
}

// Visible reports whether c has been revealed.
func (f *FogOfWar) Visible(c HexCoord) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.visible[c]
	return ok
}

// Count returns the number of revealed coordinates.
func (f *FogOfWar) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.visible)
}
