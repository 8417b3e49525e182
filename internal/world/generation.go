// World generation using layered simplex noise.
// Generates elevation, moisture, and temperature maps, then derives terrain.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Radius      int     // Hex grid radius (~22 for ~2000 hexes)
	Seed        int64   // Random seed (0 = random)
	SeaLevel    float64 // Elevation threshold for ocean (0.0–1.0)
	MountainLvl float64 // Elevation threshold for mountains (0.0–1.0)
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius:      22,
		Seed:        0,
		SeaLevel:    0.25,
		MountainLvl: 0.72,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Radius:      5,
		Seed:        42,
		SeaLevel:    0.30,
		MountainLvl: 0.75,
	}
}

// hillBand is how far below the mountain level hills begin.
const hillBand = 0.12

// Generate creates a complete world map with terrain.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	// Three noise generators for independent layers.
	elevNoise := opensimplex.NewNormalized(seed)
	moistNoise := opensimplex.NewNormalized(seed + 1)
	tempNoise := opensimplex.NewNormalized(seed + 2)

	m := NewMap(cfg.Radius)

	for coord := range Circle(HexCoord{}, cfg.Radius).All() {
		// Hex axial → cartesian: x = q + r*0.5, y = r * sqrt(3)/2
		x := float64(coord.Q) + float64(coord.R)*0.5
		y := float64(coord.R) * math.Sqrt(3.0) / 2.0

		elev := octaveNoise(elevNoise, x, y, 4, 0.08, 0.5)
		moist := octaveNoise(moistNoise, x, y, 3, 0.06, 0.5)
		temp := octaveNoise(tempNoise, x, y, 3, 0.05, 0.5)

		// Continental shaping: reduce elevation near edges to create ocean border.
		distFromCenter := math.Sqrt(x*x+y*y) / float64(max(cfg.Radius, 1))
		edgeFalloff := max(1.0-math.Pow(distFromCenter, 3.5), 0)
		elev *= edgeFalloff

		// Temperature decreases with elevation and distance from equator.
		temp = temp*0.6 + (1.0-math.Abs(y)/float64(max(cfg.Radius, 1)))*0.3 + (1.0-elev)*0.1

		m.Set(&Hex{
			Coord:       coord,
			Terrain:     deriveTerrain(elev, moist, temp, cfg),
			Elevation:   elev,
			Moisture:    moist,
			Temperature: temp,
		})
	}

	// Post-pass: mark coastal hexes (land hexes adjacent to ocean).
	markCoastalHexes(m)

	return m
}

// deriveTerrain determines terrain type from environmental parameters.
func deriveTerrain(elev, moist, temp float64, cfg GenConfig) Terrain {
	switch {
	case elev < cfg.SeaLevel:
		return TerrainOcean
	case elev > cfg.MountainLvl:
		if temp < 0.3 {
			return TerrainSnow
		}
		return TerrainMountain
	case elev > cfg.MountainLvl-hillBand:
		return TerrainHills
	case temp < 0.15:
		return TerrainSnow
	case temp < 0.25:
		return TerrainTundra
	case moist < 0.25 && temp > 0.5:
		return TerrainDesert
	case moist > 0.7 && elev < 0.45:
		return TerrainMarsh
	case moist > 0.5:
		return TerrainForest
	}
	return TerrainGrassland
}

// markCoastalHexes converts low land hexes adjacent to ocean into coast terrain.
func markCoastalHexes(m *Map) {
	var toMark []HexCoord

	for coord, hex := range m.Hexes {
		if hex.Terrain != TerrainGrassland && hex.Terrain != TerrainForest {
			continue
		}
		if hex.Elevation >= 0.4 {
			continue
		}
		for _, neighbor := range coord.Neighbors() {
			nh := m.Get(neighbor)
			if nh != nil && nh.Terrain == TerrainOcean {
				toMark = append(toMark, coord)
				break
			}
		}
	}

	for _, coord := range toMark {
		m.Get(coord).Terrain = TerrainCoast
	}
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// TerrainCounts returns a summary of terrain type distribution.
func TerrainCounts(m *Map) map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, hex := range m.Hexes {
		counts[hex.Terrain]++
	}
	return counts
}
