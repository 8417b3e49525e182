package world

import "fmt"

// Terrain types for hex tiles.
type Terrain uint8

const (
	TerrainOcean     Terrain = iota // Outside the map and below sea level
	TerrainCoast                    // Low land next to the ocean
	TerrainGrassland                // Open, buildable land
	TerrainForest
	TerrainHills
	TerrainMountain
	TerrainDesert
	TerrainMarsh
	TerrainTundra
	TerrainSnow
)

var terrainNames = [...]string{
	"Ocean", "Coast", "Grassland", "Forest", "Hills",
	"Mountain", "Desert", "Marsh", "Tundra", "Snow",
}

func (t Terrain) String() string { return TerrainName(t) }

// MarshalText encodes the terrain by name.
func (t Terrain) MarshalText() ([]byte, error) {
	return []byte(TerrainName(t)), nil
}

// UnmarshalText decodes a terrain name.
func (t *Terrain) UnmarshalText(text []byte) error {
	parsed, err := ParseTerrain(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TerrainName returns a human-readable name for a terrain type.
func TerrainName(t Terrain) string {
	if int(t) < len(terrainNames) {
		return terrainNames[t]
	}
	return "Unknown"
}

// ParseTerrain looks up a terrain by its name.
func ParseTerrain(name string) (Terrain, error) {
	for i, n := range terrainNames {
		if n == name {
			return Terrain(i), nil
		}
	}
	return 0, fmt.Errorf("unknown terrain %q", name)
}

// TerrainView answers terrain queries for placement checks.
type TerrainView interface {
	TerrainAt(c HexCoord) Terrain
}

// Hex represents a single tile on the world map.
type Hex struct {
	Coord   HexCoord `json:"coord"`
	Terrain Terrain  `json:"terrain"`

	// Set during world generation, all in [0, 1].
	Elevation   float64 `json:"elevation"`
	Moisture    float64 `json:"moisture"`
	Temperature float64 `json:"temperature"`
}

// Map holds the complete hex grid. It is not modified after generation.
type Map struct {
	Hexes  map[HexCoord]*Hex `json:"-"` // All hexes keyed by coordinate
	Radius int               `json:"radius"`
}

// NewMap creates an empty map with the given radius.
// A hex grid of radius R contains hexes where max(|q|, |r|, |s|) <= R.
func NewMap(radius int) *Map {
	return &Map{
		Hexes:  make(map[HexCoord]*Hex),
		Radius: radius,
	}
}

// NewUniform creates a map of the given radius covered by one terrain.
func NewUniform(radius int, t Terrain) *Map {
	m := NewMap(radius)
	for c := range Circle(HexCoord{}, radius).All() {
		m.Set(&Hex{Coord: c, Terrain: t})
	}
	return m
}

// Get returns the hex at the given coordinate, or nil if out of bounds.
func (m *Map) Get(coord HexCoord) *Hex {
	return m.Hexes[coord]
}

// Set places a hex at the given coordinate.
func (m *Map) Set(hex *Hex) {
	m.Hexes[hex.Coord] = hex
}

// TerrainAt returns the terrain at coord. Everything outside the map is ocean.
func (m *Map) TerrainAt(coord HexCoord) Terrain {
	if h := m.Hexes[coord]; h != nil {
		return h.Terrain
	}
	return TerrainOcean
}

// InBounds returns true if the coordinate is within the map radius.
func (m *Map) InBounds(coord HexCoord) bool {
	return Distance(HexCoord{}, coord) <= m.Radius
}

// HexCount returns the total number of hexes in the map.
func (m *Map) HexCount() int {
	return len(m.Hexes)
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(radius=%d, hexes=%d)", m.Radius, m.HexCount())
}
