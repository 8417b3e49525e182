package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceAndNeighbors(t *testing.T) {
	origin := HexCoord{}
	for _, n := range origin.Neighbors() {
		assert.Equal(t, 1, Distance(origin, n))
	}
	assert.Equal(t, 3, Distance(HexCoord{Q: 1, R: -2}, HexCoord{Q: -1, R: 1}))
	assert.Equal(t, HexCoord{Q: 3, R: -1}, HexCoord{Q: 1, R: 1}.Add(HexCoord{Q: 2, R: -2}))
}

func TestCircle(t *testing.T) {
	center := HexCoord{Q: 4, R: -2}
	for radius := 0; radius <= 6; radius++ {
		rg := Circle(center, radius)
		assert.Equal(t, 3*radius*(radius+1)+1, rg.Len(), "radius %d", radius)
		for c := range rg.All() {
			assert.LessOrEqual(t, Distance(center, c), radius)
		}
	}
	assert.True(t, Circle(center, 2).Contains(HexCoord{Q: 5, R: -3}))
	assert.False(t, Circle(center, 2).Contains(HexCoord{Q: 7, R: -2}))
	assert.Zero(t, Circle(center, -1).Len())
}

func TestRingAndRectangle(t *testing.T) {
	assert.Equal(t, 1, Ring(HexCoord{}, 0).Len())
	assert.Equal(t, 6, Ring(HexCoord{}, 1).Len())
	assert.Equal(t, 18, Ring(HexCoord{}, 3).Len())

	rect := Rectangle(HexCoord{Q: 2, R: 1}, HexCoord{Q: 0, R: 0})
	assert.Equal(t, 6, rect.Len())
	assert.Equal(t, HexCoord{Q: 0, R: 0}, rect.Coords()[0])
	assert.Equal(t, HexCoord{Q: 2, R: 1}, rect.Coords()[5])
}

func TestNewRangeDeduplicates(t *testing.T) {
	rg := NewRange(HexCoord{Q: 1}, HexCoord{R: -1}, HexCoord{Q: 1})
	assert.Equal(t, []HexCoord{{R: -1}, {Q: 1}}, rg.Coords())
}

func TestGenerateIsDeterministic(t *testing.T) {
	cfg := SmallTestConfig()
	a := Generate(cfg)
	b := Generate(cfg)
	require.Equal(t, 3*cfg.Radius*(cfg.Radius+1)+1, a.HexCount())
	for c, h := range a.Hexes {
		assert.Equal(t, h.Terrain, b.TerrainAt(c))
		assert.True(t, a.InBounds(c))
	}
	assert.Equal(t, TerrainOcean, a.TerrainAt(HexCoord{Q: cfg.Radius + 1}))
}

func TestTerrainNames(t *testing.T) {
	for tr := TerrainOcean; tr <= TerrainSnow; tr++ {
		parsed, err := ParseTerrain(TerrainName(tr))
		require.NoError(t, err)
		assert.Equal(t, tr, parsed)
	}
	_, err := ParseTerrain("Lava")
	assert.Error(t, err)
}

func TestFogOfWar(t *testing.T) {
	fow := NewFogOfWar()
	fow.Fill(Circle(HexCoord{}, 1), true)
	assert.Equal(t, 7, fow.Count())
	assert.True(t, fow.Visible(HexCoord{Q: 1}))

	fow.Fill(NewRange(HexCoord{Q: 1}), false)
	assert.False(t, fow.Visible(HexCoord{Q: 1}))
	assert.Equal(t, 6, fow.Count())
}

func TestUniformMap(t *testing.T) {
	m := NewUniform(3, TerrainGrassland)
	assert.Equal(t, 37, m.HexCount())
	assert.Equal(t, TerrainGrassland, m.TerrainAt(HexCoord{Q: 3, R: -3}))
	assert.Equal(t, TerrainOcean, m.TerrainAt(HexCoord{Q: 4}))
}
