package territory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-city/internal/world"
)

// consistent checks that both indexes describe the same membership.
func consistent(t *testing.T, ts *Territories) {
	t.Helper()
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	count := 0
	for id, members := range ts.byID {
		require.NotEmpty(t, members, "territory %d has no members", id)
		for c := range members {
			assert.Equal(t, id, ts.byCoord[c])
			count++
		}
	}
	assert.Equal(t, len(ts.byCoord), count)
}

func TestCreateAndLookup(t *testing.T) {
	ts := New()
	id, claimed := ts.Create(world.Circle(world.HexCoord{}, 1))
	assert.Equal(t, ID(1), id)
	assert.Equal(t, 7, claimed)

	got, ok := ts.Get(world.HexCoord{Q: 1})
	require.True(t, ok)
	assert.Equal(t, id, got)

	rg, ok := ts.GetRange(world.HexCoord{Q: -1, R: 1})
	require.True(t, ok)
	assert.Equal(t, 7, rg.Len())

	_, ok = ts.Get(world.HexCoord{Q: 5})
	assert.False(t, ok)
	consistent(t, ts)
}

func TestCreateNeverSteals(t *testing.T) {
	ts := New()
	first, _ := ts.Create(world.Circle(world.HexCoord{}, 1))

	second, claimed := ts.Create(world.Circle(world.HexCoord{Q: 2}, 1))
	assert.Equal(t, ID(2), second)
	assert.Equal(t, 6, claimed)
	got, _ := ts.Get(world.HexCoord{Q: 1})
	assert.Equal(t, first, got)

	none, claimed := ts.Create(world.NewRange(world.HexCoord{}))
	assert.Zero(t, none)
	assert.Zero(t, claimed)
	assert.Equal(t, 2, ts.Len())
	consistent(t, ts)
}

func TestExtendSkipsContestedCells(t *testing.T) {
	ts := New()
	a, _ := ts.Create(world.NewRange(world.HexCoord{}))
	b, _ := ts.Create(world.NewRange(world.HexCoord{Q: 2}))

	added := ts.Extend(a, world.Circle(world.HexCoord{Q: 1}, 1))
	assert.Equal(t, 5, added)
	got, _ := ts.Get(world.HexCoord{Q: 2})
	assert.Equal(t, b, got)
	assert.Zero(t, ts.Extend(ID(99), world.Circle(world.HexCoord{}, 3)))
	consistent(t, ts)
}

func TestMerge(t *testing.T) {
	ts := New()
	a, _ := ts.Create(world.Circle(world.HexCoord{}, 1))
	b, _ := ts.Create(world.Circle(world.HexCoord{Q: 3}, 1))

	require.True(t, ts.Merge(a, b))
	assert.Equal(t, []ID{a}, ts.IDs())
	rg, ok := ts.Range(a)
	require.True(t, ok)
	assert.Equal(t, 14, rg.Len())
	_, ok = ts.Range(b)
	assert.False(t, ok)
	assert.False(t, ts.Merge(a, a))
	assert.False(t, ts.Merge(a, b))
	consistent(t, ts)
}

func TestRemoveLastMemberDeletesTerritory(t *testing.T) {
	ts := New()
	id, _ := ts.Create(world.NewRange(world.HexCoord{}, world.HexCoord{Q: 1}))
	ts.Remove(world.HexCoord{})
	assert.Equal(t, 1, ts.Len())
	ts.Remove(world.HexCoord{Q: 1})
	assert.Zero(t, ts.Len())
	_, ok := ts.Range(id)
	assert.False(t, ok)

	next, _ := ts.Create(world.NewRange(world.HexCoord{}))
	assert.NotEqual(t, id, next)

	assert.True(t, ts.RemoveTerritory(next))
	assert.False(t, ts.RemoveTerritory(next))
	consistent(t, ts)
}

func TestConcurrentExtendClaimsEachCellOnce(t *testing.T) {
	ts := New()
	ids := make([]ID, 8)
	for i := range ids {
		ids[i], _ = ts.Create(world.NewRange(world.HexCoord{Q: 100 + i}))
	}
	target := world.Circle(world.HexCoord{}, 5)

	var wg sync.WaitGroup
	totals := make([]int, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			totals[i] = ts.Extend(id, target)
		}()
	}
	wg.Wait()

	sum := 0
	for _, n := range totals {
		sum += n
	}
	assert.Equal(t, target.Len(), sum)
	consistent(t, ts)
}
