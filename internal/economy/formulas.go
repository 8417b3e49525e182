package economy

import (
	"maps"
	"slices"
)

// Consumes is the maximum amount of each input good a building stores.
type Consumes Inventory[Amount]

// Inventory returns c as a plain inventory.
func (c Consumes) Inventory() Inventory[Amount] { return Inventory[Amount](c) }

// Limit returns the ceiling for g and whether the building consumes g at all.
func (c Consumes) Limit(g Good) (Amount, bool) {
	v, ok := c[g]
	return v, ok
}

// Costs is the one-time price of a building, paid from the territory pool.
type Costs Inventory[Amount]

// Inventory returns c as a plain inventory.
func (c Costs) Inventory() Inventory[Amount] { return Inventory[Amount](c) }

// Produces is a recipe table: each output good names the inputs consumed to
// make one unit of it.
type Produces map[Good]Consumes

// Outputs returns the output goods in ascending order.
func (p Produces) Outputs() []Good {
	return slices.Sorted(maps.Keys(p))
}

// Inputs returns every good used as a recipe input, in ascending order.
func (p Produces) Inputs() []Good {
	seen := make(map[Good]struct{})
	for _, recipe := range p {
		for g := range recipe {
			seen[g] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// IsInput reports whether any recipe consumes g.
func (p Produces) IsInput(g Good) bool {
	for _, recipe := range p {
		if _, ok := recipe[g]; ok {
			return true
		}
	}
	return false
}

// Cycle returns a good that can be produced, directly or indirectly, from
// itself, or false when the recipe graph is acyclic.
func (p Produces) Cycle() (Good, bool) {
	const (
		unvisited = iota
		visiting
		done
	)
	marks := make(map[Good]int)
	var visit func(g Good) (Good, bool)
	visit = func(g Good) (Good, bool) {
		switch marks[g] {
		case visiting:
			return g, true
		case done:
			return 0, false
		}
		marks[g] = visiting
		for _, in := range slices.Sorted(maps.Keys(p[g])) {
			if _, produced := p[in]; !produced {
				continue
			}
			if c, ok := visit(in); ok {
				return c, true
			}
		}
		marks[g] = done
		return 0, false
	}
	for _, out := range p.Outputs() {
		if c, ok := visit(out); ok {
			return c, true
		}
	}
	return 0, false
}
