package world

import (
	"iter"
	"slices"
)

// Range is an immutable set of coordinates. Iteration order is row by row,
// then by column, so every walk over a range is deterministic.
type Range struct {
	coords []HexCoord
}

// NewRange builds a range from arbitrary coordinates, dropping duplicates.
func NewRange(coords ...HexCoord) Range {
	out := slices.Clone(coords)
	slices.SortFunc(out, CompareCoords)
	return Range{coords: slices.Compact(out)}
}

// Circle returns every coordinate within radius steps of center, center included.
func Circle(center HexCoord, radius int) Range {
	if radius < 0 {
		return Range{}
	}
	coords := make([]HexCoord, 0, 3*radius*(radius+1)+1)
	for r := -radius; r <= radius; r++ {
		for q := max(-radius, -r-radius); q <= min(radius, -r+radius); q++ {
			coords = append(coords, center.Add(HexCoord{Q: q, R: r}))
		}
	}
	return Range{coords: coords}
}

// Ring returns the coordinates exactly radius steps from center.
func Ring(center HexCoord, radius int) Range {
	if radius <= 0 {
		if radius == 0 {
			return Range{coords: []HexCoord{center}}
		}
		return Range{}
	}
	var coords []HexCoord
	for _, c := range Circle(center, radius).coords {
		if Distance(center, c) == radius {
			coords = append(coords, c)
		}
	}
	return Range{coords: coords}
}

// Rectangle returns the axial rectangle spanned by two corners, inclusive.
func Rectangle(a, b HexCoord) Range {
	minQ, maxQ := min(a.Q, b.Q), max(a.Q, b.Q)
	minR, maxR := min(a.R, b.R), max(a.R, b.R)
	coords := make([]HexCoord, 0, (maxQ-minQ+1)*(maxR-minR+1))
	for r := minR; r <= maxR; r++ {
		for q := minQ; q <= maxQ; q++ {
			coords = append(coords, HexCoord{Q: q, R: r})
		}
	}
	return Range{coords: coords}
}

// Contains reports whether c is a member of the range.
func (rg Range) Contains(c HexCoord) bool {
	_, found := slices.BinarySearchFunc(rg.coords, c, CompareCoords)
	return found
}

// Len returns the number of coordinates.
func (rg Range) Len() int { return len(rg.coords) }

// Coords returns a copy of the members in iteration order.
func (rg Range) Coords() []HexCoord { return slices.Clone(rg.coords) }

// All iterates the members in order.
func (rg Range) All() iter.Seq[HexCoord] {
	return slices.Values(rg.coords)
}
