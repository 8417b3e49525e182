package economy

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"
)

// Amount is the default quantity type.
type Amount = uint32

// Inventory maps goods to quantities. A missing good and a good with amount
// zero are different: only present goods take part in comparisons.
type Inventory[T constraints.Unsigned] map[Good]T

// Get returns the amount of g and whether g is present.
func (inv Inventory[T]) Get(g Good) (T, bool) {
	v, ok := inv[g]
	return v, ok
}

// Clone returns a copy of inv.
func (inv Inventory[T]) Clone() Inventory[T] {
	if inv == nil {
		return nil
	}
	return maps.Clone(inv)
}

// Goods returns the present goods in ascending order.
func (inv Inventory[T]) Goods() []Good {
	return slices.Sorted(maps.Keys(inv))
}

// Total sums every amount.
func (inv Inventory[T]) Total() uint64 {
	var sum uint64
	for _, v := range inv {
		sum += uint64(v)
	}
	return sum
}

// Add adds other into inv, inserting goods inv does not have yet.
// Amounts saturate at the maximum of T.
func (inv Inventory[T]) Add(other Inventory[T]) {
	for g, v := range other {
		inv[g] = saturatingAdd(inv[g], v)
	}
}

// Sub subtracts other from inv, saturating at zero. Goods missing from inv
// are inserted with amount zero.
func (inv Inventory[T]) Sub(other Inventory[T]) {
	for g, v := range other {
		inv[g] = saturatingSub(inv[g], v)
	}
}

// Covers reports whether inv holds at least the amount of every good in other.
func (inv Inventory[T]) Covers(other Inventory[T]) bool {
	for g, need := range other {
		have, ok := inv[g]
		if !ok || have < need {
			return false
		}
	}
	return true
}

// Equal reports whether both inventories hold the same goods in the same amounts.
func (inv Inventory[T]) Equal(other Inventory[T]) bool {
	return maps.Equal(inv, other)
}

// Compare orders two inventories partially. It returns -1, 0 or +1 and true
// when inv is less than, equal to or greater than other, and false when they
// are incomparable.
//
// Inventories are only comparable when the goods of one are a subset of the
// goods of the other. The smaller set is compared amount by amount against
// the larger; amounts trending in different directions are incomparable. A
// strictly smaller key set with equal amounts compares as less, and a smaller
// key set with larger amounts is incomparable.
func (inv Inventory[T]) Compare(other Inventory[T]) (int, bool) {
	if subsetOf(inv, other) {
		return compareSubset(inv, other)
	}
	if subsetOf(other, inv) {
		c, ok := compareSubset(other, inv)
		return -c, ok
	}
	return 0, false
}

// compareSubset compares small against large where small's goods are all in large.
func compareSubset[T constraints.Unsigned](small, large Inventory[T]) (int, bool) {
	acc := 0
	for g, v := range small {
		c := 0
		switch w := large[g]; {
		case v < w:
			c = -1
		case v > w:
			c = 1
		}
		if c == 0 {
			continue
		}
		if acc != 0 && acc != c {
			return 0, false
		}
		acc = c
	}
	sameKeys := len(small) == len(large)
	switch acc {
	case 0:
		if sameKeys {
			return 0, true
		}
		return -1, true
	case 1:
		if sameKeys {
			return 1, true
		}
		return 0, false
	default:
		return -1, true
	}
}

func subsetOf[T constraints.Unsigned](a, b Inventory[T]) bool {
	if len(a) > len(b) {
		return false
	}
	for g := range a {
		if _, ok := b[g]; !ok {
			return false
		}
	}
	return true
}

func (inv Inventory[T]) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, g := range inv.Goods() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(g.String())
		b.WriteString(": ")
		b.WriteString(strconv.FormatUint(uint64(inv[g]), 10))
	}
	b.WriteByte('}')
	return b.String()
}

func saturatingAdd[T constraints.Unsigned](a, b T) T {
	s := a + b
	if s < a {
		return ^T(0)
	}
	return s
}

func saturatingSub[T constraints.Unsigned](a, b T) T {
	if b > a {
		return 0
	}
	return a - b
}
