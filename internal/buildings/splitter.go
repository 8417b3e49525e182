package buildings

import "github.com/talgya/mini-city/internal/economy"

// Bin is one warehouse's slot for a single good while a pool change is being
// planned.
type Bin struct {
	Stock economy.Amount
	Limit economy.Amount
}

// Splitter spreads a signed change of one good across the bins of a pool.
// It mutates Stock in place and reports false when the bins cannot absorb
// the change. The caller discards the bins on failure.
type Splitter interface {
	Split(g economy.Good, diff int64, bins []Bin) bool
}

// RoundRobin walks the bins repeatedly, offering every bin that still has
// room or stock an equal share of what is left, until the change is absorbed.
// No bin is preferred; the split is not necessarily even. Each pass either
// finishes or exhausts a bin, so the work is bounded by the number of bins
// rather than the size of the change.
type RoundRobin struct{}

// Split implements Splitter.
func (RoundRobin) Split(_ economy.Good, diff int64, bins []Bin) bool {
	left := uint64(diff)
	if diff < 0 {
		left = uint64(-diff)
	}
	// capacity is what bin i can still take or give.
	capacity := func(i int) uint64 {
		if diff > 0 {
			return uint64(bins[i].Limit) - uint64(min(bins[i].Stock, bins[i].Limit))
		}
		return uint64(bins[i].Stock)
	}

	for left > 0 {
		active := 0
		for i := range bins {
			if capacity(i) > 0 {
				active++
			}
		}
		if active == 0 {
			return false
		}
		share := (left + uint64(active) - 1) / uint64(active)
		for i := range bins {
			if left == 0 {
				break
			}
			n := min(share, capacity(i), left)
			if diff > 0 {
				bins[i].Stock += economy.Amount(n)
			} else {
				bins[i].Stock -= economy.Amount(n)
			}
			left -= n
		}
	}
	return true
}
