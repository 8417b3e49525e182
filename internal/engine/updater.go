package engine

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/mini-city/internal/clock"
	"github.com/talgya/mini-city/internal/observe"
	"github.com/talgya/mini-city/internal/world"
)

// PhaseStats summarizes one tick or tock pass.
type PhaseStats struct {
	Epoch     uint64        `json:"epoch"`
	Buildings int           `json:"buildings"`
	Moved     uint64        `json:"moved"`     // Units transferred between neighbors
	Harvested uint64        `json:"harvested"` // Units yielded
	Produced  uint64        `json:"produced"`  // Units made by recipes
	Retries   uint64        `json:"retries"`   // Lock backoffs during transfers
	Panics    uint64        `json:"panics"`
	Duration  time.Duration `json:"duration"`
}

// Updater runs the consumption phase on every Tick and the production phase
// on every Tock, spread over a bounded pool of goroutines.
type Updater struct {
	storage *Storage
	workers int

	// Held here so the clock's weak registrations live as long as the updater.
	onTick *observe.Func[clock.Tick]
	onTock *observe.Func[clock.Tock]

	mu       sync.Mutex
	lastTick PhaseStats
	lastTock PhaseStats
}

// NewUpdater creates an updater over s. workers <= 0 means GOMAXPROCS.
func NewUpdater(s *Storage, workers int) *Updater {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	u := &Updater{storage: s, workers: workers}
	tick := observe.Func[clock.Tick](func(e clock.Tick) { u.Tick(e.Epoch) })
	tock := observe.Func[clock.Tock](func(e clock.Tock) { u.Tock(e.Epoch) })
	u.onTick, u.onTock = &tick, &tock
	return u
}

// Attach subscribes the updater to both phases of c.
func (u *Updater) Attach(c *clock.Clock) {
	observe.Register(c.Tickers(), u.onTick)
	observe.Register(c.Tockers(), u.onTock)
}

// LastStats returns the stats of the most recent tick and tock.
func (u *Updater) LastStats() (tick, tock PhaseStats) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastTick, u.lastTock
}

type counters struct {
	moved, harvested, produced, retries, panics atomic.Uint64
}

func (c *counters) stats(epoch uint64, n int, start time.Time) PhaseStats {
	return PhaseStats{
		Epoch:     epoch,
		Buildings: n,
		Moved:     c.moved.Load(),
		Harvested: c.harvested.Load(),
		Produced:  c.produced.Load(),
		Retries:   c.retries.Load(),
		Panics:    c.panics.Load(),
		Duration:  time.Since(start),
	}
}

// Tick lets every building pull its inputs from the buildings in its
// influence range.
func (u *Updater) Tick(epoch uint64) PhaseStats {
	start := time.Now()
	var c counters
	n := u.forEach(&c, func(at world.HexCoord) {
		u.consumeAround(at, &c)
	})
	st := c.stats(epoch, n, start)
	slog.Debug("tick phase", "epoch", epoch, "buildings", n, "moved", st.Moved, "retries", st.Retries, "took", st.Duration)

	u.mu.Lock()
	u.lastTick = st
	u.mu.Unlock()
	return st
}

// Tock lets every building harvest and then produce.
func (u *Updater) Tock(epoch uint64) PhaseStats {
	start := time.Now()
	var c counters
	n := u.forEach(&c, func(at world.HexCoord) {
		ref, ok := u.storage.Buildings.SpinGetMut(at)
		if !ok {
			return
		}
		defer ref.Release()
		c.harvested.Add(ref.Instance().Yield())
		c.produced.Add(ref.Instance().Produce())
	})
	st := c.stats(epoch, n, start)
	slog.Debug("tock phase", "epoch", epoch, "buildings", n, "harvested", st.Harvested, "produced", st.Produced, "took", st.Duration)

	u.mu.Lock()
	u.lastTock = st
	u.mu.Unlock()
	return st
}

// forEach runs fn for every building coordinate under the storage read lock.
// A panicking fn is logged and counted; the phase still completes.
func (u *Updater) forEach(c *counters, fn func(world.HexCoord)) int {
	u.storage.mu.RLock()
	defer u.storage.mu.RUnlock()

	coords := u.storage.Buildings.Coordinates()
	var g errgroup.Group
	g.SetLimit(u.workers)
	for _, at := range coords {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					c.panics.Add(1)
					slog.Error("building update panicked", "coordinate", at.String(), "panic", fmt.Sprint(r))
				}
			}()
			fn(at)
			return nil
		})
	}
	_ = g.Wait()
	return len(coords)
}

func (u *Updater) consumeAround(at world.HexCoord, c *counters) {
	t, ok := u.storage.Buildings.TileAt(at)
	if !ok || !t.HasState() {
		return
	}
	for n := range t.InfluenceAt(at).All() {
		if n == at || !u.storage.Buildings.Occupied(n) {
			continue
		}
		u.consumePair(at, n, c)
	}
}

func (u *Updater) consumePair(at, from world.HexCoord, c *counters) {
	self, neighbor, retries, ok := u.storage.Buildings.SpinPair(at, from)
	if !ok {
		return
	}
	defer self.Release()
	defer neighbor.Release()
	c.retries.Add(uint64(retries))
	c.moved.Add(self.Instance().Consume(neighbor.Instance()))
}
