package clock

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-city/internal/observe"
)

type phaseLog struct {
	mu    sync.Mutex
	order []string
	ticks []uint64
}

func (p *phaseLog) add(phase string, epoch uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.order = append(p.order, phase)
	p.ticks = append(p.ticks, epoch)
}

type tickWatcher struct{ log *phaseLog }

func (w *tickWatcher) Notify(e Tick) { w.log.add("tick", e.Epoch) }

type tockWatcher struct{ log *phaseLog }

func (w *tockWatcher) Notify(e Tock) { w.log.add("tock", e.Epoch) }

func TestTickIsFollowedByTock(t *testing.T) {
	c := New()
	defer c.Close()

	log := &phaseLog{}
	tw := &tickWatcher{log: log}
	to := &tockWatcher{log: log}
	observe.Register(c.Tickers(), tw)
	observe.Register(c.Tockers(), to)

	for i := 0; i < 3; i++ {
		c.Tick()
	}
	c.Sync()

	require.Equal(t, []string{"tick", "tock", "tick", "tock", "tick", "tock"}, log.order)
	assert.Equal(t, []uint64{1, 1, 2, 2, 3, 3}, log.ticks)
	runtime.KeepAlive(tw)
	runtime.KeepAlive(to)
}

func TestEpochIsMonotonic(t *testing.T) {
	c := New()
	defer c.Close()

	assert.Equal(t, uint64(0), c.Epoch())
	assert.Equal(t, uint64(1), c.Tick())
	assert.Equal(t, uint64(2), c.Tick())
	assert.Equal(t, uint64(2), c.Epoch())

	c.SetEpoch(40)
	assert.Equal(t, uint64(41), c.Tick())
}

func TestConcurrentTickersKeepCount(t *testing.T) {
	c := New()
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				c.Tick()
			}
		}()
	}
	wg.Wait()
	c.Sync()
	assert.Equal(t, uint64(80), c.Epoch())
}
