// Package clock provides the two-phase simulation heartbeat.
// Every Tick is immediately followed by its paired Tock.
package clock

import (
	"sync"
	"sync/atomic"

	"github.com/talgya/mini-city/internal/observe"
)

// Tick drives inter-building consumption.
type Tick struct {
	Epoch uint64 `json:"epoch"`
}

// Tock drives production.
type Tock struct {
	Epoch uint64 `json:"epoch"`
}

// Clock publishes Tick and Tock events through one shared dispatcher, so a
// Tick is delivered to all of its observers before its Tock is delivered.
type Clock struct {
	epoch atomic.Uint64
	mu    sync.Mutex // serializes Tick callers

	dispatcher *observe.Dispatcher
	tickers    *observe.Observers[Tick]
	tockers    *observe.Observers[Tock]
}

// New creates a clock at epoch 0.
func New() *Clock {
	d := observe.NewDispatcher(observe.DefaultQueue)
	return &Clock{
		dispatcher: d,
		tickers:    observe.NewWithDispatcher[Tick](d),
		tockers:    observe.NewWithDispatcher[Tock](d),
	}
}

// Tickers returns the registry of Tick observers.
func (c *Clock) Tickers() *observe.Observers[Tick] { return c.tickers }

// Tockers returns the registry of Tock observers.
func (c *Clock) Tockers() *observe.Observers[Tock] { return c.tockers }

// Epoch returns the number of ticks emitted so far.
func (c *Clock) Epoch() uint64 { return c.epoch.Load() }

// SetEpoch restores the counter, e.g. when resuming from a journal.
func (c *Clock) SetEpoch(epoch uint64) { c.epoch.Store(epoch) }

// Tick advances the epoch and queues Tick followed by Tock.
// It returns without waiting for delivery; see Sync.
func (c *Clock) Tick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	epoch := c.epoch.Add(1)
	c.tickers.NotifyAll(Tick{Epoch: epoch})
	c.tockers.NotifyAll(Tock{Epoch: epoch})
	return epoch
}

// Sync blocks until every queued phase has been delivered.
func (c *Clock) Sync() { c.dispatcher.Sync() }

// Close stops delivering events.
func (c *Clock) Close() { c.dispatcher.Close() }
