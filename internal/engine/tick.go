// Package engine owns a running city: its storage, the updater driven by the
// clock, the construction controller, and the real-time tick loop.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/mini-city/internal/economy"
)

// Engine drives a game's clock in real time.
type Engine struct {
	game     *Game
	interval time.Duration // Base tick interval at speed 1

	mu          sync.Mutex
	speed       float64 // Multiplier: 1.0 = real-time, 0 = paused
	running     bool
	cancel      context.CancelFunc
	reportEvery uint64

	// OnReport runs every reportEvery epochs after the default log line.
	OnReport func(r Report)
}

// NewEngine creates an engine ticking g once per interval.
func NewEngine(g *Game, interval time.Duration, reportEvery uint64) *Engine {
	if interval <= 0 {
		interval = time.Second
	}
	return &Engine{
		game:        g,
		interval:    interval,
		speed:       1.0,
		reportEvery: reportEvery,
	}
}

// Speed returns the current multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the multiplier; 0 pauses.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = max(speed, 0)
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run ticks the game until ctx is cancelled. A tick cycle always runs to
// completion; cancellation is only observed between ticks.
func (e *Engine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.mu.Lock()
	e.running = true
	e.cancel = cancel
	e.mu.Unlock()
	slog.Info("simulation engine started", "epoch", e.game.Clock.Epoch(), "speed", e.Speed())

	defer func() {
		e.mu.Lock()
		e.running = false
		e.cancel = nil
		e.mu.Unlock()
		slog.Info("simulation engine stopped", "epoch", e.game.Clock.Epoch())
	}()

	for {
		speed := e.Speed()
		if speed <= 0 {
			// Paused; check again shortly.
			if !sleep(ctx, 100*time.Millisecond) {
				return
			}
			continue
		}

		start := time.Now()
		e.step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		target := time.Duration(float64(e.interval) / speed)
		if elapsed := time.Since(start); elapsed < target {
			if !sleep(ctx, target-elapsed) {
				return
			}
		} else if ctx.Err() != nil {
			return
		}
	}
}

// Stop ends a running Run after the current tick.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// step advances the game by one tick and tock.
func (e *Engine) step() {
	epoch := e.game.Tick()
	if e.reportEvery > 0 && epoch%e.reportEvery == 0 {
		r := e.game.Report()
		logReport(r)
		if e.OnReport != nil {
			e.OnReport(r)
		}
	}
}

func logReport(r Report) {
	slog.Info("city report",
		"epoch", r.Epoch,
		"buildings", r.Buildings,
		"territories", len(r.Territories),
		"visible", humanize.Comma(int64(r.Visible)),
		"money", humanize.Comma(int64(r.Total.Stock(economy.Money))),
		"pooled_goods", humanize.Comma(int64(r.Total.Inventory().Total())),
		"moved", humanize.Comma(int64(r.LastTick.Moved)),
		"produced", humanize.Comma(int64(r.LastTock.Produced)),
		"tick_took", r.LastTick.Duration,
	)
}
