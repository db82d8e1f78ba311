// Package engine provides the day clock, the simulation state and the
// per-day phase pipeline that drives it.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Clock tracks the simulated day. A turn is active from Advance until the
// matching EndTurn; the day pipeline only runs inside that window.
type Clock struct {
	mu          sync.Mutex
	day         uint64
	turnActive  bool
	lastAdvance time.Time
}

// NewClock creates a clock at day zero that last advanced at start.
func NewClock(start time.Time) *Clock {
	return &Clock{lastAdvance: start}
}

// ShouldAdvance reports whether more than interval has passed since the last
// advance. A zero interval pauses the simulation.
func (c *Clock) ShouldAdvance(now time.Time, interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.turnActive {
		return false
	}
	return now.Sub(c.lastAdvance) > interval
}

// Advance starts the next day and returns its number.
func (c *Clock) Advance(now time.Time) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.day++
	c.turnActive = true
	c.lastAdvance = now
	return c.day
}

// EndTurn marks the current day's pipeline complete.
func (c *Clock) EndTurn() {
	c.mu.Lock()
	c.turnActive = false
	c.mu.Unlock()
}

// Day returns the current day number.
func (c *Clock) Day() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.day
}

// TurnActive reports whether a day is being processed right now.
func (c *Clock) TurnActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turnActive
}

// LastAdvance returns when the current day started.
func (c *Clock) LastAdvance() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAdvance
}

// Engine polls the clock and runs OnDay once per elapsed interval.
type Engine struct {
	Clock *Clock
	Poll  time.Duration    // How often the clock is checked
	Now   func() time.Time // Time source, replaceable in tests

	// OnDay runs the day pipeline. It is called between Advance and EndTurn.
	OnDay func(ctx context.Context, day uint64)

	interval atomic.Int64
}

// NewEngine creates an engine advancing one day per interval.
func NewEngine(interval time.Duration) *Engine {
	e := &Engine{
		Clock: NewClock(time.Now()),
		Poll:  50 * time.Millisecond,
		Now:   time.Now,
	}
	e.SetInterval(interval)
	return e
}

// Interval returns the real time between simulated days.
func (e *Engine) Interval() time.Duration {
	return time.Duration(e.interval.Load())
}

// SetInterval changes the real time between days. Zero pauses.
func (e *Engine) SetInterval(d time.Duration) {
	if d < 0 {
		d = 0
	}
	e.interval.Store(int64(d))
}

// Step runs one day if the interval has elapsed at now. It reports whether
// a day ran. Missed intervals are not replayed.
func (e *Engine) Step(ctx context.Context, now time.Time) bool {
	if !e.Clock.ShouldAdvance(now, e.Interval()) {
		return false
	}
	e.Turn(ctx, now)
	return true
}

// Turn runs the next day immediately, ignoring the interval, and returns
// its number. Headless runs drive the simulation this way.
func (e *Engine) Turn(ctx context.Context, now time.Time) uint64 {
	day := e.Clock.Advance(now)
	defer e.Clock.EndTurn()
	if e.OnDay != nil {
		e.OnDay(ctx, day)
	}
	return day
}

// Run polls until ctx is cancelled. A day in progress always completes.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("simulation engine started", "day", e.Clock.Day(), "interval", e.Interval())

	poll := e.Poll
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "day", e.Clock.Day())
			return
		case <-ticker.C:
			e.Step(context.WithoutCancel(ctx), e.Now())
		}
	}
}
