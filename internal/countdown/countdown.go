// Package countdown derives the seconds-remaining display value for the
// active question. The value is recomputed from the deadline and the clock on
// every tick rather than decremented, so a suspended or drifting ticker
// self-corrects on the next sample.
package countdown

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultTick is the sampling cadence for countdown updates.
const DefaultTick = time.Second

// Engine produces a monotonically non-increasing seconds-remaining value for
// a fixed deadline. Reaching zero only disables local answer selection; it
// does not mark the question inactive, which stays authoritative with the
// source.
type Engine struct {
	clock clockwork.Clock
	tick  time.Duration

	mu       sync.Mutex
	deadline time.Time
}

// NewEngine creates an engine with no deadline; Remaining is zero until
// SetDeadline is called.
func NewEngine(clock clockwork.Clock, tick time.Duration) *Engine {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Engine{clock: clock, tick: tick}
}

// SetDeadline restarts the countdown against a new deadline. Called whenever
// the observed question id changes.
func (e *Engine) SetDeadline(deadline time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !deadline.Equal(e.deadline) {
		e.deadline = deadline
		log.Debug().Time("deadline", deadline).Msg("countdown reset")
	}
}

// Clear drops the deadline; Remaining returns zero until the next SetDeadline.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deadline = time.Time{}
}

// Remaining is max(0, floor(deadline - now)) in whole seconds.
func (e *Engine) Remaining() int64 {
	e.mu.Lock()
	deadline := e.deadline
	e.mu.Unlock()

	if deadline.IsZero() {
		return 0
	}
	remaining := int64(deadline.Sub(e.clock.Now()) / time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Run samples the countdown on the fixed tick cadence and reports each value
// until the context is cancelled. The ticker stops deterministically on
// cancellation; resuming a view starts a fresh Run rather than reviving this
// one.
func (e *Engine) Run(ctx context.Context, onTick func(remaining int64)) {
	ticker := e.clock.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("countdown stopped")
			return
		case <-ticker.Chan():
			onTick(e.Remaining())
		}
	}
}
