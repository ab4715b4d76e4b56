package app

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// tickInterval is the countdown resolution.
const tickInterval = time.Second

// countdown is a cancellable periodic pulse source, one per live question.
// The owning Room compares its current countdown against the one delivering
// a pulse, so a pulse that wakes after cancellation is inert.
type countdown struct {
	ctx    context.Context
	cancel context.CancelFunc
	ticker clockwork.Ticker
}

// startCountdown creates the ticker synchronously and pulses on a background
// goroutine until pulse returns false or the countdown is stopped.
func startCountdown(clock clockwork.Clock, interval time.Duration, pulse func(*countdown) bool) *countdown {
	ctx, cancel := context.WithCancel(context.Background())
	cd := &countdown{
		ctx:    ctx,
		cancel: cancel,
		ticker: clock.NewTicker(interval),
	}
	go cd.run(pulse)
	return cd
}

func (c *countdown) run(pulse func(*countdown) bool) {
	defer c.ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.ticker.Chan():
			// A tick may already be buffered when Stop runs.
			if c.ctx.Err() != nil {
				return
			}
			if !pulse(c) {
				c.cancel()
				return
			}
		}
	}
}

// Stop is idempotent and safe on a nil countdown.
func (c *countdown) Stop() {
	if c == nil {
		return
	}
	c.cancel()
}

func (c *countdown) stopped() bool {
	return c == nil || c.ctx.Err() != nil
}

