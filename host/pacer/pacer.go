// Package pacer runs a cycle-stepped simulation at a wall-clock rate
package pacer

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// StepFunc evaluates up to n cycles and returns how many it stepped
type StepFunc func(ctx context.Context, n uint64) (uint64, error)

// Pacer converts elapsed wall time into cycles owed at a clock rate
type Pacer struct {
	clock    clock.Clock
	hz       float64
	interval time.Duration
	start    time.Time
	done     uint64
}

// New returns a pacer for a hz clock that catches up every interval
func New(c clock.Clock, hz float64, interval time.Duration) *Pacer {
	if c == nil {
		c = clock.New()
	}
	return &Pacer{clock: c, hz: hz, interval: interval, start: c.Now()}
}

// Done returns the cycles stepped so far
func (p *Pacer) Done() uint64 { return p.done }

// Due returns the cycles owed at the current time
func (p *Pacer) Due() uint64 {
	target := uint64(p.clock.Since(p.start).Seconds() * p.hz)
	if target <= p.done {
		return 0
	}
	return target - p.done
}

// Run steps the owed cycles on every tick until ctx is done or step fails
func (p *Pacer) Run(ctx context.Context, step StepFunc) error {
	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n := p.Due()
			if n == 0 {
				continue
			}
			stepped, err := step(ctx, n)
			p.done += stepped
			if err != nil {
				return err
			}
		}
	}
}
