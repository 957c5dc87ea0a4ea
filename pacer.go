package gacha

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// ClockPacer sleeps on a clockwork clock so tests can drive reveal pacing
// with a fake clock.
type ClockPacer struct {
	clock clockwork.Clock
}

// NewClockPacer creates a pacer backed by clock. A nil clock uses wall time.
func NewClockPacer(clock clockwork.Clock) *ClockPacer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ClockPacer{clock: clock}
}

// Sleep blocks for d or until ctx is done
func (p *ClockPacer) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := p.clock.NewTimer(d)
	defer stopAndDrainTimer(timer)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

func stopAndDrainTimer(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}

// NoDelay is a pacer that never waits
type NoDelay struct{}

// Sleep only reports cancellation
func (NoDelay) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
