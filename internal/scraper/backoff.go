package scraper

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Exponential backoff between failed refresh attempts: start at 200ms,
// double each retry via retry.NextBackoff, cap at 5s.
const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
	maxAttempts    = 5
)

// sleepWithContext mirrors retry.SleepWithContext on an injectable clock.
func sleepWithContext(ctx context.Context, clk clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clk.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
