package status

import (
	"context"
	"sync"
	"time"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/stream"
)

// TimerData is one tick of the polling countdown.
type TimerData struct {
	MillisUntilFinished int64 `json:"millisUntilFinished"`
	Progress            int   `json:"progress"`
}

// TimerDataAt derives the countdown from the elapsed time alone.
func TimerDataAt(elapsed, total time.Duration) TimerData {
	remaining := total - elapsed
	if remaining < 0 {
		remaining = 0
	}
	progress := 0
	if total > 0 {
		progress = int(100 * remaining / total)
	}
	return TimerData{MillisUntilFinished: remaining.Milliseconds(), Progress: progress}
}

// Countdown publishes the time left until the polling ceiling.
type Countdown struct {
	state *stream.State[TimerData]

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewCountdown() *Countdown {
	return &Countdown{state: stream.NewState(TimerData{})}
}

// State exposes the countdown stream.
func (c *Countdown) State() *stream.State[TimerData] {
	return c.state
}

// Start restarts the countdown for total, ticking every interval until it reaches
// zero, ctx is done, or Cancel is called.
func (c *Countdown) Start(ctx context.Context, total, interval time.Duration) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	start := time.Now()
	c.state.Set(TimerDataAt(0, total))

	go func() {
		defer cancel()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				data := TimerDataAt(time.Since(start), total)
				c.state.Set(data)
				if data.MillisUntilFinished == 0 {
					return
				}
			}
		}
	}()
}

// Cancel stops the countdown. Safe to call repeatedly.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
