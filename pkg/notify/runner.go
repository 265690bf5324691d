package notify

import (
	"context"
	"time"

	"github.com/0xmhha/hikelog/pkg/clock"
	"github.com/0xmhha/hikelog/pkg/logger"
)

// Runner polls a queue and delivers due notifications to every sink.
// Delivery is at most once: a notification is removed before delivery.
type Runner struct {
	queue    Queue
	sinks    []Sink
	clock    clock.Clock
	interval time.Duration
	logger   logger.Logger
}

// NewRunner creates a runner.
//
// Parameters:
//   - q: Queue to poll
//   - sinks: Delivery targets
//   - clk: Time source (nil for the system clock)
//   - interval: Poll period (default: 30 seconds)
//   - log: Logger instance
func NewRunner(q Queue, sinks []Sink, clk clock.Clock, interval time.Duration, log logger.Logger) *Runner {
	if clk == nil {
		clk = clock.Real{}
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Runner{
		queue:    q,
		sinks:    sinks,
		clock:    clk,
		interval: interval,
		logger:   log.Component("notify"),
	}
}

// Run polls until ctx is cancelled. Due notifications are delivered once
// immediately and then on every tick.
func (r *Runner) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	r.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			r.RunOnce(ctx)
		}
	}
}

// RunOnce delivers everything due now and returns how many notifications fired.
func (r *Runner) RunOnce(ctx context.Context) int {
	due, err := r.queue.Due(ctx, r.clock.Now())
	if err != nil {
		r.logger.Warn("failed to read due notifications", "error", err)
		return 0
	}

	for _, n := range due {
		for _, sink := range r.sinks {
			if err := sink.Deliver(ctx, n); err != nil {
				r.logger.Warn("failed to deliver notification", "id", n.ID, "error", err)
			}
		}
	}
	return len(due)
}
