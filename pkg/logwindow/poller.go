package logwindow

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is the live-tail cadence when none is configured.
const DefaultPollInterval = 5 * time.Second

// Poller repeatedly invokes LoadNewer to achieve near-real-time tailing. It
// is a handle owned by the panel's lifetime: started on activation, stopped
// on teardown, never left running unobserved. Persistent fetch failures are
// surfaced once per tick through the controller's error callback; they do
// not stop the timer.
type Poller struct {
	controller *Controller
	interval   time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewPoller creates a poller for the given controller. A non-positive
// interval falls back to DefaultPollInterval.
func NewPoller(c *Controller, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{controller: c, interval: interval}
}

// Start begins ticking. Starting an already-running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	go p.run(loopCtx, ctx)
}

// Stop cancels future ticks. It is idempotent. A fetch already in flight is
// allowed to complete and merge normally.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
}

// Running reports whether the poller is currently started.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// run ticks until loopCtx is cancelled. Fetches run under fetchCtx, the
// context Start was given, so Stop ends the ticker without aborting a fetch
// already in flight.
func (p *Poller) run(loopCtx, fetchCtx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-loopCtx.Done():
			return
		case <-ticker.C:
			// Errors reach the controller's OnError callback; a stale
			// window recovers on the next tick.
			_, _ = p.controller.LoadNewer(fetchCtx)
		}
	}
}
