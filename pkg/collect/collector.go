package collect

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tailview/pkg/core"
	"tailview/pkg/logstore"
)

var (
	ingestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tailview_entries_ingested_total",
		Help: "Log entries written to the store, by service.",
	}, []string{"service"})

	prunedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tailview_entries_pruned_total",
		Help: "Log entries removed by retention pruning.",
	})
)

// Collector drains every configured source into the store. Entries are
// buffered and flushed in batches so a chatty source costs one transaction
// per flush interval, not one per line.
type Collector struct {
	store         *logstore.Store
	sources       []core.Source
	flushInterval time.Duration
	retention     time.Duration
	logger        *slog.Logger

	mu      sync.Mutex
	pending []core.LogEntry
}

// New creates a collector. A non-positive flushInterval defaults to 500ms.
func New(store *logstore.Store, sources []core.Source, flushInterval, retention time.Duration, logger *slog.Logger) *Collector {
	if flushInterval <= 0 {
		flushInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		store:         store,
		sources:       sources,
		flushInterval: flushInterval,
		retention:     retention,
		logger:        logger,
	}
}

// Run starts every source and blocks until the context is cancelled. Sources
// that fail to start are logged and skipped; the rest keep running.
func (c *Collector) Run(ctx context.Context) {
	var wg sync.WaitGroup
	started := 0
	for _, src := range c.sources {
		ch, err := src.Start(ctx)
		if err != nil {
			c.logger.Error("source start failed", "source", src.Name(), "service", src.Service(), "err", err)
			continue
		}
		started++
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.drain(ch)
		}()
	}
	c.logger.Info("collector running", "sources", started)

	flush := time.NewTicker(c.flushInterval)
	defer flush.Stop()
	prune := time.NewTicker(time.Hour)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			c.flush(context.Background())
			return
		case <-flush.C:
			c.flush(ctx)
		case <-prune.C:
			c.prune(ctx)
		}
	}
}

func (c *Collector) drain(ch <-chan core.LogEntry) {
	for entry := range ch {
		c.mu.Lock()
		c.pending = append(c.pending, entry)
		c.mu.Unlock()
	}
}

func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	if _, err := c.store.Append(ctx, batch); err != nil {
		c.logger.Error("flush failed", "entries", len(batch), "err", err)
		// Put the batch back so the next flush retries it.
		c.mu.Lock()
		c.pending = append(batch, c.pending...)
		c.mu.Unlock()
		return
	}
	for _, e := range batch {
		ingestedTotal.WithLabelValues(e.Service).Inc()
	}
}

func (c *Collector) prune(ctx context.Context) {
	removed, err := c.store.Prune(ctx, c.retention)
	if err != nil {
		c.logger.Error("prune failed", "err", err)
		return
	}
	if removed > 0 {
		prunedTotal.Add(float64(removed))
		c.logger.Info("pruned entries", "removed", removed)
	}
}
