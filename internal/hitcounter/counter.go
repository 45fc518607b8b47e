package hitcounter

import (
	"articlehub/pkg/logger"
	"context"
	"errors"
	"sync"
	"time"
)

const shutdownFlushTimeout = 5 * time.Second

// Store persists accumulated views.
type Store interface {
	AddHits(ctx context.Context, uuid string, n int64) error
}

// Counter buffers article views in memory and writes them in batches.
type Counter struct {
	store   Store
	mu      sync.Mutex
	pending map[string]int64
}

func New(store Store) *Counter {
	return &Counter{store: store, pending: make(map[string]int64)}
}

// Add records one view of uuid and returns the views not yet flushed.
func (c *Counter) Add(uuid string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[uuid]++
	return c.pending[uuid]
}

// Pending returns the views of uuid not yet flushed.
func (c *Counter) Pending(uuid string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[uuid]
}

// Flush writes every pending count. Counts that fail to save stay pending.
func (c *Counter) Flush(ctx context.Context) error {
	c.mu.Lock()
	batch := c.pending
	c.pending = make(map[string]int64, len(batch))
	c.mu.Unlock()

	var errs []error
	for uuid, n := range batch {
		if err := c.store.AddHits(ctx, uuid, n); err != nil {
			logger.Sugar.Errorf("Failed to save %d hits of %s: %v", n, uuid, err)
			c.mu.Lock()
			c.pending[uuid] += n
			c.mu.Unlock()
			errs = append(errs, err)
		}
	}
	if len(batch) > 0 {
		logger.Sugar.Debugf("Flushed hits of %d articles", len(batch)-len(errs))
	}
	return errors.Join(errs...)
}

// Run flushes every interval until ctx is done, then flushes one last time.
func (c *Counter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Flush(ctx)
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
			if err := c.Flush(final); err != nil {
				logger.Sugar.Warnf("Hits lost on shutdown: %v", err)
			}
			cancel()
			return
		}
	}
}
