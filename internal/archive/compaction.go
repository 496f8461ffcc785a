// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package archive

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/telemon/internal/logging"
)

// Compactor periodically reclaims value log space of expired and
// overwritten records.
type Compactor struct {
	store    *Store
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	lastRun time.Time
}

// NewCompactor creates a compactor running at the store's GC interval.
func NewCompactor(s *Store) *Compactor {
	return &Compactor{store: s, interval: s.config.GCInterval}
}

// Start begins the background compaction loop.
func (c *Compactor) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run()

	logging.Info().Dur("interval", c.interval).Msg("archive compactor started")
	return nil
}

// Stop stops the loop and waits for a run in progress.
func (c *Compactor) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.running = false
	c.mu.Unlock()

	c.wg.Wait()
	logging.Info().Msg("archive compactor stopped")
}

// IsRunning returns whether the compactor is active.
func (c *Compactor) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// LastRun returns the time of the last completed run.
func (c *Compactor) LastRun() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRun
}

func (c *Compactor) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.RunNow()
		}
	}
}

// RunNow triggers an immediate compaction run.
func (c *Compactor) RunNow() {
	start := time.Now()
	if err := c.store.RunGC(); err != nil {
		logging.Error().Err(err).Msg("archive GC error")
	}
	c.mu.Lock()
	c.lastRun = time.Now()
	c.mu.Unlock()
	logging.Debug().Dur("duration", time.Since(start)).Msg("archive compaction finished")
}
