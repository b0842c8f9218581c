// Package collector gathers the syscall events a provider accepts.
package collector

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"sctrace/internal/provider"
	"sctrace/internal/tracing"
)

// Config holds configuration for the collector
type Config struct {
	// Interval flushes the syscalls gathered since the previous flush to
	// OnBatch. Zero reports a single batch when Run returns.
	Interval time.Duration
	OnBatch  func(ids []uint32)
}

// Collector reads events from a provider and keeps them in arrival order.
type Collector struct {
	provider provider.Provider
	config   Config
	logger   *zap.Logger

	mu       sync.Mutex
	syscalls []uint32
	counts   map[uint32]int
	pending  []uint32
}

// New creates a collector with the given provider and config
func New(p provider.Provider, config Config, logger *zap.Logger) *Collector {
	return &Collector{
		provider: p,
		config:   config,
		logger:   logger,
		counts:   make(map[uint32]int),
	}
}

// Run reads events until ctx ends or the provider closes. After
// cancellation it keeps reading until nothing more is buffered.
func (c *Collector) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if c.config.Interval > 0 {
		ticker := time.NewTicker(c.config.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer c.flush()

	for {
		select {
		case <-ctx.Done():
			c.drain()
			return nil
		case <-tick:
			c.flush()
		default:
			event, err := c.provider.ReadEvent()
			if err != nil {
				switch {
				case errors.Is(err, context.Canceled), errors.Is(err, provider.ErrClosed):
					return nil
				case errors.Is(err, provider.ErrNoEvent):
				default:
					c.logger.Warn("reading event", zap.Error(err))
				}
				continue
			}
			c.record(event)
		}
	}
}

// drain consumes events still buffered once reading should stop
func (c *Collector) drain() {
	for {
		event, err := c.provider.ReadEvent()
		if err != nil {
			return
		}
		c.record(event)
	}
}

func (c *Collector) record(event *tracing.SyscallEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.syscalls = append(c.syscalls, event.SyscallID)
	c.counts[event.SyscallID]++
	c.pending = append(c.pending, event.SyscallID)
}

func (c *Collector) flush() {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(batch) == 0 || c.config.OnBatch == nil {
		return
	}
	c.config.OnBatch(batch)
}

// Syscalls returns every collected syscall id in arrival order
func (c *Collector) Syscalls() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint32(nil), c.syscalls...)
}

// Count returns how many times id was collected
func (c *Collector) Count(id uint32) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[id]
}

// Total returns the number of collected events
func (c *Collector) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.syscalls)
}
