// Package captor drives one capture: it configures the session, arms it
// through function probes, collects events while the traced work runs and
// disarms before the final drain.
package captor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sctrace/internal/collector"
	"sctrace/internal/provider"
)

// Options describes what to trace.
type Options struct {
	// Target is the command name the filter accepts.
	Target string
	// Binary holds the Functions to probe. Without Functions the session
	// stays armed for the whole capture.
	Binary    string
	Functions []string
	// PID restricts the function probes to one process, 0 means any.
	PID int

	Interval time.Duration
	OnBatch  func(ids []uint32)
}

// Result is what a capture observed.
type Result struct {
	Syscalls []uint32
	Dropped  uint64
}

// Work is the activity being traced, such as running a command or waiting
// for a process to exit.
type Work func(ctx context.Context) error

// Capture traces work through p and returns the syscalls collected. The
// work's error is returned alongside the result.
func Capture(ctx context.Context, p provider.Provider, opts Options, work Work, logger *zap.Logger) (*Result, error) {
	if opts.Target == "" {
		return nil, errors.New("capture target is empty")
	}

	session := p.Session()
	if err := session.SetTarget(opts.Target); err != nil {
		return nil, err
	}

	if len(opts.Functions) == 0 {
		if err := session.OnEnterTrigger(); err != nil {
			return nil, err
		}
		logger.Info("tracing whole run", zap.String("target", opts.Target))
	}
	for _, fn := range opts.Functions {
		if err := p.AttachFunction(opts.Binary, fn, opts.PID); err != nil {
			return nil, fmt.Errorf("attach %s: %w", fn, err)
		}
		logger.Info("tracing function", zap.String("target", opts.Target), zap.String("function", fn))
	}

	c := collector.New(p, collector.Config{Interval: opts.Interval, OnBatch: opts.OnBatch}, logger)
	collectCtx, stopCollecting := context.WithCancel(context.Background())
	defer stopCollecting()

	collected := make(chan error, 1)
	go func() {
		collected <- c.Run(collectCtx)
	}()

	workErr := work(ctx)

	if err := session.OnExitTrigger(); err != nil {
		logger.Warn("disarming session", zap.Error(err))
	}
	stopCollecting()
	if err := <-collected; err != nil {
		return nil, fmt.Errorf("collect events: %w", err)
	}

	dropped, err := p.Dropped()
	if err != nil {
		logger.Warn("reading drop counter", zap.Error(err))
	}
	if dropped > 0 {
		logger.Warn("events dropped", zap.Uint64("dropped", dropped))
	}

	return &Result{Syscalls: c.Syscalls(), Dropped: dropped}, workErr
}
