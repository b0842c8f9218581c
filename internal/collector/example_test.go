package collector_test

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sctrace/internal/collector"
	"sctrace/internal/provider"
)

// ExampleCollector demonstrates how to use the simulated provider for testing
func ExampleCollector() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Simulate a process entering and leaving the traced function
	sim := provider.NewSimProvider(ctx, 16)
	defer sim.Close()

	sim.Session().SetTarget("myapp")
	sim.Replay(
		provider.Syscall("myapp", 0),
		provider.Enter(),
		provider.Syscall("myapp", 1),
		provider.Syscall("bash", 2),
		provider.Syscall("myapp", 1),
		provider.Exit(),
		provider.Syscall("myapp", 3),
	)

	c := collector.New(sim, collector.Config{}, zap.NewNop())

	// Run collector in background
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx)
	}()

	// Let it process events
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	dropped, _ := sim.Dropped()
	fmt.Printf("Collected: %v\n", c.Syscalls())
	fmt.Printf("Syscall 1 count: %d\n", c.Count(1))
	fmt.Printf("Dropped: %d\n", dropped)

	// Output:
	// Collected: [1 1]
	// Syscall 1 count: 2
	// Dropped: 0
}

// ExampleCollector_backpressure shows events lost when the consumer lags
func ExampleCollector_backpressure() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sim := provider.NewSimProvider(ctx, 2)
	defer sim.Close()

	sim.Session().SetTarget("myapp")
	accepted, _ := sim.Replay(
		provider.Enter(),
		provider.Syscall("myapp", 10),
		provider.Syscall("myapp", 11),
		provider.Syscall("myapp", 12),
		provider.Syscall("myapp", 13),
	)

	c := collector.New(sim, collector.Config{}, zap.NewNop())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	dropped, _ := sim.Dropped()
	fmt.Printf("Accepted: %d\n", accepted)
	fmt.Printf("Collected: %v\n", c.Syscalls())
	fmt.Printf("Dropped: %d\n", dropped)

	// Output:
	// Accepted: 2
	// Collected: [10 11]
	// Dropped: 2
}
