package tracing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrChannelClosed is returned by Receive once the channel is closed and empty.
var ErrChannelClosed = errors.New("event channel closed")

// EventChannel is a bounded, lossy queue of syscall events. Producers never
// block: a push into a full or closed channel is dropped and counted.
type EventChannel struct {
	ch        chan SyscallEvent
	done      chan struct{}
	closed    atomic.Bool
	dropped   atomic.Uint64
	closeOnce sync.Once
}

// NewEventChannel creates a channel holding at most capacity events.
func NewEventChannel(capacity int) *EventChannel {
	if capacity < 1 {
		capacity = 1
	}
	return &EventChannel{
		ch:   make(chan SyscallEvent, capacity),
		done: make(chan struct{}),
	}
}

// TryPush enqueues e without blocking and reports whether it was accepted.
// A nil channel accepts nothing.
func (c *EventChannel) TryPush(e SyscallEvent) bool {
	if c == nil {
		return false
	}
	if c.closed.Load() {
		c.dropped.Add(1)
		return false
	}
	select {
	case c.ch <- e:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// TryReceive dequeues an event if one is buffered.
func (c *EventChannel) TryReceive() (SyscallEvent, bool) {
	select {
	case e := <-c.ch:
		return e, true
	default:
		return SyscallEvent{}, false
	}
}

// Receive blocks until an event is available, the context ends or the
// channel is closed. Buffered events are still delivered after Close.
func (c *EventChannel) Receive(ctx context.Context) (SyscallEvent, error) {
	if e, ok := c.TryReceive(); ok {
		return e, nil
	}
	select {
	case e := <-c.ch:
		return e, nil
	case <-ctx.Done():
		return SyscallEvent{}, ctx.Err()
	case <-c.done:
		if e, ok := c.TryReceive(); ok {
			return e, nil
		}
		return SyscallEvent{}, ErrChannelClosed
	}
}

// Len returns the number of buffered events.
func (c *EventChannel) Len() int {
	return len(c.ch)
}

// Dropped returns how many pushes were rejected.
func (c *EventChannel) Dropped() uint64 {
	if c == nil {
		return 0
	}
	return c.dropped.Load()
}

// Close stops accepting events. It is safe to call more than once.
func (c *EventChannel) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
	})
}
