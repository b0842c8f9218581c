// Package provider connects a tracing session to where its probes run: the
// kernel, or an in-process simulation of it.
package provider

import (
	"errors"

	"sctrace/internal/tracing"
)

var (
	// ErrNoEvent is returned by ReadEvent when no event arrived within the
	// poll interval.
	ErrNoEvent = errors.New("no event available")
	// ErrClosed is returned by ReadEvent once the provider is closed.
	ErrClosed = errors.New("provider closed")
)

// Provider defines the operations of a tracing backend
type Provider interface {
	// Session is the control plane shared with the probes
	Session() *tracing.Session

	// AttachFunction binds the enter and exit triggers to symbol in binary.
	// pid restricts the triggers to one process, 0 means any.
	AttachFunction(binary, symbol string, pid int) error

	// ReadEvent returns the next accepted syscall event
	ReadEvent() (*tracing.SyscallEvent, error)

	// Dropped reports how many events were lost to backpressure
	Dropped() (uint64, error)

	// Close detaches everything and releases resources
	Close() error
}
