package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sctrace/internal/tracing"
)

const simPollTimeout = 10 * time.Millisecond

type opKind int

const (
	opEnter opKind = iota
	opExit
	opSyscall
)

// Op is one scripted step of a simulated trace.
type Op struct {
	kind opKind
	comm tracing.Comm
	id   uint32
}

// Enter simulates the traced function being entered.
func Enter() Op { return Op{kind: opEnter} }

// Exit simulates the traced function returning.
func Exit() Op { return Op{kind: opExit} }

// Syscall simulates a task named comm entering syscall id.
func Syscall(comm string, id uint32) Op {
	return Op{kind: opSyscall, comm: tracing.NewComm(comm), id: id}
}

// SimProvider runs the tracing session in process. Triggers and syscalls
// are replayed from scripted Ops instead of kernel probes.
type SimProvider struct {
	mu       sync.Mutex
	session  *tracing.Session
	events   *tracing.EventChannel
	attached []string
	closed   bool
	ctx      context.Context
}

// NewSimProvider creates a simulated provider whose event channel holds
// at most capacity events.
func NewSimProvider(ctx context.Context, capacity int) *SimProvider {
	events := tracing.NewEventChannel(capacity)
	return &SimProvider{
		session: tracing.NewSession(tracing.WithEventChannel(events)),
		events:  events,
		ctx:     ctx,
	}
}

func (m *SimProvider) Session() *tracing.Session {
	return m.session
}

// Replay feeds ops through the session in order and returns how many
// syscalls were accepted.
func (m *SimProvider) Replay(ops ...Op) (int, error) {
	accepted := 0
	for _, op := range ops {
		switch op.kind {
		case opEnter:
			if err := m.session.OnEnterTrigger(); err != nil {
				return accepted, err
			}
		case opExit:
			if err := m.session.OnExitTrigger(); err != nil {
				return accepted, err
			}
		case opSyscall:
			if m.session.Filter(op.id, op.comm) {
				accepted++
			}
		}
	}
	return accepted, nil
}

// AttachFunction records the attachment for later inspection.
func (m *SimProvider) AttachFunction(binary, symbol string, pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	m.attached = append(m.attached, fmt.Sprintf("%s:%s", binary, symbol))
	return nil
}

// Attached lists the binary:symbol pairs passed to AttachFunction
func (m *SimProvider) Attached() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.attached...)
}

// ReadEvent returns the next buffered event. With nothing buffered it
// waits up to simPollTimeout, like the kernel reader's poll deadline.
func (m *SimProvider) ReadEvent() (*tracing.SyscallEvent, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}

	if e, ok := m.events.TryReceive(); ok {
		return &e, nil
	}

	// Check if context is cancelled
	select {
	case <-m.ctx.Done():
		return nil, context.Canceled
	default:
	}

	ctx, cancel := context.WithTimeout(m.ctx, simPollTimeout)
	defer cancel()

	e, err := m.events.Receive(ctx)
	switch {
	case err == nil:
		return &e, nil
	case errors.Is(err, tracing.ErrChannelClosed):
		return nil, ErrClosed
	case m.ctx.Err() != nil:
		return nil, context.Canceled
	default:
		return nil, ErrNoEvent
	}
}

func (m *SimProvider) Dropped() (uint64, error) {
	return m.events.Dropped(), nil
}

// Close cleans up resources
func (m *SimProvider) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.events.Close()
	return nil
}
