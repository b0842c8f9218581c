package tracing

import "sync/atomic"

// State is the armed flag shared by the triggers and the filter.
type State uint32

const (
	Inactive State = 0
	Active   State = 1
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// StateStore holds a single State word. Writers store, readers load; no
// read-modify-write is ever needed.
type StateStore interface {
	StoreState(State) error
	LoadState() State
}

// MemoryStateStore keeps the state in process memory.
type MemoryStateStore struct {
	v atomic.Uint32
}

func (s *MemoryStateStore) StoreState(st State) error {
	s.v.Store(uint32(st))
	return nil
}

func (s *MemoryStateStore) LoadState() State {
	return State(s.v.Load())
}
