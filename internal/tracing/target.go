// Package tracing holds the control-and-filter engine shared by the probes:
// the target name slot, the armed state and the per-syscall filter.
package tracing

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// NameCapacity is the size of a task command name buffer, NUL included.
const NameCapacity = 16

// Comm is a fixed-size, NUL-padded command name as the kernel reports it.
type Comm [NameCapacity]byte

// TargetName is the command name the filter matches against.
type TargetName Comm

// NewTargetName copies name into a NUL-padded buffer, truncating at capacity.
func NewTargetName(name string) TargetName {
	var t TargetName
	copy(t[:], name)
	return t
}

// NewComm builds the command name a task called name would report.
func NewComm(name string) Comm {
	var c Comm
	copy(c[:], TaskCommName(name))
	return c
}

// TaskCommName trims s the way the kernel trims a task's comm, leaving room
// for the terminating NUL.
func TaskCommName(s string) string {
	if len(s) > NameCapacity-1 {
		return s[:NameCapacity-1]
	}
	return s
}

func (t TargetName) String() string {
	return unix.ByteSliceToString(t[:])
}

func (c Comm) String() string {
	return unix.ByteSliceToString(c[:])
}

// TargetStore is the single-slot configuration table.
type TargetStore interface {
	StoreTarget(TargetName) error
	// LoadTarget reports false when the slot was never written.
	LoadTarget() (TargetName, bool)
}

// MemoryTargetStore keeps the target in process memory.
type MemoryTargetStore struct {
	slot atomic.Pointer[TargetName]
}

func (s *MemoryTargetStore) StoreTarget(t TargetName) error {
	s.slot.Store(&t)
	return nil
}

func (s *MemoryTargetStore) LoadTarget() (TargetName, bool) {
	t := s.slot.Load()
	if t == nil {
		return TargetName{}, false
	}
	return *t, true
}
