package tracing

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EventSize is the size of a SyscallEvent record on the wire.
const EventSize = 4

// SyscallEvent structure matching the record emitted by the filter program
type SyscallEvent struct {
	SyscallID uint32
}

// DecodeEvent parses a raw record produced by the kernel filter.
func DecodeEvent(raw []byte) (SyscallEvent, error) {
	var e SyscallEvent
	if len(raw) < EventSize {
		return e, fmt.Errorf("short record: %d bytes", len(raw))
	}
	if err := binary.Read(bytes.NewReader(raw[:EventSize]), binary.NativeEndian, &e); err != nil {
		return e, fmt.Errorf("parsing event: %w", err)
	}
	return e, nil
}
