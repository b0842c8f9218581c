// Package bpfprog builds the kernel side of a tracing session: the shared
// maps and the filter and trigger programs that operate on them.
package bpfprog

import (
	"errors"
	"fmt"
	"os"

	"github.com/cilium/ebpf"

	"sctrace/internal/tracing"
)

const (
	ConfigMapName = "config_map"
	StateMapName  = "state_map"
	EventsMapName = "events"
	DropsMapName  = "drops"

	// DefaultRingBufferSize is the size of the events ring buffer in bytes.
	DefaultRingBufferSize = 256 * 1024
)

// Maps holds the session's kernel maps.
type Maps struct {
	Config *ebpf.Map
	State  *ebpf.Map
	Events *ebpf.Map
	Drops  *ebpf.Map
}

// MapSpecs describes the session maps. ringSize must be a power of two and a
// multiple of the page size.
func MapSpecs(ringSize uint32) map[string]*ebpf.MapSpec {
	return map[string]*ebpf.MapSpec{
		ConfigMapName: {
			Name:       ConfigMapName,
			Type:       ebpf.Array,
			KeySize:    4,
			ValueSize:  tracing.NameCapacity,
			MaxEntries: 1,
		},
		StateMapName: {
			Name:       StateMapName,
			Type:       ebpf.Array,
			KeySize:    4,
			ValueSize:  4,
			MaxEntries: 1,
		},
		EventsMapName: {
			Name:       EventsMapName,
			Type:       ebpf.RingBuf,
			MaxEntries: ringSize,
		},
		DropsMapName: {
			Name:       DropsMapName,
			Type:       ebpf.PerCPUArray,
			KeySize:    4,
			ValueSize:  8,
			MaxEntries: 1,
		},
	}
}

// ValidateRingSize checks the constraints the kernel puts on ring buffers.
func ValidateRingSize(size uint32) error {
	page := uint32(os.Getpagesize())
	if size == 0 || size&(size-1) != 0 {
		return fmt.Errorf("ring buffer size %d is not a power of two", size)
	}
	if size%page != 0 {
		return fmt.Errorf("ring buffer size %d is not a multiple of the page size %d", size, page)
	}
	return nil
}

// NewMaps creates the session maps in the kernel.
func NewMaps(ringSize uint32) (*Maps, error) {
	if err := ValidateRingSize(ringSize); err != nil {
		return nil, err
	}

	specs := MapSpecs(ringSize)
	m := &Maps{}
	targets := []struct {
		name string
		dst  **ebpf.Map
	}{
		{ConfigMapName, &m.Config},
		{StateMapName, &m.State},
		{EventsMapName, &m.Events},
		{DropsMapName, &m.Drops},
	}
	for _, t := range targets {
		mp, err := ebpf.NewMap(specs[t.name])
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("create map %s: %w", t.name, err)
		}
		*t.dst = mp
	}
	return m, nil
}

// Close releases every map that was created.
func (m *Maps) Close() error {
	var errs []error
	for _, mp := range []*ebpf.Map{m.Events, m.Drops, m.State, m.Config} {
		if mp == nil {
			continue
		}
		if err := mp.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
