package provider

import (
	"github.com/cilium/ebpf"
	"go.uber.org/zap"

	"sctrace/internal/tracing"
)

var slotKey = uint32(0)

// mapTargetStore keeps the target name in slot 0 of an array map.
type mapTargetStore struct {
	m *ebpf.Map
}

func (s *mapTargetStore) StoreTarget(t tracing.TargetName) error {
	return s.m.Update(slotKey, &t, ebpf.UpdateAny)
}

// LoadTarget treats the zeroed slot of a fresh array map as unset.
func (s *mapTargetStore) LoadTarget() (tracing.TargetName, bool) {
	var t tracing.TargetName
	if err := s.m.Lookup(slotKey, &t); err != nil {
		return tracing.TargetName{}, false
	}
	if t[0] == 0 {
		return tracing.TargetName{}, false
	}
	return t, true
}

// mapStateStore keeps the state word in slot 0 of an array map.
type mapStateStore struct {
	m      *ebpf.Map
	logger *zap.Logger
}

func (s *mapStateStore) StoreState(st tracing.State) error {
	return s.m.Update(slotKey, uint32(st), ebpf.UpdateAny)
}

func (s *mapStateStore) LoadState() tracing.State {
	var v uint32
	if err := s.m.Lookup(slotKey, &v); err != nil {
		s.logger.Debug("state lookup failed", zap.Error(err))
		return tracing.Inactive
	}
	return tracing.State(v)
}
