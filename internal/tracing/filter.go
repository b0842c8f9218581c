package tracing

// CommEqual compares the current task name against the target, looking at no
// more than NameCapacity bytes. The first differing byte makes them unequal;
// a NUL in comm reached before any difference makes them equal.
func CommEqual(comm *Comm, target *TargetName) bool {
	for i := 0; i < NameCapacity; i++ {
		if comm[i] != target[i] {
			return false
		}
		if comm[i] == 0 {
			return true
		}
	}
	return true
}

// Filter runs once per syscall entry. comm is the name of the task making
// the call. It reports whether an event was emitted.
func (s *Session) Filter(id uint32, comm Comm) bool {
	if s.state.LoadState() != Active {
		return false
	}
	target, ok := s.targets.LoadTarget()
	if !ok {
		return false
	}
	if !CommEqual(&comm, &target) {
		return false
	}
	return s.events.TryPush(SyscallEvent{SyscallID: id})
}
