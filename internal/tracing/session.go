package tracing

import "fmt"

// Session owns the shared slots of one tracing session: the target name,
// the armed state and the event channel. The triggers and the filter all
// operate on the same Session.
type Session struct {
	targets TargetStore
	state   StateStore
	events  *EventChannel
}

// Option customizes a Session.
type Option func(*Session)

// WithTargetStore replaces the in-memory target slot.
func WithTargetStore(ts TargetStore) Option {
	return func(s *Session) { s.targets = ts }
}

// WithStateStore replaces the in-memory state word.
func WithStateStore(ss StateStore) Option {
	return func(s *Session) { s.state = ss }
}

// WithEventChannel sets where accepted events are pushed. Without one, the
// filter drops every event.
func WithEventChannel(c *EventChannel) Option {
	return func(s *Session) { s.events = c }
}

// NewSession creates an inactive, unconfigured session.
func NewSession(opts ...Option) *Session {
	s := &Session{}
	for _, opt := range opts {
		opt(s)
	}
	if s.targets == nil {
		s.targets = &MemoryTargetStore{}
	}
	if s.state == nil {
		s.state = &MemoryStateStore{}
	}
	return s
}

// SetTarget writes the command name to trace. Call it before arming.
func (s *Session) SetTarget(name string) error {
	t := NewTargetName(name)
	if err := s.targets.StoreTarget(t); err != nil {
		return fmt.Errorf("store target %q: %w", t, err)
	}
	return nil
}

// GetTarget returns the configured target, if any.
func (s *Session) GetTarget() (TargetName, bool) {
	return s.targets.LoadTarget()
}

// OnEnterTrigger arms the session.
func (s *Session) OnEnterTrigger() error {
	if err := s.state.StoreState(Active); err != nil {
		return fmt.Errorf("arm session: %w", err)
	}
	return nil
}

// OnExitTrigger disarms the session.
func (s *Session) OnExitTrigger() error {
	if err := s.state.StoreState(Inactive); err != nil {
		return fmt.Errorf("disarm session: %w", err)
	}
	return nil
}

// IsActive reports whether syscalls are currently being accepted.
func (s *Session) IsActive() bool {
	return s.state.LoadState() == Active
}

// Events returns the channel accepted events are pushed to, or nil.
func (s *Session) Events() *EventChannel {
	return s.events
}
