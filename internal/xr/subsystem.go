package xr

import (
	"errors"
	"fmt"
)

// SubsystemState is the lifecycle state of a Subsystem.
type SubsystemState int

const (
	StateCreated SubsystemState = iota
	StateStarted
	StateStopped
	StateDestroyed
)

func (s SubsystemState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrNotRunning is the invalid-operation condition: GetChanges was
	// invoked while the subsystem is not started.
	ErrNotRunning = errors.New("xr: subsystem not running")

	// ErrDestroyed is returned by lifecycle transitions attempted after
	// Destroy.
	ErrDestroyed = errors.New("xr: subsystem destroyed")
)

// Subsystem wraps a Provider with lifecycle state and descriptor-gated
// access to its optional capabilities. The state machine is
// created → started → stopped → destroyed; Start and Stop are idempotent
// no-ops when already in the target state, and GetChanges is only valid
// while started.
type Subsystem[T SessionRelativeData] struct {
	descriptor Descriptor
	provider   Provider[T]
	state      SubsystemState
}

// NewSubsystem wraps provider with the given capability descriptor.
func NewSubsystem[T SessionRelativeData](desc Descriptor, provider Provider[T]) *Subsystem[T] {
	return &Subsystem[T]{descriptor: desc, provider: provider, state: StateCreated}
}

// Descriptor returns the provider's capability record.
func (s *Subsystem[T]) Descriptor() Descriptor {
	return s.descriptor
}

// State returns the current lifecycle state.
func (s *Subsystem[T]) State() SubsystemState {
	return s.state
}

// Running reports whether the subsystem is started.
func (s *Subsystem[T]) Running() bool {
	return s.state == StateStarted
}

// Start transitions to the started state. A no-op when already started;
// fails after Destroy.
func (s *Subsystem[T]) Start() error {
	switch s.state {
	case StateStarted:
		return nil
	case StateDestroyed:
		return fmt.Errorf("start %q: %w", s.descriptor.ID, ErrDestroyed)
	}
	s.state = StateStarted
	if st, ok := s.provider.(Starter); ok {
		st.Start()
	}
	diagf("subsystem %q started", s.descriptor.ID)
	return nil
}

// Stop transitions to the stopped state. A no-op when not started; fails
// after Destroy.
func (s *Subsystem[T]) Stop() error {
	switch s.state {
	case StateCreated, StateStopped:
		return nil
	case StateDestroyed:
		return fmt.Errorf("stop %q: %w", s.descriptor.ID, ErrDestroyed)
	}
	s.state = StateStopped
	if st, ok := s.provider.(Stopper); ok {
		st.Stop()
	}
	diagf("subsystem %q stopped", s.descriptor.ID)
	return nil
}

// Destroy stops the subsystem if needed and makes it permanently unusable.
// Idempotent.
func (s *Subsystem[T]) Destroy() error {
	if s.state == StateDestroyed {
		return nil
	}
	if s.state == StateStarted {
		if err := s.Stop(); err != nil {
			return err
		}
	}
	s.state = StateDestroyed
	diagf("subsystem %q destroyed", s.descriptor.ID)
	return nil
}

// GetChanges polls the provider for the delta since the previous call.
// The returned ChangeSet borrows buf's storage and must be released before
// buf is polled again. Fails with ErrNotRunning outside the started state;
// this is never silently swallowed into an empty delta.
func (s *Subsystem[T]) GetChanges(buf *ChangeBuffer[T]) (ChangeSet[T], error) {
	if s.state != StateStarted {
		return ChangeSet[T]{}, fmt.Errorf("get changes from %q in state %s: %w",
			s.descriptor.ID, s.state, ErrNotRunning)
	}
	return s.provider.Changes(buf)
}

// TryAdd requests synchronous creation of a trackable at the given
// session-relative pose. Reports failure when the subsystem is not running,
// the descriptor does not advertise synchronous add, or the provider
// declines.
func (s *Subsystem[T]) TryAdd(pose Pose) (T, bool) {
	var zero T
	if !s.Running() || !s.descriptor.SupportsSyncAdd {
		return zero, false
	}
	adder, ok := s.provider.(SyncAdder[T])
	if !ok {
		return zero, false
	}
	return adder.TryAdd(pose)
}

// TryAddAsync requests asynchronous creation of a trackable. Natively
// asynchronous providers are called directly; providers that only implement
// the synchronous path are bridged by wrapping the synchronous result in an
// already-resolved future. When neither capability is available the
// returned future is resolved with a failed result.
func (s *Subsystem[T]) TryAddAsync(pose Pose) *Future[T] {
	if s.Running() && s.descriptor.SupportsAsyncAdd {
		if adder, ok := s.provider.(AsyncAdder[T]); ok {
			return adder.TryAddAsync(pose)
		}
	}
	value, ok := s.TryAdd(pose)
	return Resolved(Result[T]{Value: value, OK: ok})
}

// TryAttach requests creation of a trackable attached to an existing one.
func (s *Subsystem[T]) TryAttach(parent TrackableID, pose Pose) (T, bool) {
	var zero T
	if !s.Running() || !s.descriptor.SupportsAttachment {
		return zero, false
	}
	attacher, ok := s.provider.(Attacher[T])
	if !ok {
		return zero, false
	}
	return attacher.TryAttach(parent, pose)
}

// TryRemove asks the provider to stop tracking id. On success the removal
// is observed through a later poll's removed list.
func (s *Subsystem[T]) TryRemove(id TrackableID) bool {
	if !s.Running() || !s.descriptor.SupportsRemoval {
		return false
	}
	remover, ok := s.provider.(Remover)
	if !ok {
		return false
	}
	return remover.TryRemove(id)
}
