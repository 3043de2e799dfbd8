package xr

import (
	"errors"
	"fmt"
)

var (
	// ErrNilTrackable is the invalid-argument condition for APIs that
	// require a trackable handle.
	ErrNilTrackable = errors.New("xr: nil trackable")

	// ErrInvalidID is returned when an operation requires an assigned
	// identifier and the sentinel was supplied.
	ErrInvalidID = errors.New("xr: invalid trackable identifier")
)

// changeSetValidation enables structural validation of every polled
// ChangeSet. Off by default; intended for debug and development runs.
var changeSetValidation bool

// SetChangeSetValidation toggles debug validation of polled ChangeSets.
func SetChangeSetValidation(enabled bool) {
	changeSetValidation = enabled
}

// Observer receives the per-cycle change notification. Trackables in
// removed have already left the managed set but are not yet destroyed when
// the callback runs; destruction follows immediately after it returns, even
// when it returns an error or panics.
type Observer[T SessionRelativeData] interface {
	OnTrackablesChanged(added, updated, removed []*Trackable[T]) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc[T SessionRelativeData] func(added, updated, removed []*Trackable[T]) error

func (f ObserverFunc[T]) OnTrackablesChanged(added, updated, removed []*Trackable[T]) error {
	return f(added, updated, removed)
}

// ManagerConfig holds the injected collaborators for a Manager.
type ManagerConfig[T SessionRelativeData] struct {
	// Subsystem supplies the per-cycle delta. Optional: a manager without
	// a subsystem treats Poll as a no-op.
	Subsystem *Subsystem[T]

	// Factory builds representations for new trackables. Optional; when
	// nil trackables carry an inert representation.
	Factory RepresentationFactory[T]

	// Origin is the placement anchor: the world pose of the tracking
	// session's origin. Defaults to the identity transform.
	Origin Pose

	// Observer receives the added/updated/removed notification. Optional.
	Observer Observer[T]

	// OnCreated runs synchronously when a trackable is first constructed,
	// before its initial data is applied. Optional.
	OnCreated func(*Trackable[T])

	// OnAfterSessionRelativeDataApplied runs synchronously every time
	// session-relative data has been applied to a trackable. Optional.
	OnAfterSessionRelativeDataApplied func(*Trackable[T], T)
}

// Manager is the reconciliation engine for one trackable kind. It owns the
// identifier-keyed set of live trackables, applies each poll's delta,
// supports locally created ("pending") trackables ahead of provider
// confirmation, and emits change notifications.
//
// Manager is single-writer: Poll, CreateImmediate, DestroyPending and the
// other mutating entry points must all be called from the same goroutine,
// and never from inside a change notification.
type Manager[T SessionRelativeData] struct {
	subsystem *Subsystem[T]
	factory   RepresentationFactory[T]
	observer  Observer[T]
	onCreated func(*Trackable[T])
	onApplied func(*Trackable[T], T)

	origin Pose

	trackables map[TrackableID]*Trackable[T]
	order      []*Trackable[T]
	pending    map[TrackableID]*Trackable[T]

	buf *ChangeBuffer[T]

	// staged notification buckets, reused across polls
	addedBuf   []*Trackable[T]
	updatedBuf []*Trackable[T]
	removedBuf []*Trackable[T]
}

// NewManager builds a Manager from cfg.
func NewManager[T SessionRelativeData](cfg ManagerConfig[T]) *Manager[T] {
	origin := cfg.Origin
	if !origin.IsValid() {
		origin = IdentityPose()
	}
	return &Manager[T]{
		subsystem:  cfg.Subsystem,
		factory:    cfg.Factory,
		observer:   cfg.Observer,
		onCreated:  cfg.OnCreated,
		onApplied:  cfg.OnAfterSessionRelativeDataApplied,
		origin:     origin,
		trackables: make(map[TrackableID]*Trackable[T]),
		pending:    make(map[TrackableID]*Trackable[T]),
		buf:        NewChangeBuffer[T](),
	}
}

// Subsystem returns the wrapped subsystem, or nil.
func (m *Manager[T]) Subsystem() *Subsystem[T] {
	return m.subsystem
}

// Len returns the number of managed trackables, pending ones included.
func (m *Manager[T]) Len() int {
	return len(m.trackables)
}

// PendingLen returns the number of trackables awaiting provider
// confirmation.
func (m *Manager[T]) PendingLen() int {
	return len(m.pending)
}

// Get returns the trackable for id, if managed.
func (m *Manager[T]) Get(id TrackableID) (*Trackable[T], bool) {
	t, ok := m.trackables[id]
	return t, ok
}

// Trackables returns the managed trackables in insertion order. The slice
// is a snapshot: destroying trackables mid-iteration cannot invalidate it.
func (m *Manager[T]) Trackables() []*Trackable[T] {
	out := make([]*Trackable[T], len(m.order))
	copy(out, m.order)
	return out
}

// Origin returns the current placement-anchor transform.
func (m *Manager[T]) Origin() Pose {
	return m.origin
}

// Poll runs one reconciliation cycle: acquire the provider's delta, apply
// it to the managed set, notify the observer, then destroy removed
// trackables. A no-op when the subsystem is absent or not running.
//
// Destruction of removed trackables is guaranteed: it runs after the
// notification returns, errors, or panics. An observer error propagates to
// the caller after destruction has completed. The managed set is never left
// half-applied; a validation or provider error aborts the cycle before any
// mutation.
func (m *Manager[T]) Poll() error {
	if m.subsystem == nil || !m.subsystem.Running() {
		return nil
	}
	changes, err := m.subsystem.GetChanges(m.buf)
	if err != nil {
		return err
	}
	// The deferred release also covers the validation error path, so the
	// borrowed buffer is returned before the error reaches the caller.
	defer changes.Release()

	if changeSetValidation {
		if err := changes.Validate(); err != nil {
			opsf("change set from %q failed validation: %v", m.subsystem.Descriptor().ID, err)
			return fmt.Errorf("change set from %q: %w", m.subsystem.Descriptor().ID, err)
		}
	}

	added := m.addedBuf[:0]
	updated := m.updatedBuf[:0]
	removed := m.removedBuf[:0]

	// Records already present bucket as updated regardless of which list
	// the provider put them in: a locally created trackable confirmed by
	// this delta was visible to consumers all along, so it must not
	// surface as "added" now.
	for _, d := range changes.Added {
		t, isNew := m.createOrUpdate(d)
		if isNew {
			added = append(added, t)
		} else {
			updated = append(updated, t)
		}
	}
	for _, d := range changes.Updated {
		t, isNew := m.createOrUpdate(d)
		if isNew {
			added = append(added, t)
		} else {
			updated = append(updated, t)
		}
	}
	for _, id := range changes.Removed {
		t, ok := m.trackables[id]
		if !ok {
			continue
		}
		delete(m.trackables, id)
		delete(m.pending, id)
		m.removeFromOrder(t)
		removed = append(removed, t)
	}

	m.addedBuf = added
	m.updatedBuf = updated
	m.removedBuf = removed

	if len(added) == 0 && len(updated) == 0 && len(removed) == 0 {
		return nil
	}
	tracef("reconcile: %d added, %d updated, %d removed, %d live",
		len(added), len(updated), len(removed), len(m.trackables))
	return m.notifyAndFinalize(added, updated, removed)
}

// notifyAndFinalize fires the change notification exactly once, then
// destroys every staged-removed trackable whose DestroyOnRemoval flag is
// set. The deferred destruction runs even when the observer errors or
// panics.
func (m *Manager[T]) notifyAndFinalize(added, updated, removed []*Trackable[T]) error {
	defer func() {
		for _, t := range removed {
			if t.destroyOnRemoval {
				t.rep.Destroy()
			}
		}
	}()
	if m.observer == nil {
		return nil
	}
	return m.observer.OnTrackablesChanged(added, updated, removed)
}

// createOrUpdate is the reconciliation primitive. An identifier already in
// the managed set has its pending state cleared and the new data applied;
// an unseen identifier produces a new trackable with a representation built
// by the factory. Idempotent in entity identity: repeated calls with the
// same identifier return the same handle.
func (m *Manager[T]) createOrUpdate(data T) (t *Trackable[T], isNew bool) {
	id := data.TrackableID()
	if t, ok := m.trackables[id]; ok {
		if t.pending {
			delete(m.pending, id)
			t.pending = false
			diagf("trackable %s confirmed by provider", id)
		}
		m.apply(t, data)
		return t, false
	}

	world := m.origin.Mul(data.Pose())
	var rep Representation
	if m.factory != nil {
		rep = m.factory(data, world)
	} else {
		rep = nopRepresentation{}
	}
	t = &Trackable[T]{
		id:               id,
		rep:              rep,
		destroyOnRemoval: true,
	}
	m.trackables[id] = t
	m.order = append(m.order, t)
	if m.onCreated != nil {
		m.onCreated(t)
	}
	m.apply(t, data)
	return t, true
}

// apply stores data on the trackable and recomputes its world placement
// from the session-relative pose.
func (m *Manager[T]) apply(t *Trackable[T], data T) {
	t.data = data
	t.rep.SetPose(m.origin.Mul(data.Pose()))
	if m.onApplied != nil {
		m.onApplied(t, data)
	}
}

// CreateImmediate constructs (or adopts) a trackable for data ahead of
// provider confirmation and marks it pending. No change notification fires;
// the caller observes the trackable synchronously through the returned
// handle, and consumers see it in Trackables from this moment. The pending
// state clears on the first poll whose delta reports the identifier.
func (m *Manager[T]) CreateImmediate(data T) (*Trackable[T], error) {
	id := data.TrackableID()
	if !id.Valid() {
		return nil, fmt.Errorf("create immediate: %w", ErrInvalidID)
	}
	t, _ := m.createOrUpdate(data)
	t.pending = true
	m.pending[id] = t
	diagf("trackable %s created immediately, awaiting confirmation", id)
	return t, nil
}

// DestroyPending removes and destroys the trackable for id iff it is still
// awaiting provider confirmation, and reports whether it was. Confirmed
// trackables are untouched: their removal must come through the provider's
// delta.
func (m *Manager[T]) DestroyPending(id TrackableID) bool {
	t, ok := m.pending[id]
	if !ok {
		return false
	}
	delete(m.pending, id)
	delete(m.trackables, id)
	m.removeFromOrder(t)
	t.rep.Destroy()
	diagf("pending trackable %s destroyed before confirmation", id)
	return true
}

// CanAdd reports whether t could be adopted into the managed set right now.
// A trackable with no assigned identifier while no provider is running is
// flipped to pending and rejected, signalling the caller to retry once a
// provider becomes available. Otherwise eligibility requires the identifier
// to be unseen and the placement-anchor transform to be valid.
func (m *Manager[T]) CanAdd(t *Trackable[T]) (bool, error) {
	if t == nil {
		return false, fmt.Errorf("can add: %w", ErrNilTrackable)
	}
	if !t.id.Valid() {
		if m.subsystem == nil || !m.subsystem.Running() {
			t.pending = true
			return false, nil
		}
		return false, nil
	}
	if _, exists := m.trackables[t.id]; exists {
		return false, nil
	}
	return m.origin.IsValid(), nil
}

// SetActive forces every managed representation to the given activation
// state.
func (m *Manager[T]) SetActive(active bool) {
	for _, t := range m.order {
		t.rep.SetActive(active)
	}
}

// OnOriginChanged installs the new placement-anchor transform and
// re-derives every representation's world pose from its session-relative
// pose. Representations are re-positioned, not re-parented.
func (m *Manager[T]) OnOriginChanged(origin Pose) {
	m.origin = origin
	for _, t := range m.order {
		t.rep.SetPose(origin.Mul(t.data.Pose()))
	}
	diagf("origin changed, repositioned %d trackables", len(m.order))
}

func (m *Manager[T]) removeFromOrder(t *Trackable[T]) {
	for i, o := range m.order {
		if o == t {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
