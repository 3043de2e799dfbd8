package xr

// Representation is the scene-facing handle for one trackable: whatever the
// host application uses to place and show the trackable (a scene node, a
// render proxy, a recording stub). The Manager drives it through this
// interface and never touches scene-graph concerns directly.
type Representation interface {
	// SetPose places the representation at a world pose.
	SetPose(world Pose)

	// SetActive toggles the representation's activation state.
	SetActive(active bool)

	// Destroy releases the representation. Called at most once.
	Destroy()
}

// RepresentationFactory builds the representation for a newly created
// trackable, already placed at its initial world pose under the manager's
// origin.
type RepresentationFactory[T SessionRelativeData] func(data T, world Pose) Representation

// nopRepresentation stands in when no factory is configured.
type nopRepresentation struct{}

func (nopRepresentation) SetPose(Pose)   {}
func (nopRepresentation) SetActive(bool) {}
func (nopRepresentation) Destroy()       {}

// Trackable is one managed entity: a stable identifier, the last-applied
// session-relative data, and the external representation. The identifier is
// assigned exactly once — either by the provider via a ChangeSet or minted
// locally for manager-created trackables — and never changes afterwards.
// All mutation goes through the owning Manager.
type Trackable[T SessionRelativeData] struct {
	id               TrackableID
	data             T
	pending          bool
	destroyOnRemoval bool
	rep              Representation
}

// NewUnattachedTrackable builds a trackable handle that is not yet managed,
// for callers that construct scene content first and ask the manager (via
// CanAdd) whether it can be adopted. An unassigned identifier is allowed;
// it stays unassigned until a provider confirms the trackable.
func NewUnattachedTrackable[T SessionRelativeData](id TrackableID, rep Representation) *Trackable[T] {
	if rep == nil {
		rep = nopRepresentation{}
	}
	return &Trackable[T]{id: id, rep: rep, destroyOnRemoval: true}
}

// ID returns the trackable's identifier.
func (t *Trackable[T]) ID() TrackableID {
	return t.id
}

// Data returns the last-applied session-relative data.
func (t *Trackable[T]) Data() T {
	return t.data
}

// Pending reports whether the trackable was created locally and has not yet
// been confirmed by the provider's ChangeSet.
func (t *Trackable[T]) Pending() bool {
	return t.pending
}

// DestroyOnRemoval reports whether the representation is destroyed when the
// provider removes this trackable. Defaults to true.
func (t *Trackable[T]) DestroyOnRemoval() bool {
	return t.destroyOnRemoval
}

// SetDestroyOnRemoval controls representation destruction on removal. With
// false the trackable still leaves the managed set when removed, but its
// representation survives and the caller owns it from then on.
func (t *Trackable[T]) SetDestroyOnRemoval(destroy bool) {
	t.destroyOnRemoval = destroy
}

// Representation returns the scene-facing handle.
func (t *Trackable[T]) Representation() Representation {
	return t.rep
}
