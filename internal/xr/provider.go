package xr

// Descriptor is the static capability record for a provider. It is consulted
// before any optional operation is invoked; an operation whose flag is false
// reports failure rather than erroring. Concrete providers expose their
// descriptor at construction time and it never changes afterwards.
type Descriptor struct {
	// ID names the provider implementation, e.g. "simulated-anchors".
	ID string

	// SupportsSyncAdd indicates TryAdd is implemented.
	SupportsSyncAdd bool

	// SupportsAsyncAdd indicates the provider natively implements
	// TryAddAsync. When false but SupportsSyncAdd is true, the Subsystem
	// bridges the asynchronous form onto the synchronous one.
	SupportsAsyncAdd bool

	// SupportsAttachment indicates TryAttach is implemented.
	SupportsAttachment bool

	// SupportsRemoval indicates TryRemove is implemented.
	SupportsRemoval bool
}

// Provider is the polled backend contract for one trackable kind. Changes
// produces the delta since the previous poll into the caller-supplied
// buffer; implementations call buf.Reset, the Put methods, then return
// buf.Changes().
//
// Identifier discipline is a provider obligation: within one session an
// identifier must name exactly one logical trackable, and each poll's delta
// must keep the added/updated/removed lists disjoint.
type Provider[T SessionRelativeData] interface {
	Changes(buf *ChangeBuffer[T]) (ChangeSet[T], error)
}

// Starter is implemented by providers that need to begin native tracking
// when their subsystem starts.
type Starter interface {
	Start()
}

// Stopper is implemented by providers that need to halt native tracking
// when their subsystem stops.
type Stopper interface {
	Stop()
}

// SyncAdder is the optional synchronous add capability, guarded by
// Descriptor.SupportsSyncAdd.
type SyncAdder[T SessionRelativeData] interface {
	TryAdd(pose Pose) (T, bool)
}

// AsyncAdder is the optional natively asynchronous add capability, guarded
// by Descriptor.SupportsAsyncAdd. The returned future resolves exactly once,
// on the provider's own completion path.
type AsyncAdder[T SessionRelativeData] interface {
	TryAddAsync(pose Pose) *Future[T]
}

// Attacher is the optional capability of creating a trackable attached to
// an existing one, guarded by Descriptor.SupportsAttachment.
type Attacher[T SessionRelativeData] interface {
	TryAttach(parent TrackableID, pose Pose) (T, bool)
}

// Remover is the optional removal capability, guarded by
// Descriptor.SupportsRemoval. A successful TryRemove is observed on a later
// poll as a removed identifier; it does not mutate manager state directly.
type Remover interface {
	TryRemove(id TrackableID) bool
}
