package xr

import (
	"errors"
	"fmt"
)

// SessionRelativeData is the per-trackable payload a provider reports:
// at minimum an identifier and a session-relative pose. Each trackable kind
// supplies its own concrete type (anchors, planes, ...).
type SessionRelativeData interface {
	TrackableID() TrackableID
	Pose() Pose
}

var (
	// ErrChangeSetHeld is returned when a ChangeBuffer is reused before the
	// previous poll's ChangeSet has been released.
	ErrChangeSetHeld = errors.New("xr: previous change set not released")

	// ErrDuplicateID is returned by change-set validation when an identifier
	// appears in more than one of added/updated/removed.
	ErrDuplicateID = errors.New("xr: duplicate identifier in change set")
)

// ChangeSet describes the delta since the previous poll of a provider:
// trackables seen for the first time, trackables reported again, and
// identifiers the provider has stopped tracking. The three lists are
// disjoint. A ChangeSet borrows its backing storage from the ChangeBuffer
// it was produced into and must be released before the buffer's next poll.
type ChangeSet[T SessionRelativeData] struct {
	Added   []T
	Updated []T
	Removed []TrackableID

	buf *ChangeBuffer[T]
}

// Release returns the borrowed storage to the owning buffer. Safe to call
// on the zero value and more than once.
func (c ChangeSet[T]) Release() {
	if c.buf != nil {
		c.buf.release()
	}
}

// Validate checks the structural contract: no identifier may appear in more
// than one of the three lists, and every record must carry a valid
// identifier. Intended for debug configurations only; see
// SetChangeSetValidation.
func (c ChangeSet[T]) Validate() error {
	seen := make(map[TrackableID]struct{}, len(c.Added)+len(c.Updated)+len(c.Removed))
	check := func(id TrackableID, list string) error {
		if !id.Valid() {
			return fmt.Errorf("xr: invalid identifier in %s list", list)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%s in %s list: %w", id, list, ErrDuplicateID)
		}
		seen[id] = struct{}{}
		return nil
	}
	for _, d := range c.Added {
		if err := check(d.TrackableID(), "added"); err != nil {
			return err
		}
	}
	for _, d := range c.Updated {
		if err := check(d.TrackableID(), "updated"); err != nil {
			return err
		}
	}
	for _, id := range c.Removed {
		if err := check(id, "removed"); err != nil {
			return err
		}
	}
	return nil
}

// ChangeBuffer is a reusable arena for producing ChangeSets. One buffer is
// owned by each Manager and handed to the provider on every poll, so the
// per-frame delta never allocates once the backing slices have grown to the
// session's working size. The buffer is single-owner: it must only be used
// from the poll goroutine.
type ChangeBuffer[T SessionRelativeData] struct {
	added   []T
	updated []T
	removed []TrackableID
	held    bool
}

// NewChangeBuffer returns an empty buffer.
func NewChangeBuffer[T SessionRelativeData]() *ChangeBuffer[T] {
	return &ChangeBuffer[T]{}
}

// Reset prepares the buffer for a new poll, reusing backing storage.
// Fails with ErrChangeSetHeld if the previous ChangeSet is still borrowed.
func (b *ChangeBuffer[T]) Reset() error {
	if b.held {
		return ErrChangeSetHeld
	}
	b.added = b.added[:0]
	b.updated = b.updated[:0]
	b.removed = b.removed[:0]
	return nil
}

// PutAdded appends a newly detected trackable record.
func (b *ChangeBuffer[T]) PutAdded(d T) {
	b.added = append(b.added, d)
}

// PutUpdated appends a re-reported trackable record.
func (b *ChangeBuffer[T]) PutUpdated(d T) {
	b.updated = append(b.updated, d)
}

// PutRemoved appends an identifier the provider has stopped tracking.
func (b *ChangeBuffer[T]) PutRemoved(id TrackableID) {
	b.removed = append(b.removed, id)
}

// Changes marks the buffer borrowed and returns the accumulated delta.
func (b *ChangeBuffer[T]) Changes() ChangeSet[T] {
	b.held = true
	return ChangeSet[T]{
		Added:   b.added,
		Updated: b.updated,
		Removed: b.removed,
		buf:     b,
	}
}

func (b *ChangeBuffer[T]) release() {
	b.held = false
}
