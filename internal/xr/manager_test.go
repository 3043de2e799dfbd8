package xr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// ---------------------------------------------------------------------------
// Poll-driven lifecycle
// ---------------------------------------------------------------------------

func TestPollLifecycleScenario(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	require.NoError(t, h.subsystem.Start())
	idA := NewTrackableID(0xa, 1)

	// Cycle 1: provider reports A as added.
	h.provider.adds = []testData{dataAt(idA, 1)}
	require.NoError(t, h.manager.Poll())

	require.Equal(t, 1, h.manager.Len())
	tr, ok := h.manager.Get(idA)
	require.True(t, ok)
	assert.False(t, tr.Pending())
	require.Len(t, h.observer.calls, 1)
	assert.Equal(t, []TrackableID{idA}, h.observer.calls[0].added)
	assert.Empty(t, h.observer.calls[0].updated)
	assert.Empty(t, h.observer.calls[0].removed)
	assert.InDelta(t, 1, h.reps[idA].pose.Position.X, 1e-9)

	// Cycle 2: same identifier, new pose.
	h.provider.updates = []testData{dataAt(idA, 2)}
	require.NoError(t, h.manager.Poll())

	tr2, _ := h.manager.Get(idA)
	assert.Same(t, tr, tr2)
	require.Len(t, h.observer.calls, 2)
	assert.Empty(t, h.observer.calls[1].added)
	assert.Equal(t, []TrackableID{idA}, h.observer.calls[1].updated)
	assert.InDelta(t, 2, h.reps[idA].pose.Position.X, 1e-9)

	// Cycle 3: A removed; representation destroyed after notification.
	h.observer.inspect = func(_, _, removed []*Trackable[testData]) {
		require.Len(t, removed, 1)
		assert.Zero(t, h.reps[idA].destroyed, "removed trackable destroyed before notification returned")
	}
	h.provider.removes = []TrackableID{idA}
	require.NoError(t, h.manager.Poll())

	assert.Zero(t, h.manager.Len())
	assert.Empty(t, h.manager.Trackables())
	require.Len(t, h.observer.calls, 3)
	assert.Equal(t, []TrackableID{idA}, h.observer.calls[2].removed)
	assert.Equal(t, 1, h.reps[idA].destroyed)
}

func TestPollEmptyDeltaFiresNoNotification(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	require.NoError(t, h.subsystem.Start())

	require.NoError(t, h.manager.Poll())
	require.NoError(t, h.manager.Poll())
	assert.Empty(t, h.observer.calls)
}

func TestPollWithoutRunningSubsystemIsNoOp(t *testing.T) {
	t.Parallel()

	t.Run("no subsystem", func(t *testing.T) {
		t.Parallel()
		m := NewManager(ManagerConfig[testData]{})
		assert.NoError(t, m.Poll())
	})

	t.Run("stopped subsystem", func(t *testing.T) {
		t.Parallel()
		h := newTestHarness()
		require.NoError(t, h.subsystem.Start())
		h.provider.adds = []testData{dataAt(NewTrackableID(1, 1), 0)}
		require.NoError(t, h.manager.Poll())
		require.NoError(t, h.subsystem.Stop())

		h.provider.adds = []testData{dataAt(NewTrackableID(2, 2), 0)}
		require.NoError(t, h.manager.Poll())

		// The staged add was never consumed and the set is untouched.
		assert.Equal(t, 1, h.manager.Len())
		assert.Len(t, h.observer.calls, 1)
	})
}

func TestPollPropagatesProviderError(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	require.NoError(t, h.subsystem.Start())
	h.provider.adds = []testData{dataAt(NewTrackableID(1, 1), 0)}
	require.NoError(t, h.manager.Poll())

	provErr := errors.New("native layer fault")
	h.provider.err = provErr
	assert.ErrorIs(t, h.manager.Poll(), provErr)

	// Aborted cycle leaves the managed set consistent.
	assert.Equal(t, 1, h.manager.Len())
	assert.Len(t, h.observer.calls, 1)
}

func TestPollRemovedUnknownIdentifierIgnored(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	require.NoError(t, h.subsystem.Start())

	h.provider.removes = []TrackableID{NewTrackableID(9, 9)}
	require.NoError(t, h.manager.Poll())
	assert.Empty(t, h.observer.calls)
}

// ---------------------------------------------------------------------------
// createOrUpdate semantics
// ---------------------------------------------------------------------------

func TestCreateOrUpdateIdempotentIdentity(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	require.NoError(t, h.subsystem.Start())
	id := NewTrackableID(5, 5)

	h.provider.adds = []testData{dataAt(id, 1)}
	require.NoError(t, h.manager.Poll())
	first, _ := h.manager.Get(id)

	// The provider erroneously re-reports the identifier as added; the
	// manager treats it as an update of the same entity.
	h.provider.adds = []testData{dataAt(id, 7)}
	require.NoError(t, h.manager.Poll())
	second, _ := h.manager.Get(id)

	assert.Same(t, first, second)
	assert.Equal(t, 1, h.manager.Len())
	assert.InDelta(t, 7, second.Data().Pose().Position.X, 1e-9)
	require.Len(t, h.observer.calls, 2)
	assert.Empty(t, h.observer.calls[1].added)
	assert.Equal(t, []TrackableID{id}, h.observer.calls[1].updated)
}

func TestCreateOrUpdateHooks(t *testing.T) {
	t.Parallel()

	var created []TrackableID
	var applied []TrackableID
	p := &scriptedProvider{}
	s := NewSubsystem[testData](Descriptor{ID: "scripted"}, p)
	m := NewManager(ManagerConfig[testData]{
		Subsystem: s,
		OnCreated: func(tr *Trackable[testData]) {
			created = append(created, tr.ID())
		},
		OnAfterSessionRelativeDataApplied: func(tr *Trackable[testData], _ testData) {
			applied = append(applied, tr.ID())
		},
	})
	require.NoError(t, s.Start())
	id := NewTrackableID(6, 6)

	p.adds = []testData{dataAt(id, 0)}
	require.NoError(t, m.Poll())
	assert.Equal(t, []TrackableID{id}, created)
	assert.Equal(t, []TrackableID{id}, applied)

	p.updates = []testData{dataAt(id, 1)}
	require.NoError(t, m.Poll())
	assert.Len(t, created, 1, "creation hook must only fire for new entities")
	assert.Equal(t, []TrackableID{id, id}, applied)
}

// ---------------------------------------------------------------------------
// Pending creation
// ---------------------------------------------------------------------------

func TestCreateImmediate(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	require.NoError(t, h.subsystem.Start())
	id := NewLocalTrackableID()

	tr, err := h.manager.CreateImmediate(dataAt(id, 3))
	require.NoError(t, err)
	assert.True(t, tr.Pending())
	assert.Equal(t, 1, h.manager.Len())
	assert.Equal(t, 1, h.manager.PendingLen())
	require.Len(t, h.manager.Trackables(), 1)
	assert.Same(t, tr, h.manager.Trackables()[0])
	assert.Empty(t, h.observer.calls, "immediate creation must not notify")

	// Provider confirms on the next poll: pending clears, and the entity
	// surfaces as updated, never added.
	h.provider.adds = []testData{dataAt(id, 4)}
	require.NoError(t, h.manager.Poll())

	assert.False(t, tr.Pending())
	assert.Zero(t, h.manager.PendingLen())
	require.Len(t, h.observer.calls, 1)
	assert.Empty(t, h.observer.calls[0].added)
	assert.Equal(t, []TrackableID{id}, h.observer.calls[0].updated)
	assert.InDelta(t, 4, tr.Data().Pose().Position.X, 1e-9)
}

func TestCreateImmediateRequiresIdentifier(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	_, err := h.manager.CreateImmediate(testData{id: InvalidID})
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.Zero(t, h.manager.Len())
}

func TestDestroyPending(t *testing.T) {
	t.Parallel()

	t.Run("pending trackable is destroyed immediately", func(t *testing.T) {
		t.Parallel()
		h := newTestHarness()
		id := NewLocalTrackableID()
		_, err := h.manager.CreateImmediate(dataAt(id, 0))
		require.NoError(t, err)

		assert.True(t, h.manager.DestroyPending(id))
		assert.Zero(t, h.manager.Len())
		assert.Zero(t, h.manager.PendingLen())
		assert.Equal(t, 1, h.reps[id].destroyed)

		// Created and destroyed within one cycle: no notification ever
		// fires for this identifier.
		require.NoError(t, h.subsystem.Start())
		require.NoError(t, h.manager.Poll())
		assert.Empty(t, h.observer.calls)

		// Second call is a no-op.
		assert.False(t, h.manager.DestroyPending(id))
	})

	t.Run("confirmed trackable is untouched", func(t *testing.T) {
		t.Parallel()
		h := newTestHarness()
		require.NoError(t, h.subsystem.Start())
		id := NewTrackableID(8, 8)
		h.provider.adds = []testData{dataAt(id, 0)}
		require.NoError(t, h.manager.Poll())

		assert.False(t, h.manager.DestroyPending(id))
		assert.Equal(t, 1, h.manager.Len())
		assert.Zero(t, h.reps[id].destroyed)
	})

	t.Run("unknown identifier is a no-op", func(t *testing.T) {
		t.Parallel()
		h := newTestHarness()
		assert.False(t, h.manager.DestroyPending(NewTrackableID(1, 2)))
	})
}

// ---------------------------------------------------------------------------
// Guaranteed destruction under observer failure
// ---------------------------------------------------------------------------

func TestRemovalDestructionSurvivesObserverError(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	require.NoError(t, h.subsystem.Start())
	id := NewTrackableID(2, 2)
	h.provider.adds = []testData{dataAt(id, 0)}
	require.NoError(t, h.manager.Poll())

	obsErr := errors.New("scene binding failed")
	h.observer.err = obsErr
	h.provider.removes = []TrackableID{id}

	assert.ErrorIs(t, h.manager.Poll(), obsErr)
	assert.Zero(t, h.manager.Len())
	assert.Equal(t, 1, h.reps[id].destroyed, "destruction must run despite the observer error")
}

func TestRemovalDestructionSurvivesObserverPanic(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	require.NoError(t, h.subsystem.Start())
	id := NewTrackableID(2, 3)
	h.provider.adds = []testData{dataAt(id, 0)}
	require.NoError(t, h.manager.Poll())

	h.observer.panicOn = true
	h.provider.removes = []TrackableID{id}

	assert.Panics(t, func() { _ = h.manager.Poll() })
	assert.Equal(t, 1, h.reps[id].destroyed, "destruction must run despite the observer panic")
}

func TestDestroyOnRemovalFalseKeepsRepresentation(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	require.NoError(t, h.subsystem.Start())
	id := NewTrackableID(3, 1)
	h.provider.adds = []testData{dataAt(id, 0)}
	require.NoError(t, h.manager.Poll())

	tr, _ := h.manager.Get(id)
	tr.SetDestroyOnRemoval(false)

	h.provider.removes = []TrackableID{id}
	require.NoError(t, h.manager.Poll())

	assert.Zero(t, h.manager.Len())
	assert.Zero(t, h.reps[id].destroyed, "caller-owned representation must survive removal")
}

// ---------------------------------------------------------------------------
// Debug validation
// ---------------------------------------------------------------------------

func TestPollValidationAbortsCycle(t *testing.T) {
	// Mutates package-level validation state; not parallel.
	SetChangeSetValidation(true)
	defer SetChangeSetValidation(false)

	h := newTestHarness()
	require.NoError(t, h.subsystem.Start())
	id := NewTrackableID(4, 2)

	h.provider.adds = []testData{dataAt(id, 0)}
	h.provider.removes = []TrackableID{id}
	assert.ErrorIs(t, h.manager.Poll(), ErrDuplicateID)

	// No mutation, no notification, and the buffer was released on the
	// error path so the next poll can proceed.
	assert.Zero(t, h.manager.Len())
	assert.Empty(t, h.observer.calls)

	h.provider.adds = []testData{dataAt(id, 0)}
	require.NoError(t, h.manager.Poll())
	assert.Equal(t, 1, h.manager.Len())
}

// ---------------------------------------------------------------------------
// Placement utilities
// ---------------------------------------------------------------------------

func TestSetActive(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	require.NoError(t, h.subsystem.Start())
	h.provider.adds = []testData{
		dataAt(NewTrackableID(1, 1), 0),
		dataAt(NewTrackableID(1, 2), 0),
	}
	require.NoError(t, h.manager.Poll())

	h.manager.SetActive(false)
	for _, rep := range h.reps {
		assert.False(t, rep.active)
		assert.Equal(t, 1, rep.activeSet)
	}

	h.manager.SetActive(true)
	for _, rep := range h.reps {
		assert.True(t, rep.active)
	}
}

func TestOnOriginChangedRepositions(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	require.NoError(t, h.subsystem.Start())
	id := NewTrackableID(7, 1)
	h.provider.adds = []testData{dataAt(id, 2)}
	require.NoError(t, h.manager.Poll())
	assert.InDelta(t, 2, h.reps[id].pose.Position.X, 1e-9)

	shifted := NewPose(r3.Vec{X: 10, Y: 5}, IdentityPose().Orientation)
	h.manager.OnOriginChanged(shifted)

	assert.InDelta(t, 12, h.reps[id].pose.Position.X, 1e-9)
	assert.InDelta(t, 5, h.reps[id].pose.Position.Y, 1e-9)

	// Subsequent updates keep deriving world poses from the new origin.
	h.provider.updates = []testData{dataAt(id, 3)}
	require.NoError(t, h.manager.Poll())
	assert.InDelta(t, 13, h.reps[id].pose.Position.X, 1e-9)
}

// ---------------------------------------------------------------------------
// CanAdd
// ---------------------------------------------------------------------------

func TestCanAdd(t *testing.T) {
	t.Parallel()

	t.Run("nil trackable is an invalid argument", func(t *testing.T) {
		t.Parallel()
		h := newTestHarness()
		_, err := h.manager.CanAdd(nil)
		assert.ErrorIs(t, err, ErrNilTrackable)
	})

	t.Run("unassigned identifier without provider flips pending", func(t *testing.T) {
		t.Parallel()
		h := newTestHarness() // subsystem never started
		tr := NewUnattachedTrackable[testData](InvalidID, nil)

		ok, err := h.manager.CanAdd(tr)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.True(t, tr.Pending(), "caller is signalled to retry once a provider runs")
	})

	t.Run("new identifier with valid origin is addable", func(t *testing.T) {
		t.Parallel()
		h := newTestHarness()
		require.NoError(t, h.subsystem.Start())
		tr := NewUnattachedTrackable[testData](NewTrackableID(1, 9), nil)

		ok, err := h.manager.CanAdd(tr)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("already managed identifier is rejected", func(t *testing.T) {
		t.Parallel()
		h := newTestHarness()
		require.NoError(t, h.subsystem.Start())
		id := NewTrackableID(1, 10)
		h.provider.adds = []testData{dataAt(id, 0)}
		require.NoError(t, h.manager.Poll())

		ok, err := h.manager.CanAdd(NewUnattachedTrackable[testData](id, nil))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

// ---------------------------------------------------------------------------
// Iteration order
// ---------------------------------------------------------------------------

func TestTrackablesInsertionOrderStability(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	require.NoError(t, h.subsystem.Start())
	ids := []TrackableID{
		NewTrackableID(1, 1),
		NewTrackableID(1, 2),
		NewTrackableID(1, 3),
	}
	for _, id := range ids {
		h.provider.adds = []testData{dataAt(id, 0)}
		require.NoError(t, h.manager.Poll())
	}

	got := h.manager.Trackables()
	require.Len(t, got, 3)
	for i, tr := range got {
		assert.Equal(t, ids[i], tr.ID())
	}

	// Removing the middle entity preserves the relative order of the rest.
	h.provider.removes = []TrackableID{ids[1]}
	require.NoError(t, h.manager.Poll())
	got = h.manager.Trackables()
	require.Len(t, got, 2)
	assert.Equal(t, ids[0], got[0].ID())
	assert.Equal(t, ids[2], got[1].ID())
}
