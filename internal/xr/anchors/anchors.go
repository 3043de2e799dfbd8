// Package anchors instantiates the reconciliation engine for spatial
// anchors: poses the application pins to the tracking session and asks the
// provider to hold steady. Anchors exercise the full capability surface —
// synchronous and asynchronous creation, attachment to other trackables,
// and provider-side removal.
package anchors

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/tracksync/internal/xr"
)

// TrackingState describes how well the provider is currently tracking an
// anchor.
type TrackingState int

const (
	TrackingNone TrackingState = iota
	TrackingLimited
	Tracking
)

func (s TrackingState) String() string {
	switch s {
	case TrackingNone:
		return "none"
	case TrackingLimited:
		return "limited"
	case Tracking:
		return "tracking"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Data is the provider-reported payload for one anchor.
type Data struct {
	ID            xr.TrackableID
	SessionPose   xr.Pose
	TrackingState TrackingState
}

// TrackableID implements xr.SessionRelativeData.
func (d Data) TrackableID() xr.TrackableID { return d.ID }

// Pose implements xr.SessionRelativeData.
func (d Data) Pose() xr.Pose { return d.SessionPose }

// Anchor is a managed anchor handle.
type Anchor = xr.Trackable[Data]

var (
	// ErrAddRejected is returned when the provider declines to create an
	// anchor, or no add capability is available.
	ErrAddRejected = errors.New("anchors: provider rejected add")

	// ErrAttachRejected is returned when attachment fails or is
	// unsupported.
	ErrAttachRejected = errors.New("anchors: provider rejected attach")
)

// Manager drives anchor reconciliation and layers the anchor-specific
// creation entry points over the generic engine. Like the engine itself it
// is single-writer: all calls belong on the frame-loop goroutine.
type Manager struct {
	core      *xr.Manager[Data]
	subsystem *xr.Subsystem[Data]
}

// NewManager wires a Manager from the engine configuration. cfg.Subsystem
// is required.
func NewManager(cfg xr.ManagerConfig[Data]) *Manager {
	return &Manager{core: xr.NewManager(cfg), subsystem: cfg.Subsystem}
}

// Core exposes the underlying engine (Poll, Trackables, SetActive,
// OnOriginChanged, CanAdd).
func (m *Manager) Core() *xr.Manager[Data] {
	return m.core
}

// Poll runs one reconciliation cycle.
func (m *Manager) Poll() error {
	return m.core.Poll()
}

// Anchors returns the managed anchors in insertion order.
func (m *Manager) Anchors() []*Anchor {
	return m.core.Trackables()
}

// AddAnchor synchronously requests an anchor at the given session-relative
// pose and adopts it immediately. The returned anchor is pending until the
// provider's next delta confirms its identifier. Fails with ErrAddRejected
// when the provider declines or lacks the synchronous-add capability.
func (m *Manager) AddAnchor(pose xr.Pose) (*Anchor, error) {
	data, ok := m.subsystem.TryAdd(pose)
	if !ok {
		return nil, ErrAddRejected
	}
	return m.core.CreateImmediate(data)
}

// AddAnchorAsync requests an anchor through the asynchronous path —
// natively asynchronous providers resolve on their own completion path,
// synchronous-only providers resolve immediately — then adopts the result.
// The anchor is pending until confirmed by a later delta.
func (m *Manager) AddAnchorAsync(ctx context.Context, pose xr.Pose) (*Anchor, error) {
	result, err := m.subsystem.TryAddAsync(pose).Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("await anchor add: %w", err)
	}
	if !result.OK {
		return nil, ErrAddRejected
	}
	return m.core.CreateImmediate(result.Value)
}

// AttachAnchor creates an anchor attached to an existing trackable (for
// example a detected plane), pinned at the given session-relative pose.
func (m *Manager) AttachAnchor(parent xr.TrackableID, pose xr.Pose) (*Anchor, error) {
	data, ok := m.subsystem.TryAttach(parent, pose)
	if !ok {
		return nil, ErrAttachRejected
	}
	return m.core.CreateImmediate(data)
}

// RemoveAnchor removes the anchor for id. A still-pending anchor is
// destroyed locally and its in-flight provider request cancelled; a
// confirmed anchor is handed to the provider, whose removal surfaces
// through a later poll. Reports whether anything was initiated.
func (m *Manager) RemoveAnchor(id xr.TrackableID) bool {
	if m.core.DestroyPending(id) {
		// Cancel the acknowledged-but-unconfirmed request so the provider
		// does not report the anchor as added on a later poll.
		m.subsystem.TryRemove(id)
		return true
	}
	if _, ok := m.core.Get(id); !ok {
		return false
	}
	return m.subsystem.TryRemove(id)
}
