package sqlite

import (
	"fmt"
	"time"

	"github.com/banshee-data/tracksync/internal/xr"
)

// Recorder persists per-cycle reconciliation outcomes to a TrackableStore.
// It implements xr.Observer and is meant to be registered as (or wrapped by)
// a manager's observer so every added, updated and removed trackable leaves a
// durable row plus a lifecycle event.
//
// Recorder is driven from the manager's update goroutine only, so it needs no
// locking of its own.
type Recorder[T xr.SessionRelativeData] struct {
	store TrackableStore

	// kind partitions rows per trackable flavor ("anchor", "plane", ...)
	// so one database can record several managers.
	kind string

	now func() time.Time
}

// NewRecorder builds a Recorder writing rows of the given kind. now is
// optional and defaults to time.Now; tests inject a fixed clock.
func NewRecorder[T xr.SessionRelativeData](store TrackableStore, kind string, now func() time.Time) *Recorder[T] {
	if now == nil {
		now = time.Now
	}
	return &Recorder[T]{store: store, kind: kind, now: now}
}

// OnTrackablesChanged writes one upsert + one event per entry in the change
// notification. The first failed write aborts and surfaces the error to the
// manager; the manager still destroys removed trackables in that case.
func (r *Recorder[T]) OnTrackablesChanged(added, updated, removed []*xr.Trackable[T]) error {
	ts := r.now().UnixNano()

	for _, t := range added {
		if err := r.record(t, StateTracking, EventAdded, ts); err != nil {
			return fmt.Errorf("record added %s: %w", t.ID(), err)
		}
	}
	for _, t := range updated {
		if err := r.record(t, StateTracking, EventUpdated, ts); err != nil {
			return fmt.Errorf("record updated %s: %w", t.ID(), err)
		}
	}
	for _, t := range removed {
		id := t.ID().String()
		if err := r.store.MarkRemoved(r.kind, id, ts); err != nil {
			return fmt.Errorf("record removed %s: %w", t.ID(), err)
		}
		ev := &LifecycleEvent{
			Kind:        r.kind,
			TrackableID: id,
			Event:       EventRemoved,
			TSUnixNanos: ts,
		}
		setEventPose(ev, t.Data().Pose())
		if err := r.store.InsertLifecycleEvent(ev); err != nil {
			return fmt.Errorf("record removed %s: %w", t.ID(), err)
		}
	}
	return nil
}

func (r *Recorder[T]) record(t *xr.Trackable[T], state, event string, ts int64) error {
	pose := t.Data().Pose()
	if t.Pending() {
		state = StatePending
	}

	rec := &TrackableRecord{
		Kind:           r.kind,
		TrackableID:    t.ID().String(),
		State:          state,
		FirstSeenNanos: ts,
		LastSeenNanos:  ts,
	}
	setRecordPose(rec, pose)
	if err := r.store.UpsertTrackable(rec); err != nil {
		return err
	}

	ev := &LifecycleEvent{
		Kind:        r.kind,
		TrackableID: rec.TrackableID,
		Event:       event,
		TSUnixNanos: ts,
	}
	setEventPose(ev, pose)
	return r.store.InsertLifecycleEvent(ev)
}

func setRecordPose(rec *TrackableRecord, p xr.Pose) {
	rec.PosX, rec.PosY, rec.PosZ = p.Position.X, p.Position.Y, p.Position.Z
	rec.QuatW, rec.QuatX, rec.QuatY, rec.QuatZ = p.Orientation.Real, p.Orientation.Imag, p.Orientation.Jmag, p.Orientation.Kmag
}

func setEventPose(ev *LifecycleEvent, p xr.Pose) {
	ev.PosX, ev.PosY, ev.PosZ = p.Position.X, p.Position.Y, p.Position.Z
	ev.QuatW, ev.QuatX, ev.QuatY, ev.QuatZ = p.Orientation.Real, p.Orientation.Imag, p.Orientation.Jmag, p.Orientation.Kmag
}
