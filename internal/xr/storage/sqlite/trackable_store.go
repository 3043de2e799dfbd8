// Package sqlite persists trackable lifecycles for session recording and
// later replay analysis. It is an adapter over the reconciliation engine's
// change notifications, not part of the engine itself.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"
)

// Trackable states as persisted.
const (
	StatePending  = "pending"
	StateTracking = "tracking"
	StateRemoved  = "removed"
)

// Lifecycle event names as persisted.
const (
	EventAdded   = "added"
	EventUpdated = "updated"
	EventRemoved = "removed"
)

// TrackableStore defines the persistence operations the recorder needs.
type TrackableStore interface {
	UpsertTrackable(rec *TrackableRecord) error
	InsertLifecycleEvent(ev *LifecycleEvent) error
	MarkRemoved(kind, trackableID string, tsUnixNanos int64) error
	GetTrackable(kind, trackableID string) (*TrackableRecord, error)
	ListTrackables(kind, state string, limit int) ([]*TrackableRecord, error)
	ListLifecycleEvents(kind, trackableID string, limit int) ([]*LifecycleEvent, error)
	PruneRemoved(kind string, ttl time.Duration, now time.Time) (int64, error)
}

// TrackableRecord is the current state of one trackable within a session.
type TrackableRecord struct {
	Kind           string
	TrackableID    string
	State          string
	FirstSeenNanos int64
	LastSeenNanos  int64

	// Session-relative pose
	PosX, PosY, PosZ           float64
	QuatW, QuatX, QuatY, QuatZ float64
}

// LifecycleEvent is one reconciliation outcome for one trackable.
type LifecycleEvent struct {
	Kind        string
	TrackableID string
	Event       string
	TSUnixNanos int64

	PosX, PosY, PosZ           float64
	QuatW, QuatX, QuatY, QuatZ float64
}

// Store implements TrackableStore over a sql.DB.
type Store struct {
	db *sql.DB
}

// NewStore wraps db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Verify at compile time that *Store implements TrackableStore.
var _ TrackableStore = (*Store)(nil)

// UpsertTrackable inserts or refreshes the row for a trackable. The first
// observation fixes first_seen; later upserts only advance last_seen, pose
// and state.
func (s *Store) UpsertTrackable(rec *TrackableRecord) error {
	query := `
		INSERT INTO trackables (
			kind, trackable_id, state,
			first_seen_unix_nanos, last_seen_unix_nanos,
			pos_x, pos_y, pos_z, quat_w, quat_x, quat_y, quat_z
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, trackable_id) DO UPDATE SET
			state = excluded.state,
			last_seen_unix_nanos = excluded.last_seen_unix_nanos,
			pos_x = excluded.pos_x, pos_y = excluded.pos_y, pos_z = excluded.pos_z,
			quat_w = excluded.quat_w, quat_x = excluded.quat_x,
			quat_y = excluded.quat_y, quat_z = excluded.quat_z
	`
	_, err := s.db.Exec(query,
		rec.Kind, rec.TrackableID, rec.State,
		rec.FirstSeenNanos, rec.LastSeenNanos,
		rec.PosX, rec.PosY, rec.PosZ,
		rec.QuatW, rec.QuatX, rec.QuatY, rec.QuatZ,
	)
	if err != nil {
		return fmt.Errorf("upsert trackable %s/%s: %w", rec.Kind, rec.TrackableID, err)
	}
	return nil
}

// InsertLifecycleEvent appends one event row.
func (s *Store) InsertLifecycleEvent(ev *LifecycleEvent) error {
	query := `
		INSERT INTO trackable_events (
			kind, trackable_id, event, ts_unix_nanos,
			pos_x, pos_y, pos_z, quat_w, quat_x, quat_y, quat_z
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		ev.Kind, ev.TrackableID, ev.Event, ev.TSUnixNanos,
		ev.PosX, ev.PosY, ev.PosZ,
		ev.QuatW, ev.QuatX, ev.QuatY, ev.QuatZ,
	)
	if err != nil {
		return fmt.Errorf("insert %s event for %s/%s: %w", ev.Event, ev.Kind, ev.TrackableID, err)
	}
	return nil
}

// MarkRemoved flips a trackable's persisted state to removed.
func (s *Store) MarkRemoved(kind, trackableID string, tsUnixNanos int64) error {
	_, err := s.db.Exec(`
		UPDATE trackables SET state = ?, last_seen_unix_nanos = ?
		WHERE kind = ? AND trackable_id = ?
	`, StateRemoved, tsUnixNanos, kind, trackableID)
	if err != nil {
		return fmt.Errorf("mark removed %s/%s: %w", kind, trackableID, err)
	}
	return nil
}

// GetTrackable returns the row for one trackable, or nil if absent.
func (s *Store) GetTrackable(kind, trackableID string) (*TrackableRecord, error) {
	row := s.db.QueryRow(`
		SELECT kind, trackable_id, state,
			first_seen_unix_nanos, last_seen_unix_nanos,
			pos_x, pos_y, pos_z, quat_w, quat_x, quat_y, quat_z
		FROM trackables WHERE kind = ? AND trackable_id = ?
	`, kind, trackableID)

	rec := &TrackableRecord{}
	err := row.Scan(
		&rec.Kind, &rec.TrackableID, &rec.State,
		&rec.FirstSeenNanos, &rec.LastSeenNanos,
		&rec.PosX, &rec.PosY, &rec.PosZ,
		&rec.QuatW, &rec.QuatX, &rec.QuatY, &rec.QuatZ,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trackable %s/%s: %w", kind, trackableID, err)
	}
	return rec, nil
}

// ListTrackables returns rows for a kind, optionally filtered by state,
// most recently seen first.
func (s *Store) ListTrackables(kind, state string, limit int) ([]*TrackableRecord, error) {
	query := `
		SELECT kind, trackable_id, state,
			first_seen_unix_nanos, last_seen_unix_nanos,
			pos_x, pos_y, pos_z, quat_w, quat_x, quat_y, quat_z
		FROM trackables WHERE kind = ?
	`
	args := []interface{}{kind}
	if state != "" {
		query += " AND state = ?"
		args = append(args, state)
	}
	query += " ORDER BY last_seen_unix_nanos DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trackables for %s: %w", kind, err)
	}
	defer rows.Close()

	var out []*TrackableRecord
	for rows.Next() {
		rec := &TrackableRecord{}
		if err := rows.Scan(
			&rec.Kind, &rec.TrackableID, &rec.State,
			&rec.FirstSeenNanos, &rec.LastSeenNanos,
			&rec.PosX, &rec.PosY, &rec.PosZ,
			&rec.QuatW, &rec.QuatX, &rec.QuatY, &rec.QuatZ,
		); err != nil {
			return nil, fmt.Errorf("scan trackable: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListLifecycleEvents returns a trackable's events in chronological order.
func (s *Store) ListLifecycleEvents(kind, trackableID string, limit int) ([]*LifecycleEvent, error) {
	query := `
		SELECT kind, trackable_id, event, ts_unix_nanos,
			pos_x, pos_y, pos_z, quat_w, quat_x, quat_y, quat_z
		FROM trackable_events
		WHERE kind = ? AND trackable_id = ?
		ORDER BY ts_unix_nanos ASC, event_id ASC
	`
	args := []interface{}{kind, trackableID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events for %s/%s: %w", kind, trackableID, err)
	}
	defer rows.Close()

	var out []*LifecycleEvent
	for rows.Next() {
		ev := &LifecycleEvent{}
		if err := rows.Scan(
			&ev.Kind, &ev.TrackableID, &ev.Event, &ev.TSUnixNanos,
			&ev.PosX, &ev.PosY, &ev.PosZ,
			&ev.QuatW, &ev.QuatX, &ev.QuatY, &ev.QuatZ,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// PruneRemoved deletes removed trackables (and their events) whose last
// observation is older than ttl, returning the number of trackables pruned.
// Keeps session databases from accumulating short-lived spurious
// detections.
func (s *Store) PruneRemoved(kind string, ttl time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-ttl).UnixNano()

	if _, err := s.db.Exec(`
		DELETE FROM trackable_events
		WHERE kind = ? AND trackable_id IN (
			SELECT trackable_id FROM trackables
			WHERE kind = ? AND state = ? AND last_seen_unix_nanos < ?
		)
	`, kind, kind, StateRemoved, cutoff); err != nil {
		return 0, fmt.Errorf("prune events for %s: %w", kind, err)
	}

	res, err := s.db.Exec(`
		DELETE FROM trackables
		WHERE kind = ? AND state = ? AND last_seen_unix_nanos < ?
	`, kind, StateRemoved, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune trackables for %s: %w", kind, err)
	}
	return res.RowsAffected()
}
