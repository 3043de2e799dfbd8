package xr

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// TrackableID uniquely identifies one trackable for the lifetime of a
// tracking session. It is a 128-bit value split into two 64-bit halves so it
// can be compared and used as a map key directly.
//
// Providers must never reuse an identifier for a logically distinct
// trackable within one session. The engine cannot detect a violation; it is
// a provider obligation.
type TrackableID struct {
	Hi uint64
	Lo uint64
}

// InvalidID is the reserved sentinel for "no identifier assigned".
var InvalidID = TrackableID{}

// NewTrackableID builds an identifier from its two halves.
func NewTrackableID(hi, lo uint64) TrackableID {
	return TrackableID{Hi: hi, Lo: lo}
}

// TrackableIDFromUUID converts a UUID into a TrackableID (big-endian halves).
func TrackableIDFromUUID(u uuid.UUID) TrackableID {
	return TrackableID{
		Hi: binary.BigEndian.Uint64(u[0:8]),
		Lo: binary.BigEndian.Uint64(u[8:16]),
	}
}

// NewLocalTrackableID mints a fresh identifier for a trackable created
// locally before any provider has confirmed it. Random UUIDs keep locally
// minted identifiers from colliding with provider-assigned ones.
func NewLocalTrackableID() TrackableID {
	for {
		if id := TrackableIDFromUUID(uuid.New()); id != InvalidID {
			return id
		}
	}
}

// Valid reports whether the identifier has been assigned.
func (id TrackableID) Valid() bool {
	return id != InvalidID
}

// UUID returns the identifier in UUID form.
func (id TrackableID) UUID() uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint64(u[0:8], id.Hi)
	binary.BigEndian.PutUint64(u[8:16], id.Lo)
	return u
}

func (id TrackableID) String() string {
	return fmt.Sprintf("%016x-%016x", id.Hi, id.Lo)
}
