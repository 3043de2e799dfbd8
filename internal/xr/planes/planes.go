// Package planes instantiates the reconciliation engine for detected
// planar surfaces. Planes are entirely provider-driven — the descriptor
// advertises no optional capabilities — which exercises the engine's
// flag-gated degradation paths: every TryAdd/TryAttach/TryRemove call site
// sees a failure result instead of an error.
package planes

import (
	"fmt"

	"github.com/banshee-data/tracksync/internal/xr"
)

// Classification is the provider's semantic label for a plane.
type Classification int

const (
	ClassificationNone Classification = iota
	ClassificationFloor
	ClassificationWall
	ClassificationCeiling
	ClassificationTable
)

func (c Classification) String() string {
	switch c {
	case ClassificationNone:
		return "none"
	case ClassificationFloor:
		return "floor"
	case ClassificationWall:
		return "wall"
	case ClassificationCeiling:
		return "ceiling"
	case ClassificationTable:
		return "table"
	default:
		return fmt.Sprintf("classification(%d)", int(c))
	}
}

// Data is the provider-reported payload for one plane: a session-relative
// center pose and the planar extents around it.
type Data struct {
	ID             xr.TrackableID
	CenterPose     xr.Pose
	Width          float64
	Depth          float64
	Classification Classification
}

// TrackableID implements xr.SessionRelativeData.
func (d Data) TrackableID() xr.TrackableID { return d.ID }

// Pose implements xr.SessionRelativeData.
func (d Data) Pose() xr.Pose { return d.CenterPose }

// Plane is a managed plane handle.
type Plane = xr.Trackable[Data]

// Descriptor is the plane subsystem's capability record: polling only.
func Descriptor() xr.Descriptor {
	return xr.Descriptor{ID: "simulated-planes"}
}
