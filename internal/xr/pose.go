package xr

import (
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pose is a rigid transform: a position and a unit-quaternion orientation.
// Provider-reported poses are session-relative (expressed against the
// tracking session's origin, not world space); the Manager composes them
// with its origin transform to produce world poses.
type Pose struct {
	Position    r3.Vec
	Orientation quat.Number
}

// IdentityPose returns the identity transform.
func IdentityPose() Pose {
	return Pose{Orientation: quat.Number{Real: 1}}
}

// NewPose builds a pose from a position and orientation.
func NewPose(position r3.Vec, orientation quat.Number) Pose {
	return Pose{Position: position, Orientation: orientation}
}

// IsValid reports whether the pose carries a usable orientation. The zero
// value (zero quaternion) is invalid; IdentityPose is valid.
func (p Pose) IsValid() bool {
	return quat.Abs(p.Orientation) > 1e-9
}

// Mul composes p with child: the result maps child's local frame through p.
// Used to lift a session-relative pose into world space given the session
// origin's world pose.
func (p Pose) Mul(child Pose) Pose {
	return Pose{
		Position:    p.TransformPoint(child.Position),
		Orientation: quat.Mul(p.Orientation, child.Orientation),
	}
}

// TransformPoint maps a point from p's local frame into its parent frame.
func (p Pose) TransformPoint(v r3.Vec) r3.Vec {
	return r3.Add(p.Position, rotateVec(p.Orientation, v))
}

// rotateVec applies the unit quaternion q to v (q v q*).
func rotateVec(q quat.Number, v r3.Vec) r3.Vec {
	pv := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, pv), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

func (p Pose) String() string {
	return fmt.Sprintf("pos(%.3f, %.3f, %.3f) rot(%.3f, %.3f, %.3f, %.3f)",
		p.Position.X, p.Position.Y, p.Position.Z,
		p.Orientation.Real, p.Orientation.Imag, p.Orientation.Jmag, p.Orientation.Kmag)
}
