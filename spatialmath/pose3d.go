package spatialmath

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose3D is a position in space with a unit quaternion orientation. Vision measurements arrive in
// this form and are flattened onto the field plane before fusion.
type Pose3D struct {
	Translation r3.Vector
	Orientation quat.Number
}

// NewPose3DFromYaw creates a pose rotated about +z only.
func NewPose3DFromYaw(x, y, z, yaw float64) Pose3D {
	return Pose3D{
		Translation: r3.Vector{X: x, Y: y, Z: z},
		Orientation: quat.Number{Real: math.Cos(yaw / 2), Kmag: math.Sin(yaw / 2)},
	}
}

// Yaw returns the rotation of the orientation about +z.
func (p Pose3D) Yaw() float64 {
	q := p.Orientation
	return math.Atan2(2*(q.Real*q.Kmag+q.Imag*q.Jmag), 1-2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag))
}

// ToPose2D drops z, roll and pitch.
func (p Pose3D) ToPose2D() Pose2D {
	return Pose2D{
		Translation: r2.Point{X: p.Translation.X, Y: p.Translation.Y},
		Rotation:    NewRotation2D(p.Yaw()),
	}
}
