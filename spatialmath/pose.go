package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Pose2D is a position and heading on the field.
type Pose2D struct {
	Translation r2.Point
	Rotation    Rotation2D
}

// NewPose2D creates a pose from x, y and a heading in radians.
func NewPose2D(x, y, theta float64) Pose2D {
	return Pose2D{r2.Point{X: x, Y: y}, NewRotation2D(theta)}
}

// NewZeroPose2D returns the pose at the origin facing +x.
func NewZeroPose2D() Pose2D {
	return NewPose2D(0, 0, 0)
}

// X returns the x coordinate.
func (p Pose2D) X() float64 {
	return p.Translation.X
}

// Y returns the y coordinate.
func (p Pose2D) Y() float64 {
	return p.Translation.Y
}

// TransformBy applies other as a transform expressed in p's frame.
func (p Pose2D) TransformBy(other Pose2D) Pose2D {
	return Pose2D{
		Translation: p.Translation.Add(p.Rotation.RotatePoint(other.Translation)),
		Rotation:    other.Rotation.RotateBy(p.Rotation),
	}
}

// RelativeTo returns p expressed in the frame of other.
func (p Pose2D) RelativeTo(other Pose2D) Pose2D {
	inv := other.Rotation.Inverse()
	return Pose2D{
		Translation: inv.RotatePoint(p.Translation.Sub(other.Translation)),
		Rotation:    p.Rotation.Minus(other.Rotation),
	}
}

// Exp integrates the twist from p, following the arc of constant curvature it describes.
func (p Pose2D) Exp(twist Twist2D) Pose2D {
	dx, dy, dtheta := twist.DX, twist.DY, twist.DTheta
	sinTheta, cosTheta := math.Sin(dtheta), math.Cos(dtheta)

	var s, c float64
	if math.Abs(dtheta) < 1e-9 {
		s = 1 - dtheta*dtheta/6
		c = 0.5 * dtheta
	} else {
		s = sinTheta / dtheta
		c = (1 - cosTheta) / dtheta
	}

	transform := Pose2D{
		Translation: r2.Point{X: dx*s - dy*c, Y: dx*c + dy*s},
		Rotation:    RotationFromVector(cosTheta, sinTheta),
	}
	return p.TransformBy(transform)
}

// Log returns the twist that takes p to end, the inverse of Exp.
func (p Pose2D) Log(end Pose2D) Twist2D {
	transform := end.RelativeTo(p)
	dtheta := transform.Rotation.Radians()
	halfDtheta := dtheta / 2

	cosMinusOne := transform.Rotation.Cos() - 1

	var halfThetaByTanOfHalfDtheta float64
	if math.Abs(cosMinusOne) < 1e-9 {
		halfThetaByTanOfHalfDtheta = 1 - dtheta*dtheta/12
	} else {
		halfThetaByTanOfHalfDtheta = -(halfDtheta * transform.Rotation.Sin()) / cosMinusOne
	}

	translation := RotationFromVector(halfThetaByTanOfHalfDtheta, -halfDtheta).
		RotatePoint(transform.Translation).
		Mul(math.Hypot(halfThetaByTanOfHalfDtheta, halfDtheta))

	return Twist2D{translation.X, translation.Y, dtheta}
}

// AlmostEqual compares translation and heading within epsilon.
func (p Pose2D) AlmostEqual(other Pose2D, epsilon float64) bool {
	return math.Abs(p.Translation.X-other.Translation.X) < epsilon &&
		math.Abs(p.Translation.Y-other.Translation.Y) < epsilon &&
		p.Rotation.AlmostEqual(other.Rotation, epsilon)
}

func (p Pose2D) String() string {
	return fmt.Sprintf("Pose2D(x: %.4f, y: %.4f, theta: %.4f)", p.Translation.X, p.Translation.Y, p.Rotation.Radians())
}
