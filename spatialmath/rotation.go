// Package spatialmath defines planar poses, rotations and twists used by swerve kinematics and
// localization, plus the 3D pose type vision measurements arrive in.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Rotation2D is a rotation in the plane. The cosine and sine are cached alongside the angle.
type Rotation2D struct {
	radians float64
	cos     float64
	sin     float64
}

// NewRotation2D creates a rotation from an angle in radians.
func NewRotation2D(radians float64) Rotation2D {
	return Rotation2D{radians, math.Cos(radians), math.Sin(radians)}
}

// NewRotation2DFromDegrees creates a rotation from an angle in degrees.
func NewRotation2DFromDegrees(degrees float64) Rotation2D {
	return NewRotation2D(degrees * math.Pi / 180)
}

// RotationFromVector returns the direction of (x, y). A vector too short to have a direction
// yields the zero rotation.
func RotationFromVector(x, y float64) Rotation2D {
	magnitude := math.Hypot(x, y)
	if magnitude <= 1e-6 {
		return Rotation2D{0, 1, 0}
	}
	cos, sin := x/magnitude, y/magnitude
	return Rotation2D{math.Atan2(sin, cos), cos, sin}
}

// Radians returns the angle, not normalized.
func (r Rotation2D) Radians() float64 {
	return r.radians
}

// Degrees returns the angle in degrees.
func (r Rotation2D) Degrees() float64 {
	return r.radians * 180 / math.Pi
}

// Cos returns the cosine of the rotation.
func (r Rotation2D) Cos() float64 {
	return r.cos
}

// Sin returns the sine of the rotation.
func (r Rotation2D) Sin() float64 {
	return r.sin
}

// Plus composes two rotations.
func (r Rotation2D) Plus(other Rotation2D) Rotation2D {
	return r.RotateBy(other)
}

// Minus returns the rotation taking other to r.
func (r Rotation2D) Minus(other Rotation2D) Rotation2D {
	return r.RotateBy(other.Inverse())
}

// Inverse returns the opposite rotation.
func (r Rotation2D) Inverse() Rotation2D {
	return Rotation2D{-r.radians, r.cos, -r.sin}
}

// RotateBy adds other to r, using the angle addition identities on the cached values.
func (r Rotation2D) RotateBy(other Rotation2D) Rotation2D {
	x := r.cos*other.cos - r.sin*other.sin
	y := r.cos*other.sin + r.sin*other.cos
	return RotationFromVector(x, y)
}

// RotatePoint rotates the point about the origin.
func (r Rotation2D) RotatePoint(p r2.Point) r2.Point {
	return r2.Point{X: p.X*r.cos - p.Y*r.sin, Y: p.X*r.sin + p.Y*r.cos}
}

// AlmostEqual compares the directions of two rotations, ignoring multiples of 2pi.
func (r Rotation2D) AlmostEqual(other Rotation2D, epsilon float64) bool {
	return math.Abs(r.cos-other.cos) < epsilon && math.Abs(r.sin-other.sin) < epsilon
}

func (r Rotation2D) String() string {
	return fmt.Sprintf("Rotation2D(%.4f rad)", r.radians)
}
