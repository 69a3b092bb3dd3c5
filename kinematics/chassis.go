// Package kinematics converts between chassis velocities and swerve module states.
package kinematics

import (
	"fmt"
	"math"
	"time"

	"go.viam.com/swerve/spatialmath"
	"go.viam.com/swerve/utils"
)

// ChassisVelocity is a robot-relative velocity: meters per second along x (forward) and y (left),
// and radians per second counter-clockwise.
type ChassisVelocity struct {
	Vx    float64 `json:"vx"`
	Vy    float64 `json:"vy"`
	Omega float64 `json:"omega"`
}

// Plus adds two chassis velocities.
func (c ChassisVelocity) Plus(other ChassisVelocity) ChassisVelocity {
	return ChassisVelocity{c.Vx + other.Vx, c.Vy + other.Vy, c.Omega + other.Omega}
}

// Minus subtracts other from c.
func (c ChassisVelocity) Minus(other ChassisVelocity) ChassisVelocity {
	return ChassisVelocity{c.Vx - other.Vx, c.Vy - other.Vy, c.Omega - other.Omega}
}

// Times scales every component by k.
func (c ChassisVelocity) Times(k float64) ChassisVelocity {
	return ChassisVelocity{c.Vx * k, c.Vy * k, c.Omega * k}
}

// Discretize returns the velocity that, held constant over dt as a straight-line twist, ends at
// the same pose as following c along its arc. This removes the drift that appears when
// translating and rotating at once.
func (c ChassisVelocity) Discretize(dt time.Duration) ChassisVelocity {
	seconds := dt.Seconds()
	if seconds <= 0 {
		return c
	}
	desiredDelta := spatialmath.NewPose2D(c.Vx*seconds, c.Vy*seconds, c.Omega*seconds)
	twist := spatialmath.NewZeroPose2D().Log(desiredDelta)
	return ChassisVelocity{twist.DX / seconds, twist.DY / seconds, twist.DTheta / seconds}
}

// AlmostEqual compares every component within utils.DefaultEpsilon.
func (c ChassisVelocity) AlmostEqual(other ChassisVelocity) bool {
	return utils.EpsilonEquals(c.Vx, other.Vx) &&
		utils.EpsilonEquals(c.Vy, other.Vy) &&
		utils.EpsilonEquals(c.Omega, other.Omega)
}

// IsZero reports whether the velocity is zero within utils.DefaultEpsilon.
func (c ChassisVelocity) IsZero() bool {
	return c.AlmostEqual(ChassisVelocity{})
}

// Speed returns the magnitude of the translational component.
func (c ChassisVelocity) Speed() float64 {
	return math.Hypot(c.Vx, c.Vy)
}

func (c ChassisVelocity) String() string {
	return fmt.Sprintf("ChassisVelocity(vx: %.4f, vy: %.4f, omega: %.4f)", c.Vx, c.Vy, c.Omega)
}

// FromFieldRelative converts a field-relative velocity into the robot frame given the robot's
// heading on the field.
func FromFieldRelative(fieldRelative ChassisVelocity, heading spatialmath.Rotation2D) ChassisVelocity {
	v := heading.Inverse().RotatePoint(r2Point(fieldRelative.Vx, fieldRelative.Vy))
	return ChassisVelocity{v.X, v.Y, fieldRelative.Omega}
}
