package kinematics

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/swerve/spatialmath"
)

// ModuleState is the commanded or measured state of one swerve module. The feedforward terms are
// zero unless a setpoint generator filled them in.
type ModuleState struct {
	// Speed of the wheel in meters per second. Negative speeds drive the wheel backwards.
	Speed float64
	Angle spatialmath.Rotation2D

	// SteerVelocityFF is the rate the steering angle changes at, in radians per second.
	SteerVelocityFF float64
	// DriveAccelerationFF is the wheel's acceleration along its heading, in meters per second squared.
	DriveAccelerationFF float64
}

// Optimize returns the state pointing the same way as current within a quarter turn, reversing the
// wheel speed when the requested angle is more than a quarter turn away.
func (s ModuleState) Optimize(current spatialmath.Rotation2D) ModuleState {
	delta := s.Angle.Minus(current)
	if delta.Cos() < 0 {
		s.Speed = -s.Speed
		s.Angle = s.Angle.RotateBy(spatialmath.NewRotation2D(math.Pi))
	}
	return s
}

func (s ModuleState) String() string {
	return fmt.Sprintf("ModuleState(speed: %.3f m/s, angle: %.3f rad)", s.Speed, s.Angle.Radians())
}

// ModulePosition is an odometry reading for one module: the total distance the wheel has rolled and
// its current steering angle.
type ModulePosition struct {
	Distance float64
	Angle    spatialmath.Rotation2D
}

func r2Point(x, y float64) r2.Point {
	return r2.Point{X: x, Y: y}
}
