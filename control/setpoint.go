package control

import (
	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/spatialmath"
)

// NumModules is the number of swerve modules a SetpointGenerator drives.
const NumModules = 4

// Setpoint is a chassis velocity and the module states that realize it. Each generated setpoint is
// the input to the next generation step.
type Setpoint struct {
	ChassisVelocity kinematics.ChassisVelocity
	ModuleStates    [NumModules]kinematics.ModuleState
}

// ZeroedSetpoint returns the setpoint of a robot at rest with every module pointing forward. The
// zero value of Setpoint is not usable since its module angles have no direction.
func ZeroedSetpoint() Setpoint {
	var sp Setpoint
	for m := range sp.ModuleStates {
		sp.ModuleStates[m].Angle = spatialmath.NewRotation2D(0)
	}
	return sp
}
