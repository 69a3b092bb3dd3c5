package control

import (
	"math"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/spatialmath"
	"go.viam.com/swerve/utils"
)

const gravity = 9.81

// VoltageSource reports the present supply voltage. The available drive torque shrinks as the
// battery sags.
type VoltageSource func() float64

// SetpointGenerator takes a prior setpoint and a desired chassis velocity and produces the next
// setpoint. The new setpoint respects the steering rate of every module, the torque each drive
// motor can produce at its present speed, and the traction of the wheels, while moving toward the
// desired velocity as quickly as those limits allow.
type SetpointGenerator struct {
	logger     logging.Logger
	kinematics *kinematics.SwerveKinematics
	locations  [NumModules]r2.Point

	driveMotor         DCMotor
	driveCurrentLimit  float64
	maxDriveVelocity   float64
	maxSteerVelocity   float64
	mass               float64
	moi                float64
	wheelRadius        float64
	wheelFrictionForce float64
	torqueLoss         float64

	voltage VoltageSource
}

// NewSetpointGenerator validates the config and derives the drivetrain limits from it.
func NewSetpointGenerator(cfg GeneratorConfig, logger logging.Logger) (*SetpointGenerator, error) {
	if _, err := cfg.Validate("setpoint_generator"); err != nil {
		return nil, err
	}
	driveMotor, err := cfg.DriveMotor.Motor()
	if err != nil {
		return nil, errors.Wrap(err, "drive motor")
	}
	steerMotor, err := cfg.SteerMotor.Motor()
	if err != nil {
		return nil, errors.Wrap(err, "steer motor")
	}

	g := &SetpointGenerator{
		logger:            logger,
		driveMotor:        driveMotor,
		driveCurrentLimit: cfg.DriveCurrentLimitAmps,
		maxSteerVelocity:  steerMotor.FreeSpeed,
		mass:              cfg.MassKg,
		moi:               cfg.MOIKgMetersSquared,
		wheelRadius:       cfg.WheelDiameterMeters / 2,
		torqueLoss:        cfg.TorqueLossNm,
		voltage: func() float64 {
			return driveMotor.NominalVoltage
		},
	}
	g.maxDriveVelocity = driveMotor.FreeSpeed * g.wheelRadius
	g.wheelFrictionForce = cfg.WheelCoF * (cfg.MassKg / NumModules) * gravity

	points := make([]r2.Point, NumModules)
	for m, loc := range cfg.ModuleLocations {
		g.locations[m] = loc.Point()
		points[m] = loc.Point()
	}
	if g.kinematics, err = kinematics.NewSwerveKinematics(points...); err != nil {
		return nil, err
	}

	logger.Debugw("setpoint generator limits",
		"max_drive_velocity", g.maxDriveVelocity,
		"max_steer_velocity", g.maxSteerVelocity,
		"wheel_friction_force", g.wheelFrictionForce)
	return g, nil
}

// SetVoltageSource replaces the nominal motor voltage with a live reading.
func (g *SetpointGenerator) SetVoltageSource(source VoltageSource) {
	g.voltage = source
}

// MaxDriveVelocity returns the free speed of the wheels in meters per second.
func (g *SetpointGenerator) MaxDriveVelocity() float64 {
	return g.maxDriveVelocity
}

// MaxSteerVelocity returns the free speed of the steering in radians per second.
func (g *SetpointGenerator) MaxSteerVelocity() float64 {
	return g.maxSteerVelocity
}

// Kinematics returns the kinematics of the module geometry.
func (g *SetpointGenerator) Kinematics() *kinematics.SwerveKinematics {
	return g.kinematics
}

// generation holds the working values of one GenerateSetpoint call.
type generation struct {
	dt float64

	prev          Setpoint
	desired       kinematics.ChassisVelocity
	desiredStates [NumModules]kinematics.ModuleState
	delta         kinematics.ChassisVelocity

	prevVectors    [NumModules]moduleVector
	desiredVectors [NumModules]moduleVector

	needToSteer      bool
	minS             float64
	steeringOverride [NumModules]*spatialmath.Rotation2D
}

// GenerateSetpoint returns the setpoint dt after prev, heading toward desired. desired is robot
// relative and must not be discretized. It is discretized before any limit is applied, so the
// steering and force limits bound the module states actually emitted. Pass in the previously
// generated setpoint rather than the measured state of the robot.
func (g *SetpointGenerator) GenerateSetpoint(
	prev Setpoint,
	desired kinematics.ChassisVelocity,
	dt time.Duration,
) Setpoint {
	if dt <= 0 {
		g.logger.Warnw("non-positive setpoint period, holding previous setpoint", "dt", dt)
		return prev
	}

	gen := &generation{
		dt:          dt.Seconds(),
		prev:        prev,
		needToSteer: true,
		minS:        1,
	}
	gen.desiredStates, gen.desired = g.desaturate(desired.Discretize(dt))
	gen.delta = gen.desired.Minus(prev.ChassisVelocity)

	if gen.desired.IsZero() {
		gen.needToSteer = false
		for m := range gen.desiredStates {
			gen.desiredStates[m].Angle = prev.ModuleStates[m].Angle
			gen.desiredStates[m].Speed = 0
		}
	}

	for m := 0; m < NumModules; m++ {
		gen.prevVectors[m] = newModuleVector(prev.ModuleStates[m])
		gen.desiredVectors[m] = newModuleVector(gen.desiredStates[m])
	}

	g.solveSteering(gen)
	g.solveDriving(gen)

	retVelocity := prev.ChassisVelocity.Plus(gen.delta.Times(gen.minS))
	accel := retVelocity.Minus(prev.ChassisVelocity).Times(1 / gen.dt)

	retStates := g.kinematics.ToModuleStates(retVelocity)
	out := Setpoint{ChassisVelocity: retVelocity}
	for m := 0; m < NumModules; m++ {
		state := retStates[m]
		if override := gen.steeringOverride[m]; override != nil {
			if flipHeading(override.Minus(state.Angle).Radians()) {
				state.Speed = -state.Speed
			}
			state.Angle = *override
		}

		prevAngle := prev.ModuleStates[m].Angle
		state = state.Optimize(prevAngle)
		state.SteerVelocityFF = state.Angle.Minus(prevAngle).Radians() / gen.dt

		loc := g.locations[m]
		ax := accel.Vx - accel.Omega*loc.Y
		ay := accel.Vy + accel.Omega*loc.X
		state.DriveAccelerationFF = ax*state.Angle.Cos() + ay*state.Angle.Sin()

		out.ModuleStates[m] = state
	}
	return out
}

// GenerateSimpleSetpoint converts desired into module states limited only by the wheels' free
// speed, with each module taking the shorter way around from its previous angle.
func (g *SetpointGenerator) GenerateSimpleSetpoint(
	prev Setpoint,
	desired kinematics.ChassisVelocity,
	dt time.Duration,
) Setpoint {
	states, velocity := g.desaturate(desired)
	out := Setpoint{ChassisVelocity: velocity}
	for m := 0; m < NumModules; m++ {
		state := states[m]
		if velocity.IsZero() {
			state.Angle = prev.ModuleStates[m].Angle
		}
		out.ModuleStates[m] = state.Optimize(prev.ModuleStates[m].Angle)
	}
	return out
}

// desaturate converts the desired velocity to module states scaled under the wheels' free speed and
// returns the chassis velocity those states actually produce.
func (g *SetpointGenerator) desaturate(desired kinematics.ChassisVelocity) (
	[NumModules]kinematics.ModuleState, kinematics.ChassisVelocity,
) {
	var states [NumModules]kinematics.ModuleState
	copy(states[:], g.kinematics.ToModuleStates(desired))
	kinematics.DesaturateWheelSpeeds(states[:], g.maxDriveVelocity)

	velocity, err := g.kinematics.ToChassisVelocity(states[:])
	if err != nil {
		// The state count always matches the kinematics.
		g.logger.Errorw("forward kinematics failed", "error", err)
		return states, desired
	}
	return states, velocity
}

// solveSteering limits how far every module's heading can change in one step. Modules at rest
// steer in place toward their goal and hold the whole chassis still until they get there. Moving
// modules bound the interpolant to where their heading would change by the max steering step.
func (g *SetpointGenerator) solveSteering(gen *generation) {
	maxThetaStep := gen.dt * g.maxSteerVelocity
	for m := 0; m < NumModules; m++ {
		prevAngle := gen.prev.ModuleStates[m].Angle
		if !gen.needToSteer {
			gen.steeringOverride[m] = &prevAngle
			continue
		}

		if utils.EpsilonEquals(gen.prev.ModuleStates[m].Speed, 0) {
			if utils.EpsilonEquals(gen.desiredStates[m].Speed, 0) {
				gen.steeringOverride[m] = &prevAngle
				continue
			}

			requiredRotation := gen.prevVectors[m].rotationTo(gen.desiredVectors[m])
			if flipHeading(requiredRotation) {
				requiredRotation = utils.WrapAngle(requiredRotation + math.Pi)
			}

			if math.Abs(requiredRotation)/maxThetaStep <= 1 {
				desiredAngle := gen.desiredStates[m].Angle
				gen.steeringOverride[m] = &desiredAngle
			} else {
				adjusted := prevAngle.RotateBy(spatialmath.NewRotation2D(utils.Sign(requiredRotation) * maxThetaStep))
				gen.steeringOverride[m] = &adjusted
				gen.minS = 0
			}
			continue
		}

		if gen.minS == 0 {
			continue
		}

		maxS := findSteeringMaxS(
			gen.prevVectors[m].vx,
			gen.prevVectors[m].vy,
			gen.prevVectors[m].radians(),
			gen.desiredVectors[m].vx,
			gen.desiredVectors[m].vy,
			gen.desiredVectors[m].radians(),
			maxThetaStep,
		)
		gen.minS = math.Min(gen.minS, maxS)
	}
}

// solveDriving limits how fast each wheel can change speed. The force every module can put into
// the carpet comes from the motor's torque at its previous speed, capped by the current limit and
// the wheel's traction. The sum of those forces accelerates the chassis, and that acceleration
// bounds the change of each wheel's speed.
func (g *SetpointGenerator) solveDriving(gen *generation) {
	var chassisForce r2.Point
	chassisTorque := 0.0
	voltage := g.voltage()
	maxTractionTorque := g.wheelFrictionForce * g.wheelRadius

	for m := 0; m < NumModules; m++ {
		prevState := gen.prev.ModuleStates[m]
		lastVelRadPerSec := prevState.Speed / g.wheelRadius
		currentDraw := math.Min(g.driveMotor.Current(math.Abs(lastVelRadPerSec), voltage), g.driveCurrentLimit)
		moduleTorque := g.driveMotor.Torque(currentDraw)

		prevSpeed := prevState.Speed
		desiredSpeed := gen.desiredStates[m].Optimize(prevState.Angle).Speed

		var forceSign float64
		forceAngle := prevState.Angle
		if utils.EpsilonEquals(prevSpeed, 0) ||
			(prevSpeed > 0 && desiredSpeed >= prevSpeed) ||
			(prevSpeed < 0 && desiredSpeed <= prevSpeed) {
			// Accelerating: the force points along the wheel's motion and losses fight the motor.
			moduleTorque -= g.torqueLoss
			forceSign = 1
			if prevSpeed < 0 {
				forceAngle = forceAngle.RotateBy(spatialmath.NewRotation2D(math.Pi))
			}
		} else {
			// Braking: losses help the motor.
			moduleTorque += g.torqueLoss
			forceSign = -1
			if prevSpeed > 0 {
				forceAngle = forceAngle.RotateBy(spatialmath.NewRotation2D(math.Pi))
			}
		}

		moduleTorque = math.Min(moduleTorque, maxTractionTorque)
		forceAtCarpet := moduleTorque / g.wheelRadius
		moduleForce := r2.Point{
			X: forceAtCarpet * forceSign * forceAngle.Cos(),
			Y: forceAtCarpet * forceSign * forceAngle.Sin(),
		}
		chassisForce = chassisForce.Add(moduleForce)

		loc := g.locations[m]
		theta := spatialmath.RotationFromVector(moduleForce.X, moduleForce.Y).
			Minus(spatialmath.RotationFromVector(loc.X, loc.Y))
		chassisTorque += forceAtCarpet * loc.Norm() * theta.Sin()
	}

	chassisAccel := kinematics.ChassisVelocity{
		Vx:    chassisForce.X / g.mass,
		Vy:    chassisForce.Y / g.mass,
		Omega: chassisTorque / g.moi,
	}
	accelStates := g.kinematics.ToModuleStates(chassisAccel)

	for m := 0; m < NumModules; m++ {
		if gen.minS == 0 {
			return
		}

		maxVelStep := math.Abs(accelStates[m].Speed * gen.dt)
		prevVector := gen.prevVectors[m]
		vxMinS, vyMinS := prevVector.interpolate(gen.desiredVectors[m], gen.minS)

		// Search between prev and the interpolant at minS since the module can't go further anyway,
		// then scale back to the whole interval.
		s := gen.minS * findDriveMaxS(
			prevVector.vx,
			prevVector.vy,
			prevVector.speed(),
			vxMinS,
			vyMinS,
			math.Hypot(vxMinS, vyMinS),
			maxVelStep,
		)
		gen.minS = math.Min(gen.minS, s)
	}
}
