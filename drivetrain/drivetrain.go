// Package drivetrain carries the swerve setpoint from one control cycle to the next and hands each
// new setpoint to the module controllers.
package drivetrain

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/swerve/control"
	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/spatialmath"
)

// A ModuleController closes the loop on each module's speed and angle.
type ModuleController interface {
	// SetModuleStates commands every module. Feedforward fields are zero when not generated.
	SetModuleStates(ctx context.Context, states [control.NumModules]kinematics.ModuleState) error
	// Stop stops every module where it is.
	Stop(ctx context.Context) error
}

// Config configures a Drivetrain.
type Config struct {
	// SimpleMode skips steering and force limits, only desaturating wheel speeds.
	SimpleMode bool `json:"simple_mode,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) ([]string, error) {
	return nil, nil
}

// Drivetrain generates setpoints toward requested chassis velocities.
type Drivetrain struct {
	logger    logging.Logger
	cfg       Config
	generator *control.SetpointGenerator
	modules   ModuleController

	mu       sync.Mutex
	setpoint control.Setpoint
}

// New returns a drivetrain at rest with every module pointing forward.
func New(
	logger logging.Logger,
	cfg Config,
	generator *control.SetpointGenerator,
	modules ModuleController,
) (*Drivetrain, error) {
	if generator == nil {
		return nil, errors.New("drivetrain needs a setpoint generator")
	}
	if modules == nil {
		return nil, errors.New("drivetrain needs module controllers")
	}
	if cfg.SimpleMode {
		logger.Info("drivetrain running without steering or force limits")
	}
	return &Drivetrain{
		logger:    logger,
		cfg:       cfg,
		generator: generator,
		modules:   modules,
		setpoint:  control.ZeroedSetpoint(),
	}, nil
}

// Drive takes one control step of length dt toward the robot relative velocity desired and commands
// the modules. The generated setpoint is carried to the next step even if commanding fails.
func (d *Drivetrain) Drive(
	ctx context.Context,
	desired kinematics.ChassisVelocity,
	dt time.Duration,
) (control.Setpoint, error) {
	d.mu.Lock()
	prev := d.setpoint
	var next control.Setpoint
	if d.cfg.SimpleMode {
		next = d.generator.GenerateSimpleSetpoint(prev, desired, dt)
	} else {
		next = d.generator.GenerateSetpoint(prev, desired, dt)
	}
	d.setpoint = next
	d.mu.Unlock()

	if err := d.modules.SetModuleStates(ctx, next.ModuleStates); err != nil {
		return next, errors.Wrap(err, "commanding modules")
	}
	return next, nil
}

// DriveFieldRelative is Drive with desired given in the field frame of a robot facing heading.
func (d *Drivetrain) DriveFieldRelative(
	ctx context.Context,
	desired kinematics.ChassisVelocity,
	heading spatialmath.Rotation2D,
	dt time.Duration,
) (control.Setpoint, error) {
	return d.Drive(ctx, kinematics.FromFieldRelative(desired, heading), dt)
}

// Stop stops the modules immediately, keeping their angles.
func (d *Drivetrain) Stop(ctx context.Context) error {
	d.mu.Lock()
	stopped := control.Setpoint{ModuleStates: d.setpoint.ModuleStates}
	for m := range stopped.ModuleStates {
		stopped.ModuleStates[m].Speed = 0
		stopped.ModuleStates[m].SteerVelocityFF = 0
		stopped.ModuleStates[m].DriveAccelerationFF = 0
	}
	d.setpoint = stopped
	d.mu.Unlock()
	return d.modules.Stop(ctx)
}

// Setpoint returns the setpoint carried to the next step.
func (d *Drivetrain) Setpoint() control.Setpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setpoint
}

// ResetSetpoint replaces the carried setpoint with measured module states, e.g. after the modules
// were driven by something else.
func (d *Drivetrain) ResetSetpoint(measured []kinematics.ModuleState) error {
	if len(measured) != control.NumModules {
		return errors.Errorf("expected %d module states, got %d", control.NumModules, len(measured))
	}
	d.mu.Lock()
	kin := d.generator.Kinematics()
	d.mu.Unlock()
	chassis, err := kin.ToChassisVelocity(measured)
	if err != nil {
		return err
	}
	var sp control.Setpoint
	sp.ChassisVelocity = chassis
	for m, state := range measured {
		sp.ModuleStates[m] = kinematics.ModuleState{Speed: state.Speed, Angle: state.Angle}
	}

	d.mu.Lock()
	d.setpoint = sp
	d.mu.Unlock()
	d.logger.Debugw("setpoint reset from measured states", "chassis", chassis.String())
	return nil
}

// Reconfigure swaps in a new generator and mode. The carried setpoint is kept, so a change of limits
// applies from the next step without a jump in commanded velocity.
func (d *Drivetrain) Reconfigure(cfg Config, generator *control.SetpointGenerator) error {
	if generator == nil {
		return errors.New("drivetrain needs a setpoint generator")
	}
	if _, err := cfg.Validate("drivetrain"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if cfg.SimpleMode != d.cfg.SimpleMode {
		d.logger.Infow("drivetrain mode changed", "simple_mode", cfg.SimpleMode)
	}
	d.cfg = cfg
	d.generator = generator
	return nil
}
