package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/swerve/channel"
	"go.viam.com/swerve/config"
	"go.viam.com/swerve/control"
	"go.viam.com/swerve/drivetrain"
	"go.viam.com/swerve/drivetrain/fake"
	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/localization"
	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/odometry"
	"go.viam.com/swerve/spatialmath"
	"go.viam.com/swerve/utils"
)

const (
	squareFlagSide    = "side"
	squareFlagSpeed   = "speed"
	squareFlagTimeout = "timeout"
	squareFlagWatch   = "watch"

	defaultSquareTimeout = 30 * time.Second

	waypointTolerance = 0.05
	// approachGain is the speed commanded per meter left to a waypoint.
	approachGain = 2.0
	headingGain  = 1.5
	maxTurnRate  = 1.0

	cameraPeriod  = 100 * time.Millisecond
	cameraTrust   = 0.5
	cameraHeightM = 0.3
)

// SquareAction drives a square on fake modules in real time and reports how well the localizer
// tracked the true pose.
func SquareAction(c *cli.Context) error {
	logger := logging.Global().Sublogger("square")
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	logger = newLogger(c, cfg, logger)

	side, speed := c.Float64(squareFlagSide), c.Float64(squareFlagSpeed)
	if side <= 0 || speed <= 0 {
		return errors.Errorf("--%s and --%s must be positive", squareFlagSide, squareFlagSpeed)
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration(squareFlagTimeout))
	defer cancel()
	sim, err := newSquareSim(logger, cfg, clock.New(), side, speed)
	if err != nil {
		return err
	}
	if c.Bool(squareFlagWatch) {
		if cfg.ConfigFilePath == "" {
			return errors.Errorf("--%s needs --%s", squareFlagWatch, flagConfig)
		}
		watcher, err := config.NewFileWatcher(cfg.ConfigFilePath, logger.Sublogger("config"))
		if err != nil {
			return err
		}
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warnw("closing config watcher", "error", err)
			}
		}()
		sim.configs = watcher.Config()
	}
	if err := sim.run(ctx); err != nil {
		return err
	}
	return sim.follower.report(c.App.Writer)
}

// squareSim wires fake modules through odometry and vision into a localizer and drives a square
// from its estimate.
type squareSim struct {
	logger   logging.Logger
	clk      clock.Clock
	cfg      *config.Config
	modules  *fake.Modules
	drive    *drivetrain.Drivetrain
	loc      *localization.Localizer
	sampler  *odometry.Sampler
	follower *squareFollower

	// configs, when set, delivers edited configs to apply while driving.
	configs <-chan *config.Config
}

func newSquareSim(logger logging.Logger, cfg *config.Config, clk clock.Clock, side, speed float64) (*squareSim, error) {
	gen, err := control.NewSetpointGenerator(cfg.Generator, logger.Sublogger("generator"))
	if err != nil {
		return nil, err
	}
	modules, err := fake.NewModules(gen.Kinematics(), clk)
	if err != nil {
		return nil, err
	}
	drive, err := drivetrain.New(logger.Sublogger("drivetrain"), cfg.Drivetrain, gen, modules)
	if err != nil {
		return nil, err
	}
	loc, err := localization.NewLocalizer(logger.Sublogger("localizer"), cfg.Localizer, gen.Kinematics(), clk)
	if err != nil {
		return nil, err
	}
	sampler, err := odometry.NewSampler(logger.Sublogger("odometry"), cfg.Odometry, modules, loc.DriveSender(), clk)
	if err != nil {
		return nil, err
	}
	follower, err := newSquareFollower(loc, drive, modules, side, speed)
	if err != nil {
		return nil, err
	}
	return &squareSim{
		logger:   logger,
		clk:      clk,
		cfg:      cfg,
		modules:  modules,
		drive:    drive,
		loc:      loc,
		sampler:  sampler,
		follower: follower,
	}, nil
}

// run drives until the square is finished or ctx is done.
func (s *squareSim) run(ctx context.Context) error {
	loop, err := control.NewLoop(s.logger.Sublogger("loop"), s.cfg.Loop, s.clk,
		control.Step{Name: "localize", Run: func(context.Context, time.Duration) error {
			s.loc.Update()
			return nil
		}},
		control.Step{Name: "drive", Run: s.follower.step},
	)
	if err != nil {
		return err
	}

	camera := utils.NewStoppableWorkers(func(ctx context.Context) {
		s.runCamera(ctx, s.loc.VisionSender())
	})
	defer camera.Stop()
	if s.configs != nil {
		camera.AddWorkers(func(ctx context.Context) {
			for {
				select {
				case <-ctx.Done():
					return
				case cfg := <-s.configs:
					if err := s.reconfigure(cfg); err != nil {
						s.logger.Warnw("not applying config", "path", cfg.ConfigFilePath, "error", err)
					}
				}
			}
		})
	}
	if err := s.sampler.Start(); err != nil {
		return err
	}
	defer s.sampler.Stop()
	if err := loop.Start(); err != nil {
		return err
	}

	select {
	case <-s.follower.done:
		loop.Stop()
	case <-ctx.Done():
		loop.Stop()
		err = errors.Wrapf(ctx.Err(), "reached %d of %d corners", s.follower.next, len(s.follower.waypoints))
	}
	s.logger.Debugw("square finished", "loop_iterations", loop.Iterations(), "loop_errors", loop.Errors(),
		"odometry_samples", s.sampler.Samples(), "odometry_failures", s.sampler.Failures())
	return multierr.Combine(err, s.drive.Stop(context.Background()))
}

// reconfigure applies new generator limits and drivetrain mode. Module locations are shared with the
// localizer, so changing them needs a restart.
func (s *squareSim) reconfigure(cfg *config.Config) error {
	current := s.cfg.Generator.ModuleLocations
	for m, loc := range cfg.Generator.ModuleLocations {
		if m >= len(current) || loc != current[m] {
			return errors.New("module locations cannot change while driving")
		}
	}
	gen, err := control.NewSetpointGenerator(cfg.Generator, s.logger.Sublogger("generator"))
	if err != nil {
		return err
	}
	if err := s.drive.Reconfigure(cfg.Drivetrain, gen); err != nil {
		return err
	}
	s.logger.Infow("applied new config", "path", cfg.ConfigFilePath)
	return nil
}

// runCamera publishes the true pose as a vision estimate until ctx is done.
func (s *squareSim) runCamera(ctx context.Context, sender channel.Sender[localization.VisionEstimate]) {
	ticker := s.clk.Ticker(cameraPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		truth := s.modules.Pose()
		sender.Send(localization.VisionEstimate{
			Pose:      spatialmath.NewPose3DFromYaw(truth.X(), truth.Y(), cameraHeightM, truth.Rotation.Radians()),
			Timestamp: s.clk.Now(),
			Trust:     cameraTrust,
		})
	}
}

type corner struct {
	reachedAfter int
	estimated    spatialmath.Pose2D
	truth        spatialmath.Pose2D
}

// squareFollower drives field relative toward each waypoint in turn, slowing as it gets close.
type squareFollower struct {
	loc     *localization.Localizer
	drive   *drivetrain.Drivetrain
	modules *fake.Modules

	approach *control.PID
	heading  *control.PID

	waypoints []r2.Point
	next      int
	steps     int
	corners   []corner
	errs      []float64
	done      chan struct{}
}

func newSquareFollower(
	loc *localization.Localizer,
	drive *drivetrain.Drivetrain,
	modules *fake.Modules,
	side, speed float64,
) (*squareFollower, error) {
	approach, err := control.NewPID(control.PIDConfig{Kp: approachGain, OutputLimit: speed})
	if err != nil {
		return nil, err
	}
	heading, err := control.NewPID(control.PIDConfig{Kp: headingGain, OutputLimit: maxTurnRate})
	if err != nil {
		return nil, err
	}
	return &squareFollower{
		loc:      loc,
		drive:    drive,
		modules:  modules,
		approach: approach,
		heading:  heading,
		waypoints: []r2.Point{
			{X: side, Y: 0},
			{X: side, Y: side},
			{X: 0, Y: side},
			{X: 0, Y: 0},
		},
		done: make(chan struct{}),
	}, nil
}

func (f *squareFollower) finished() bool {
	return f.next >= len(f.waypoints)
}

func (f *squareFollower) step(ctx context.Context, dt time.Duration) error {
	if f.finished() {
		_, err := f.drive.Drive(ctx, kinematics.ChassisVelocity{}, dt)
		return err
	}
	f.steps++
	pose := f.loc.Pose()
	truth := f.modules.Pose()
	f.errs = append(f.errs, pose.Translation.Sub(truth.Translation).Norm())

	delta := f.waypoints[f.next].Sub(pose.Translation)
	dist := delta.Norm()
	if dist < waypointTolerance {
		f.corners = append(f.corners, corner{f.steps, pose, truth})
		f.next++
		f.approach.Reset()
		if f.finished() {
			close(f.done)
			_, err := f.drive.Drive(ctx, kinematics.ChassisVelocity{}, dt)
			return err
		}
		delta = f.waypoints[f.next].Sub(pose.Translation)
		dist = delta.Norm()
	}

	var v r2.Point
	if dist > 0 {
		v = delta.Mul(f.approach.Next(dist, dt) / dist)
	}
	// Hold the starting heading.
	omega := f.heading.Next(utils.WrapAngle(-pose.Rotation.Radians()), dt)
	_, err := f.drive.DriveFieldRelative(ctx, kinematics.ChassisVelocity{Vx: v.X, Vy: v.Y, Omega: omega}, pose.Rotation, dt)
	return err
}

func (f *squareFollower) report(w io.Writer) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Corner", "Step", "Estimated", "True", "Error (m)"})
	for i, c := range f.corners {
		t.AppendRow(table.Row{
			i + 1,
			c.reachedAfter,
			c.estimated.String(),
			c.truth.String(),
			fmt.Sprintf("%.4f", c.estimated.Translation.Sub(c.truth.Translation).Norm()),
		})
	}
	t.Render()

	mean, err := stats.Mean(f.errs)
	if err != nil {
		return err
	}
	maxErr, err := stats.Max(f.errs)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "localization error over %d steps: mean %.4fm, max %.4fm\n", len(f.errs), mean, maxErr)
	return nil
}
