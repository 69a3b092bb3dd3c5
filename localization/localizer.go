package localization

import (
	"fmt"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/swerve/channel"
	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/spatialmath"
	"go.viam.com/swerve/utils"
)

// DriveSample is one odometry reading.
type DriveSample struct {
	ModulePositions []kinematics.ModulePosition
	GyroYaw         spatialmath.Rotation2D
	Timestamp       time.Time
}

// VisionEstimate is a pose measured by a camera pipeline at Timestamp. Trust in [0, 1] weights how
// far the estimate pulls the fused pose.
type VisionEstimate struct {
	Pose      spatialmath.Pose3D
	Timestamp time.Time
	Trust     float64
}

func (v VisionEstimate) String() string {
	return fmt.Sprintf("VisionEstimate(%v at %v, trust %.2f)", v.Pose.ToPose2D(), v.Timestamp, v.Trust)
}

// poseResetBufferSize is the default buffer of receivers returned by PoseResets.
const poseResetBufferSize = 8

// Localizer fuses drive samples and vision estimates sent from other goroutines into a pose. Update
// must be called periodically from a single goroutine; it drains everything sent since the last call.
type Localizer struct {
	logger logging.Logger
	clk    clock.Clock
	cfg    Config
	kin    *kinematics.SwerveKinematics

	estimator *TwistEstimator

	driveChannel  *channel.Channel[DriveSample]
	driveSamples  *channel.Receiver[DriveSample]
	visionChannel *channel.Channel[VisionEstimate]
	visionSamples *channel.Receiver[VisionEstimate]
	resetChannel  *channel.Channel[spatialmath.Pose2D]

	latestPose       spatialmath.Pose2D
	latestVelocity   kinematics.ChassisVelocity
	latestVisionPose spatialmath.Pose2D
	latestVisionTime time.Time

	driveDropped, visionDropped uint64
}

// NewLocalizer returns a localizer at the origin for a drivetrain with the given kinematics.
func NewLocalizer(
	logger logging.Logger,
	cfg Config,
	kin *kinematics.SwerveKinematics,
	clk clock.Clock,
) (*Localizer, error) {
	if _, err := cfg.Validate("localizer"); err != nil {
		return nil, err
	}
	if kin == nil {
		return nil, errors.New("localizer needs drivetrain kinematics")
	}
	if clk == nil {
		clk = clock.New()
	}

	l := &Localizer{
		logger:           logger,
		clk:              clk,
		cfg:              cfg,
		kin:              kin,
		estimator:        NewTwistEstimator(clk, cfg.maxSampleAge()),
		driveChannel:     channel.New[DriveSample](),
		visionChannel:    channel.New[VisionEstimate](),
		resetChannel:     channel.New[spatialmath.Pose2D](),
		latestPose:       spatialmath.NewZeroPose2D(),
		latestVisionPose: spatialmath.NewZeroPose2D(),
	}
	l.driveSamples = l.driveChannel.OpenReceiver(cfg.driveBufferSize())
	l.visionSamples = l.visionChannel.OpenReceiver(cfg.visionBufferSize())
	return l, nil
}

// DriveSender returns the sender odometry producers push samples to.
func (l *Localizer) DriveSender() channel.Sender[DriveSample] {
	return l.driveChannel.Sender()
}

// VisionSender returns the sender vision pipelines push estimates to.
func (l *Localizer) VisionSender() channel.Sender[VisionEstimate] {
	return l.visionChannel.Sender()
}

// PoseResets opens a receiver of every pose passed to Reset from now on.
func (l *Localizer) PoseResets(size int) *channel.Receiver[spatialmath.Pose2D] {
	if size <= 0 {
		size = poseResetBufferSize
	}
	return l.resetChannel.OpenReceiver(size)
}

// Reset places the robot at pose, discarding the history.
func (l *Localizer) Reset(pose spatialmath.Pose2D) {
	l.logger.Infow("resetting pose", "pose", pose.String())
	l.estimator.ResetPose(pose)
	l.latestPose = pose
	l.latestVelocity = kinematics.ChassisVelocity{}
	l.resetChannel.Sender().Send(pose)
}

// Update drains pending samples into the estimator and recomputes the pose and velocity.
func (l *Localizer) Update() {
	l.updateDrive()
	l.updateVision()

	l.estimator.Prune(l.cfg.pruneAge())
	l.latestPose = l.estimator.EstimatedPose()

	window := l.cfg.velocityWindow()
	twist := l.estimator.EstimatedPoseFromPast(window).Log(l.latestPose).Scale(1 / window.Seconds())
	l.latestVelocity = kinematics.ChassisVelocity{Vx: twist.DX, Vy: twist.DY, Omega: twist.DTheta}
}

func (l *Localizer) updateDrive() {
	if dropped := l.driveSamples.Dropped(); dropped != l.driveDropped {
		l.logger.Debugw("drive samples dropped before being read", "count", dropped-l.driveDropped)
		l.driveDropped = dropped
	}
	for _, sample := range l.driveSamples.RecvAll() {
		var err error
		if l.cfg.UseGyro {
			err = l.estimator.AddDriveSampleWithGyro(l.kin, sample.ModulePositions, sample.GyroYaw, sample.Timestamp, 1)
		} else {
			err = l.estimator.AddDriveSample(l.kin, sample.ModulePositions, sample.Timestamp, 1)
		}
		if err != nil {
			l.logger.Warnw("skipping drive sample", "timestamp", sample.Timestamp, "error", err)
		}
	}
}

func (l *Localizer) updateVision() {
	if dropped := l.visionSamples.Dropped(); dropped != l.visionDropped {
		l.logger.Debugw("vision estimates dropped before being read", "count", dropped-l.visionDropped)
		l.visionDropped = dropped
	}
	estimates := l.visionSamples.RecvAll()
	sort.SliceStable(estimates, func(i, j int) bool {
		return estimates[i].Timestamp.Before(estimates[j].Timestamp)
	})
	for _, estimate := range estimates {
		pose := estimate.Pose.ToPose2D()
		l.latestVisionPose = pose
		l.latestVisionTime = estimate.Timestamp
		if !l.estimator.AddVisionSample(pose, estimate.Timestamp, utils.Clamp(estimate.Trust, 0, 1)) {
			l.logger.Debugw("vision estimate older than pose history", "estimate", estimate.String())
		}
	}
}

// Pose returns the pose computed by the last Update.
func (l *Localizer) Pose() spatialmath.Pose2D {
	return l.latestPose
}

// Velocity returns the robot relative velocity over the last velocity window, as of the last Update.
func (l *Localizer) Velocity() kinematics.ChassisVelocity {
	return l.latestVelocity
}

// VisionPose returns the latest vision pose if it was captured within ageLimit, and the fused pose
// otherwise.
func (l *Localizer) VisionPose(ageLimit time.Duration) spatialmath.Pose2D {
	if l.latestVisionTime.IsZero() || l.latestVisionTime.Add(ageLimit).Before(l.clk.Now()) {
		return l.latestPose
	}
	return l.latestVisionPose
}

// Estimator returns the underlying estimator. It must only be used from the goroutine calling Update.
func (l *Localizer) Estimator() *TwistEstimator {
	return l.estimator
}
