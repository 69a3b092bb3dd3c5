// Package localization estimates the robot's field pose by integrating odometry twists and
// splicing in vision measurements at the time they were captured.
package localization

import (
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/spatialmath"
)

// DefaultMaxSampleAge is how long a TwistEstimator keeps samples before folding them into its root.
const DefaultMaxSampleAge = 300 * time.Millisecond

type timestampedTwist struct {
	spatialmath.Twist2D
	timestamp time.Time
}

// TwistEstimator keeps a short, time ordered history of twists on top of a root pose. The estimated
// pose is the root with every twist applied in order; it is recomputed on every read.
//
// A TwistEstimator is not safe for concurrent use.
type TwistEstimator struct {
	clk          clock.Clock
	maxSampleAge time.Duration

	root    spatialmath.Pose2D
	samples []timestampedTwist

	prevPositions []kinematics.ModulePosition
	prevGyro      spatialmath.Rotation2D
	hasGyro       bool
}

// NewTwistEstimator returns an estimator at the origin. Samples older than maxSampleAge, measured
// against clk, are folded into the root after every insertion. A nil clock means the wall clock
// and a non-positive age means DefaultMaxSampleAge.
func NewTwistEstimator(clk clock.Clock, maxSampleAge time.Duration) *TwistEstimator {
	if clk == nil {
		clk = clock.New()
	}
	if maxSampleAge <= 0 {
		maxSampleAge = DefaultMaxSampleAge
	}
	return &TwistEstimator{
		clk:          clk,
		maxSampleAge: maxSampleAge,
		root:         spatialmath.NewZeroPose2D(),
	}
}

// ResetPose discards the history and places the robot at pose. Wheel and gyro references are kept
// so the next drive sample still produces a delta.
func (e *TwistEstimator) ResetPose(pose spatialmath.Pose2D) {
	e.root = pose
	e.samples = e.samples[:0]
}

// Len returns the number of samples in the history.
func (e *TwistEstimator) Len() int {
	return len(e.samples)
}

// AddDriveSample appends the motion between the previous wheel positions and these, scaled by
// weight. The first call only records the positions.
func (e *TwistEstimator) AddDriveSample(
	kin *kinematics.SwerveKinematics,
	positions []kinematics.ModulePosition,
	timestamp time.Time,
	weight float64,
) error {
	twist, ok, err := e.wheelTwist(kin, positions)
	if err != nil || !ok {
		return err
	}
	e.insert(timestampedTwist{twist.Scale(weight), timestamp})
	e.Prune(e.maxSampleAge)
	return nil
}

// AddDriveSampleWithGyro is AddDriveSample taking the heading change from the gyro instead of the
// wheels. The gyro delta is not scaled by weight.
func (e *TwistEstimator) AddDriveSampleWithGyro(
	kin *kinematics.SwerveKinematics,
	positions []kinematics.ModulePosition,
	gyroYaw spatialmath.Rotation2D,
	timestamp time.Time,
	weight float64,
) error {
	twist, ok, err := e.wheelTwist(kin, positions)
	if err != nil {
		return err
	}
	prevGyro, hadGyro := e.prevGyro, e.hasGyro
	e.prevGyro, e.hasGyro = gyroYaw, true
	if !ok {
		return nil
	}

	twist = twist.Scale(weight)
	if hadGyro {
		twist.DTheta = gyroYaw.Minus(prevGyro).Radians()
	}
	e.insert(timestampedTwist{twist, timestamp})
	e.Prune(e.maxSampleAge)
	return nil
}

// wheelTwist returns the motion since the previous wheel positions, and false on the first reading.
func (e *TwistEstimator) wheelTwist(
	kin *kinematics.SwerveKinematics,
	positions []kinematics.ModulePosition,
) (spatialmath.Twist2D, bool, error) {
	if kin == nil {
		return spatialmath.Twist2D{}, false, errors.New("no kinematics given")
	}
	if len(positions) != kin.NumModules() {
		return spatialmath.Twist2D{}, false, errors.Errorf(
			"expected %d module positions, got %d", kin.NumModules(), len(positions))
	}
	current := make([]kinematics.ModulePosition, len(positions))
	copy(current, positions)

	prev := e.prevPositions
	e.prevPositions = current
	if prev == nil {
		return spatialmath.Twist2D{}, false, nil
	}
	twist, err := kin.ToTwist(prev, current)
	if err != nil {
		return spatialmath.Twist2D{}, false, err
	}
	return twist, true, nil
}

// AddVisionSample splices in a measurement that the robot was at pose at timestamp. The twist from
// the estimated pose at that time to pose, scaled by weight, is inserted after every sample at or
// before timestamp. A measurement older than the whole history, or older than the max sample age
// even when there is no history, is dropped and false is returned.
func (e *TwistEstimator) AddVisionSample(pose spatialmath.Pose2D, timestamp time.Time, weight float64) bool {
	if len(e.samples) > 0 && timestamp.Before(e.samples[0].timestamp) {
		return false
	}
	if timestamp.Before(e.clk.Now().Add(-e.maxSampleAge)) {
		return false
	}
	index := e.indexAfter(timestamp)
	twist := e.poseAtIndex(index).Log(pose)
	e.insertAt(index, timestampedTwist{twist.Scale(weight), timestamp})
	e.Prune(e.maxSampleAge)
	return true
}

// Prune folds every sample older than maxAge into the root pose.
func (e *TwistEstimator) Prune(maxAge time.Duration) {
	cutoff := e.clk.Now().Add(-maxAge)
	n := 0
	for n < len(e.samples) && e.samples[n].timestamp.Before(cutoff) {
		e.root = e.root.Exp(e.samples[n].Twist2D)
		n++
	}
	if n == 0 {
		return
	}
	e.samples = append(e.samples[:0], e.samples[n:]...)
}

// EstimatedPose returns the root pose with every sample applied.
func (e *TwistEstimator) EstimatedPose() spatialmath.Pose2D {
	return e.poseAtIndex(len(e.samples))
}

// EstimatedPoseFromPast returns the estimated pose as it was age ago, using only samples at or
// before that time. Ages reaching past the history return the root pose.
func (e *TwistEstimator) EstimatedPoseFromPast(age time.Duration) spatialmath.Pose2D {
	return e.poseAtIndex(e.indexAfter(e.clk.Now().Add(-age)))
}

// RootPose returns the pose of the oldest retained sample.
func (e *TwistEstimator) RootPose() spatialmath.Pose2D {
	return e.root
}

// indexAfter returns the number of samples at or before timestamp.
func (e *TwistEstimator) indexAfter(timestamp time.Time) int {
	return sort.Search(len(e.samples), func(i int) bool {
		return e.samples[i].timestamp.After(timestamp)
	})
}

func (e *TwistEstimator) poseAtIndex(index int) spatialmath.Pose2D {
	pose := e.root
	for _, s := range e.samples[:index] {
		pose = pose.Exp(s.Twist2D)
	}
	return pose
}

// insert keeps samples ordered; in the usual case of increasing odometry timestamps it appends.
func (e *TwistEstimator) insert(s timestampedTwist) {
	e.insertAt(e.indexAfter(s.timestamp), s)
}

func (e *TwistEstimator) insertAt(index int, s timestampedTwist) {
	e.samples = append(e.samples, timestampedTwist{})
	copy(e.samples[index+1:], e.samples[index:])
	e.samples[index] = s
}
