package localization

import (
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/spatialmath"
)

const halfTrack = 0.3

func testKinematics(t *testing.T) *kinematics.SwerveKinematics {
	t.Helper()
	kin, err := kinematics.NewSwerveKinematics(
		r2.Point{X: halfTrack, Y: -halfTrack},
		r2.Point{X: -halfTrack, Y: -halfTrack},
		r2.Point{X: -halfTrack, Y: halfTrack},
		r2.Point{X: halfTrack, Y: halfTrack},
	)
	test.That(t, err, test.ShouldBeNil)
	return kin
}

// straight returns four modules pointing along angle that have all travelled distance.
func straight(distance, angle float64) []kinematics.ModulePosition {
	positions := make([]kinematics.ModulePosition, 4)
	for i := range positions {
		positions[i] = kinematics.ModulePosition{Distance: distance, Angle: spatialmath.NewRotation2D(angle)}
	}
	return positions
}

func ms(start time.Time, n int) time.Time {
	return start.Add(time.Duration(n) * time.Millisecond)
}

func assertPose(t *testing.T, actual spatialmath.Pose2D, x, y, theta float64) {
	t.Helper()
	test.That(t, actual.X(), test.ShouldAlmostEqual, x, 1e-6)
	test.That(t, actual.Y(), test.ShouldAlmostEqual, y, 1e-6)
	test.That(t, actual.Rotation.Radians(), test.ShouldAlmostEqual, theta, 1e-6)
}

// driveTo feeds three straight samples at 10ms, 20ms and 30ms after a reference at 0ms, leaving
// samples of 1m each at 10ms, 20ms and 30ms when the first call is the reference.
func driveTo(t *testing.T, e *TwistEstimator, kin *kinematics.SwerveKinematics, start time.Time) {
	t.Helper()
	for i := 0; i <= 3; i++ {
		test.That(t, e.AddDriveSample(kin, straight(float64(i), 0), ms(start, 10*i), 1), test.ShouldBeNil)
	}
}

func TestTwistEstimatorDriveSamples(t *testing.T) {
	mock := clock.NewMock()
	kin := testKinematics(t)
	e := NewTwistEstimator(mock, 0)
	start := mock.Now()

	test.That(t, e.AddDriveSample(kin, straight(0, 0), start, 1), test.ShouldBeNil)
	test.That(t, e.Len(), test.ShouldEqual, 0)
	assertPose(t, e.EstimatedPose(), 0, 0, 0)

	test.That(t, e.AddDriveSample(kin, straight(0.5, math.Pi/2), ms(start, 10), 1), test.ShouldBeNil)
	test.That(t, e.AddDriveSample(kin, straight(1.5, math.Pi/2), ms(start, 20), 0.5), test.ShouldBeNil)
	test.That(t, e.Len(), test.ShouldEqual, 2)
	assertPose(t, e.EstimatedPose(), 0, 1, 0)

	err := e.AddDriveSample(kin, straight(1, 0)[:3], ms(start, 30), 1)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected 4 module positions")
	test.That(t, e.Len(), test.ShouldEqual, 2)

	test.That(t, e.AddDriveSample(nil, straight(1, 0), ms(start, 30), 1), test.ShouldNotBeNil)
}

func TestTwistEstimatorSquareRoundTrip(t *testing.T) {
	mock := clock.NewMock()
	kin := testKinematics(t)
	e := NewTwistEstimator(mock, 0)
	start := mock.Now()

	test.That(t, e.AddDriveSample(kin, straight(0, 0), start, 1), test.ShouldBeNil)
	// Each side is driven in ten steps, steering a quarter turn at every corner.
	for side := 0; side < 4; side++ {
		heading := float64(side) * math.Pi / 2
		for step := 1; step <= 10; step++ {
			n := side*10 + step
			test.That(t, e.AddDriveSample(kin, straight(0.1*float64(n), heading), ms(start, n), 1), test.ShouldBeNil)
			if step == 10 && side == 1 {
				assertPose(t, e.EstimatedPose(), 1, 1, 0)
			}
		}
	}
	test.That(t, e.Len(), test.ShouldEqual, 40)
	assertPose(t, e.EstimatedPose(), 0, 0, 0)

	// Pruning only moves history into the root.
	before := e.EstimatedPose()
	mock.Add(321 * time.Millisecond)
	e.Prune(300 * time.Millisecond)
	test.That(t, e.Len(), test.ShouldEqual, 20)
	test.That(t, e.EstimatedPose().AlmostEqual(before, 1e-9), test.ShouldBeTrue)
	assertPose(t, e.RootPose(), 1, 1, 0)
}

func TestTwistEstimatorRotation(t *testing.T) {
	mock := clock.NewMock()
	kin := testKinematics(t)
	e := NewTwistEstimator(mock, 0)
	start := mock.Now()

	// Every wheel tangent to the circle through the modules, turning counter-clockwise.
	radius := math.Hypot(halfTrack, halfTrack)
	spin := func(distance float64) []kinematics.ModulePosition {
		positions := make([]kinematics.ModulePosition, 4)
		for i, loc := range kin.Locations() {
			positions[i] = kinematics.ModulePosition{
				Distance: distance,
				Angle:    spatialmath.RotationFromVector(-loc.Y, loc.X),
			}
		}
		return positions
	}
	test.That(t, e.AddDriveSample(kin, spin(0), start, 1), test.ShouldBeNil)
	test.That(t, e.AddDriveSample(kin, spin(radius*0.25), ms(start, 10), 1), test.ShouldBeNil)
	assertPose(t, e.EstimatedPose(), 0, 0, 0.25)
}

func TestTwistEstimatorGyro(t *testing.T) {
	mock := clock.NewMock()
	kin := testKinematics(t)
	e := NewTwistEstimator(mock, 0)
	start := mock.Now()

	test.That(t, e.AddDriveSampleWithGyro(kin, straight(0, 0), spatialmath.NewRotation2D(3.1), start, 1), test.ShouldBeNil)
	test.That(t, e.Len(), test.ShouldEqual, 0)

	// The wheels report no rotation, the gyro wraps across pi.
	test.That(t, e.AddDriveSampleWithGyro(kin, straight(0, 0), spatialmath.NewRotation2D(-3.1), ms(start, 10), 1),
		test.ShouldBeNil)
	test.That(t, e.Len(), test.ShouldEqual, 1)
	assertPose(t, e.EstimatedPose(), 0, 0, 2*math.Pi-6.2)

	test.That(t, e.AddDriveSampleWithGyro(kin, straight(0, 0), spatialmath.NewRotation2D(-3.2), ms(start, 20), 0.5),
		test.ShouldBeNil)
	assertPose(t, e.EstimatedPose(), 0, 0, 2*math.Pi-6.2-0.1)
}

func TestTwistEstimatorVisionSamples(t *testing.T) {
	kin := testKinematics(t)

	t.Run("empty history", func(t *testing.T) {
		mock := clock.NewMock()
		e := NewTwistEstimator(mock, 0)
		test.That(t, e.AddVisionSample(spatialmath.NewPose2D(1, 2, 0.5), mock.Now(), 1), test.ShouldBeTrue)
		test.That(t, e.Len(), test.ShouldEqual, 1)
		assertPose(t, e.EstimatedPose(), 1, 2, 0.5)
	})

	t.Run("stale with empty history", func(t *testing.T) {
		mock := clock.NewMock()
		e := NewTwistEstimator(mock, 100*time.Millisecond)
		start := mock.Now()
		mock.Add(time.Second)

		test.That(t, e.AddVisionSample(spatialmath.NewPose2D(1, 2, 0.5), start, 1), test.ShouldBeFalse)
		test.That(t, e.Len(), test.ShouldEqual, 0)
		assertPose(t, e.EstimatedPose(), 0, 0, 0)

		// Exactly at the age limit is still fused.
		test.That(t, e.AddVisionSample(spatialmath.NewPose2D(1, 2, 0.5), ms(start, 900), 1), test.ShouldBeTrue)
		test.That(t, e.Len(), test.ShouldEqual, 1)
		assertPose(t, e.EstimatedPose(), 1, 2, 0.5)
	})

	t.Run("weighted", func(t *testing.T) {
		mock := clock.NewMock()
		e := NewTwistEstimator(mock, 0)
		test.That(t, e.AddVisionSample(spatialmath.NewPose2D(0, 1, 0), mock.Now(), 0.5), test.ShouldBeTrue)
		assertPose(t, e.EstimatedPose(), 0, 0.5, 0)
	})

	t.Run("inserted at its time", func(t *testing.T) {
		mock := clock.NewMock()
		e := NewTwistEstimator(mock, 0)
		start := mock.Now()
		driveTo(t, e, kin, start)
		mock.Add(30 * time.Millisecond)

		test.That(t, e.AddVisionSample(spatialmath.NewPose2D(1, 0.5, 0), ms(start, 15), 1), test.ShouldBeTrue)
		test.That(t, e.Len(), test.ShouldEqual, 4)
		assertPose(t, e.EstimatedPose(), 3, 0.5, 0)
		assertPose(t, e.EstimatedPoseFromPast(20*time.Millisecond), 1, 0, 0)
		assertPose(t, e.EstimatedPoseFromPast(15*time.Millisecond), 1, 0.5, 0)
	})

	t.Run("same timestamp goes after", func(t *testing.T) {
		mock := clock.NewMock()
		e := NewTwistEstimator(mock, 0)
		start := mock.Now()
		driveTo(t, e, kin, start)

		test.That(t, e.AddVisionSample(spatialmath.NewPose2D(2, -1, 0), ms(start, 20), 1), test.ShouldBeTrue)
		assertPose(t, e.EstimatedPose(), 3, -1, 0)
	})

	t.Run("older than history", func(t *testing.T) {
		mock := clock.NewMock()
		e := NewTwistEstimator(mock, 0)
		start := mock.Now()
		driveTo(t, e, kin, start)

		test.That(t, e.AddVisionSample(spatialmath.NewPose2D(5, 5, 0), ms(start, 5), 1), test.ShouldBeFalse)
		test.That(t, e.Len(), test.ShouldEqual, 3)
		assertPose(t, e.EstimatedPose(), 3, 0, 0)
	})

	t.Run("after newest drive sample", func(t *testing.T) {
		mock := clock.NewMock()
		e := NewTwistEstimator(mock, 0)
		start := mock.Now()
		driveTo(t, e, kin, start)

		test.That(t, e.AddVisionSample(spatialmath.NewPose2D(3, 1, 0), ms(start, 35), 1), test.ShouldBeTrue)
		// Odometry captured before the vision frame still lands before it.
		test.That(t, e.AddDriveSample(kin, straight(4, 0), ms(start, 32), 1), test.ShouldBeNil)
		assertPose(t, e.EstimatedPose(), 4, 1, 0)
	})
}

func TestTwistEstimatorPrune(t *testing.T) {
	mock := clock.NewMock()
	kin := testKinematics(t)
	e := NewTwistEstimator(mock, 100*time.Millisecond)
	start := mock.Now()
	driveTo(t, e, kin, start)
	test.That(t, e.Len(), test.ShouldEqual, 3)

	mock.Add(125 * time.Millisecond)
	e.Prune(100 * time.Millisecond)
	test.That(t, e.Len(), test.ShouldEqual, 1)
	assertPose(t, e.RootPose(), 2, 0, 0)
	assertPose(t, e.EstimatedPose(), 3, 0, 0)

	// Adding a sample prunes with the configured age.
	mock.Add(time.Second)
	test.That(t, e.AddDriveSample(kin, straight(4, 0), mock.Now(), 1), test.ShouldBeNil)
	test.That(t, e.Len(), test.ShouldEqual, 1)
	assertPose(t, e.RootPose(), 3, 0, 0)
	assertPose(t, e.EstimatedPose(), 4, 0, 0)
	assertPose(t, e.EstimatedPoseFromPast(time.Minute), 3, 0, 0)
}

func TestTwistEstimatorResetPose(t *testing.T) {
	mock := clock.NewMock()
	kin := testKinematics(t)
	e := NewTwistEstimator(mock, 0)
	start := mock.Now()
	driveTo(t, e, kin, start)

	e.ResetPose(spatialmath.NewPose2D(-1, -1, math.Pi/2))
	test.That(t, e.Len(), test.ShouldEqual, 0)
	assertPose(t, e.EstimatedPose(), -1, -1, math.Pi/2)

	// The wheel reference survives the reset, so the next reading is a delta.
	test.That(t, e.AddDriveSample(kin, straight(3.5, 0), ms(start, 40), 1), test.ShouldBeNil)
	assertPose(t, e.EstimatedPose(), -1, -0.5, math.Pi/2)
}
