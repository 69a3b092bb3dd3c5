package localization

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/spatialmath"
)

func newTestLocalizer(t *testing.T, cfg Config) (*Localizer, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	l, err := NewLocalizer(logging.NewTestLogger(t), cfg, testKinematics(t), mock)
	test.That(t, err, test.ShouldBeNil)
	return l, mock
}

func vision(x, y float64, at time.Time, trust float64) VisionEstimate {
	return VisionEstimate{Pose: spatialmath.NewPose3DFromYaw(x, y, 0.2, 0), Timestamp: at, Trust: trust}
}

func TestNewLocalizer(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := NewLocalizer(logger, Config{}, nil, nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewLocalizer(logger, Config{PruneAgeSec: -1}, testKinematics(t), nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "prune_age_sec")

	_, err = NewLocalizer(logger, Config{VelocityWindowSec: 1}, testKinematics(t), nil)
	test.That(t, err, test.ShouldNotBeNil)

	l, err := NewLocalizer(logger, Config{}, testKinematics(t), nil)
	test.That(t, err, test.ShouldBeNil)
	assertPose(t, l.Pose(), 0, 0, 0)
	test.That(t, l.Velocity().IsZero(), test.ShouldBeTrue)
}

func TestLocalizerFusesOutOfOrderVision(t *testing.T) {
	l, mock := newTestLocalizer(t, Config{})
	start := mock.Now()

	drive := l.DriveSender()
	for i := 0; i <= 3; i++ {
		drive.Send(DriveSample{
			ModulePositions: straight(float64(i), 0),
			GyroYaw:         spatialmath.NewRotation2D(0),
			Timestamp:       ms(start, 10*i),
		})
	}
	// The later frame finishes processing first.
	cameras := l.VisionSender()
	cameras.Send(vision(2, 0.5, ms(start, 25), 1))
	cameras.Send(vision(1, 0.5, ms(start, 15), 1))

	mock.Add(30 * time.Millisecond)
	l.Update()

	assertPose(t, l.Pose(), 3, 0.5, 0)
	test.That(t, l.Estimator().Len(), test.ShouldEqual, 5)

	// Every sample is within the 50ms window so the whole motion counts.
	v := l.Velocity()
	test.That(t, v.Vx, test.ShouldAlmostEqual, 3/0.05, 1e-6)
	test.That(t, v.Vy, test.ShouldAlmostEqual, 0.5/0.05, 1e-6)
	test.That(t, v.Omega, test.ShouldAlmostEqual, 0, 1e-6)

	assertPose(t, l.VisionPose(100*time.Millisecond), 2, 0.5, 0)
	assertPose(t, l.VisionPose(time.Millisecond), 3, 0.5, 0)

	// Nothing new arrives, the pose holds and the velocity decays once the window passes.
	mock.Add(100 * time.Millisecond)
	l.Update()
	assertPose(t, l.Pose(), 3, 0.5, 0)
	test.That(t, l.Velocity().IsZero(), test.ShouldBeTrue)
}

func TestLocalizerDropsStaleVision(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	mock := clock.NewMock()
	l, err := NewLocalizer(logger, Config{}, testKinematics(t), mock)
	test.That(t, err, test.ShouldBeNil)
	start := mock.Now()

	for i := 0; i <= 2; i++ {
		l.DriveSender().Send(DriveSample{ModulePositions: straight(float64(i), 0), Timestamp: ms(start, 10*i)})
	}
	l.VisionSender().Send(vision(9, 9, ms(start, 5), 1))
	l.Update()

	assertPose(t, l.Pose(), 2, 0, 0)
	test.That(t, logs.FilterMessage("vision estimate older than pose history").Len(), test.ShouldEqual, 1)
}

func TestLocalizerTrust(t *testing.T) {
	l, mock := newTestLocalizer(t, Config{})
	l.VisionSender().Send(vision(0, 2, mock.Now(), 0.25))
	l.Update()
	assertPose(t, l.Pose(), 0, 0.5, 0)

	l.Reset(spatialmath.NewZeroPose2D())
	l.VisionSender().Send(vision(0, 2, mock.Now(), 7))
	l.Update()
	assertPose(t, l.Pose(), 0, 2, 0)
}

func TestLocalizerSkipsMalformedDriveSamples(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	mock := clock.NewMock()
	l, err := NewLocalizer(logger, Config{}, testKinematics(t), mock)
	test.That(t, err, test.ShouldBeNil)
	start := mock.Now()

	drive := l.DriveSender()
	drive.Send(DriveSample{ModulePositions: straight(0, 0), Timestamp: start})
	drive.Send(DriveSample{ModulePositions: straight(1, 0)[:2], Timestamp: ms(start, 10)})
	drive.Send(DriveSample{ModulePositions: straight(1, 0), Timestamp: ms(start, 20)})
	l.Update()

	assertPose(t, l.Pose(), 1, 0, 0)
	test.That(t, logs.FilterMessage("skipping drive sample").Len(), test.ShouldEqual, 1)
}

func TestLocalizerGyro(t *testing.T) {
	l, mock := newTestLocalizer(t, Config{UseGyro: true})
	start := mock.Now()

	drive := l.DriveSender()
	drive.Send(DriveSample{ModulePositions: straight(0, 0), GyroYaw: spatialmath.NewRotation2D(0.5), Timestamp: start})
	drive.Send(DriveSample{ModulePositions: straight(0, 0), GyroYaw: spatialmath.NewRotation2D(0.8), Timestamp: ms(start, 10)})
	l.Update()
	assertPose(t, l.Pose(), 0, 0, 0.3)
}

func TestLocalizerDriveOverflow(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	mock := clock.NewMock()
	l, err := NewLocalizer(logger, Config{DriveBufferSize: 2}, testKinematics(t), mock)
	test.That(t, err, test.ShouldBeNil)
	start := mock.Now()

	// The first reading is overwritten, so the second becomes the wheel reference.
	for i := 0; i <= 2; i++ {
		l.DriveSender().Send(DriveSample{ModulePositions: straight(float64(i), 0), Timestamp: ms(start, 10*i)})
	}
	l.Update()
	assertPose(t, l.Pose(), 1, 0, 0)
	test.That(t, logs.FilterMessage("drive samples dropped before being read").Len(), test.ShouldEqual, 1)
}

func TestLocalizerReset(t *testing.T) {
	l, mock := newTestLocalizer(t, Config{})
	resets := l.PoseResets(0)
	start := mock.Now()

	l.DriveSender().Send(DriveSample{ModulePositions: straight(0, 0), Timestamp: start})
	l.DriveSender().Send(DriveSample{ModulePositions: straight(1, 0), Timestamp: ms(start, 10)})
	l.Update()
	assertPose(t, l.Pose(), 1, 0, 0)

	target := spatialmath.NewPose2D(4, 2, 1)
	l.Reset(target)
	assertPose(t, l.Pose(), 4, 2, 1)
	test.That(t, l.Estimator().Len(), test.ShouldEqual, 0)

	got, ok := resets.Recv()
	test.That(t, ok, test.ShouldBeTrue)
	assertPose(t, got, 4, 2, 1)

	l.Update()
	assertPose(t, l.Pose(), 4, 2, 1)
}
