package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestRotation2D(t *testing.T) {
	r := NewRotation2D(math.Pi / 2)
	test.That(t, r.Cos(), test.ShouldAlmostEqual, 0)
	test.That(t, r.Sin(), test.ShouldAlmostEqual, 1)
	test.That(t, r.Degrees(), test.ShouldAlmostEqual, 90)

	sum := r.Plus(NewRotation2DFromDegrees(135))
	test.That(t, sum.Radians(), test.ShouldAlmostEqual, -3*math.Pi/4)

	diff := NewRotation2D(0.1).Minus(NewRotation2D(-0.2))
	test.That(t, diff.Radians(), test.ShouldAlmostEqual, 0.3)

	p := r.RotatePoint(r2.Point{X: 1, Y: 0})
	test.That(t, p.X, test.ShouldAlmostEqual, 0)
	test.That(t, p.Y, test.ShouldAlmostEqual, 1)

	test.That(t, RotationFromVector(0, 0).Radians(), test.ShouldEqual, 0.)
	test.That(t, RotationFromVector(-1, 0).Radians(), test.ShouldAlmostEqual, math.Pi)
	test.That(t, NewRotation2D(math.Pi).AlmostEqual(NewRotation2D(-math.Pi), 1e-9), test.ShouldBeTrue)
}

func TestPose2DExp(t *testing.T) {
	t.Run("straight line", func(t *testing.T) {
		end := NewZeroPose2D().Exp(Twist2D{1, 0, 0})
		test.That(t, end.AlmostEqual(NewPose2D(1, 0, 0), 1e-9), test.ShouldBeTrue)
	})

	t.Run("quarter circle", func(t *testing.T) {
		// Arc of radius 1 turning left a quarter turn.
		end := NewZeroPose2D().Exp(Twist2D{math.Pi / 2, 0, math.Pi / 2})
		test.That(t, end.X(), test.ShouldAlmostEqual, 1)
		test.That(t, end.Y(), test.ShouldAlmostEqual, 1)
		test.That(t, end.Rotation.Radians(), test.ShouldAlmostEqual, math.Pi/2)
	})

	t.Run("in the start frame", func(t *testing.T) {
		end := NewPose2D(2, 3, math.Pi/2).Exp(Twist2D{1, 0, 0})
		test.That(t, end.AlmostEqual(NewPose2D(2, 4, math.Pi/2), 1e-9), test.ShouldBeTrue)
	})
}

func TestPose2DLog(t *testing.T) {
	for _, tc := range []struct {
		name  string
		start Pose2D
		end   Pose2D
	}{
		{"identity", NewPose2D(1, 2, 0.3), NewPose2D(1, 2, 0.3)},
		{"translation", NewZeroPose2D(), NewPose2D(3, -1, 0)},
		{"arc", NewPose2D(0.5, -0.5, 0.2), NewPose2D(2, 1, 1.4)},
		{"turn in place", NewZeroPose2D(), NewPose2D(0, 0, -2.5)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			twist := tc.start.Log(tc.end)
			test.That(t, tc.start.Exp(twist).AlmostEqual(tc.end, 1e-9), test.ShouldBeTrue)
		})
	}

	twist := NewZeroPose2D().Log(NewPose2D(1, 1, math.Pi/2))
	test.That(t, twist.DX, test.ShouldAlmostEqual, math.Pi/2)
	test.That(t, twist.DY, test.ShouldAlmostEqual, 0)
	test.That(t, twist.DTheta, test.ShouldAlmostEqual, math.Pi/2)
}

func TestPose2DRelativeTo(t *testing.T) {
	rel := NewPose2D(1, 1, math.Pi/2).RelativeTo(NewPose2D(1, 0, math.Pi/2))
	test.That(t, rel.AlmostEqual(NewPose2D(1, 0, 0), 1e-9), test.ShouldBeTrue)

	origin := NewPose2D(-2, 4, 1.1)
	p := NewPose2D(0.7, 0.2, -0.4)
	test.That(t, origin.TransformBy(p).RelativeTo(origin).AlmostEqual(p, 1e-9), test.ShouldBeTrue)
}

func TestTwistScale(t *testing.T) {
	scaled := Twist2D{1, -2, 0.5}.Scale(0.5)
	test.That(t, scaled, test.ShouldResemble, Twist2D{0.5, -1, 0.25})
}

func TestPose3DToPose2D(t *testing.T) {
	p := NewPose3DFromYaw(1, 2, 0.5, 2.0).ToPose2D()
	test.That(t, p.X(), test.ShouldEqual, 1.)
	test.That(t, p.Y(), test.ShouldEqual, 2.)
	test.That(t, p.Rotation.Radians(), test.ShouldAlmostEqual, 2.0)

	p = NewPose3DFromYaw(0, 0, 0, -3.0).ToPose2D()
	test.That(t, p.Rotation.Radians(), test.ShouldAlmostEqual, -3.0)
}
