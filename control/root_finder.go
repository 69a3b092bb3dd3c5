package control

import (
	"math"

	"go.viam.com/swerve/utils"
)

const (
	maxSteerIterations = 8
	maxDriveIterations = 10
)

// func2d is a scalar function sampled along the segment between two velocity vectors.
type func2d func(x, y float64) float64

// findRoot locates the zero of f along the segment (x0, y0) -> (x1, y1) with regula falsi and
// returns it as an interpolant in [0, 1]. f0 and f1 are f evaluated at the two ends. The result is
// never outside [0, 1], even when the root is not bracketed.
func findRoot(f func2d, x0, y0, f0, x1, y1, f1 float64, iterationsLeft int) float64 {
	sGuess := utils.Clamp(-f0/(f1-f0), 0, 1)
	if math.IsNaN(sGuess) {
		// f0 == f1 == 0, the lower bracket is already a root.
		sGuess = 0
	}
	if iterationsLeft < 0 || utils.EpsilonEquals(f0, f1) {
		return sGuess
	}

	xGuess := (x1-x0)*sGuess + x0
	yGuess := (y1-y0)*sGuess + y0
	fGuess := f(xGuess, yGuess)
	if utils.Sign(f0) == utils.Sign(fGuess) {
		// The root is between the guess and the upper bracket.
		return sGuess + (1-sGuess)*findRoot(f, xGuess, yGuess, fGuess, x1, y1, f1, iterationsLeft-1)
	}
	return sGuess * findRoot(f, x0, y0, f0, xGuess, yGuess, fGuess, iterationsLeft-1)
}

// findSteeringMaxS returns how far toward the desired module velocity the module can move while
// its heading changes by at most maxDeviation radians.
func findSteeringMaxS(
	prevVx, prevVy, prevHeading float64,
	desiredVx, desiredVy, desiredHeading float64,
	maxDeviation float64,
) float64 {
	desiredHeading = unwrapAngle(prevHeading, desiredHeading)
	diff := desiredHeading - prevHeading
	if math.Abs(diff) <= maxDeviation {
		return 1
	}

	offset := prevHeading + utils.Sign(diff)*maxDeviation
	f := func(x, y float64) float64 {
		return unwrapAngle(prevHeading, math.Atan2(y, x)) - offset
	}
	return findRoot(f, prevVx, prevVy, prevHeading-offset, desiredVx, desiredVy, desiredHeading-offset, maxSteerIterations)
}

// findDriveMaxS returns how far from (x0, y0) toward (x1, y1) the wheel speed can move while
// changing by at most maxVelStep. f0 and f1 are the speeds at either end.
func findDriveMaxS(x0, y0, f0, x1, y1, f1, maxVelStep float64) float64 {
	diff := f1 - f0
	if math.Abs(diff) <= maxVelStep {
		return 1
	}

	offset := f0 + utils.Sign(diff)*maxVelStep
	f := func(x, y float64) float64 {
		return math.Hypot(x, y) - offset
	}
	return findRoot(f, x0, y0, f0-offset, x1, y1, f1-offset, maxDriveIterations)
}

// unwrapAngle shifts angle by a full turn if that brings it within pi of ref.
func unwrapAngle(ref, angle float64) float64 {
	diff := angle - ref
	switch {
	case diff > math.Pi:
		return angle - 2*math.Pi
	case diff < -math.Pi:
		return angle + 2*math.Pi
	default:
		return angle
	}
}

// flipHeading reports whether reaching a heading change of prevToGoal is shorter by reversing the
// wheel and turning the other way.
func flipHeading(prevToGoal float64) bool {
	return math.Abs(prevToGoal) > math.Pi/2
}
