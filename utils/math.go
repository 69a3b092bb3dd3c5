package utils

import (
	"math"
)

// DefaultEpsilon is the tolerance used by the swerve math when comparing floats.
const DefaultEpsilon = 1e-8

// Float64AlmostEqual compares two float64s and returns if the difference between them is less than epsilon.
func Float64AlmostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

// EpsilonEquals reports whether a and b are within DefaultEpsilon of each other.
func EpsilonEquals(a, b float64) bool {
	return Float64AlmostEqual(a, b, DefaultEpsilon)
}

// Clamp returns the value clamped to [lo, hi].
func Clamp(value, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, value))
}

// Sign returns -1, 0 or 1 matching the sign of x. Unlike math.Copysign, zero maps to zero.
func Sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// WrapAngle maps an angle in radians to (-pi, pi].
func WrapAngle(radians float64) float64 {
	wrapped := math.Mod(radians+math.Pi, 2*math.Pi)
	if wrapped <= 0 {
		wrapped += 2 * math.Pi
	}
	return wrapped - math.Pi
}

// Interpolate linearly between start and end by t, where t is not clamped.
func Interpolate(start, end, t float64) float64 {
	return start + (end-start)*t
}
