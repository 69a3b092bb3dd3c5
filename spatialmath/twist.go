package spatialmath

import (
	"fmt"
	"math"
)

// Twist2D is a change in pose along a constant-curvature arc, expressed in the frame of the
// starting pose.
type Twist2D struct {
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
	DTheta float64 `json:"dtheta"`
}

// Scale multiplies every component by k.
func (t Twist2D) Scale(k float64) Twist2D {
	return Twist2D{t.DX * k, t.DY * k, t.DTheta * k}
}

// AlmostEqual returns whether every component is within epsilon.
func (t Twist2D) AlmostEqual(other Twist2D, epsilon float64) bool {
	return math.Abs(t.DX-other.DX) < epsilon &&
		math.Abs(t.DY-other.DY) < epsilon &&
		math.Abs(t.DTheta-other.DTheta) < epsilon
}

func (t Twist2D) String() string {
	return fmt.Sprintf("Twist2D(dx: %.4f, dy: %.4f, dtheta: %.4f)", t.DX, t.DY, t.DTheta)
}
