package control

import (
	"math"

	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/utils"
)

// moduleVector is a module's velocity split into components, with the direction of travel cached
// as a cosine and sine. A module driving backwards points the cached direction along its velocity.
type moduleVector struct {
	vx, vy   float64
	cos, sin float64
}

func newModuleVector(state kinematics.ModuleState) moduleVector {
	v := moduleVector{cos: state.Angle.Cos(), sin: state.Angle.Sin()}
	v.vx = v.cos * state.Speed
	v.vy = v.sin * state.Speed
	if state.Speed < 0 {
		v = v.rotateBy(-1, 0)
	}
	return v
}

// rotateBy rotates only the cached direction.
func (v moduleVector) rotateBy(otherCos, otherSin float64) moduleVector {
	v.cos, v.sin = v.cos*otherCos-v.sin*otherSin, v.cos*otherSin+v.sin*otherCos
	return v
}

func (v moduleVector) radians() float64 {
	return math.Atan2(v.sin, v.cos)
}

func (v moduleVector) speed() float64 {
	return math.Hypot(v.vx, v.vy)
}

// rotationTo returns the signed rotation from v's direction to other's, in (-pi, pi].
func (v moduleVector) rotationTo(other moduleVector) float64 {
	cos := v.cos*other.cos + v.sin*other.sin
	sin := v.cos*other.sin - v.sin*other.cos
	return math.Atan2(sin, cos)
}

// interpolate returns the velocity components a fraction s of the way from v to other.
func (v moduleVector) interpolate(other moduleVector, s float64) (float64, float64) {
	if s == 1 {
		return other.vx, other.vy
	}
	return utils.Interpolate(v.vx, other.vx, s), utils.Interpolate(v.vy, other.vy, s)
}
