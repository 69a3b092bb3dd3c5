package kinematics

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/swerve/spatialmath"
)

// SwerveKinematics maps chassis velocities to module states and back for a fixed module geometry.
type SwerveKinematics struct {
	locations []r2.Point

	// inverse is the 2n x 3 matrix taking [vx vy omega] to interleaved module velocity components.
	inverse *mat.Dense
	// forward is the least squares pseudo-inverse of inverse.
	forward *mat.Dense
}

// NewSwerveKinematics creates kinematics for modules at the given offsets from the robot's center
// of rotation, in meters.
func NewSwerveKinematics(locations ...r2.Point) (*SwerveKinematics, error) {
	if len(locations) < 2 {
		return nil, errors.Errorf("swerve kinematics needs at least two modules, got %d", len(locations))
	}

	n := len(locations)
	inverse := mat.NewDense(2*n, 3, nil)
	for i, loc := range locations {
		inverse.SetRow(2*i, []float64{1, 0, -loc.Y})
		inverse.SetRow(2*i+1, []float64{0, 1, loc.X})
	}

	var normal mat.Dense
	normal.Mul(inverse.T(), inverse)
	var normalInv mat.Dense
	if err := normalInv.Inverse(&normal); err != nil {
		return nil, errors.Wrap(err, "module locations do not determine a chassis velocity")
	}
	var forward mat.Dense
	forward.Mul(&normalInv, inverse.T())

	locs := make([]r2.Point, n)
	copy(locs, locations)
	return &SwerveKinematics{locations: locs, inverse: inverse, forward: &forward}, nil
}

// NumModules returns the number of modules.
func (k *SwerveKinematics) NumModules() int {
	return len(k.locations)
}

// Locations returns a copy of the module offsets.
func (k *SwerveKinematics) Locations() []r2.Point {
	locs := make([]r2.Point, len(k.locations))
	copy(locs, k.locations)
	return locs
}

// ToModuleStates performs inverse kinematics. A module with no velocity points at 0 rad.
func (k *SwerveKinematics) ToModuleStates(velocity ChassisVelocity) []ModuleState {
	states := make([]ModuleState, len(k.locations))
	for i, loc := range k.locations {
		vx := velocity.Vx - velocity.Omega*loc.Y
		vy := velocity.Vy + velocity.Omega*loc.X
		states[i] = ModuleState{
			Speed: math.Hypot(vx, vy),
			Angle: spatialmath.RotationFromVector(vx, vy),
		}
	}
	return states
}

// ToChassisVelocity performs forward kinematics, the least squares fit of the module states.
func (k *SwerveKinematics) ToChassisVelocity(states []ModuleState) (ChassisVelocity, error) {
	if len(states) != len(k.locations) {
		return ChassisVelocity{}, errors.Errorf("expected %d module states, got %d", len(k.locations), len(states))
	}
	components := make([]float64, 0, 2*len(states))
	for _, s := range states {
		components = append(components, s.Speed*s.Angle.Cos(), s.Speed*s.Angle.Sin())
	}
	v := k.solve(components)
	return ChassisVelocity{v[0], v[1], v[2]}, nil
}

// ToTwist returns the chassis motion between two odometry readings. Each module is assumed to have
// travelled along its ending heading.
func (k *SwerveKinematics) ToTwist(start, end []ModulePosition) (spatialmath.Twist2D, error) {
	if len(start) != len(k.locations) || len(end) != len(k.locations) {
		return spatialmath.Twist2D{}, errors.Errorf(
			"expected %d module positions, got %d and %d", len(k.locations), len(start), len(end))
	}
	components := make([]float64, 0, 2*len(end))
	for i := range end {
		d := end[i].Distance - start[i].Distance
		components = append(components, d*end[i].Angle.Cos(), d*end[i].Angle.Sin())
	}
	v := k.solve(components)
	return spatialmath.Twist2D{DX: v[0], DY: v[1], DTheta: v[2]}, nil
}

func (k *SwerveKinematics) solve(components []float64) []float64 {
	var out mat.VecDense
	out.MulVec(k.forward, mat.NewVecDense(len(components), components))
	return []float64{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

// DesaturateWheelSpeeds scales every module speed down by the same factor so that none exceeds
// maxSpeed. Module angles are untouched.
func DesaturateWheelSpeeds(states []ModuleState, maxSpeed float64) {
	realMax := 0.0
	for _, s := range states {
		realMax = math.Max(realMax, math.Abs(s.Speed))
	}
	if realMax <= maxSpeed {
		return
	}
	for i := range states {
		states[i].Speed = states[i].Speed / realMax * maxSpeed
	}
}
