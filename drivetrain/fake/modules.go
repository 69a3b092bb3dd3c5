// Package fake implements swerve modules that follow every command perfectly.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/swerve/control"
	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/spatialmath"
)

// Modules reach their commanded speed and angle instantly. Wheel distances, the gyro and the true
// pose are integrated from the commanded states as the clock advances.
type Modules struct {
	kin *kinematics.SwerveKinematics
	clk clock.Clock

	mu        sync.Mutex
	states    [control.NumModules]kinematics.ModuleState
	distances [control.NumModules]float64
	pose      spatialmath.Pose2D
	lastTime  time.Time

	CommandCount int
	StopCount    int
}

// NewModules returns stopped modules pointing forward with the robot at the origin.
func NewModules(kin *kinematics.SwerveKinematics, clk clock.Clock) (*Modules, error) {
	if kin.NumModules() != control.NumModules {
		return nil, errors.Errorf("fake modules need %d module kinematics, got %d", control.NumModules, kin.NumModules())
	}
	if clk == nil {
		clk = clock.New()
	}
	m := &Modules{kin: kin, clk: clk, pose: spatialmath.NewZeroPose2D(), lastTime: clk.Now()}
	for i := range m.states {
		m.states[i].Angle = spatialmath.NewRotation2D(0)
	}
	return m, nil
}

// integrate advances the modules to now. Callers must hold mu.
func (m *Modules) integrate() {
	now := m.clk.Now()
	dt := now.Sub(m.lastTime).Seconds()
	m.lastTime = now
	if dt <= 0 {
		return
	}

	positions := make([]kinematics.ModulePosition, control.NumModules)
	moved := make([]kinematics.ModulePosition, control.NumModules)
	for i, s := range m.states {
		positions[i] = kinematics.ModulePosition{Distance: m.distances[i], Angle: s.Angle}
		m.distances[i] += s.Speed * dt
		moved[i] = kinematics.ModulePosition{Distance: m.distances[i], Angle: s.Angle}
	}
	twist, err := m.kin.ToTwist(positions, moved)
	if err != nil {
		// lengths are fixed at construction
		panic(err)
	}
	m.pose = m.pose.Exp(twist)
}

// SetModuleStates commands the modules.
func (m *Modules) SetModuleStates(ctx context.Context, states [control.NumModules]kinematics.ModuleState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.integrate()
	m.states = states
	m.CommandCount++
	return nil
}

// Stop zeroes every module speed.
func (m *Modules) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.integrate()
	for i := range m.states {
		m.states[i].Speed = 0
	}
	m.StopCount++
	return nil
}

// ModulePositions returns the distance driven and angle of every module.
func (m *Modules) ModulePositions(ctx context.Context) ([]kinematics.ModulePosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.integrate()
	positions := make([]kinematics.ModulePosition, control.NumModules)
	for i, s := range m.states {
		positions[i] = kinematics.ModulePosition{Distance: m.distances[i], Angle: s.Angle}
	}
	return positions, nil
}

// GyroYaw returns the heading of the true pose.
func (m *Modules) GyroYaw(ctx context.Context) (spatialmath.Rotation2D, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.integrate()
	return m.pose.Rotation, nil
}

// ModuleStates returns the measured module states, which are always the commanded ones.
func (m *Modules) ModuleStates() []kinematics.ModuleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	states := make([]kinematics.ModuleState, control.NumModules)
	for i, s := range m.states {
		states[i] = kinematics.ModuleState{Speed: s.Speed, Angle: s.Angle}
	}
	return states
}

// Pose returns where the robot actually is.
func (m *Modules) Pose() spatialmath.Pose2D {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.integrate()
	return m.pose
}
