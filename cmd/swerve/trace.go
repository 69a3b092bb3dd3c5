package main

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/swerve/control"
	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/logging"
)

const (
	traceFlagVx    = "vx"
	traceFlagVy    = "vy"
	traceFlagOmega = "omega"
	traceFlagSteps = "steps"
)

// TraceAction prints every setpoint generated on the way from rest to the requested velocity.
func TraceAction(c *cli.Context) error {
	logger := logging.Global().Sublogger("trace")
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	logger = newLogger(c, cfg, logger)

	gen, err := control.NewSetpointGenerator(cfg.Generator, logger)
	if err != nil {
		return err
	}
	desired := kinematics.ChassisVelocity{
		Vx:    c.Float64(traceFlagVx),
		Vy:    c.Float64(traceFlagVy),
		Omega: c.Float64(traceFlagOmega),
	}
	steps := c.Int(traceFlagSteps)
	if steps <= 0 {
		return errors.Errorf("--%s must be positive", traceFlagSteps)
	}
	return printTrace(c.App.Writer, gen, desired, cfg.Loop, steps, cfg.Drivetrain.SimpleMode)
}

type traceSummary struct {
	setpoints      []control.Setpoint
	convergedAfter int
	meanAccel      float64
	maxAccel       float64
	p95Accel       float64
}

func trace(
	gen *control.SetpointGenerator,
	desired kinematics.ChassisVelocity,
	loop control.LoopConfig,
	steps int,
	simple bool,
) (traceSummary, error) {
	dt := loop.Period()
	sp := control.ZeroedSetpoint()
	summary := traceSummary{convergedAfter: -1}
	target := desired
	if !simple {
		// The full generator holds the discretized velocity once it gets there.
		target = desired.Discretize(dt)
	}
	accels := make([]float64, 0, steps)
	for i := 0; i < steps; i++ {
		prev := sp
		if simple {
			sp = gen.GenerateSimpleSetpoint(prev, desired, dt)
		} else {
			sp = gen.GenerateSetpoint(prev, desired, dt)
		}
		summary.setpoints = append(summary.setpoints, sp)
		dv := sp.ChassisVelocity.Minus(prev.ChassisVelocity)
		accels = append(accels, math.Hypot(dv.Vx, dv.Vy)/dt.Seconds())
		if summary.convergedAfter < 0 && sp.ChassisVelocity.AlmostEqual(target) {
			summary.convergedAfter = i + 1
		}
	}

	var err error
	if summary.meanAccel, err = stats.Mean(accels); err != nil {
		return summary, err
	}
	if summary.maxAccel, err = stats.Max(accels); err != nil {
		return summary, err
	}
	if summary.p95Accel, err = stats.Percentile(accels, 95); err != nil {
		return summary, err
	}
	return summary, nil
}

func printTrace(
	w io.Writer,
	gen *control.SetpointGenerator,
	desired kinematics.ChassisVelocity,
	loop control.LoopConfig,
	steps int,
	simple bool,
) error {
	summary, err := trace(gen, desired, loop, steps, simple)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Vx", "Vy", "Omega", "Module", "Speed", "Angle (deg)", "Steer FF", "Accel FF"})
	for i, sp := range summary.setpoints {
		for m, state := range sp.ModuleStates {
			row := table.Row{"", "", "", "", m, fmt.Sprintf("%.3f", state.Speed), fmt.Sprintf("%.1f", state.Angle.Degrees()),
				fmt.Sprintf("%.3f", state.SteerVelocityFF), fmt.Sprintf("%.3f", state.DriveAccelerationFF)}
			if m == 0 {
				row[0] = i + 1
				row[1] = fmt.Sprintf("%.3f", sp.ChassisVelocity.Vx)
				row[2] = fmt.Sprintf("%.3f", sp.ChassisVelocity.Vy)
				row[3] = fmt.Sprintf("%.3f", sp.ChassisVelocity.Omega)
			}
			t.AppendRow(row)
		}
		t.AppendSeparator()
	}
	t.Render()

	if summary.convergedAfter < 0 {
		fmt.Fprintf(w, "did not reach %v in %d steps\n", desired, steps)
	} else {
		fmt.Fprintf(w, "reached %v after %d steps (%v)\n", desired, summary.convergedAfter,
			loop.Period()*time.Duration(summary.convergedAfter))
	}
	fmt.Fprintf(w, "translational acceleration m/s^2: mean %.2f, p95 %.2f, max %.2f\n",
		summary.meanAccel, summary.p95Accel, summary.maxAccel)
	return nil
}
