// Package main is a developer tool for exercising the swerve setpoint generator and localizer
// without hardware.
package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v2"

	"go.viam.com/swerve/config"
	"go.viam.com/swerve/logging"
)

const (
	flagConfig = "config"
	flagDebug  = "debug"
)

var app = &cli.App{
	Name:            "swerve",
	Usage:           "simulate a swerve drivetrain",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "trace",
			Usage:     "print the setpoints generated while accelerating from rest",
			ArgsUsage: " ",
			Flags: []cli.Flag{
				&cli.Float64Flag{Name: traceFlagVx, Usage: "desired forward velocity in m/s", Value: 3},
				&cli.Float64Flag{Name: traceFlagVy, Usage: "desired left velocity in m/s"},
				&cli.Float64Flag{Name: traceFlagOmega, Usage: "desired rotation rate in rad/s"},
				&cli.IntFlag{Name: traceFlagSteps, Usage: "number of control steps", Value: 50},
			},
			Action: TraceAction,
		},
		{
			Name:      "square",
			Usage:     "drive a square on simulated modules while localizing",
			ArgsUsage: " ",
			Flags: []cli.Flag{
				&cli.Float64Flag{Name: squareFlagSide, Usage: "side length in meters", Value: 2},
				&cli.Float64Flag{Name: squareFlagSpeed, Usage: "cruise speed in m/s", Value: 2},
				&cli.DurationFlag{Name: squareFlagTimeout, Usage: "give up after this long", Value: defaultSquareTimeout},
				&cli.BoolFlag{Name: squareFlagWatch, Usage: "apply edits to the config file while driving"},
			},
			Action: SquareAction,
		},
	},
}

// loadConfig reads the config named by the global flag, or returns the defaults.
func loadConfig(c *cli.Context, logger logging.Logger) (*config.Config, error) {
	path := c.String(flagConfig)
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Ensure(logger)
	}
	return config.Read(c.Context, path, logger)
}

// newLogger returns a logger obeying the debug flag, then the config's level.
func newLogger(c *cli.Context, cfg *config.Config, logger logging.Logger) logging.Logger {
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	} else if cfg != nil {
		logger.SetLevel(cfg.Level())
	}
	return logger
}

func main() {
	logger := logging.NewLogger("swerve")
	logging.ReplaceGlobal(logger)
	if err := app.RunContext(context.Background(), os.Args); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}
