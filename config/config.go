// Package config defines the structures to configure a swerve drivetrain and its localizer.
package config

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/swerve/control"
	"go.viam.com/swerve/drivetrain"
	"go.viam.com/swerve/localization"
	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/odometry"
)

// defaultLoopFrequencyHz is the control loop rate when none is configured.
const defaultLoopFrequencyHz = 50

// A Config describes the configuration of a swerve drivetrain.
type Config struct {
	ConfigFilePath string `json:"-"`

	LogLevel   string                  `json:"log_level,omitempty"`
	Generator  control.GeneratorConfig `json:"setpoint_generator"`
	Loop       control.LoopConfig      `json:"loop"`
	Localizer  localization.Config     `json:"localizer"`
	Odometry   odometry.Config         `json:"odometry"`
	Drivetrain drivetrain.Config       `json:"drivetrain"`
}

// Default returns the configuration used when a file omits everything.
func Default() *Config {
	return &Config{
		Generator: control.DefaultGeneratorConfig(),
		Loop:      control.LoopConfig{FrequencyHz: defaultLoopFrequencyHz},
	}
}

// Ensure fills unset optional values and validates every section.
func (c *Config) Ensure(logger logging.Logger) error {
	if c.Loop.FrequencyHz == 0 {
		logger.Debugf("no loop frequency configured, using %dHz", defaultLoopFrequencyHz)
		c.Loop.FrequencyHz = defaultLoopFrequencyHz
	}
	return c.Validate()
}

// Validate returns every problem with the config.
func (c *Config) Validate() error {
	var err error
	if c.LogLevel != "" {
		if _, levelErr := logging.LevelFromString(c.LogLevel); levelErr != nil {
			err = multierr.Append(err, errors.Wrap(levelErr, "log_level"))
		}
	}
	for _, section := range []struct {
		path string
		conf interface {
			Validate(path string) ([]string, error)
		}
	}{
		{"setpoint_generator", &c.Generator},
		{"loop", &c.Loop},
		{"localizer", &c.Localizer},
		{"odometry", &c.Odometry},
		{"drivetrain", &c.Drivetrain},
	} {
		if _, sectionErr := section.conf.Validate(section.path); sectionErr != nil {
			err = multierr.Append(err, sectionErr)
		}
	}
	return err
}

// Level returns the configured log level, INFO when unset.
func (c *Config) Level() logging.Level {
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}
