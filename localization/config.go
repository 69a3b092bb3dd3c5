package localization

import (
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

const (
	defaultPruneAge         = 250 * time.Millisecond
	defaultVelocityWindow   = 50 * time.Millisecond
	defaultDriveBufferSize  = 32
	defaultVisionBufferSize = 8
)

// Config configures a Localizer. Zero values take defaults.
type Config struct {
	MaxSampleAgeSec   float64 `json:"max_sample_age_sec,omitempty"`
	PruneAgeSec       float64 `json:"prune_age_sec,omitempty"`
	VelocityWindowSec float64 `json:"velocity_window_sec,omitempty"`
	DriveBufferSize   int     `json:"drive_buffer_size,omitempty"`
	VisionBufferSize  int     `json:"vision_buffer_size,omitempty"`
	// UseGyro takes heading changes from the gyro yaw of drive samples instead of the wheels.
	UseGyro bool `json:"use_gyro,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) ([]string, error) {
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"max_sample_age_sec", conf.MaxSampleAgeSec},
		{"prune_age_sec", conf.PruneAgeSec},
		{"velocity_window_sec", conf.VelocityWindowSec},
		{"drive_buffer_size", float64(conf.DriveBufferSize)},
		{"vision_buffer_size", float64(conf.VisionBufferSize)},
	} {
		if field.value < 0 {
			return nil, goutils.NewConfigValidationError(path, errors.Errorf("%s cannot be negative", field.name))
		}
	}
	if conf.velocityWindow() > conf.maxSampleAge() {
		return nil, goutils.NewConfigValidationError(path,
			errors.New("velocity_window_sec cannot be longer than max_sample_age_sec"))
	}
	return nil, nil
}

func seconds(s float64, def time.Duration) time.Duration {
	if s <= 0 {
		return def
	}
	return time.Duration(s * float64(time.Second))
}

func (conf *Config) maxSampleAge() time.Duration {
	return seconds(conf.MaxSampleAgeSec, DefaultMaxSampleAge)
}

func (conf *Config) pruneAge() time.Duration {
	return seconds(conf.PruneAgeSec, defaultPruneAge)
}

func (conf *Config) velocityWindow() time.Duration {
	return seconds(conf.VelocityWindowSec, defaultVelocityWindow)
}

func (conf *Config) driveBufferSize() int {
	if conf.DriveBufferSize == 0 {
		return defaultDriveBufferSize
	}
	return conf.DriveBufferSize
}

func (conf *Config) visionBufferSize() int {
	if conf.VisionBufferSize == 0 {
		return defaultVisionBufferSize
	}
	return conf.VisionBufferSize
}
