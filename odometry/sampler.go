// Package odometry polls swerve module encoders and the gyro, publishing timestamped drive samples
// for a localizer.
package odometry

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/swerve/channel"
	"go.viam.com/swerve/kinematics"
	"go.viam.com/swerve/localization"
	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/spatialmath"
	"go.viam.com/swerve/utils"
)

const (
	defaultFrequencyHz = 250
	maxFrequencyHz     = 1000
)

// ModuleSource provides odometry readings.
type ModuleSource interface {
	// ModulePositions returns the distance driven and heading of every module.
	ModulePositions(ctx context.Context) ([]kinematics.ModulePosition, error)
	// GyroYaw returns the robot's heading.
	GyroYaw(ctx context.Context) (spatialmath.Rotation2D, error)
}

// Config configures a Sampler.
type Config struct {
	FrequencyHz float64 `json:"frequency_hz,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) ([]string, error) {
	if conf.FrequencyHz < 0 || conf.FrequencyHz > maxFrequencyHz {
		return nil, goutils.NewConfigValidationError(path, errors.Errorf(
			"odometry frequency must be between 0 and %dHz, got %f", maxFrequencyHz, conf.FrequencyHz))
	}
	return nil, nil
}

func (conf *Config) period() time.Duration {
	freq := conf.FrequencyHz
	if freq == 0 {
		freq = defaultFrequencyHz
	}
	return time.Duration(float64(time.Second) / freq)
}

// A Sampler reads its source at a fixed rate and sends each reading as a drive sample.
type Sampler struct {
	logger logging.Logger
	clk    clock.Clock
	period time.Duration
	source ModuleSource
	sender channel.Sender[localization.DriveSample]

	mu      sync.Mutex
	workers *utils.StoppableWorkers
	ticker  *clock.Ticker

	samples  atomic.Uint64
	failures atomic.Uint64
}

// NewSampler returns a stopped sampler reading source and sending to sender.
func NewSampler(
	logger logging.Logger,
	cfg Config,
	source ModuleSource,
	sender channel.Sender[localization.DriveSample],
	clk clock.Clock,
) (*Sampler, error) {
	if _, err := cfg.Validate("odometry"); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, errors.New("odometry sampler needs a module source")
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Sampler{
		logger: logger,
		clk:    clk,
		period: cfg.period(),
		source: source,
		sender: sender,
	}, nil
}

// Sample takes one reading and sends it. Nothing is sent if either read fails.
func (s *Sampler) Sample(ctx context.Context) error {
	timestamp := s.clk.Now()

	var err error
	positions, posErr := s.source.ModulePositions(ctx)
	err = multierr.Append(err, errors.Wrap(posErr, "reading module positions"))
	yaw, yawErr := s.source.GyroYaw(ctx)
	err = multierr.Append(err, errors.Wrap(yawErr, "reading gyro"))
	if err != nil {
		s.failures.Inc()
		return err
	}

	s.sender.Send(localization.DriveSample{
		ModulePositions: positions,
		GyroYaw:         yaw,
		Timestamp:       timestamp,
	})
	s.samples.Inc()
	return nil
}

// Start begins sampling on a background goroutine.
func (s *Sampler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workers != nil {
		return errors.New("odometry sampler already running")
	}

	s.logger.Debugf("sampling odometry every %v", s.period)
	s.ticker = s.clk.Ticker(s.period)
	ticker := s.ticker
	s.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if err := s.Sample(ctx); err != nil {
				s.logger.Warnw("odometry read failed", "error", err)
			}
		}
	})
	return nil
}

// Stop stops sampling and waits for the goroutine to exit.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workers == nil {
		return
	}
	s.ticker.Stop()
	s.workers.Stop()
	s.workers = nil
}

// Samples returns the number of readings sent.
func (s *Sampler) Samples() uint64 {
	return s.samples.Load()
}

// Failures returns the number of readings that failed.
func (s *Sampler) Failures() uint64 {
	return s.failures.Load()
}

// Period returns the time between readings.
func (s *Sampler) Period() time.Duration {
	return s.period
}
