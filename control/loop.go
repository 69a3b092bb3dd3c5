package control

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"

	"go.viam.com/swerve/logging"
	"go.viam.com/swerve/utils"
)

// maxLoopFrequency is the fastest a Loop may tick, in Hz.
const maxLoopFrequency = 200

// LoopConfig configures a Loop.
type LoopConfig struct {
	FrequencyHz float64 `json:"frequency_hz"`
}

// Validate ensures all parts of the config are valid.
func (conf *LoopConfig) Validate(path string) ([]string, error) {
	if conf.FrequencyHz <= 0 || conf.FrequencyHz > maxLoopFrequency {
		return nil, goutils.NewConfigValidationError(path, errors.Errorf(
			"loop frequency must be above 0 and at most %dHz, got %f", maxLoopFrequency, conf.FrequencyHz))
	}
	return nil, nil
}

// Period returns the time between two ticks.
func (conf *LoopConfig) Period() time.Duration {
	return time.Duration(float64(time.Second) / conf.FrequencyHz)
}

// Step is one named stage of a Loop iteration.
type Step struct {
	Name string
	Run  func(ctx context.Context, dt time.Duration) error
}

// Loop runs its steps in order, once per tick, on a single goroutine. A failing step is logged
// and does not prevent the following steps from running.
type Loop struct {
	cfg    LoopConfig
	logger logging.Logger
	clk    clock.Clock
	dt     time.Duration
	steps  []Step

	mu      sync.Mutex
	workers *utils.StoppableWorkers
	ticker  *clock.Ticker

	iterations atomic.Int64
	errCount   atomic.Int64
}

// NewLoop constructs a loop running steps at the configured frequency.
func NewLoop(logger logging.Logger, cfg LoopConfig, clk clock.Clock, steps ...Step) (*Loop, error) {
	if _, err := cfg.Validate("loop"); err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, errors.New("cannot create a loop without any steps")
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Loop{
		cfg:    cfg,
		logger: logger,
		clk:    clk,
		dt:     cfg.Period(),
		steps:  steps,
	}, nil
}

// Start starts ticking. The ticker exists by the time Start returns.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.workers != nil {
		return errors.New("loop already running")
	}

	l.logger.Infof("running loop at %1.1fHz (%v)", l.cfg.FrequencyHz, l.dt)
	l.ticker = l.clk.Ticker(l.dt)
	ticker := l.ticker
	l.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			l.runOnce(ctx)
		}
	})
	return nil
}

func (l *Loop) runOnce(ctx context.Context) {
	for _, step := range l.steps {
		if ctx.Err() != nil {
			return
		}
		if err := step.Run(ctx, l.dt); err != nil {
			l.errCount.Inc()
			l.logger.Warnw("loop step failed", "step", step.Name, "error", err)
		}
	}
	l.iterations.Inc()
}

// Stop stops ticking and waits for the running iteration to finish.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.workers == nil {
		return
	}
	l.logger.Debug("closing loop")
	l.ticker.Stop()
	l.workers.Stop()
	l.workers = nil
}

// Iterations returns how many times the steps have run.
func (l *Loop) Iterations() int64 {
	return l.iterations.Load()
}

// Errors returns how many step failures happened.
func (l *Loop) Errors() int64 {
	return l.errCount.Load()
}

// Period returns the time between ticks.
func (l *Loop) Period() time.Duration {
	return l.dt
}
