package control

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// PIDConfig configures a PID controller. Zero limits mean unbounded.
type PIDConfig struct {
	Kp float64 `json:"kp,omitempty"`
	Ki float64 `json:"ki,omitempty"`
	Kd float64 `json:"kd,omitempty"`

	IntegralLimit float64 `json:"integral_limit,omitempty"`
	OutputLimit   float64 `json:"output_limit,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *PIDConfig) Validate(path string) ([]string, error) {
	if conf.Kp == 0 && conf.Ki == 0 && conf.Kd == 0 {
		return nil, errors.Errorf("%s: pid should have at least one of kp, ki or kd", path)
	}
	if conf.IntegralLimit < 0 || conf.OutputLimit < 0 {
		return nil, errors.Errorf("%s: pid limits cannot be negative", path)
	}
	return nil, nil
}

// PID is a discrete PID controller acting on an error signal. It is not safe for concurrent use.
type PID struct {
	cfg PIDConfig

	int     float64
	prevErr float64
	primed  bool
}

// NewPID returns a controller with no accumulated state.
func NewPID(cfg PIDConfig) (*PID, error) {
	if _, err := cfg.Validate("pid"); err != nil {
		return nil, err
	}
	return &PID{cfg: cfg}, nil
}

// Next returns the controller output for err after a step of dt. The integral stops accumulating at
// its limit, and the derivative term is skipped on the first step after a reset.
func (p *PID) Next(err float64, dt time.Duration) float64 {
	dtS := dt.Seconds()
	if dtS <= 0 {
		return p.clamp(p.cfg.Kp*err+p.int, p.cfg.OutputLimit)
	}

	p.int = p.clamp(p.int+p.cfg.Ki*err*dtS, p.cfg.IntegralLimit)
	deriv := 0.0
	if p.primed {
		deriv = (err - p.prevErr) / dtS
	}
	p.prevErr = err
	p.primed = true
	return p.clamp(p.cfg.Kp*err+p.int+p.cfg.Kd*deriv, p.cfg.OutputLimit)
}

// Reset clears the integral and derivative history.
func (p *PID) Reset() {
	p.int = 0
	p.prevErr = 0
	p.primed = false
}

func (p *PID) clamp(v, limit float64) float64 {
	if limit == 0 {
		return v
	}
	return math.Max(-limit, math.Min(limit, v))
}
