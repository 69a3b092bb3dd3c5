package control

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// DCMotor is a linear model of a brushed or brushless DC motor (or a gearbox of identical motors).
// Speeds are in radians per second of the output shaft.
type DCMotor struct {
	NominalVoltage float64
	StallTorque    float64
	StallCurrent   float64
	FreeCurrent    float64
	FreeSpeed      float64

	// R is the winding resistance in ohms.
	R float64
	// Kv is the velocity constant in rad/s per volt.
	Kv float64
	// Kt is the torque constant in Nm per amp.
	Kt float64
}

// NewDCMotor creates a motor model from its datasheet values. numMotors identical motors geared
// together scale the torque and currents.
func NewDCMotor(
	nominalVoltage, stallTorque, stallCurrent, freeCurrent, freeSpeed float64,
	numMotors int,
) DCMotor {
	n := float64(numMotors)
	m := DCMotor{
		NominalVoltage: nominalVoltage,
		StallTorque:    stallTorque * n,
		StallCurrent:   stallCurrent * n,
		FreeCurrent:    freeCurrent * n,
		FreeSpeed:      freeSpeed,
	}
	m.R = nominalVoltage / m.StallCurrent
	m.Kv = freeSpeed / (nominalVoltage - m.R*m.FreeCurrent)
	m.Kt = m.StallTorque / m.StallCurrent
	return m
}

// WithReduction returns the motor as seen through a gearbox with the given reduction (> 1 is
// slower and stronger).
func (m DCMotor) WithReduction(reduction float64) DCMotor {
	return NewDCMotor(m.NominalVoltage, m.StallTorque*reduction, m.StallCurrent, m.FreeCurrent, m.FreeSpeed/reduction, 1)
}

// Current returns the current drawn at the given speed and applied voltage.
func (m DCMotor) Current(speed, voltage float64) float64 {
	return -speed/m.Kv/m.R + voltage/m.R
}

// Torque returns the torque produced by the given current.
func (m DCMotor) Torque(current float64) float64 {
	return m.Kt * current
}

// Voltage returns the voltage needed to produce torque at speed.
func (m DCMotor) Voltage(torque, speed float64) float64 {
	return speed/m.Kv + torque/m.Kt*m.R
}

// Speed returns the speed reached when producing torque at the given voltage.
func (m DCMotor) Speed(torque, voltage float64) float64 {
	return voltage*m.Kv - torque/m.Kt*m.R*m.Kv
}

func rpmToRadPerSec(rpm float64) float64 {
	return rpm * 2 * math.Pi / 60
}

// KrakenX60 returns a model of numMotors Kraken X60s.
func KrakenX60(numMotors int) DCMotor {
	return NewDCMotor(12, 7.09, 366, 2, rpmToRadPerSec(6000), numMotors)
}

// KrakenX60FOC returns a model of numMotors Kraken X60s commutated with FOC.
func KrakenX60FOC(numMotors int) DCMotor {
	return NewDCMotor(12, 9.37, 483, 2, rpmToRadPerSec(5800), numMotors)
}

// Falcon500 returns a model of numMotors Falcon 500s.
func Falcon500(numMotors int) DCMotor {
	return NewDCMotor(12, 4.69, 257, 1.5, rpmToRadPerSec(6380), numMotors)
}

// Falcon500FOC returns a model of numMotors Falcon 500s commutated with FOC.
func Falcon500FOC(numMotors int) DCMotor {
	return NewDCMotor(12, 5.84, 304, 1.5, rpmToRadPerSec(6080), numMotors)
}

// NEO returns a model of numMotors NEOs.
func NEO(numMotors int) DCMotor {
	return NewDCMotor(12, 2.6, 105, 1.8, rpmToRadPerSec(5676), numMotors)
}

// NEOVortex returns a model of numMotors NEO Vortexes.
func NEOVortex(numMotors int) DCMotor {
	return NewDCMotor(12, 3.6, 211, 3.6, rpmToRadPerSec(6784), numMotors)
}

var motorModels = map[string]func(int) DCMotor{
	"kraken_x60":     KrakenX60,
	"kraken_x60_foc": KrakenX60FOC,
	"falcon500":      Falcon500,
	"falcon500_foc":  Falcon500FOC,
	"neo":            NEO,
	"neo_vortex":     NEOVortex,
}

// MotorConfig names a motor model, how many of them drive one mechanism and the gear reduction
// between them and the output.
type MotorConfig struct {
	Model     string  `json:"model"`
	Count     int     `json:"count,omitempty"`
	Reduction float64 `json:"reduction,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *MotorConfig) Validate() error {
	if _, ok := motorModels[strings.ToLower(conf.Model)]; !ok {
		return errors.Errorf("unknown motor model %q", conf.Model)
	}
	if conf.Count < 0 {
		return errors.Errorf("motor count must not be negative, got %d", conf.Count)
	}
	if conf.Reduction < 0 {
		return errors.Errorf("motor reduction must not be negative, got %f", conf.Reduction)
	}
	return nil
}

// Motor builds the geared motor model. A zero count means one motor and a zero reduction means
// direct drive.
func (conf *MotorConfig) Motor() (DCMotor, error) {
	if err := conf.Validate(); err != nil {
		return DCMotor{}, err
	}
	count := conf.Count
	if count == 0 {
		count = 1
	}
	reduction := conf.Reduction
	if reduction == 0 {
		reduction = 1
	}
	return motorModels[strings.ToLower(conf.Model)](count).WithReduction(reduction), nil
}
