package control

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// ModuleLocation is a module's offset from the robot's center of rotation in meters, +x forward
// and +y left.
type ModuleLocation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Point returns the location as a vector.
func (l ModuleLocation) Point() r2.Point {
	return r2.Point{X: l.X, Y: l.Y}
}

// GeneratorConfig describes the physical drivetrain a SetpointGenerator limits motion for.
type GeneratorConfig struct {
	ModuleLocations       []ModuleLocation `json:"module_locations"`
	DriveMotor            MotorConfig      `json:"drive_motor"`
	SteerMotor            MotorConfig      `json:"steer_motor"`
	DriveCurrentLimitAmps float64          `json:"drive_current_limit_amps"`
	MassKg                float64          `json:"mass_kg"`
	MOIKgMetersSquared    float64          `json:"moi_kg_m2"`
	WheelDiameterMeters   float64          `json:"wheel_diameter_m"`
	WheelCoF              float64          `json:"wheel_cof"`
	TorqueLossNm          float64          `json:"torque_loss_nm,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *GeneratorConfig) Validate(path string) ([]string, error) {
	if len(conf.ModuleLocations) == 0 {
		return nil, goutils.NewConfigValidationFieldRequiredError(path, "module_locations")
	}
	if len(conf.ModuleLocations) != NumModules {
		return nil, goutils.NewConfigValidationError(path,
			errors.Errorf("expected %d module locations, got %d", NumModules, len(conf.ModuleLocations)))
	}
	if conf.DriveMotor.Model == "" {
		return nil, goutils.NewConfigValidationFieldRequiredError(path, "drive_motor.model")
	}
	if err := conf.DriveMotor.Validate(); err != nil {
		return nil, goutils.NewConfigValidationError(path, errors.Wrap(err, "drive_motor"))
	}
	if conf.SteerMotor.Model == "" {
		return nil, goutils.NewConfigValidationFieldRequiredError(path, "steer_motor.model")
	}
	if err := conf.SteerMotor.Validate(); err != nil {
		return nil, goutils.NewConfigValidationError(path, errors.Wrap(err, "steer_motor"))
	}

	for _, field := range []struct {
		name  string
		value float64
	}{
		{"drive_current_limit_amps", conf.DriveCurrentLimitAmps},
		{"mass_kg", conf.MassKg},
		{"moi_kg_m2", conf.MOIKgMetersSquared},
		{"wheel_diameter_m", conf.WheelDiameterMeters},
		{"wheel_cof", conf.WheelCoF},
	} {
		if field.value <= 0 {
			return nil, goutils.NewConfigValidationError(path, errors.Errorf("%s must be positive, got %f", field.name, field.value))
		}
	}
	if conf.TorqueLossNm < 0 {
		return nil, goutils.NewConfigValidationError(path, errors.New("torque_loss_nm must not be negative"))
	}
	return nil, nil
}

// DefaultGeneratorConfig returns the configuration of a square 0.55m competition chassis with
// Kraken X60 FOC drive motors and Falcon 500 steer motors.
func DefaultGeneratorConfig() GeneratorConfig {
	const halfTrack = 0.551942 / 2
	return GeneratorConfig{
		ModuleLocations: []ModuleLocation{
			{halfTrack, -halfTrack},
			{-halfTrack, -halfTrack},
			{-halfTrack, halfTrack},
			{halfTrack, halfTrack},
		},
		DriveMotor:            MotorConfig{Model: "kraken_x60_foc", Count: 1, Reduction: (50.0 / 16.0) * (16.0 / 28.0) * (45.0 / 15.0)},
		SteerMotor:            MotorConfig{Model: "falcon500", Count: 1, Reduction: 150.0 / 7.0},
		DriveCurrentLimitAmps: 65,
		MassKg:                65,
		MOIKgMetersSquared:    7,
		WheelDiameterMeters:   0.1016,
		WheelCoF:              1.5,
	}
}
