package control

import (
	"testing"

	"go.viam.com/test"
)

func TestGeneratorConfigValidate(t *testing.T) {
	conf := DefaultGeneratorConfig()
	deps, err := conf.Validate("path")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldBeNil)

	for _, tc := range []struct {
		name     string
		mutate   func(*GeneratorConfig)
		expected string
	}{
		{"no modules", func(c *GeneratorConfig) { c.ModuleLocations = nil }, "module_locations"},
		{"five modules", func(c *GeneratorConfig) { c.ModuleLocations = append(c.ModuleLocations, ModuleLocation{}) }, "expected 4"},
		{"no drive motor", func(c *GeneratorConfig) { c.DriveMotor.Model = "" }, "drive_motor.model"},
		{"bad steer motor", func(c *GeneratorConfig) { c.SteerMotor.Model = "cim" }, "steer_motor"},
		{"zero current limit", func(c *GeneratorConfig) { c.DriveCurrentLimitAmps = 0 }, "drive_current_limit_amps"},
		{"negative moi", func(c *GeneratorConfig) { c.MOIKgMetersSquared = -1 }, "moi_kg_m2"},
		{"no wheel", func(c *GeneratorConfig) { c.WheelDiameterMeters = 0 }, "wheel_diameter_m"},
		{"no grip", func(c *GeneratorConfig) { c.WheelCoF = 0 }, "wheel_cof"},
		{"negative loss", func(c *GeneratorConfig) { c.TorqueLossNm = -0.1 }, "torque_loss_nm"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			conf := DefaultGeneratorConfig()
			tc.mutate(&conf)
			_, err := conf.Validate("path")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.expected)
			test.That(t, err.Error(), test.ShouldContainSubstring, "path")
		})
	}
}

func TestLoopConfigValidate(t *testing.T) {
	conf := LoopConfig{FrequencyHz: 200}
	_, err := conf.Validate("loop")
	test.That(t, err, test.ShouldBeNil)

	conf.FrequencyHz = 200.5
	_, err = conf.Validate("drivetrain.loop")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `error validating "drivetrain.loop"`)
	test.That(t, err.Error(), test.ShouldContainSubstring, "loop frequency must be above 0")
}
