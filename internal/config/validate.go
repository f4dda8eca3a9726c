package config

import (
	"fmt"
	"math"
	"strings"
)

type Validator struct{ errors []string }

func (v *Validator) AddError(format string, args ...interface{}) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}
func (v *Validator) HasErrors() bool  { return len(v.errors) > 0 }
func (v *Validator) Errors() []string { return v.errors }

// ValidateConfig delegates to per-section validators.
func ValidateConfig(cfg *Config) error {
	v := &Validator{}

	validateCameraConfig(v, cfg)
	validateLearningConfig(v, cfg)
	validateDisplayConfig(v, cfg)

	if v.HasErrors() {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(v.Errors(), "\n"))
	}
	return nil
}

func validateCameraConfig(v *Validator, cfg *Config) {
	if cfg.Camera < 0 {
		v.AddError("camera index cannot be negative: %d", cfg.Camera)
	}
	switch cfg.CameraBackend {
	case CameraBackendGoCV, CameraBackendMediaDevices:
	default:
		v.AddError("unknown camera_backend %q (want %s or %s)",
			cfg.CameraBackend, CameraBackendGoCV, CameraBackendMediaDevices)
	}
	if cfg.Delay < 1 {
		v.AddError("delay must be at least 1 second, got %d", cfg.Delay)
	}
	if cfg.Step < 1 {
		v.AddError("step must be at least 1, got %d", cfg.Step)
	}
}

// Sensitivities carry no range check; the learner resets negative values.
func validateLearningConfig(v *Validator, cfg *Config) {
	fields := []struct {
		name string
		val  float64
	}{
		{"light_sensitivity", cfg.LightSensitivity},
		{"mid_sensitivity", cfg.MidSensitivity},
		{"dark_sensitivity", cfg.DarkSensitivity},
		{"learning_coefficient", cfg.LearningCoefficient},
	}
	for _, f := range fields {
		if math.IsNaN(f.val) || math.IsInf(f.val, 0) {
			v.AddError("%s must be a finite number", f.name)
		}
	}
}

func validateDisplayConfig(v *Validator, cfg *Config) {
	switch cfg.DisplayBackend {
	case DisplayBackendCommand:
		if !strings.Contains(cfg.SetBrightnessCmd, BrightnessPlaceholder) {
			v.AddError("set_brightness_cmd must contain the %s placeholder", BrightnessPlaceholder)
		}
		if cfg.AdaptiveSensitivity && strings.TrimSpace(cfg.GetBrightnessCmd) == "" {
			v.AddError("get_brightness_cmd cannot be empty when adaptive_sensitivity is enabled")
		}
	case DisplayBackendSysfs:
		if strings.TrimSpace(cfg.BacklightPath) == "" {
			v.AddError("backlight_path cannot be empty for the sysfs backend")
		}
	default:
		v.AddError("unknown display_backend %q (want %s or %s)",
			cfg.DisplayBackend, DisplayBackendCommand, DisplayBackendSysfs)
	}
	if cfg.CommandRetries < 0 {
		v.AddError("command_retries cannot be negative: %d", cfg.CommandRetries)
	}
}
