package config

import (
	"time"

	"github.com/mikeyg42/rlight/internal/sensitivity"
)

// Camera and display backends.
const (
	CameraBackendGoCV         = "gocv"
	CameraBackendMediaDevices = "mediadevices"

	DisplayBackendCommand = "command"
	DisplayBackendSysfs   = "sysfs"
)

// BrightnessPlaceholder is replaced by the target percentage in
// SetBrightnessCmd.
const BrightnessPlaceholder = "{}"

// Config holds all application configuration
type Config struct {
	Camera        int    `json:"camera"`
	CameraBackend string `json:"camera_backend"`
	Delay         int    `json:"delay"` // seconds between cycles

	LightSensitivity    float64 `json:"light_sensitivity"`
	MidSensitivity      float64 `json:"mid_sensitivity"`
	DarkSensitivity     float64 `json:"dark_sensitivity"`
	AdaptiveSensitivity bool    `json:"adaptive_sensitivity"`
	LearningCoefficient float64 `json:"learning_coefficient"`
	Step                int     `json:"step"` // sample stride in bytes

	DisplayBackend   string `json:"display_backend"`
	SetBrightnessCmd string `json:"set_brightness_cmd"`
	GetBrightnessCmd string `json:"get_brightness_cmd"`
	BacklightPath    string `json:"backlight_path"`
	CommandRetries   int    `json:"command_retries"`

	// JournalDSN enables the learning journal. A postgres:// URL selects
	// PostgreSQL, anything else is a SQLite path. Empty disables it.
	JournalDSN string `json:"journal_dsn"`
}

// NewDefaultConfig returns a Config with default values
func NewDefaultConfig() *Config {
	return &Config{
		Camera:        0,
		CameraBackend: CameraBackendGoCV,
		Delay:         60,

		LightSensitivity:    sensitivity.DefaultMidSensitivity,
		MidSensitivity:      sensitivity.DefaultMidSensitivity,
		DarkSensitivity:     sensitivity.DefaultMidSensitivity,
		AdaptiveSensitivity: true,
		LearningCoefficient: 0.003,
		Step:                64,

		DisplayBackend:   DisplayBackendCommand,
		SetBrightnessCmd: "brightnessctl --quiet set {}%",
		GetBrightnessCmd: "brightnessctl --machine-readable info | cut -d, -f4",
		BacklightPath:    "/sys/class/backlight/intel_backlight",
		CommandRetries:   2,
	}
}

// DelayDuration is Delay as a time.Duration.
func (c *Config) DelayDuration() time.Duration {
	return time.Duration(c.Delay) * time.Second
}

// Profile returns the sensitivity coefficients as a runtime profile.
func (c *Config) Profile() sensitivity.Profile {
	return sensitivity.Profile{
		Dark:  c.DarkSensitivity,
		Mid:   c.MidSensitivity,
		Light: c.LightSensitivity,
	}
}

// ApplyProfile copies runtime coefficients back into the config.
func (c *Config) ApplyProfile(p sensitivity.Profile) {
	c.DarkSensitivity = p.Dark
	c.MidSensitivity = p.Mid
	c.LightSensitivity = p.Light
}
