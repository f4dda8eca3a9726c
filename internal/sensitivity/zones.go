// Package sensitivity holds the zone-based mapping from a camera brightness
// estimate to a display brightness, and the proportional learner that
// adjusts it after manual overrides.
package sensitivity

import (
	"fmt"
	"math"
)

// Zone is one of the three fixed partitions of the 0-255 estimate range.
type Zone int

const (
	Dark Zone = iota
	Mid
	Light
)

// Inclusive upper bounds of the dark and mid zones; light covers the rest.
const (
	DarkUpperBound = 84
	MidUpperBound  = 169
)

// DefaultMidSensitivity is the fallback coefficient for any zone whose
// coefficient goes negative. It is the shipped default, not the current
// runtime mid value.
const DefaultMidSensitivity = 0.4

// Zones lists every zone in classification order.
var Zones = []Zone{Dark, Mid, Light}

func (z Zone) String() string {
	switch z {
	case Dark:
		return "dark"
	case Mid:
		return "mid"
	case Light:
		return "light"
	default:
		return "unknown"
	}
}

// ParseZone converts a zone name back into a Zone.
func ParseZone(s string) (Zone, error) {
	switch s {
	case "dark":
		return Dark, nil
	case "mid":
		return Mid, nil
	case "light":
		return Light, nil
	default:
		return 0, fmt.Errorf("invalid zone: %s", s)
	}
}

// Classify saturates raw into 0..255, truncates it, and returns its zone.
func Classify(raw float64) Zone {
	switch level := saturateByte(raw); {
	case level <= DarkUpperBound:
		return Dark
	case level <= MidUpperBound:
		return Mid
	default:
		return Light
	}
}

func saturateByte(v float64) uint8 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= math.MaxUint8:
		return math.MaxUint8
	default:
		return uint8(v)
	}
}

// Profile is the set of per-zone coefficients. It is owned by the control
// loop and mutated in place by the learner.
type Profile struct {
	Dark  float64
	Mid   float64
	Light float64
}

// DefaultProfile returns the shipped coefficients.
func DefaultProfile() Profile {
	return Profile{
		Dark:  DefaultMidSensitivity,
		Mid:   DefaultMidSensitivity,
		Light: DefaultMidSensitivity,
	}
}

// Get returns the coefficient of zone z.
func (p *Profile) Get(z Zone) float64 {
	switch z {
	case Dark:
		return p.Dark
	case Mid:
		return p.Mid
	default:
		return p.Light
	}
}

// Set replaces the coefficient of zone z.
func (p *Profile) Set(z Zone, v float64) {
	switch z {
	case Dark:
		p.Dark = v
	case Mid:
		p.Mid = v
	default:
		p.Light = v
	}
}

// Sanitize resets a coefficient with the sign bit set to
// DefaultMidSensitivity. The second result reports whether it did.
func Sanitize(v float64) (float64, bool) {
	if math.Signbit(v) {
		return DefaultMidSensitivity, true
	}
	return v, false
}
