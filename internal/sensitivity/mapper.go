package sensitivity

import "math"

// MaxBrightness is the ceiling of the display brightness percentage.
const MaxBrightness = 100

// Target maps a raw estimate and a zone coefficient to a display brightness
// in [0, MaxBrightness]. Products above the ceiling are clamped; products
// that are negative or NaN map to 0.
func Target(raw, coefficient float64) int {
	product := raw * coefficient
	if math.IsNaN(product) || product <= 0 {
		return 0
	}
	if product >= MaxBrightness {
		return MaxBrightness
	}
	return int(math.Floor(product))
}
