// Package heading smooths compass samples and animates a displayed heading
// towards the smoothed value.
package heading

import "math"

// Normalize folds an angle in degrees into [0,360).
func Normalize(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		// -tiny + 360 rounds up to 360
		deg = 0
	}
	return deg
}

// Diff is the signed shortest-path difference target - current, in
// (-180,180].
func Diff(target, current float64) float64 {
	diff := math.Mod(target-current, 360)
	if diff > 180 {
		diff -= 360
	} else if diff <= -180 {
		diff += 360
	}
	return diff
}
