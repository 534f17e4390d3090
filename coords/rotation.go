package coords

import "math"

func Radians(deg float64) float64 { return deg * math.Pi / 180 }
func Degrees(rad float64) float64 { return rad * 180 / math.Pi }

// NormalizeDegrees folds d into [0,360). Stored rotations stay unnormalized;
// this is for rendering only.
func NormalizeDegrees(d float64) float64 {
	n := math.Mod(d, 360)
	if n < 0 {
		n += 360
	}
	if n == 360 {
		n = 0
	}
	return n
}

// ToPDFRotation converts a clockwise canvas rotation into the counterclockwise
// PDF convention, folded into (-180,180].
func ToPDFRotation(canvasDeg float64) float64 {
	d := NormalizeDegrees(-canvasDeg)
	if d > 180 {
		d -= 360
	}
	return d
}

// Unwrap returns the angle equivalent to next (mod 360) that is closest to
// prev, so a continuous gesture keeps its turn direction across ±180.
func Unwrap(prev, next float64) float64 {
	diff := math.Mod(next-prev, 360)
	if diff > 180 {
		diff -= 360
	} else if diff < -180 {
		diff += 360
	}
	return prev + diff
}

// Snap rounds d to the nearest multiple of step; step <= 0 returns d.
func Snap(d, step float64) float64 {
	if step <= 0 {
		return d
	}
	return math.Round(d/step) * step
}
