package rotor

import "math"

// Limits bound rotor travel in degrees. Targets outside the range are
// clamped to the nearest mechanical stop, mirroring what the hardware
// would do anyway.
type Limits struct {
	AzMin, AzMax float64
	ElMin, ElMax float64
}

// Unrestricted returns limits that never clamp.
func Unrestricted() Limits {
	return Limits{
		AzMin: math.Inf(-1), AzMax: math.Inf(1),
		ElMin: math.Inf(-1), ElMax: math.Inf(1),
	}
}

// Clamp returns p moved to the nearest in-range position and whether
// any axis was adjusted.
func (l Limits) Clamp(p Position) (Position, bool) {
	out := Position{
		Azimuth:   clamp(p.Azimuth, l.AzMin, l.AzMax),
		Elevation: clamp(p.Elevation, l.ElMin, l.ElMax),
	}
	return out, out != p
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
