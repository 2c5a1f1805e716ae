package linematch

import "gonum.org/v1/gonum/floats"

// NCor returns dot(f, g) / sqrt(dot(f, f) * dot(g, g)). It is 0 when either
// input is all zero, empty, or the lengths differ.
func NCor(f, g []float64) float64 {
	if len(f) == 0 || len(f) != len(g) {
		return 0
	}

	ff := floats.Dot(f, f)
	gg := floats.Dot(g, g)

	if ff == 0 || gg == 0 {
		return 0
	}

	return floats.Dot(f, g) / mathSqrt(ff*gg)
}
