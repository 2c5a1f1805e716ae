package testutil

import (
	"math"
	"math/rand"
)

// Emission describes one synthetic emission line placed at a pixel position.
type Emission struct {
	Pixel     float64
	Amplitude float64
}

// Pixels returns 0, 1, ..., n-1 as float64.
func Pixels(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}

	return out
}

// GaussianLines renders Gaussian emission lines of standard deviation sigma
// (in pixels) on a zero background of length n.
func GaussianLines(n int, sigma float64, lines []Emission) []float64 {
	out := make([]float64, n)

	for i := range out {
		x := float64(i)
		for _, l := range lines {
			d := (x - l.Pixel) / sigma
			out[i] += l.Amplitude * math.Exp(-0.5*d*d)
		}
	}

	return out
}

// Polynomial evaluates sum(coef[k] * x^k) for every x.
func Polynomial(xs []float64, coef []float64) []float64 {
	out := make([]float64, len(xs))

	for i, x := range xs {
		v := 0.0
		for k := len(coef) - 1; k >= 0; k-- {
			v = v*x + coef[k]
		}

		out[i] = v
	}

	return out
}

// DeterministicNoise returns uniform noise in [-amplitude, amplitude) from a
// fixed seed.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))

	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}

	return out
}

// AddNoise returns f plus DeterministicNoise(seed, amplitude, len(f)).
func AddNoise(f []float64, seed int64, amplitude float64) []float64 {
	out := DeterministicNoise(seed, amplitude, len(f))
	for i, v := range f {
		out[i] += v
	}

	return out
}
