package interp

import (
	"errors"
	"math"
)

// Errors returned by NewGrid.
var (
	ErrEmptyGrid = errors.New("interp: empty grid")
	ErrBadStep   = errors.New("interp: step must be positive and finite")
)

// Mode selects the interpolation kernel.
type Mode int

const (
	Hermite Mode = iota
	Linear
)

func (m Mode) String() string {
	switch m {
	case Hermite:
		return "hermite"
	case Linear:
		return "linear"
	default:
		return "unknown"
	}
}

// Grid holds samples at start + i*step.
type Grid struct {
	start, step float64
	values      []float64
	mode        Mode
}

// NewGrid wraps values sampled at start + i*step. values is not copied.
func NewGrid(start, step float64, values []float64, mode Mode) (*Grid, error) {
	if len(values) == 0 {
		return nil, ErrEmptyGrid
	}

	if !(step > 0) || math.IsInf(step, 0) {
		return nil, ErrBadStep
	}

	return &Grid{start: start, step: step, values: values, mode: mode}, nil
}

// Len returns the number of samples.
func (g *Grid) Len() int { return len(g.values) }

// Start returns the abscissa of the first sample.
func (g *Grid) Start() float64 { return g.start }

// Step returns the sample spacing.
func (g *Grid) Step() float64 { return g.step }

// End returns the abscissa of the last sample.
func (g *Grid) End() float64 { return g.start + float64(len(g.values)-1)*g.step }

// At returns the interpolated value at x, or 0 outside [Start, End].
func (g *Grid) At(x float64) float64 {
	pos := (x - g.start) / g.step

	n := len(g.values)
	if !(pos >= 0) || pos > float64(n-1) {
		return 0
	}

	i := int(pos)
	if i >= n-1 {
		return g.values[n-1]
	}

	frac := pos - float64(i)

	if g.mode == Linear {
		return Linear2(frac, g.values[i], g.values[i+1])
	}

	return Hermite4(frac, g.sample(i-1), g.values[i], g.values[i+1], g.sample(i+2))
}

// AtTo evaluates the grid at every element of xs into dst.
func (g *Grid) AtTo(dst, xs []float64) {
	for i, x := range xs {
		dst[i] = g.At(x)
	}
}

// sample returns the value at index i, linearly extrapolated one step past
// either end.
func (g *Grid) sample(i int) float64 {
	v := g.values
	n := len(v)

	switch {
	case i < 0:
		return 2*v[0] - v[1]
	case i >= n:
		return 2*v[n-1] - v[n-2]
	default:
		return v[i]
	}
}

// Linear2 interpolates between x0 and x1 at t in [0, 1].
func Linear2(t, x0, x1 float64) float64 {
	return x0 + t*(x1-x0)
}

// Hermite4 computes cubic 4-point interpolation.
// It interpolates from x0 to x1 using neighbor points xm1 and x2.
func Hermite4(t, xm1, x0, x1, x2 float64) float64 {
	c0 := x0
	c1 := 0.5 * (x1 - xm1)
	c2 := xm1 - 2.5*x0 + 2*x1 - 0.5*x2
	c3 := 0.5*(x2-xm1) + 1.5*(x0-x1)

	return ((c3*t+c2)*t+c1)*t + c0
}
