package wavesol

import (
	"fmt"
	"strings"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
)

// BasisKind identifies the basis functions of a solution.
type BasisKind int

const (
	Power BasisKind = iota
	Legendre
	Chebyshev
	Spline
)

// ErrUnknownBasis is returned for basis names or values outside [BasisKind].
var ErrUnknownBasis = fmt.Errorf("wavesol: unknown basis kind: %w", calerr.ErrConfiguration)

// splineDegree is the polynomial degree of the spline pieces.
const splineDegree = 3

type basisFunc struct {
	name      string
	normalize bool
	minOrder  int
	fill      func(dst []float64, t float64, knots []float64)
}

var bases = map[BasisKind]basisFunc{
	Power:     {name: "poly", fill: fillPower},
	Legendre:  {name: "legendre", normalize: true, fill: fillLegendre},
	Chebyshev: {name: "chebyshev", normalize: true, fill: fillChebyshev},
	Spline:    {name: "spline", normalize: true, minOrder: splineDegree, fill: fillBSpline},
}

func (k BasisKind) String() string {
	if b, ok := bases[k]; ok {
		return b.name
	}

	return fmt.Sprintf("BasisKind(%d)", int(k))
}

// ParseBasisKind converts "poly" (or "power", "polynomial"), "legendre",
// "chebyshev" or "spline" to a BasisKind.
func ParseBasisKind(s string) (BasisKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "poly", "power", "polynomial":
		return Power, nil
	case "legendre":
		return Legendre, nil
	case "chebyshev":
		return Chebyshev, nil
	case "spline":
		return Spline, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownBasis, s)
	}
}

func fillPower(dst []float64, t float64, _ []float64) {
	v := 1.0
	for k := range dst {
		dst[k] = v
		v *= t
	}
}

func fillLegendre(dst []float64, t float64, _ []float64) {
	if len(dst) == 0 {
		return
	}

	dst[0] = 1
	if len(dst) == 1 {
		return
	}

	dst[1] = t
	for n := 1; n+1 < len(dst); n++ {
		fn := float64(n)
		dst[n+1] = ((2*fn+1)*t*dst[n] - fn*dst[n-1]) / (fn + 1)
	}
}

func fillChebyshev(dst []float64, t float64, _ []float64) {
	if len(dst) == 0 {
		return
	}

	dst[0] = 1
	if len(dst) == 1 {
		return
	}

	dst[1] = t
	for n := 1; n+1 < len(dst); n++ {
		dst[n+1] = 2*t*dst[n] - dst[n-1]
	}
}

// splineKnots returns the clamped knot vector on [-1, 1] for ncoef cubic
// B-spline basis functions.
func splineKnots(ncoef int) []float64 {
	interior := ncoef - splineDegree - 1
	knots := make([]float64, 0, ncoef+splineDegree+1)

	for range splineDegree + 1 {
		knots = append(knots, -1)
	}

	for i := 1; i <= interior; i++ {
		knots = append(knots, -1+2*float64(i)/float64(interior+1))
	}

	for range splineDegree + 1 {
		knots = append(knots, 1)
	}

	return knots
}

// fillBSpline evaluates all cubic B-spline basis functions at t with the
// Cox-de Boor recursion. t outside [-1, 1] is clamped to the end knots.
func fillBSpline(dst []float64, t float64, knots []float64) {
	for i := range dst {
		dst[i] = 0
	}

	n := len(dst)
	lo, hi := knots[0], knots[len(knots)-1]

	if t <= lo {
		dst[0] = 1
		return
	}

	if t >= hi {
		dst[n-1] = 1
		return
	}

	// span index s with knots[s] <= t < knots[s+1], splineDegree <= s < n
	s := splineDegree
	for s < n-1 && t >= knots[s+1] {
		s++
	}

	// Degree-0 start, raised to splineDegree in place.
	var local [splineDegree + 1]float64

	local[0] = 1

	for d := 1; d <= splineDegree; d++ {
		saved := 0.0

		for r := 0; r < d; r++ {
			left := knots[s+1+r-d]
			right := knots[s+1+r]
			temp := local[r] / (right - left)
			local[r] = saved + (right-t)*temp
			saved = (t - left) * temp
		}

		local[d] = saved
	}

	for r := 0; r <= splineDegree; r++ {
		dst[s-splineDegree+r] = local[r]
	}
}
