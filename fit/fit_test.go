package fit

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
	"github.com/cwbudde/algo-wavecal/internal/testutil"
)

// poly is a power-basis LinearModel used by the tests.
type poly int

func (p poly) NumParams() int { return int(p) + 1 }

func (p poly) Eval(params []float64, x float64) float64 {
	v := 0.0
	for k := len(params) - 1; k >= 0; k-- {
		v = v*x + params[k]
	}
	return v
}

func (p poly) Basis(dst []float64, x float64) {
	v := 1.0
	for k := range dst {
		dst[k] = v
		v *= x
	}
}

func TestLeastSquaresExact(t *testing.T) {
	x := testutil.Pixels(50)
	y := testutil.Polynomial(x, []float64{4000, 2.5, 1e-4})

	res, err := Fit(poly(2), make([]float64, 3), x, y, nil, WithMethod(LeastSquares))
	if err != nil {
		t.Fatalf("Fit error: %v", err)
	}

	testutil.RequireRelativeClose(t, res.Params, []float64{4000, 2.5, 1e-4}, 1e-9)

	if res.RMS > 1e-9 {
		t.Fatalf("RMS = %v, want ~0", res.RMS)
	}
}

func TestInterfitRejectsOutlier(t *testing.T) {
	const noise = 0.1

	x := testutil.Pixels(60)
	y := testutil.Polynomial(x, []float64{2, 0.5})
	n := testutil.DeterministicNoise(3, noise, len(x))

	for i := range y {
		y[i] += n[i]
	}

	y[25] += 10 * noise

	res, err := Fit(poly(1), make([]float64, 2), x, y, nil, WithMethod(Interfit), WithIterations(10))
	if err != nil {
		t.Fatalf("Fit error: %v", err)
	}

	if res.Mask[25] {
		t.Fatal("outlier at index 25 not rejected")
	}

	if res.Rejected() != 1 {
		t.Fatalf("rejected %d points, want 1", res.Rejected())
	}

	if res.RMS > noise {
		t.Fatalf("inlier RMS = %v, want <= %v", res.RMS, noise)
	}

	if math.Abs(res.Params[1]-0.5) > 0.01 {
		t.Fatalf("slope = %v, want ~0.5", res.Params[1])
	}
}

func TestInterfitExactDataKeepsAllPoints(t *testing.T) {
	x := testutil.Pixels(20)
	y := testutil.Polynomial(x, []float64{5000, -1.25})

	res, err := Fit(poly(1), make([]float64, 2), x, y, nil)
	if err != nil {
		t.Fatalf("Fit error: %v", err)
	}

	if res.Rejected() != 0 {
		t.Fatalf("rejected %d points of noise-free data", res.Rejected())
	}
}

func TestSigmaClip(t *testing.T) {
	x := testutil.Pixels(40)
	y := testutil.Polynomial(x, []float64{1, 1})
	n := testutil.DeterministicNoise(11, 0.05, len(x))

	for i := range y {
		y[i] += n[i]
	}

	y[5] += 5
	y[30] -= 5

	res, err := Fit(poly(1), make([]float64, 2), x, y, nil, WithMethod(SigmaClip), WithClip(3, 3), WithIterations(10))
	if err != nil {
		t.Fatalf("Fit error: %v", err)
	}

	if res.Mask[5] || res.Mask[30] {
		t.Fatal("expected both outliers clipped")
	}

	if res.Iterations == 0 {
		t.Fatal("expected at least one clipping iteration")
	}

	if math.Abs(res.Params[0]-1) > 0.05 || math.Abs(res.Params[1]-1) > 0.005 {
		t.Fatalf("params = %v, want ~[1 1]", res.Params)
	}
}

func TestWeightedByUncertainty(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{0, 1, 2, 10}
	yerr := []float64{1, 1, 1, 1e6}

	res, err := Fit(poly(1), make([]float64, 2), x, y, yerr, WithMethod(LeastSquares))
	if err != nil {
		t.Fatalf("Fit error: %v", err)
	}

	if math.Abs(res.Params[1]-1) > 1e-6 {
		t.Fatalf("slope = %v, want ~1 with the last point down-weighted", res.Params[1])
	}
}

func TestNonlinearModel(t *testing.T) {
	gauss := Func{N: 3, F: func(p []float64, x float64) float64 {
		d := (x - p[1]) / p[2]
		return p[0] * math.Exp(-0.5*d*d)
	}}

	x := testutil.Pixels(41)
	y := make([]float64, len(x))

	for i, xi := range x {
		y[i] = gauss.Eval([]float64{3, 20.3, 2.5}, xi)
	}

	res, err := Fit(gauss, []float64{2, 19, 2}, x, y, nil, WithMethod(LeastSquares))
	if err != nil {
		t.Fatalf("Fit error: %v", err)
	}

	if math.Abs(res.Params[1]-20.3) > 1e-3 {
		t.Fatalf("centre = %v, want 20.3", res.Params[1])
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name     string
		x, y     []float64
		yerr     []float64
		init     []float64
		category error
		want     error
	}{
		{
			name:     "length mismatch",
			x:        []float64{0, 1, 2},
			y:        []float64{0, 1},
			init:     make([]float64, 2),
			category: calerr.ErrConfiguration,
			want:     ErrLengthMismatch,
		},
		{
			name:     "bad uncertainty",
			x:        []float64{0, 1, 2},
			y:        []float64{0, 1, 2},
			yerr:     []float64{1, 0, 1},
			init:     make([]float64, 2),
			category: calerr.ErrConfiguration,
			want:     ErrBadUncertainty,
		},
		{
			name:     "too few points",
			x:        []float64{0},
			y:        []float64{1},
			init:     make([]float64, 2),
			category: calerr.ErrFit,
			want:     ErrTooFewPoints,
		},
		{
			name:     "singular",
			x:        []float64{2, 2, 2},
			y:        []float64{1, 2, 3},
			init:     make([]float64, 2),
			category: calerr.ErrFit,
			want:     ErrSingular,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(poly(1), tt.init, tt.x, tt.y, tt.yerr, WithMethod(LeastSquares))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, tt.category) {
				t.Fatalf("err = %v, want category %v", err, tt.category)
			}
		})
	}
}

func TestParseMethod(t *testing.T) {
	for _, m := range []Method{Interfit, LeastSquares, SigmaClip} {
		got, err := ParseMethod(m.String())
		if err != nil || got != m {
			t.Fatalf("ParseMethod(%q) = %v, %v", m.String(), got, err)
		}
	}

	if _, err := ParseMethod("spline"); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
}

func TestFitDoesNotModifyInputs(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{1, 3, 5, 7.5}

	_, err := Fit(poly(1), make([]float64, 2), x, y, nil)
	if err != nil {
		t.Fatalf("Fit error: %v", err)
	}

	testutil.RequireSliceNearlyEqual(t, y, []float64{1, 3, 5, 7.5}, 0)
}

func TestInterfitSingularRefit(t *testing.T) {
	// Down-weighting the two points at x=10 leaves only x=0.
	x := []float64{0, 0, 0, 0, 0, 0, 10, 10}
	y := []float64{0.01, -0.01, 0.02, -0.02, 0.005, -0.005, 50, 150}

	res, err := Fit(poly(1), make([]float64, 2), x, y, nil)
	if !errors.Is(err, ErrSingular) || !errors.Is(err, calerr.ErrFit) {
		t.Fatalf("error = %v, params = %v, want ErrSingular", err, res.Params)
	}
}
