package linematch

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
)

func TestFindXCorRecoversLinearSolution(t *testing.T) {
	x, f, lines := linearArc()
	syn := linearSynthetic(t, lines, floats.Max(f))
	guess := powerSolution(t, []float64{4010, 2.55}, 1023)

	res, err := FindXCor(context.Background(), x, f, syn, guess, XCorConfig{
		Dcoef:  []float64{50, 0.5},
		Ndstep: 201,
	})
	if err != nil {
		t.Fatalf("FindXCor error: %v", err)
	}

	coef := res.Solution.Coef()
	if math.Abs(coef[0]-4000) > 1.0 {
		t.Fatalf("zero point = %v, want 4000 +/- 1", coef[0])
	}

	if math.Abs(coef[1]-2.5) > 0.01 {
		t.Fatalf("dispersion = %v, want 2.5 +/- 0.01", coef[1])
	}

	if res.Evaluated != 201*201 {
		t.Fatalf("evaluated %d grid points", res.Evaluated)
	}

	if res.Correlation < 0.5 {
		t.Fatalf("correlation = %v", res.Correlation)
	}
}

func TestFindXCorScaleInvariant(t *testing.T) {
	x, f, lines := linearArc()
	syn := linearSynthetic(t, lines, floats.Max(f))
	guess := powerSolution(t, []float64{4006, 2.52}, 1023)
	cfg := XCorConfig{Dcoef: []float64{20, 0.1}, Ndstep: 41}

	ref, err := FindXCor(context.Background(), x, f, syn, guess, cfg)
	if err != nil {
		t.Fatal(err)
	}

	for _, k := range []float64{4, 0.37, 1e4} {
		scaled := make([]float64, len(f))
		floats.ScaleTo(scaled, k, f)

		got, err := FindXCor(context.Background(), x, scaled, syn, guess, cfg)
		if err != nil {
			t.Fatal(err)
		}

		opt := cmpopts.EquateApprox(0, 1e-9)
		if k == 4 {
			opt = cmpopts.EquateApprox(0, 0)
		}

		if diff := cmp.Diff(ref.Solution.Coef(), got.Solution.Coef(), opt); diff != "" {
			t.Fatalf("scale %v changed coefficients (-ref +got):\n%s", k, diff)
		}
	}
}

func TestFindXCorWorkerCountIndependent(t *testing.T) {
	x, f, lines := linearArc()
	syn := linearSynthetic(t, lines, floats.Max(f))
	guess := powerSolution(t, []float64{4003, 2.51}, 1023)

	var want []float64

	for _, workers := range []int{1, 3, 8} {
		res, err := FindXCor(context.Background(), x, f, syn, guess, XCorConfig{
			Dcoef:   []float64{10, 0.05},
			Ndstep:  21,
			Workers: workers,
		})
		if err != nil {
			t.Fatal(err)
		}

		if want == nil {
			want = res.Solution.Coef()
			continue
		}

		if !cmp.Equal(want, res.Solution.Coef()) {
			t.Fatalf("workers=%d: %v, want %v", workers, res.Solution.Coef(), want)
		}
	}
}

func TestFindXCorNoPerturbation(t *testing.T) {
	x, f, lines := linearArc()
	syn := linearSynthetic(t, lines, floats.Max(f))
	guess := powerSolution(t, []float64{4000, 2.5}, 1023)

	res, err := FindXCor(context.Background(), x, f, syn, guess, XCorConfig{Dcoef: []float64{0, 0}, Ndstep: 5})
	if err != nil {
		t.Fatal(err)
	}

	if res.Evaluated != 1 || !cmp.Equal(res.Solution.Coef(), guess.Coef()) {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestFindXCorConfigErrors(t *testing.T) {
	x, f, lines := linearArc()
	syn := linearSynthetic(t, lines, 1)
	guess := powerSolution(t, []float64{4000, 2.5}, 1023)

	tests := []struct {
		name string
		x, f []float64
		cfg  XCorConfig
		want error
	}{
		{"too many combinations", x, f, XCorConfig{Dcoef: []float64{1, 1}, Ndstep: 2000}, ErrTooManyCombinations},
		{"explicit bound", x, f, XCorConfig{Dcoef: []float64{1, 1}, Ndstep: 11, MaxCombinations: 100}, ErrTooManyCombinations},
		{"too many dcoef", x, f, XCorConfig{Dcoef: []float64{1, 1, 1}, Ndstep: 3}, ErrBadXCorConfig},
		{"zero ndstep", x, f, XCorConfig{Dcoef: []float64{1}}, ErrBadXCorConfig},
		{"length mismatch", x[:10], f, XCorConfig{Dcoef: []float64{1}, Ndstep: 3}, ErrLengthMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FindXCor(context.Background(), tt.x, tt.f, syn, guess, tt.cfg)
			if !errors.Is(err, tt.want) || !errors.Is(err, calerr.ErrConfiguration) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFindXCorCancelled(t *testing.T) {
	x, f, lines := linearArc()
	syn := linearSynthetic(t, lines, 1)
	guess := powerSolution(t, []float64{4000, 2.5}, 1023)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FindXCor(ctx, x, f, syn, guess, XCorConfig{Dcoef: []float64{5, 0.1}, Ndstep: 31})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestZeroPoint(t *testing.T) {
	x, f, lines := linearArc()
	syn := linearSynthetic(t, lines, floats.Max(f))
	guess := powerSolution(t, []float64{4004.3, 2.5}, 1023)

	res, err := ZeroPoint(context.Background(), x, f, syn, guess, 10, 201)
	if err != nil {
		t.Fatal(err)
	}

	if c0 := res.Solution.Coef()[0]; math.Abs(c0-4000) > 0.1 {
		t.Fatalf("zero point = %v, want 4000", c0)
	}

	if _, err := ZeroPoint(context.Background(), x, f, syn, guess, 0, 11); !errors.Is(err, ErrBadXCorConfig) {
		t.Fatalf("zero shift error = %v", err)
	}
}
