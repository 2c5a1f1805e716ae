package conv

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-wavecal/internal/testutil"
)

func TestDirect(t *testing.T) {
	tests := []struct {
		name     string
		a        []float64
		b        []float64
		expected []float64
	}{
		{"simple 3x3", []float64{1, 2, 3}, []float64{1, 1, 1}, []float64{1, 3, 6, 5, 3}},
		{"impulse", []float64{1, 2, 3, 4, 5}, []float64{1}, []float64{1, 2, 3, 4, 5}},
		{"delayed impulse", []float64{1, 2, 3}, []float64{0, 0, 1}, []float64{0, 0, 1, 2, 3}},
		{"symmetric", []float64{1, 2, 1}, []float64{1, 2, 1}, []float64{1, 4, 6, 4, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Direct(tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			testutil.RequireSliceNearlyEqual(t, result, tt.expected, 1e-12)
		})
	}
}

func TestDirectErrors(t *testing.T) {
	if _, err := Direct(nil, []float64{1, 2}); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}

	if _, err := Direct([]float64{1, 2}, nil); !errors.Is(err, ErrEmptyKernel) {
		t.Errorf("expected ErrEmptyKernel, got %v", err)
	}
}

func TestOverlapAddMatchesDirect(t *testing.T) {
	signal := testutil.DeterministicNoise(5, 1, 1500)

	kernel := make([]float64, 201)
	for i := range kernel {
		d := float64(i - 100)
		kernel[i] = math.Exp(-0.5 * d * d / 400)
	}

	want, err := Direct(signal, kernel)
	if err != nil {
		t.Fatal(err)
	}

	for _, block := range []int{0, 64, 1000} {
		oa, err := NewOverlapAdd(kernel, block)
		if err != nil {
			t.Fatal(err)
		}

		got, err := oa.Process(signal)
		if err != nil {
			t.Fatal(err)
		}

		testutil.RequireSliceNearlyEqual(t, got, want, 1e-9)
	}
}

func TestConvolveSwapsShortInput(t *testing.T) {
	got, err := Convolve([]float64{1, 1}, []float64{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireSliceNearlyEqual(t, got, []float64{1, 3, 5, 7, 4}, 1e-12)
}

func TestConvolveModeSameCentres(t *testing.T) {
	signal := make([]float64, 9)
	signal[4] = 1

	got, err := ConvolveMode(signal, []float64{0.25, 0.5, 0.25}, ModeSame)
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireSliceNearlyEqual(t, got, []float64{0, 0, 0, 0.25, 0.5, 0.25, 0, 0, 0}, 1e-12)

	valid, err := ConvolveMode([]float64{1, 2, 3, 4}, []float64{1, 1}, ModeValid)
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireSliceNearlyEqual(t, valid, []float64{3, 5, 7}, 1e-12)
}

func TestConvolveAboveThreshold(t *testing.T) {
	signal := testutil.DeterministicNoise(11, 1, 700)

	kernel := make([]float64, 41)
	for i := range kernel {
		d := float64(i - 20)
		kernel[i] = math.Exp(-0.5 * d * d / 18)
	}

	if len(kernel) <= directThreshold {
		t.Fatalf("kernel of %d taps does not exercise overlap-add", len(kernel))
	}

	want, err := Direct(signal, kernel)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Convolve(signal, kernel)
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireSliceNearlyEqual(t, got, want, 1e-9)
}

func TestOverlapAddErrors(t *testing.T) {
	if _, err := NewOverlapAdd(nil, 0); !errors.Is(err, ErrEmptyKernel) {
		t.Fatalf("empty kernel: %v", err)
	}

	oa, err := NewOverlapAdd([]float64{1, 1}, 0)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := oa.Process(nil); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("empty input: %v", err)
	}

	got, err := oa.Process([]float64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireSliceNearlyEqual(t, got, []float64{1, 3, 5, 3}, 1e-9)
}
