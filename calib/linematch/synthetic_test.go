package linematch

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
	"github.com/cwbudde/algo-wavecal/calib/linelist"
)

func TestMakeArtificialPeakAndCentres(t *testing.T) {
	lines := []linelist.Line{{Wavelength: 5000.03, Intensity: 10}, {Wavelength: 5100, Intensity: 40}}

	syn, err := MakeArtificial(lines, 4900, 5200, 2, 0.1, 1234)
	if err != nil {
		t.Fatal(err)
	}

	if got := floats.Max(syn.Flux); math.Abs(got-1234) > 1e-9 {
		t.Fatalf("max flux = %v, want 1234", got)
	}

	if len(syn.Wavelength) != len(syn.Flux) {
		t.Fatalf("grid lengths %d / %d", len(syn.Wavelength), len(syn.Flux))
	}

	// The profile is symmetric about each line.
	for _, l := range lines {
		for _, d := range []float64{0.5, 1, 1.5} {
			if diff := syn.At(l.Wavelength-d) - syn.At(l.Wavelength+d); math.Abs(diff) > 1e-3*syn.At(l.Wavelength) {
				t.Fatalf("line %v asymmetric at +/-%v: %v", l.Wavelength, d, diff)
			}
		}
	}

	// Half maximum at FWHM/2 for the isolated bright line.
	if r := syn.At(5101) / syn.At(5100); math.Abs(r-0.5) > 0.02 {
		t.Fatalf("half-width ratio = %v, want 0.5", r)
	}
}

func TestMakeArtificialMissingIntensity(t *testing.T) {
	lines := []linelist.Line{{Wavelength: 5000, Intensity: linelist.NoIntensity}, {Wavelength: 5050, Intensity: 0}}

	syn, err := MakeArtificial(lines, 4950, 5100, 3, 0.5, 0)
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(syn.At(5000)-syn.At(5050)) > 1e-9 || syn.At(5000) <= 0 {
		t.Fatalf("unit intensities differ: %v vs %v", syn.At(5000), syn.At(5050))
	}

	if syn.At(4000) != 0 {
		t.Fatal("flux outside grid is not zero")
	}
}

func TestSampleTo(t *testing.T) {
	lines := []linelist.Line{{Wavelength: 5000, Intensity: 10}}

	syn, err := MakeArtificial(lines, 4950, 5050, 2, 0.2, 1)
	if err != nil {
		t.Fatal(err)
	}

	ws := []float64{4990, 4999.5, 5000, 5000.7, 6000}
	got := make([]float64, len(ws))
	syn.SampleTo(got, ws)

	for i, w := range ws {
		if got[i] != syn.At(w) {
			t.Fatalf("SampleTo[%d] = %v, At(%v) = %v", i, got[i], w, syn.At(w))
		}
	}

	dst := []float64{1, 2}
	Synthetic{}.SampleTo(dst, ws[:2])

	if dst[0] != 0 || dst[1] != 0 {
		t.Fatalf("empty synthetic sampled %v", dst)
	}
}

func TestMakeArtificialErrors(t *testing.T) {
	for _, tc := range []struct {
		name                  string
		wmin, wmax, res, dres float64
	}{
		{"empty range", 10, 10, 1, 0.1},
		{"zero res", 0, 10, 0, 0.1},
		{"zero step", 0, 10, 1, 0},
		{"too many samples", 0, 1e9, 1, 1e-3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := MakeArtificial(nil, tc.wmin, tc.wmax, tc.res, tc.dres, 1)
			if !errors.Is(err, ErrBadSynthetic) || !errors.Is(err, calerr.ErrConfiguration) {
				t.Fatalf("error = %v", err)
			}
		})
	}
}

func TestNCor(t *testing.T) {
	f := []float64{1, 2, 3}

	tests := []struct {
		name string
		g    []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, 1},
		{"scaled", []float64{2, 4, 6}, 1},
		{"negated", []float64{-1, -2, -3}, -1},
		{"orthogonal", []float64{3, 0, -1}, 0},
		{"zero", []float64{0, 0, 0}, 0},
		{"length mismatch", []float64{1, 2}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NCor(f, tt.g); math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("NCor = %v, want %v", got, tt.want)
			}
		})
	}
}
