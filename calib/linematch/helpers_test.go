package linematch

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-wavecal/calib/linelist"
	"github.com/cwbudde/algo-wavecal/calib/wavesol"
	"github.com/cwbudde/algo-wavecal/internal/testutil"
)

// lineSigma is the Gaussian sigma of observed arc lines in pixels.
const lineSigma = 2.0

// fwhmPerSigma converts a Gaussian sigma to its FWHM.
var fwhmPerSigma = 2 * math.Sqrt(2*math.Ln2)

// arc renders one observed row with a line at each pixel, amplitude equal to
// the matching intensity, and returns the reference lines for truth.
func arc(n int, truth []float64, pixels, intensity []float64) (x, f []float64, lines []linelist.Line) {
	x = testutil.Pixels(n)

	em := make([]testutil.Emission, len(pixels))
	for i, p := range pixels {
		em[i] = testutil.Emission{Pixel: p, Amplitude: intensity[i]}
		w := testutil.Polynomial([]float64{p}, truth)[0]
		lines = append(lines, linelist.Line{Wavelength: w, Intensity: intensity[i]})
	}

	return x, testutil.GaussianLines(n, lineSigma, em), lines
}

func powerSolution(t *testing.T, coef []float64, xmax float64) wavesol.Solution {
	t.Helper()

	s, err := wavesol.New(wavesol.Power, len(coef)-1, wavesol.Domain{Min: 0, Max: xmax}, wavesol.WithCoef(coef))
	if err != nil {
		t.Fatal(err)
	}

	return s
}

// linearArc is the four-line scenario with truth w = 4000 + 2.5x.
func linearArc() (x, f []float64, lines []linelist.Line) {
	return arc(1024, []float64{4000, 2.5}, []float64{40, 140, 240, 340}, []float64{800, 300, 1000, 150})
}

func linearSynthetic(t *testing.T, lines []linelist.Line, peak float64) Synthetic {
	t.Helper()

	syn, err := MakeArtificial(lines, 3900, 5000, fwhmPerSigma*lineSigma*2.5, 0.25, peak)
	if err != nil {
		t.Fatal(err)
	}

	return syn
}
