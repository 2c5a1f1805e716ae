package linematch

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
	"github.com/cwbudde/algo-wavecal/calib/linelist"
	"github.com/cwbudde/algo-wavecal/dsp/conv"
	"github.com/cwbudde/algo-wavecal/dsp/interp"
	"github.com/cwbudde/algo-wavecal/dsp/window"
)

// maxSyntheticSamples bounds the synthetic grid length.
const maxSyntheticSamples = 1 << 24

// ErrBadSynthetic is returned for an invalid synthetic spectrum request.
var ErrBadSynthetic = fmt.Errorf("linematch: invalid synthetic spectrum parameters: %w", calerr.ErrConfiguration)

// Synthetic is a reference spectrum on a uniform wavelength grid.
type Synthetic struct {
	Wavelength []float64
	Flux       []float64

	grid *interp.Grid
}

// MakeArtificial renders lines with Gaussian profiles of FWHM res on a grid of
// step dres covering [wmin, wmax], then scales the result so its maximum
// equals peak (no scaling when peak <= 0). Lines without a positive intensity
// get unit intensity.
func MakeArtificial(lines []linelist.Line, wmin, wmax, res, dres, peak float64) (Synthetic, error) {
	if !(wmin < wmax) || !(res > 0) || !(dres > 0) {
		return Synthetic{}, fmt.Errorf("%w: range [%v, %v] res %v step %v", ErrBadSynthetic, wmin, wmax, res, dres)
	}

	span := (wmax - wmin) / dres
	if span >= maxSyntheticSamples {
		return Synthetic{}, fmt.Errorf("%w: %.0f samples", ErrBadSynthetic, span)
	}

	n := int(span) + 1
	comb := make([]float64, n)

	// Each line is split between its two neighbouring samples so the
	// profile centroid stays at the exact wavelength.
	for _, l := range lines {
		if l.Wavelength < wmin || l.Wavelength > wmax {
			continue
		}

		amp := l.Intensity
		if !(amp > 0) {
			amp = 1
		}

		pos := (l.Wavelength - wmin) / dres
		i := min(int(pos), n-1)
		frac := pos - float64(i)

		comb[i] += amp * (1 - frac)
		if i+1 < n {
			comb[i+1] += amp * frac
		}
	}

	fwhm := res / dres

	kernel, err := window.GaussianFWHM(fwhm, int(math.Ceil(2*fwhm)))
	if err != nil {
		return Synthetic{}, fmt.Errorf("linematch: line profile: %w", err)
	}

	flux, err := conv.ConvolveMode(comb, kernel, conv.ModeSame)
	if err != nil {
		return Synthetic{}, fmt.Errorf("linematch: render: %w", err)
	}

	if mx := floats.Max(flux); mx > 0 && peak > 0 {
		floats.Scale(peak/mx, flux)
	}

	wave := make([]float64, n)
	for i := range wave {
		wave[i] = wmin + float64(i)*dres
	}

	grid, err := interp.NewGrid(wmin, dres, flux, interp.Hermite)
	if err != nil {
		return Synthetic{}, fmt.Errorf("linematch: %w", err)
	}

	return Synthetic{Wavelength: wave, Flux: flux, grid: grid}, nil
}

// At returns the synthetic flux at wavelength w, zero outside the grid.
func (s Synthetic) At(w float64) float64 {
	if s.grid == nil {
		return 0
	}

	return s.grid.At(w)
}

// Sample evaluates the synthetic spectrum at every wavelength in ws.
func (s Synthetic) Sample(ws []float64) []float64 {
	out := make([]float64, len(ws))
	s.SampleTo(out, ws)

	return out
}

// SampleTo evaluates the synthetic spectrum at ws into dst, which must have
// len(ws) elements.
func (s Synthetic) SampleTo(dst, ws []float64) {
	if s.grid == nil {
		clear(dst[:len(ws)])
		return
	}

	s.grid.AtTo(dst, ws)
}

// Range returns the first and last grid wavelengths.
func (s Synthetic) Range() (wmin, wmax float64) {
	if len(s.Wavelength) == 0 {
		return math.NaN(), math.NaN()
	}

	return s.Wavelength[0], s.Wavelength[len(s.Wavelength)-1]
}
