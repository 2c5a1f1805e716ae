// Package guess provides initial wavelength solutions for the first row of a
// calibration: a closed-form grating-equation model, explicit coefficients,
// and conversion of a stored solution to the basis of a new run.
package guess

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
	"github.com/cwbudde/algo-wavecal/calib/wavesol"
	"github.com/cwbudde/algo-wavecal/fit"
)

// ErrBadGrating is returned for unphysical grating parameters.
var ErrBadGrating = fmt.Errorf("guess: invalid grating parameters: %w", calerr.ErrConfiguration)

// angstromPerMM converts a groove spacing in mm to Angstrom.
const angstromPerMM = 1e7

// defaultSamples is the number of model points fitted when no abscissae are
// given.
const defaultSamples = 64

// Grating is the spectrograph geometry entering the grating equation
//
//	m λ = d (sin α + sin β)
//
// with α the grating angle and β = camera angle - α + atan(offset/focal length)
// the diffraction angle of a pixel.
type Grating struct {
	// Grooves is the groove density in lines/mm.
	Grooves float64
	// GratingAngle and CameraAngle are in degrees.
	GratingAngle float64
	CameraAngle  float64
	// Order is the diffraction order.
	Order int
	// FocalLength and PixelSize are in mm.
	FocalLength float64
	PixelSize   float64
	// XBin is the detector binning along the dispersion axis; zero means 1.
	XBin int
	// CenterPixel is the pixel on the camera axis.
	CenterPixel float64
}

// Validate reports unphysical parameters.
func (g Grating) Validate() error {
	switch {
	case !(g.Grooves > 0):
		return fmt.Errorf("%w: grooves %v", ErrBadGrating, g.Grooves)
	case g.Order == 0:
		return fmt.Errorf("%w: order 0", ErrBadGrating)
	case !(g.FocalLength > 0):
		return fmt.Errorf("%w: focal length %v", ErrBadGrating, g.FocalLength)
	case !(g.PixelSize > 0):
		return fmt.Errorf("%w: pixel size %v", ErrBadGrating, g.PixelSize)
	case g.XBin < 0:
		return fmt.Errorf("%w: binning %d", ErrBadGrating, g.XBin)
	}

	return nil
}

// Wavelength returns the wavelength in Angstrom at pixel x.
func (g Grating) Wavelength(x float64) float64 {
	bin := float64(max(g.XBin, 1))
	alpha := g.GratingAngle * math.Pi / 180
	beta := (g.CameraAngle-g.GratingAngle)*math.Pi/180 + math.Atan((x-g.CenterPixel)*g.PixelSize*bin/g.FocalLength)

	return angstromPerMM / g.Grooves * (math.Sin(alpha) + math.Sin(beta)) / float64(g.Order)
}

// Solution fits the grating model with the given basis at xs. A nil xs
// samples the domain uniformly. opts are applied to the returned solution and
// do not affect the model fit, which is an ordinary least-squares fit.
func (g Grating) Solution(kind wavesol.BasisKind, order int, domain wavesol.Domain, xs []float64, opts ...wavesol.Option) (wavesol.Solution, error) {
	if err := g.Validate(); err != nil {
		return wavesol.Solution{}, err
	}

	return fitCurve(g.Wavelength, kind, order, domain, xs, opts)
}

// Convert re-expresses src in another basis, order or domain by a
// least-squares fit to src sampled over the new domain.
func Convert(src wavesol.Solution, kind wavesol.BasisKind, order int, domain wavesol.Domain, opts ...wavesol.Option) (wavesol.Solution, error) {
	if src.Kind() == kind && src.Order() == order && src.Domain() == domain {
		return wavesol.New(kind, order, domain, append([]wavesol.Option{wavesol.WithCoef(src.Coef())}, opts...)...)
	}

	return fitCurve(src.Value, kind, order, domain, nil, opts)
}

func fitCurve(curve func(float64) float64, kind wavesol.BasisKind, order int, domain wavesol.Domain, xs []float64, opts []wavesol.Option) (wavesol.Solution, error) {
	if xs == nil {
		if !(domain.Min < domain.Max) {
			return wavesol.Solution{}, fmt.Errorf("%w: [%v, %v]", wavesol.ErrBadDomain, domain.Min, domain.Max)
		}

		xs = sampleDomain(domain, max(defaultSamples, 4*(order+1)))
	}

	ws := make([]float64, len(xs))
	for i, x := range xs {
		ws[i] = curve(x)
	}

	model, err := wavesol.New(kind, order, domain, wavesol.WithFitOptions(fit.WithMethod(fit.LeastSquares)))
	if err != nil {
		return wavesol.Solution{}, err
	}

	fitted, err := model.Fit(xs, ws, nil)
	if err != nil {
		return wavesol.Solution{}, fmt.Errorf("guess: fit model curve: %w", err)
	}

	return wavesol.New(kind, order, domain, append([]wavesol.Option{wavesol.WithCoef(fitted.Coef())}, opts...)...)
}

// Explicit returns a solution with the given coefficients.
func Explicit(kind wavesol.BasisKind, domain wavesol.Domain, coef []float64, opts ...wavesol.Option) (wavesol.Solution, error) {
	if len(coef) == 0 {
		return wavesol.Solution{}, fmt.Errorf("%w: no coefficients", wavesol.ErrCoefLength)
	}

	return wavesol.New(kind, len(coef)-1, domain, append([]wavesol.Option{wavesol.WithCoef(coef)}, opts...)...)
}

func sampleDomain(d wavesol.Domain, n int) []float64 {
	xs := make([]float64, n)
	step := d.Width() / float64(n-1)

	for i := range xs {
		xs[i] = d.Min + float64(i)*step
	}

	return xs
}
