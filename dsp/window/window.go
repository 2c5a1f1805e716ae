// Package window generates line-profile and taper windows.
//
// Windows are sampled on x = i/(L-1) over a length-L buffer. [TypeGauss] is
// the instrumental line profile used to build synthetic arc spectra and
// matched filters; [TypeTukey], [TypeHann] and [TypeRectangular] are the
// tapers selectable for the extraction windows realigned before correlation.
package window

import (
	"fmt"
	"math"
)

// Type identifies a window function. The zero value is [TypeTukey].
type Type int

const (
	TypeTukey Type = iota
	TypeHann
	TypeRectangular
	TypeGauss
)

func (t Type) String() string {
	switch t {
	case TypeRectangular:
		return "rectangular"
	case TypeHann:
		return "hann"
	case TypeTukey:
		return "tukey"
	case TypeGauss:
		return "gauss"
	default:
		return "unknown"
	}
}

// ParseType converts a window name as returned by String.
func ParseType(s string) (Type, error) {
	for _, t := range []Type{TypeRectangular, TypeHann, TypeTukey, TypeGauss} {
		if t.String() == s {
			return t, nil
		}
	}

	return 0, fmt.Errorf("%w: window type %q", ErrParameter, s)
}

// Option configures window generation.
type Option func(*config)

type config struct {
	alpha     float64
	normalize bool
}

func defaultConfig() config {
	return config{alpha: 1}
}

func withAlpha(v float64) Option {
	return func(c *config) {
		c.alpha = v
	}
}

// WithUnitSum scales the coefficients to sum to one.
func WithUnitSum() Option {
	return func(c *config) {
		c.normalize = true
	}
}

// Generate returns window coefficients of the given length with the default
// shape parameter of one (a full Hann taper for Tukey, a half-length equal to
// half the FWHM for Gauss).
func Generate(t Type, length int, opts ...Option) []float64 {
	if length <= 0 {
		return nil
	}

	cfg := defaultConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	out := make([]float64, length)
	for i := range out {
		out[i] = evalWindow(t, samplePosition(i, length), cfg)
	}

	if cfg.normalize {
		sum := 0.0
		for _, v := range out {
			sum += v
		}

		if sum != 0 {
			for i := range out {
				out[i] /= sum
			}
		}
	}

	return out
}

// Taper returns a taper of the given type and size. alpha is the tapered
// fraction in [0, 1] and only affects [TypeTukey].
func Taper(t Type, size int, alpha float64) ([]float64, error) {
	switch t {
	case TypeRectangular, TypeHann:
		if err := validateLength(size); err != nil {
			return nil, err
		}

		return Generate(t, size), nil
	case TypeTukey:
		if err := validateTukey(size, alpha); err != nil {
			return nil, err
		}

		return Generate(TypeTukey, size, withAlpha(alpha)), nil
	default:
		return nil, fmt.Errorf("%w: %v is not a taper", ErrParameter, t)
	}
}

// GaussianFWHM returns a centred Gaussian of 2*halfWidth+1 samples whose full
// width at half maximum is fwhm samples. The centre sample is 1 unless
// [WithUnitSum] is given.
func GaussianFWHM(fwhm float64, halfWidth int, opts ...Option) ([]float64, error) {
	if !(fwhm > 0) {
		return nil, validateGauss(1, fwhm)
	}

	if halfWidth < 0 {
		return nil, validateLength(2*halfWidth + 1)
	}

	if halfWidth == 0 {
		return Generate(TypeRectangular, 1, opts...), nil
	}

	return Generate(TypeGauss, 2*halfWidth+1, append(opts, withAlpha(2*float64(halfWidth)/fwhm))...), nil
}

func evalWindow(t Type, x float64, cfg config) float64 {
	x = math.Max(0, math.Min(1, x))

	switch t {
	case TypeHann:
		return 0.5 - 0.5*math.Cos(2*math.Pi*x)
	case TypeTukey:
		return tukeyAt(x, cfg.alpha)
	case TypeGauss:
		v := (2*x - 1) * cfg.alpha
		return math.Exp(-math.Ln2 * v * v)
	default:
		return 1
	}
}

func samplePosition(n, size int) float64 {
	if size <= 1 {
		return 0.5
	}

	return float64(n) / float64(size-1)
}

func tukeyAt(x, alpha float64) float64 {
	if alpha <= 0 {
		return 1
	}

	if alpha >= 1 {
		return 0.5 - 0.5*math.Cos(2*math.Pi*x)
	}

	a := alpha / 2

	switch {
	case x < a:
		return 0.5 * (1 + math.Cos(math.Pi*(2*x/alpha-1)))
	case x <= 1-a:
		return 1
	default:
		return 0.5 * (1 + math.Cos(math.Pi*(2*x/alpha-2/alpha+1)))
	}
}
