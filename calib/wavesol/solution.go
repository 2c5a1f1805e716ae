package wavesol

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
	"github.com/cwbudde/algo-wavecal/fit"
)

// Errors returned by Solution constructors and methods.
var (
	ErrBadOrder       = fmt.Errorf("wavesol: invalid order: %w", calerr.ErrConfiguration)
	ErrBadDomain      = fmt.Errorf("wavesol: domain must satisfy min < max: %w", calerr.ErrConfiguration)
	ErrCoefLength     = fmt.Errorf("wavesol: coefficient count must be order+1: %w", calerr.ErrConfiguration)
	ErrLengthMismatch = fmt.Errorf("wavesol: point arrays differ in length: %w", calerr.ErrConfiguration)
	ErrNotBracketed   = errors.New("wavesol: wavelength outside the solution range")
)

// Domain is the pixel interval mapped onto [-1, 1] for normalised bases.
type Domain struct {
	Min, Max float64
}

// Normalize maps x from the domain to [-1, 1].
func (d Domain) Normalize(x float64) float64 {
	return (2*x - (d.Min + d.Max)) / (d.Max - d.Min)
}

// Width returns Max - Min.
func (d Domain) Width() float64 { return d.Max - d.Min }

// Option configures a Solution.
type Option func(*Solution)

// WithFitOptions sets the options passed to [fit.Fit] by [Solution.Fit].
func WithFitOptions(opts ...fit.Option) Option {
	return func(s *Solution) {
		s.fitOpts = slices.Clone(opts)
	}
}

// WithCoef sets the initial coefficients. The length is validated by New.
func WithCoef(coef []float64) Option {
	return func(s *Solution) {
		s.coef = slices.Clone(coef)
	}
}

// Solution maps pixel position to wavelength.
type Solution struct {
	kind    BasisKind
	order   int
	domain  Domain
	coef    []float64
	knots   []float64
	fitOpts []fit.Option

	x, w, werr []float64
	mask       []bool
	rms        float64
}

// New creates a solution with zero coefficients (unless [WithCoef] is given).
func New(kind BasisKind, order int, domain Domain, opts ...Option) (Solution, error) {
	b, ok := bases[kind]
	if !ok {
		return Solution{}, fmt.Errorf("%w: %d", ErrUnknownBasis, int(kind))
	}

	if order < 0 || order < b.minOrder {
		return Solution{}, fmt.Errorf("%w: %d for %v", ErrBadOrder, order, kind)
	}

	if !(domain.Min < domain.Max) {
		return Solution{}, fmt.Errorf("%w: [%v, %v]", ErrBadDomain, domain.Min, domain.Max)
	}

	s := Solution{
		kind:   kind,
		order:  order,
		domain: domain,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}

	if s.coef == nil {
		s.coef = make([]float64, order+1)
	}

	if len(s.coef) != order+1 {
		return Solution{}, fmt.Errorf("%w: got %d, want %d", ErrCoefLength, len(s.coef), order+1)
	}

	if kind == Spline {
		s.knots = splineKnots(order + 1)
	}

	return s, nil
}

// Kind returns the basis kind.
func (s Solution) Kind() BasisKind { return s.kind }

// Order returns the order; the solution has Order()+1 coefficients.
func (s Solution) Order() int { return s.order }

// Domain returns the fixed normalisation domain.
func (s Solution) Domain() Domain { return s.domain }

// Coef returns a copy of the coefficients.
func (s Solution) Coef() []float64 { return slices.Clone(s.coef) }

// RMS returns the residual RMS of the last fit, or 0 if the solution was never fitted.
func (s Solution) RMS() float64 { return s.rms }

// Points returns copies of the fitted pixel and wavelength arrays and the mask.
func (s Solution) Points() (x, w []float64, mask []bool) {
	return slices.Clone(s.x), slices.Clone(s.w), slices.Clone(s.mask)
}

// NumPoints returns the size of the fitted point set.
func (s Solution) NumPoints() int { return len(s.x) }

// NumAccepted returns the number of points with a true mask.
func (s Solution) NumAccepted() int {
	n := 0

	for _, ok := range s.mask {
		if ok {
			n++
		}
	}

	return n
}

// SetCoef returns a copy of s with new coefficients. The point set is kept.
func (s Solution) SetCoef(coef []float64) (Solution, error) {
	if len(coef) != s.order+1 {
		return Solution{}, fmt.Errorf("%w: got %d, want %d", ErrCoefLength, len(coef), s.order+1)
	}

	out := s
	out.coef = slices.Clone(coef)

	return out, nil
}

// Shift returns a copy of s whose values are offset by dw at every pixel.
func (s Solution) Shift(dw float64) Solution {
	out := s
	out.coef = slices.Clone(s.coef)

	if s.kind == Spline {
		// B-spline bases sum to one.
		for i := range out.coef {
			out.coef[i] += dw
		}

		return out
	}

	out.coef[0] += dw

	return out
}

// Dispersion returns the local slope dw/dx at pixel x by central difference.
func (s Solution) Dispersion(x float64) float64 {
	const h = 0.5

	return s.Value(x+h) - s.Value(x-h)
}

// Value returns the wavelength at pixel x.
func (s Solution) Value(x float64) float64 {
	b := bases[s.kind]

	t := x
	if b.normalize {
		t = s.domain.Normalize(x)
	}

	var stack [16]float64

	var basis []float64
	if len(s.coef) <= len(stack) {
		basis = stack[:len(s.coef)]
	} else {
		basis = make([]float64, len(s.coef))
	}

	b.fill(basis, t, s.knots)

	v := 0.0
	for k, c := range s.coef {
		v += c * basis[k]
	}

	return v
}

// Values evaluates the solution at every element of xs.
func (s Solution) Values(xs []float64) []float64 {
	out := make([]float64, len(xs))
	s.ValuesTo(out, xs)

	return out
}

// ValuesTo evaluates the solution into dst, which must have len(xs) elements.
func (s Solution) ValuesTo(dst, xs []float64) {
	for i, x := range xs {
		dst[i] = s.Value(x)
	}
}

// Fit fits the solution to the (x, w) points and returns the fitted copy.
// werr may be nil; otherwise points are weighted by 1/werr.
func (s Solution) Fit(x, w, werr []float64) (Solution, error) {
	if len(x) != len(w) || (werr != nil && len(werr) != len(x)) {
		return Solution{}, fmt.Errorf("%w: x=%d w=%d", ErrLengthMismatch, len(x), len(w))
	}

	res, err := fit.Fit(model{s}, s.coef, x, w, werr, s.fitOpts...)
	if err != nil {
		return Solution{}, err
	}

	out := s
	out.coef = res.Params
	out.x = slices.Clone(x)
	out.w = slices.Clone(w)
	out.werr = slices.Clone(werr)
	out.mask = res.Mask
	out.rms = res.RMS

	return out, nil
}

// Sigma returns the RMS difference between w and the solution evaluated at x.
func (s Solution) Sigma(x, w []float64) float64 {
	if len(x) == 0 || len(x) != len(w) {
		return math.NaN()
	}

	sum := 0.0
	for i, xi := range x {
		d := w[i] - s.Value(xi)
		sum += d * d
	}

	return math.Sqrt(sum / float64(len(x)))
}

// ChiSq returns sum(((y - value(x)) / err)^2). err may be nil for unit errors.
func (s Solution) ChiSq(x, y, err []float64) float64 {
	sum := 0.0

	for i, xi := range x {
		d := y[i] - s.Value(xi)
		if err != nil {
			d /= err[i]
		}

		sum += d * d
	}

	return sum
}

// invTol is the pixel tolerance of InvValue.
const invTol = 1e-10

// InvValue returns the pixel at which the solution equals w. The search is
// limited to the domain; ErrNotBracketed is returned if w lies outside the
// range spanned there or the solution is not monotonic across it.
func (s Solution) InvValue(w float64) (float64, error) {
	lo, hi := s.domain.Min, s.domain.Max
	flo, fhi := s.Value(lo)-w, s.Value(hi)-w

	if flo == 0 {
		return lo, nil
	}

	if fhi == 0 {
		return hi, nil
	}

	if (flo > 0) == (fhi > 0) {
		return math.NaN(), fmt.Errorf("%w: %v", ErrNotBracketed, w)
	}

	for range 200 {
		mid := 0.5 * (lo + hi)

		fm := s.Value(mid) - w
		if fm == 0 || hi-lo < invTol {
			return mid, nil
		}

		if (fm > 0) == (flo > 0) {
			lo, flo = mid, fm
		} else {
			hi = mid
		}
	}

	return 0.5 * (lo + hi), nil
}

// model adapts a Solution to fit.LinearModel.
type model struct {
	s Solution
}

func (m model) NumParams() int { return m.s.order + 1 }

func (m model) Eval(params []float64, x float64) float64 {
	tmp := m.s
	tmp.coef = params

	return tmp.Value(x)
}

func (m model) Basis(dst []float64, x float64) {
	b := bases[m.s.kind]

	t := x
	if b.normalize {
		t = m.s.domain.Normalize(x)
	}

	b.fill(dst, t, m.s.knots)
}
