package fit

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
	"github.com/cwbudde/algo-wavecal/stats/robust"
)

// Errors returned by Fit.
var (
	ErrLengthMismatch = fmt.Errorf("fit: x, y and yerr lengths differ: %w", calerr.ErrConfiguration)
	ErrBadUncertainty = fmt.Errorf("fit: uncertainties must be positive and finite: %w", calerr.ErrConfiguration)
	ErrUnknownMethod  = fmt.Errorf("fit: unknown method: %w", calerr.ErrConfiguration)
	ErrSingular       = fmt.Errorf("fit: singular system: %w", calerr.ErrFit)
	ErrTooFewPoints   = fmt.Errorf("fit: fewer usable points than parameters: %w", calerr.ErrFit)
	ErrNotConverged   = fmt.Errorf("fit: minimisation failed: %w", calerr.ErrFit)
)

// Model evaluates a parametric function.
type Model interface {
	NumParams() int
	Eval(params []float64, x float64) float64
}

// LinearModel is a Model of the form sum(params[k] * basis_k(x)).
// Basis writes the NumParams basis values at x into dst.
type LinearModel interface {
	Model
	Basis(dst []float64, x float64)
}

// Func adapts a plain function to Model.
type Func struct {
	N int
	F func(params []float64, x float64) float64
}

// NumParams implements Model.
func (f Func) NumParams() int { return f.N }

// Eval implements Model.
func (f Func) Eval(params []float64, x float64) float64 { return f.F(params, x) }

// Method selects the rejection strategy.
type Method int

const (
	Interfit Method = iota
	LeastSquares
	SigmaClip
)

var methodNames = map[Method]string{
	Interfit:     "interfit",
	LeastSquares: "lsq",
	SigmaClip:    "sigclip",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}

	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod converts a method name ("interfit", "lsq", "sigclip") to a Method.
func ParseMethod(s string) (Method, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for m, name := range methodNames {
		if name == key {
			return m, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// Option configures Fit.
type Option func(*config)

type config struct {
	method Method
	niter  int
	thresh float64
	lower  float64
	upper  float64
}

func defaultConfig() config {
	return config{
		method: Interfit,
		niter:  5,
		thresh: 5,
		lower:  3,
		upper:  3,
	}
}

// WithMethod selects the fitting method.
func WithMethod(m Method) Option {
	return func(c *config) {
		c.method = m
	}
}

// WithIterations sets the maximum number of reweighting or clipping iterations.
func WithIterations(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.niter = n
		}
	}
}

// WithThreshold sets the biweight rejection threshold in robust sigma.
func WithThreshold(thresh float64) Option {
	return func(c *config) {
		if thresh > 0 {
			c.thresh = thresh
		}
	}
}

// WithClip sets the lower and upper sigma-clipping limits.
func WithClip(lower, upper float64) Option {
	return func(c *config) {
		if lower > 0 {
			c.lower = lower
		}

		if upper > 0 {
			c.upper = upper
		}
	}
}

// Result holds the fitted parameters and per-point diagnostics.
type Result struct {
	Params     []float64
	Mask       []bool    // true for points that contributed to the final fit
	Weights    []float64 // final robust weights (1 for plain least squares)
	Iterations int
	RMS        float64 // unweighted residual RMS over masked points
	ChiSq      float64 // sum of squared normalised residuals over masked points
}

// Rejected returns the number of points excluded from the final fit.
func (r Result) Rejected() int {
	n := 0

	for _, ok := range r.Mask {
		if !ok {
			n++
		}
	}

	return n
}

// residualFloor is the relative size below which residuals are treated as
// rounding noise; robust rescaling stops there.
const residualFloor = 1e-10

// weightTol ends reweighting once no weight moves by more than this.
const weightTol = 1e-9

// Fit fits model to (x, y) starting from init. yerr may be nil for unit
// uncertainties. init must have model.NumParams() elements; for linear models
// it is only used for its length.
func Fit(model Model, init, x, y, yerr []float64, opts ...Option) (Result, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	p := model.NumParams()
	if len(init) != p {
		return Result{}, fmt.Errorf("%w: init has %d params, model needs %d", ErrLengthMismatch, len(init), p)
	}

	if len(x) != len(y) || (yerr != nil && len(yerr) != len(x)) {
		return Result{}, ErrLengthMismatch
	}

	if yerr == nil {
		yerr = make([]float64, len(x))
		for i := range yerr {
			yerr[i] = 1
		}
	}

	for _, e := range yerr {
		if !(e > 0) || math.IsInf(e, 0) {
			return Result{}, ErrBadUncertainty
		}
	}

	prob := problem{model: model, init: init, x: x, y: y, yerr: yerr}

	switch cfg.method {
	case LeastSquares:
		return prob.leastSquares()
	case Interfit:
		return prob.interfit(cfg)
	case SigmaClip:
		return prob.sigmaClip(cfg)
	default:
		return Result{}, fmt.Errorf("%w: %v", ErrUnknownMethod, cfg.method)
	}
}

type problem struct {
	model      Model
	init, x, y []float64
	yerr       []float64
}

func (p problem) leastSquares() (Result, error) {
	w := ones(len(p.x))

	params, err := p.solve(w)
	if err != nil {
		return Result{}, err
	}

	return p.result(params, w, 0), nil
}

func (p problem) interfit(cfg config) (Result, error) {
	n := len(p.x)
	w := ones(n)

	params, err := p.solve(w)
	if err != nil {
		return Result{}, err
	}

	floor := residualFloor * p.scale()
	r := make([]float64, n)
	iter := 0

	for ; iter < cfg.niter; iter++ {
		p.normalisedResiduals(r, params)

		s := robust.Scale(r)
		if !(s > floor) {
			break
		}

		next := make([]float64, n)
		for i, ri := range r {
			u := ri / (cfg.thresh * s)
			if math.Abs(u) < 1 {
				next[i] = math.Sqrt((1 - u*u) * (1 - u*u))
			}
		}

		if count(next) < p.model.NumParams() {
			break
		}

		refit, err := p.solve(next)
		if err != nil {
			return Result{}, err
		}

		delta := maxAbsChange(w, next)
		w, params = next, refit

		if delta < weightTol {
			iter++
			break
		}
	}

	return p.result(params, w, iter), nil
}

func (p problem) sigmaClip(cfg config) (Result, error) {
	n := len(p.x)
	w := ones(n)

	params, err := p.solve(w)
	if err != nil {
		return Result{}, err
	}

	floor := residualFloor * p.scale()
	r := make([]float64, n)
	iter := 0

	for iter < cfg.niter {
		p.normalisedResiduals(r, params)

		kept := make([]float64, 0, n)
		for i, ri := range r {
			if w[i] > 0 {
				kept = append(kept, ri)
			}
		}

		_, std := robust.MeanStd(kept)
		if !(std > floor) {
			break
		}

		next := make([]float64, n)
		for i, ri := range r {
			if ri >= -cfg.lower*std && ri <= cfg.upper*std {
				next[i] = 1
			}
		}

		if sameSupport(w, next) || count(next) < p.model.NumParams() {
			break
		}

		refit, err := p.solve(next)
		if err != nil {
			return Result{}, err
		}

		w, params = next, refit
		iter++
	}

	return p.result(params, w, iter), nil
}

func (p problem) normalisedResiduals(dst, params []float64) {
	for i, xi := range p.x {
		dst[i] = (p.y[i] - p.model.Eval(params, xi)) / p.yerr[i]
	}
}

// scale is the largest normalised data magnitude, used to size the residual floor.
func (p problem) scale() float64 {
	s := 0.0
	for i, yi := range p.y {
		s = math.Max(s, math.Abs(yi/p.yerr[i]))
	}

	return math.Max(s, 1)
}

func (p problem) result(params, w []float64, iter int) Result {
	n := len(p.x)
	mask := make([]bool, n)

	var sumSq, chi float64

	kept := 0

	for i, xi := range p.x {
		if w[i] <= 0 {
			continue
		}

		mask[i] = true
		kept++

		d := p.y[i] - p.model.Eval(params, xi)
		sumSq += d * d
		chi += (d / p.yerr[i]) * (d / p.yerr[i])
	}

	rms := 0.0
	if kept > 0 {
		rms = math.Sqrt(sumSq / float64(kept))
	}

	return Result{
		Params:     params,
		Mask:       mask,
		Weights:    w,
		Iterations: iter,
		RMS:        rms,
		ChiSq:      chi,
	}
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}

	return out
}

func count(w []float64) int {
	n := 0

	for _, v := range w {
		if v > 0 {
			n++
		}
	}

	return n
}

func sameSupport(a, b []float64) bool {
	for i := range a {
		if (a[i] > 0) != (b[i] > 0) {
			return false
		}
	}

	return true
}

func maxAbsChange(a, b []float64) float64 {
	m := 0.0
	for i := range a {
		m = math.Max(m, math.Abs(a[i]-b[i]))
	}

	return m
}
