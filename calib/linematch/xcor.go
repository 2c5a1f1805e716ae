package linematch

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"runtime"
	"slices"

	"github.com/cwbudde/algo-vecmath"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
	"github.com/cwbudde/algo-wavecal/calib/wavesol"
	"github.com/cwbudde/algo-wavecal/fit"
)

// DefaultMaxCombinations bounds the number of grid points scored by one search.
const DefaultMaxCombinations = 1 << 20

// topCandidates is the number of best grid points used for parabola refinement.
const topCandidates = 5

// Errors returned by the correlation search.
var (
	ErrLengthMismatch      = fmt.Errorf("linematch: x and f differ in length: %w", calerr.ErrConfiguration)
	ErrBadXCorConfig       = fmt.Errorf("linematch: invalid cross-correlation config: %w", calerr.ErrConfiguration)
	ErrTooManyCombinations = fmt.Errorf("linematch: coefficient grid exceeds MaxCombinations: %w", calerr.ErrConfiguration)
)

// XCorConfig controls FindXCor.
type XCorConfig struct {
	// Dcoef is the half range searched around each coefficient. Entries <= 0
	// and coefficients beyond len(Dcoef) are held fixed.
	Dcoef []float64
	// Ndstep is the number of grid values per perturbed coefficient,
	// including both ends of the range.
	Ndstep int
	// MaxCombinations bounds Ndstep^(number of perturbed coefficients).
	// Zero selects DefaultMaxCombinations.
	MaxCombinations int
	// Workers is the number of scoring goroutines. Zero selects GOMAXPROCS.
	Workers int
}

// DefaultXCorConfig returns a zero-point and dispersion search template; the
// caller sets Dcoef.
func DefaultXCorConfig() XCorConfig {
	return XCorConfig{Ndstep: 21, MaxCombinations: DefaultMaxCombinations}
}

// XCorResult is the outcome of a correlation search.
type XCorResult struct {
	Solution    wavesol.Solution
	Correlation float64
	Evaluated   int
}

// FindXCor searches the coefficient grid around sol for the solution whose
// resampled synthetic spectrum correlates best with f.
func FindXCor(ctx context.Context, x, f []float64, syn Synthetic, sol wavesol.Solution, cfg XCorConfig) (XCorResult, error) {
	if len(x) != len(f) {
		return XCorResult{}, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(x), len(f))
	}

	coef := sol.Coef()
	if len(cfg.Dcoef) > len(coef) {
		return XCorResult{}, fmt.Errorf("%w: %d perturbations for %d coefficients", ErrBadXCorConfig, len(cfg.Dcoef), len(coef))
	}

	if cfg.Ndstep < 1 {
		return XCorResult{}, fmt.Errorf("%w: ndstep %d", ErrBadXCorConfig, cfg.Ndstep)
	}

	var axes []axis

	for i, d := range cfg.Dcoef {
		if d > 0 {
			axes = append(axes, axis{index: i, values: linspace(coef[i]-d, coef[i]+d, cfg.Ndstep)})
		}
	}

	newScorer := func() func([]float64) float64 {
		g := make([]float64, len(x))

		return func(c []float64) float64 {
			s, err := sol.SetCoef(c)
			if err != nil {
				return math.Inf(-1)
			}

			for i, xi := range x {
				g[i] = syn.At(s.Value(xi))
			}

			return NCor(f, g)
		}
	}

	best, corr, n, err := gridSearch(ctx, coef, axes, cfg.Workers, cfg.MaxCombinations, newScorer)
	if err != nil {
		return XCorResult{}, err
	}

	out, err := sol.SetCoef(best)
	if err != nil {
		return XCorResult{}, err
	}

	return XCorResult{Solution: out, Correlation: corr, Evaluated: n}, nil
}

// ZeroPoint searches a constant wavelength offset in [-shift, shift] and
// returns sol shifted by the offset that maximises the correlation.
func ZeroPoint(ctx context.Context, x, f []float64, syn Synthetic, sol wavesol.Solution, shift float64, ndstep int) (XCorResult, error) {
	if len(x) != len(f) {
		return XCorResult{}, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(x), len(f))
	}

	if !(shift > 0) || ndstep < 1 {
		return XCorResult{}, fmt.Errorf("%w: shift %v ndstep %d", ErrBadXCorConfig, shift, ndstep)
	}

	dz, corr, err := offsetSearch(ctx, sol.Values(x), f, syn, shift, ndstep, nil)
	if err != nil {
		return XCorResult{}, err
	}

	return XCorResult{Solution: sol.Shift(dz), Correlation: corr, Evaluated: ndstep}, nil
}

// offsetSearch finds the offset dz maximising NCor(f*taper, syn(ws+dz)*taper).
// taper may be nil.
func offsetSearch(ctx context.Context, ws, f []float64, syn Synthetic, shift float64, ndstep int, taper []float64) (float64, float64, error) {
	if taper != nil {
		tf := make([]float64, len(f))
		vecmath.MulBlock(tf, f, taper)
		f = tf
	}

	newScorer := func() func([]float64) float64 {
		shifted := make([]float64, len(ws))
		g := make([]float64, len(ws))

		return func(c []float64) float64 {
			for i, w := range ws {
				shifted[i] = w + c[0]
			}

			syn.SampleTo(g, shifted)

			if taper != nil {
				vecmath.MulBlockInPlace(g, taper)
			}

			return NCor(f, g)
		}
	}

	axes := []axis{{index: 0, values: linspace(-shift, shift, ndstep)}}

	best, corr, _, err := gridSearch(ctx, []float64{0}, axes, 1, 0, newScorer)
	if err != nil {
		return 0, 0, err
	}

	return best[0], corr, nil
}

type axis struct {
	index  int
	values []float64
}

func linspace(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{0.5 * (lo + hi)}
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}

	return out
}

// gridSearch scores every point of the Cartesian product of axes (other
// coefficients fixed at center), refines the best point and returns it with
// its score and the number of points scored. newScorer is called once per
// worker.
func gridSearch(
	ctx context.Context,
	center []float64,
	axes []axis,
	workers, maxComb int,
	newScorer func() func([]float64) float64,
) ([]float64, float64, int, error) {
	if maxComb <= 0 {
		maxComb = DefaultMaxCombinations
	}

	total := 1

	for _, a := range axes {
		if total > maxComb/len(a.values) {
			return nil, 0, 0, fmt.Errorf("%w: %d^%d > %d", ErrTooManyCombinations, len(a.values), len(axes), maxComb)
		}

		total *= len(a.values)
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	workers = min(workers, total)
	scores := make([]float64, total)
	chunk := (total + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)

	for lo := 0; lo < total; lo += chunk {
		hi := min(lo+chunk, total)

		g.Go(func() error {
			score := newScorer()
			c := slices.Clone(center)

			for idx := lo; idx < hi; idx++ {
				if (idx-lo)%64 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}

				decode(c, axes, idx)
				scores[idx] = score(c)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, 0, err
	}

	// A cancelled context aborts even when every chunk finished.
	if err := ctx.Err(); err != nil {
		return nil, 0, 0, err
	}

	bi := argmax(scores)
	best := slices.Clone(center)
	decode(best, axes, bi)

	refined := refine(best, axes, scores, bi)

	corr := scores[bi]
	if refined {
		corr = newScorer()(best)
	}

	return best, corr, total, nil
}

// decode writes the grid point idx into dst. The last axis varies fastest.
func decode(dst []float64, axes []axis, idx int) {
	for k := len(axes) - 1; k >= 0; k-- {
		n := len(axes[k].values)
		dst[axes[k].index] = axes[k].values[idx%n]
		idx /= n
	}
}

// digit returns the position along axis k of grid point idx.
func digit(axes []axis, k, idx int) int {
	for j := len(axes) - 1; j > k; j-- {
		idx /= len(axes[j].values)
	}

	return idx % len(axes[k].values)
}

// argmax returns the lowest index of the largest score. NaN never wins.
func argmax(scores []float64) int {
	bi := 0

	for i, s := range scores {
		if s > scores[bi] || (math.IsNaN(scores[bi]) && !math.IsNaN(s)) {
			bi = i
		}
	}

	return bi
}

// refine replaces each perturbed coefficient of best with the vertex of a
// parabola through the top candidates when the vertex lies within one grid
// step. It reports whether any coefficient changed.
func refine(best []float64, axes []axis, scores []float64, bi int) bool {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}

	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(scores[b], scores[a]) })
	top := order[:min(topCandidates, len(order))]

	changed := false

	for k, a := range axes {
		if len(a.values) < 3 {
			continue
		}

		step := a.values[1] - a.values[0]
		b := digit(axes, k, bi)

		ts := make([]float64, 0, len(top))
		ys := make([]float64, 0, len(top))
		distinct := map[int]bool{}

		for _, idx := range top {
			d := digit(axes, k, idx)
			distinct[d] = true
			ts = append(ts, float64(d-b))
			ys = append(ys, scores[idx])
		}

		if len(distinct) < 3 {
			continue
		}

		res, err := fit.Fit(parabola{}, make([]float64, 3), ts, ys, nil, fit.WithMethod(fit.LeastSquares))
		if err != nil {
			continue
		}

		c2 := res.Params[2]
		if !(c2 < 0) {
			continue
		}

		t := -res.Params[1] / (2 * c2)
		if math.Abs(t) > 1 {
			continue
		}

		best[a.index] = a.values[b] + t*step
		changed = true
	}

	return changed
}

// parabola is c0 + c1*t + c2*t^2 in grid-step units.
type parabola struct{}

func (parabola) NumParams() int { return 3 }

func (parabola) Eval(p []float64, t float64) float64 { return p[0] + t*(p[1]+t*p[2]) }

func (parabola) Basis(dst []float64, t float64) {
	dst[0], dst[1], dst[2] = 1, t, t*t
}
