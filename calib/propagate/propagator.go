package propagate

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
	"github.com/cwbudde/algo-wavecal/calib/linematch"
	"github.com/cwbudde/algo-wavecal/calib/wavesol"
)

// Propagation errors.
var (
	ErrBadConfig   = fmt.Errorf("propagate: invalid config: %w", calerr.ErrConfiguration)
	ErrRMSTooLarge = fmt.Errorf("propagate: fit RMS above threshold: %w", calerr.ErrFit)
)

// State is the calibration state of a row during a run.
type State int

const (
	Unvisited State = iota
	Fitting
	Accepted
	Rejected
)

func (s State) String() string {
	switch s {
	case Unvisited:
		return "unvisited"
	case Fitting:
		return "fitting"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Auto selects the midpoint of the visited rows for Config.Seed and the
// last row for Config.RowMax.
const Auto = -1

// Config controls a propagation run.
type Config struct {
	// Seed is the first row solved.
	Seed int
	// Step is the row increment of the outward walk.
	Step int
	// RowMin and RowMax bound the rows visited, inclusive.
	RowMin, RowMax int
	// MaxRMS is the exclusive upper bound on an accepted row's fit RMS.
	MaxRMS float64
	// SeedIterations is the number of zero-point refinements of the caller's
	// guess on the seed row before the full match.
	SeedIterations int
	// SeedShift is the zero-point search half range in pixels.
	SeedShift float64
	// SeedSteps is the number of offsets tried per refinement.
	SeedSteps int
}

// DefaultConfig returns a configuration covering the whole image from its
// midpoint.
func DefaultConfig() Config {
	return Config{
		Seed:           Auto,
		Step:           1,
		RowMin:         0,
		RowMax:         Auto,
		MaxRMS:         1,
		SeedIterations: 1,
		SeedShift:      10,
		SeedSteps:      201,
	}
}

// SeedRow returns the first row solved on an image with the given number
// of rows. An Auto seed is the midpoint of [RowMin, RowMax], rounded up.
func (c Config) SeedRow(rows int) int {
	if c.Seed != Auto {
		return c.Seed
	}

	rowMax := c.RowMax
	if rowMax == Auto {
		rowMax = rows - 1
	}

	return c.RowMin + (rowMax-c.RowMin+1)/2
}

func (c Config) resolve(rows int) (Config, error) {
	if rows <= 0 {
		return c, fmt.Errorf("%w: image has no rows", ErrBadConfig)
	}

	c.Seed = c.SeedRow(rows)

	if c.RowMax == Auto {
		c.RowMax = rows - 1
	}

	switch {
	case c.Step <= 0:
		return c, fmt.Errorf("%w: step %d", ErrBadConfig, c.Step)
	case c.RowMin < 0 || c.RowMax >= rows || c.RowMin > c.RowMax:
		return c, fmt.Errorf("%w: rows [%d, %d] of %d", ErrBadConfig, c.RowMin, c.RowMax, rows)
	case c.Seed < c.RowMin || c.Seed > c.RowMax:
		return c, fmt.Errorf("%w: seed %d outside [%d, %d]", ErrBadConfig, c.Seed, c.RowMin, c.RowMax)
	case !(c.MaxRMS > 0):
		return c, fmt.Errorf("%w: max rms %v", ErrBadConfig, c.MaxRMS)
	case c.SeedIterations < 0:
		return c, fmt.Errorf("%w: seed iterations %d", ErrBadConfig, c.SeedIterations)
	case c.SeedIterations > 0 && (!(c.SeedShift > 0) || c.SeedSteps < 1):
		return c, fmt.Errorf("%w: seed shift %v with %d steps", ErrBadConfig, c.SeedShift, c.SeedSteps)
	}

	return c, nil
}

// Option configures a Propagator.
type Option func(*Propagator)

// WithObserver sets the event sink. Nil is ignored.
func WithObserver(o Observer) Option {
	return func(p *Propagator) {
		if o != nil {
			p.obs = o
		}
	}
}

// Propagator calibrates an image row by row with one Matcher. It owns the
// ImageSolution of the current run and is not safe for concurrent use.
type Propagator struct {
	matcher *linematch.Matcher
	cfg     Config
	obs     Observer
	state   map[int]State
}

// New returns a Propagator using m for every row.
func New(m *linematch.Matcher, cfg Config, opts ...Option) (*Propagator, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil matcher", ErrBadConfig)
	}

	p := &Propagator{matcher: m, cfg: cfg, obs: NopObserver{}, state: make(map[int]State)}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p, nil
}

// State returns the state of row k in the current or last run.
func (p *Propagator) State(k int) State {
	return p.state[k]
}

// Run calibrates src starting from guess and returns the rows that passed.
// Row failures are reported to the observer and do not stop the run.
// Configuration errors stop it. On cancellation the rows accepted so far are
// returned with ctx.Err().
func (p *Propagator) Run(ctx context.Context, src SpectrumProvider, guess wavesol.Solution) (*ImageSolution, error) {
	out := NewImageSolution()

	cfg, err := p.cfg.resolve(src.Rows())
	if err != nil {
		return out, err
	}

	p.state = make(map[int]State)
	order := visitOrder(cfg)
	seed := guess

	for i, k := range order {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		p.state[k] = Fitting

		var res linematch.Result

		if i == 0 {
			res, err = p.solveSeed(ctx, src, k, guess, cfg)
		} else {
			res, err = p.solveRow(ctx, src, k, p.startFor(out, k, cfg.Seed, seed))
		}

		switch {
		case ctx.Err() != nil:
			p.state[k] = Unvisited
			return out, ctx.Err()
		case err != nil && errors.Is(err, calerr.ErrConfiguration):
			p.state[k] = Rejected
			return out, fmt.Errorf("propagate: row %d: %w", k, err)
		case err == nil && !(res.RMS() < cfg.MaxRMS):
			err = fmt.Errorf("%w: %.4g >= %.4g", ErrRMSTooLarge, res.RMS(), cfg.MaxRMS)
		}

		if err != nil {
			p.state[k] = Rejected
			p.obs.OnRowRejected(k, err)
		} else {
			out.Add(k, res.Solution)
			p.state[k] = Accepted

			if i == 0 {
				seed = res.Solution
			}

			p.obs.OnRowAccepted(RowResult{
				Row:         k,
				Solution:    res.Solution,
				Lines:       len(res.Pairs),
				Peaks:       len(res.Peaks),
				Correlation: res.Correlation,
			})
		}

		p.obs.OnProgress(i+1, len(order))
	}

	return out, nil
}

// startFor picks the initial guess for row k: the nearest accepted row, or
// the seed solution when the seed row is at least as close.
func (p *Propagator) startFor(out *ImageSolution, k, seedRow int, seed wavesol.Solution) wavesol.Solution {
	r, ok := out.Nearest(k)
	if !ok || abs(r-k) > abs(seedRow-k) {
		return seed
	}

	sol, _ := out.Get(r)

	return sol
}

func (p *Propagator) solveSeed(ctx context.Context, src SpectrumProvider, k int, guess wavesol.Solution, cfg Config) (linematch.Result, error) {
	x, f, err := src.Row(k)
	if err != nil {
		return linematch.Result{}, err
	}

	sol := guess

	for range cfg.SeedIterations {
		zp, err := p.matcher.ZeroPoint(ctx, x, f, sol, cfg.SeedShift, cfg.SeedSteps)
		if err != nil {
			return linematch.Result{}, err
		}

		sol = zp.Solution
	}

	return p.matcher.Match(ctx, x, f, sol)
}

func (p *Propagator) solveRow(ctx context.Context, src SpectrumProvider, k int, start wavesol.Solution) (linematch.Result, error) {
	x, f, err := src.Row(k)
	if err != nil {
		return linematch.Result{}, err
	}

	return p.matcher.Match(ctx, x, f, start)
}

// visitOrder lists the seed followed by seed-i*step, seed+i*step for
// i = 1, 2, ... while either lies within [RowMin, RowMax].
func visitOrder(cfg Config) []int {
	order := []int{cfg.Seed}

	for i := 1; ; i++ {
		down := cfg.Seed - i*cfg.Step
		up := cfg.Seed + i*cfg.Step

		if down < cfg.RowMin && up > cfg.RowMax {
			break
		}

		if down >= cfg.RowMin {
			order = append(order, down)
		}

		if up <= cfg.RowMax {
			order = append(order, up)
		}
	}

	return order
}
