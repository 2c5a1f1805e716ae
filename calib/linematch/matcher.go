package linematch

import (
	"context"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
	"github.com/cwbudde/algo-wavecal/calib/linelist"
	"github.com/cwbudde/algo-wavecal/calib/wavesol"
	"github.com/cwbudde/algo-wavecal/dsp/detect"
)

// ErrBadConfig is returned by NewMatcher for unusable settings.
var ErrBadConfig = fmt.Errorf("linematch: invalid matcher config: %w", calerr.ErrConfiguration)

// Config controls a Matcher.
type Config struct {
	// Sigma and Niter set the detection threshold (see detect.Detect).
	Sigma float64
	Niter int
	// Detect holds extra detector options.
	Detect []detect.Option

	// Res is the instrumental FWHM in wavelength units.
	Res float64
	// Dres is the synthetic grid step; zero selects Res/10.
	Dres float64
	// Margin extends the synthetic range beyond the reference lines; zero
	// selects 5*Res.
	Margin float64

	// XCor is the global coefficient search run before line matching.
	// It is skipped when no Dcoef entry is positive.
	XCor XCorConfig
	// Match controls CrossLineMatch.
	Match MatchConfig
	// Iterations is the number of match and fit rounds; rejected pairs are
	// dropped from the line list between rounds.
	Iterations int
}

// DefaultConfig returns the default matcher settings for an instrument with
// resolution res.
func DefaultConfig(res float64) Config {
	return Config{
		Sigma:      5,
		Niter:      5,
		Res:        res,
		XCor:       DefaultXCorConfig(),
		Match:      DefaultMatchConfig(),
		Iterations: 3,
	}
}

// Result is the outcome of Matcher.Match.
type Result struct {
	Solution    wavesol.Solution
	Pairs       []Pair
	Rejected    []Pair
	Skipped     []*MatchError
	Peaks       []detect.Peak
	Correlation float64
}

// RMS returns the residual RMS of the fitted solution.
func (r Result) RMS() float64 { return r.Solution.RMS() }

// Matcher runs detection, correlation and line matching against one
// reference line list. The synthetic spectrum is built on first use and
// reused afterwards. A Matcher is not safe for concurrent use.
type Matcher struct {
	cfg   Config
	lines []linelist.Line
	syn   *Synthetic
}

// NewMatcher validates cfg and returns a Matcher for lines.
func NewMatcher(lines []linelist.Line, cfg Config) (*Matcher, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty line list", ErrBadConfig)
	}

	if !(cfg.Res > 0) {
		return nil, fmt.Errorf("%w: resolution %v", ErrBadConfig, cfg.Res)
	}

	if !(cfg.Sigma > 0) {
		return nil, fmt.Errorf("%w: sigma %v", ErrBadConfig, cfg.Sigma)
	}

	if cfg.Dres <= 0 {
		cfg.Dres = cfg.Res / 10
	}

	if cfg.Margin <= 0 {
		cfg.Margin = 5 * cfg.Res
	}

	if cfg.Iterations <= 0 {
		cfg.Iterations = 1
	}

	if cfg.XCor.Ndstep <= 0 {
		cfg.XCor.Ndstep = DefaultXCorConfig().Ndstep
	}

	cfg.Match = cfg.Match.withDefaults()

	return &Matcher{cfg: cfg, lines: linelist.Dedup(lines)}, nil
}

// Lines returns a copy of the de-duplicated reference lines.
func (m *Matcher) Lines() []linelist.Line { return slices.Clone(m.lines) }

// Config returns the effective configuration.
func (m *Matcher) Config() Config { return m.cfg }

// Synthetic returns the synthetic spectrum, building it on first call with
// its maximum scaled to peak.
func (m *Matcher) Synthetic(peak float64) (Synthetic, error) {
	if m.syn != nil {
		return *m.syn, nil
	}

	ws := linelist.Wavelengths(m.lines)
	wmin := floats.Min(ws) - m.cfg.Margin
	wmax := floats.Max(ws) + m.cfg.Margin

	syn, err := MakeArtificial(m.lines, wmin, wmax, m.cfg.Res, m.cfg.Dres, peak)
	if err != nil {
		return Synthetic{}, err
	}

	m.syn = &syn

	return syn, nil
}

// ZeroPoint refines the constant term of guess by correlating f with the
// synthetic spectrum over +/- shift pixels.
func (m *Matcher) ZeroPoint(ctx context.Context, x, f []float64, guess wavesol.Solution, shift float64, ndstep int) (XCorResult, error) {
	if len(x) != len(f) || len(x) == 0 {
		return XCorResult{}, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(x), len(f))
	}

	syn, err := m.Synthetic(peakOf(f))
	if err != nil {
		return XCorResult{}, err
	}

	mid := 0.5 * (x[0] + x[len(x)-1])

	return ZeroPoint(ctx, x, f, syn, guess, shift*math.Abs(guess.Dispersion(mid)), ndstep)
}

// Match solves one spectrum starting from guess: detect peaks, optionally
// search the coefficient grid, then alternate CrossLineMatch and FindFit.
func (m *Matcher) Match(ctx context.Context, x, f []float64, guess wavesol.Solution) (Result, error) {
	if len(x) != len(f) || len(x) == 0 {
		return Result{}, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(x), len(f))
	}

	syn, err := m.Synthetic(peakOf(f))
	if err != nil {
		return Result{}, err
	}

	peaks, err := detect.Detect(x, f, m.cfg.Sigma, m.cfg.Niter, m.cfg.Detect...)
	if err != nil {
		return Result{}, err
	}

	res := Result{Solution: guess, Peaks: peaks}

	if need := guess.Order() + 1; len(peaks) < need {
		return res, fmt.Errorf("%w: %d peaks, need %d", ErrTooFewMatches, len(peaks), need)
	}

	sol := guess

	if hasPerturbation(m.cfg.XCor.Dcoef) {
		xr, err := FindXCor(ctx, x, f, syn, sol, m.cfg.XCor)
		if err != nil {
			return res, err
		}

		sol = xr.Solution
		res.Correlation = xr.Correlation
	}

	active := m.lines

	for range m.cfg.Iterations {
		report, err := CrossLineMatch(ctx, x, f, peaks, active, syn, sol, m.cfg.Match)
		if err != nil {
			return res, err
		}

		res.Skipped = report.Skipped

		fr, err := FindFit(report.Pairs, sol)
		if err != nil {
			return res, err
		}

		sol = fr.Solution
		res.Solution = fr.Solution
		res.Pairs = fr.Accepted
		res.Rejected = append(res.Rejected, fr.Rejected...)

		if len(fr.Rejected) == 0 {
			continue
		}

		active = withoutWavelengths(active, fr.Rejected)
	}

	return res, nil
}

func hasPerturbation(dcoef []float64) bool {
	for _, d := range dcoef {
		if d > 0 {
			return true
		}
	}

	return false
}

func peakOf(f []float64) float64 {
	if len(f) == 0 {
		return 0
	}

	return floats.Max(f)
}

func withoutWavelengths(lines []linelist.Line, drop []Pair) []linelist.Line {
	gone := make(map[float64]bool, len(drop))
	for _, p := range drop {
		gone[p.Wavelength] = true
	}

	out := make([]linelist.Line, 0, len(lines))

	for _, l := range lines {
		if !gone[l.Wavelength] {
			out = append(out, l)
		}
	}

	return out
}
