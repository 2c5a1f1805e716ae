package linematch

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
	"github.com/cwbudde/algo-wavecal/calib/linelist"
	"github.com/cwbudde/algo-wavecal/calib/wavesol"
	"github.com/cwbudde/algo-wavecal/dsp/detect"
	"github.com/cwbudde/algo-wavecal/dsp/window"
)

// Reasons a reference line is skipped. All wrap calerr.ErrMatch.
var (
	ErrOutOfRange   = fmt.Errorf("linematch: line outside the spectrum: %w", calerr.ErrMatch)
	ErrNoPeak       = fmt.Errorf("linematch: no free peak within tolerance: %w", calerr.ErrMatch)
	ErrRankMismatch = fmt.Errorf("linematch: intensity rank differs from flux rank: %w", calerr.ErrMatch)
	ErrDiscrepancy  = fmt.Errorf("linematch: wavelength discrepancy too large: %w", calerr.ErrMatch)
)

// MatchError records why one reference line was not matched.
type MatchError struct {
	Wavelength float64
	Err        error
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("line %.3f: %v", e.Wavelength, e.Err)
}

func (e *MatchError) Unwrap() error { return e.Err }

// Pair is an accepted (pixel, wavelength) match.
type Pair struct {
	Pixel      float64
	Wavelength float64
	Flux       float64
	Intensity  float64
}

// MatchReport lists the accepted pairs in pixel order and the skipped lines
// in the order they were tried.
type MatchReport struct {
	Pairs   []Pair
	Skipped []*MatchError
}

// MatchConfig controls CrossLineMatch. Zero fields take the values of
// DefaultMatchConfig.
type MatchConfig struct {
	// Window is the half width in samples of the region realigned around
	// each predicted line position.
	Window int
	// Shift is the local zero-point search half range in pixels.
	Shift float64
	// Steps is the number of offsets tried in the local search.
	Steps int
	// TaperWindow is the taper applied to the window before correlation.
	TaperWindow window.Type
	// Taper is the tapered fraction of a Tukey TaperWindow.
	Taper float64
	// PixelTolerance is the largest accepted distance between the realigned
	// prediction and the peak.
	PixelTolerance float64
	// MaxDelta is the largest accepted |sol(peak) - wavelength|.
	MaxDelta float64
	// SkipRankCheck disables the brightness rank comparison.
	SkipRankCheck bool
}

// DefaultMatchConfig returns the default matching parameters.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		Window:         20,
		Shift:          3,
		Steps:          61,
		TaperWindow:    window.TypeTukey,
		Taper:          0.5,
		PixelTolerance: 1.5,
		MaxDelta:       10,
	}
}

func (c MatchConfig) withDefaults() MatchConfig {
	d := DefaultMatchConfig()

	if c.Window <= 0 {
		c.Window = d.Window
	}

	if !(c.Shift > 0) {
		c.Shift = d.Shift
	}

	if c.Steps <= 0 {
		c.Steps = d.Steps
	}

	if !(c.Taper > 0) || c.Taper > 1 {
		c.Taper = d.Taper
	}

	if !(c.PixelTolerance > 0) {
		c.PixelTolerance = d.PixelTolerance
	}

	if !(c.MaxDelta > 0) {
		c.MaxDelta = d.MaxDelta
	}

	return c
}

// CrossLineMatch pairs reference lines with detected peaks. Lines are
// de-duplicated by wavelength and tried brightest first; within one call
// every peak and every wavelength is used at most once. x must be ascending.
func CrossLineMatch(
	ctx context.Context,
	x, f []float64,
	peaks []detect.Peak,
	lines []linelist.Line,
	syn Synthetic,
	sol wavesol.Solution,
	cfg MatchConfig,
) (MatchReport, error) {
	if len(x) != len(f) {
		return MatchReport{}, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(x), len(f))
	}

	cfg = cfg.withDefaults()
	unique := linelist.Dedup(lines)
	usedPeak := make([]bool, len(peaks))

	var report MatchReport

	skip := func(w float64, err error) {
		report.Skipped = append(report.Skipped, &MatchError{Wavelength: w, Err: err})
	}

	for _, line := range linelist.Brightest(unique) {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		px, err := sol.InvValue(line.Wavelength)
		if err != nil || len(x) == 0 || px < x[0] || px > x[len(x)-1] {
			skip(line.Wavelength, ErrOutOfRange)
			continue
		}

		ic := sort.SearchFloat64s(x, px)
		lo := max(ic-cfg.Window, 0)
		hi := min(ic+cfg.Window+1, len(x))

		if hi-lo < 5 {
			skip(line.Wavelength, ErrOutOfRange)
			continue
		}

		xw := x[lo:hi]

		taper, err := window.Taper(cfg.TaperWindow, len(xw), cfg.Taper)
		if err != nil {
			return report, err
		}

		shift := cfg.Shift * math.Abs(sol.Dispersion(px))

		dz, _, err := offsetSearch(ctx, sol.Values(xw), f[lo:hi], syn, shift, cfg.Steps, taper)
		if err != nil {
			return report, err
		}

		target := px
		if p, err := sol.InvValue(line.Wavelength - dz); err == nil {
			target = p
		}

		j := nearestFree(peaks, usedPeak, target)
		if j < 0 || math.Abs(peaks[j].Pixel-target) > cfg.PixelTolerance {
			skip(line.Wavelength, ErrNoPeak)
			continue
		}

		peak := peaks[j]

		if !cfg.SkipRankCheck && line.HasIntensity() {
			w0, w1 := sol.Value(xw[0])+dz, sol.Value(xw[len(xw)-1])+dz
			if w0 > w1 {
				w0, w1 = w1, w0
			}

			if lineRank(unique, line, w0, w1) != peakRank(peaks, peak, xw[0], xw[len(xw)-1]) {
				skip(line.Wavelength, ErrRankMismatch)
				continue
			}
		}

		if math.Abs(sol.Value(peak.Pixel)-line.Wavelength) > cfg.MaxDelta {
			skip(line.Wavelength, ErrDiscrepancy)
			continue
		}

		usedPeak[j] = true
		report.Pairs = append(report.Pairs, Pair{
			Pixel:      peak.Pixel,
			Wavelength: line.Wavelength,
			Flux:       peak.Flux,
			Intensity:  line.Intensity,
		})
	}

	slices.SortFunc(report.Pairs, func(a, b Pair) int { return cmp.Compare(a.Pixel, b.Pixel) })

	return report, nil
}

func nearestFree(peaks []detect.Peak, used []bool, target float64) int {
	best := -1
	bestDist := math.Inf(1)

	for j, p := range peaks {
		if used[j] {
			continue
		}

		if d := math.Abs(p.Pixel - target); d < bestDist {
			best, bestDist = j, d
		}
	}

	return best
}

// lineRank counts listed lines in [w0, w1] brighter than line.
func lineRank(lines []linelist.Line, line linelist.Line, w0, w1 float64) int {
	n := 0

	for _, l := range lines {
		if l.Wavelength >= w0 && l.Wavelength <= w1 && l.Intensity > line.Intensity {
			n++
		}
	}

	return n
}

// peakRank counts peaks in [x0, x1] brighter than peak.
func peakRank(peaks []detect.Peak, peak detect.Peak, x0, x1 float64) int {
	n := 0

	for _, p := range peaks {
		if p.Pixel >= x0 && p.Pixel <= x1 && p.Flux > peak.Flux {
			n++
		}
	}

	return n
}

// Pixels returns the pixel positions of pairs.
func Pixels(pairs []Pair) []float64 {
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		out[i] = p.Pixel
	}

	return out
}

// Wavelengths returns the wavelengths of pairs.
func Wavelengths(pairs []Pair) []float64 {
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		out[i] = p.Wavelength
	}

	return out
}
