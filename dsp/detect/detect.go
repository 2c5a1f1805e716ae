package detect

import (
	"fmt"
	"iter"
	"math"
	"slices"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
	"github.com/cwbudde/algo-wavecal/dsp/conv"
	"github.com/cwbudde/algo-wavecal/dsp/window"
	"github.com/cwbudde/algo-wavecal/stats/robust"
)

// Errors returned by the detector.
var (
	ErrLengthMismatch = fmt.Errorf("detect: x and f differ in length: %w", calerr.ErrConfiguration)
	ErrTooShort       = fmt.Errorf("detect: spectrum too short: %w", calerr.ErrConfiguration)
	ErrBadSigma       = fmt.Errorf("detect: sigma must be positive: %w", calerr.ErrConfiguration)
)

// Peak is a detected feature.
type Peak struct {
	// Pixel is the refined position in the units of x.
	Pixel float64
	// Flux is the raw flux at Index.
	Flux float64
	// Index is the integer candidate position.
	Index int
}

// Option configures detection.
type Option func(*config)

type config struct {
	widths   []float64
	halfWin  int
	clip     float64
	flatten  int
	minFlux  float64
	hasFloor bool
}

func defaultConfig() config {
	return config{
		widths:  []float64{1.5, 3, 6},
		halfWin: 3,
		clip:    3,
	}
}

// WithWidths sets the matched-filter FWHMs in samples. Non-positive widths
// are dropped; an empty result keeps the defaults.
func WithWidths(widths ...float64) Option {
	return func(c *config) {
		var ok []float64

		for _, w := range widths {
			if w > 0 {
				ok = append(ok, w)
			}
		}

		if len(ok) > 0 {
			c.widths = ok
		}
	}
}

// WithCentroidHalfWidth sets m in the derivative kernel. Values below 1 are ignored.
func WithCentroidHalfWidth(m int) Option {
	return func(c *config) {
		if m >= 1 {
			c.halfWin = m
		}
	}
}

// WithClip sets the background clipping level in standard deviations.
func WithClip(k float64) Option {
	return func(c *config) {
		if k > 0 {
			c.clip = k
		}
	}
}

// WithFlatten subtracts a running-median continuum of the given half width
// before detection. Zero disables flattening.
func WithFlatten(halfWidth int) Option {
	return func(c *config) {
		if halfWidth >= 0 {
			c.flatten = halfWidth
		}
	}
}

// WithMinFlux sets an absolute raw-flux floor in addition to the clipped threshold.
func WithMinFlux(v float64) Option {
	return func(c *config) {
		c.minFlux = v
		c.hasFloor = true
	}
}

// DetectLines returns the refined peak positions in ascending order. The
// sequence is evaluated lazily and can be ranged over once; later ranges
// yield nothing.
func DetectLines(x, f []float64, sigma float64, niter int, opts ...Option) (iter.Seq[float64], error) {
	d, err := newDetector(x, f, sigma, niter, opts)
	if err != nil {
		return nil, err
	}

	consumed := false

	return func(yield func(float64) bool) {
		if consumed {
			return
		}

		consumed = true

		for _, c := range d.candidates {
			if !yield(d.centroid(c)) {
				return
			}
		}
	}, nil
}

// Detect returns all refined peaks in ascending order of position.
func Detect(x, f []float64, sigma float64, niter int, opts ...Option) ([]Peak, error) {
	d, err := newDetector(x, f, sigma, niter, opts)
	if err != nil {
		return nil, err
	}

	peaks := make([]Peak, len(d.candidates))
	for i, c := range d.candidates {
		peaks[i] = Peak{Pixel: d.centroid(c), Flux: d.f[c], Index: c}
	}

	return peaks, nil
}

// Pixels extracts the positions of peaks.
func Pixels(peaks []Peak) []float64 {
	out := make([]float64, len(peaks))
	for i, p := range peaks {
		out[i] = p.Pixel
	}

	return out
}

type detector struct {
	x, f       []float64
	halfWin    int
	candidates []int
}

func newDetector(x, f []float64, sigma float64, niter int, opts []Option) (*detector, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if len(x) != len(f) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(x), len(f))
	}

	if len(f) < 2*cfg.halfWin+2 {
		return nil, fmt.Errorf("%w: %d samples", ErrTooShort, len(f))
	}

	if !(sigma > 0) {
		return nil, fmt.Errorf("%w: %v", ErrBadSigma, sigma)
	}

	if cfg.flatten > 0 {
		f = Flatten(f, cfg.flatten)
	}

	d := &detector{x: x, f: f, halfWin: cfg.halfWin}

	thresh := threshold(f, sigma, cfg.clip, niter)
	if cfg.hasFloor {
		thresh = math.Max(thresh, cfg.minFlux)
	}

	seen := make(map[int]bool)

	for _, width := range cfg.widths {
		smoothed, err := matchedFilter(f, width)
		if err != nil {
			return nil, err
		}

		st := threshold(smoothed, sigma, cfg.clip, niter)

		for j := 1; j < len(f)-1; j++ {
			s := smoothed[j]
			if s > smoothed[j-1] && s >= smoothed[j+1] && s > st && f[j] > thresh {
				seen[j] = true
			}
		}
	}

	for j := range seen {
		d.candidates = append(d.candidates, j)
	}

	slices.Sort(d.candidates)

	return d, nil
}

func threshold(f []float64, sigma, clip float64, niter int) float64 {
	bg := robust.SigmaClip(f, clip, clip, max(niter, 0))

	return bg.Mean + sigma*bg.Std
}

func matchedFilter(f []float64, fwhm float64) ([]float64, error) {
	half := max(int(math.Ceil(1.5*fwhm)), 1)

	kernel, err := window.GaussianFWHM(fwhm, half, window.WithUnitSum())
	if err != nil {
		return nil, err
	}

	if len(kernel) > len(f) {
		return slices.Clone(f), nil
	}

	return conv.ConvolveMode(f, kernel, conv.ModeSame)
}

// centroid refines candidate c to a position in x units.
func (d *detector) centroid(c int) float64 {
	m := d.halfWin
	n := len(d.f)

	deriv := func(j int) float64 {
		g := 0.0
		for k := 1; k <= m; k++ {
			g += d.f[j+k] - d.f[j-k]
		}

		return g
	}

	best := math.NaN()
	bestDist := math.Inf(1)

	lo := max(c-m, m)
	hi := min(c+m, n-m-2)

	for j := lo; j <= hi; j++ {
		g0, g1 := deriv(j), deriv(j+1)
		if !(g0 > 0 && g1 <= 0) {
			continue
		}

		pos := float64(j) + g0/(g0-g1)
		if dist := math.Abs(pos - float64(c)); dist < bestDist {
			best, bestDist = pos, dist
		}
	}

	if math.IsNaN(best) {
		return d.x[c]
	}

	return d.at(best)
}

// at maps a fractional index to x.
func (d *detector) at(pos float64) float64 {
	i := int(math.Floor(pos))
	if i >= len(d.x)-1 {
		return d.x[len(d.x)-1]
	}

	frac := pos - float64(i)

	return d.x[i] + frac*(d.x[i+1]-d.x[i])
}

// Flatten subtracts a running median of half width w from f and returns the
// result. The window shrinks at the ends.
func Flatten(f []float64, w int) []float64 {
	out := make([]float64, len(f))
	if w <= 0 {
		copy(out, f)
		return out
	}

	for i := range f {
		lo := max(i-w, 0)
		hi := min(i+w+1, len(f))
		out[i] = f[i] - robust.Median(f[lo:hi])
	}

	return out
}
