package propagate

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-wavecal/calib/linelist"
	"github.com/cwbudde/algo-wavecal/calib/linematch"
	"github.com/cwbudde/algo-wavecal/calib/wavesol"
	"github.com/cwbudde/algo-wavecal/internal/testutil"
)

const (
	imageRows   = 100
	imageCols   = 512
	lineSigma   = 2.0
	dispersion  = 2.5
	driftPerRow = 0.1
)

var (
	arcWavelengths = []float64{4100, 4275, 4475, 4675, 4875, 5075}
	arcIntensities = []float64{800, 300, 1000, 500, 900, 400}
)

// zeroPoint is the true constant term of row k.
func zeroPoint(k int) float64 {
	return 4000 + driftPerRow*float64(k-imageRows/2)
}

func arcRow(k int) []float64 {
	em := make([]testutil.Emission, len(arcWavelengths))
	for i, w := range arcWavelengths {
		em[i] = testutil.Emission{Pixel: (w - zeroPoint(k)) / dispersion, Amplitude: arcIntensities[i]}
	}

	return testutil.GaussianLines(imageCols, lineSigma, em)
}

// arcImage renders the drifting arc with rows in [noiseLo, noiseHi] replaced
// by low-level noise.
func arcImage(t *testing.T, noiseLo, noiseHi int) *Image {
	t.Helper()

	data := make([][]float64, imageRows)
	for k := range data {
		if k >= noiseLo && k <= noiseHi {
			data[k] = testutil.DeterministicNoise(int64(k), 1, imageCols)
		} else {
			data[k] = arcRow(k)
		}
	}

	im, err := NewImage(testutil.Pixels(imageCols), data)
	if err != nil {
		t.Fatal(err)
	}

	return im
}

func arcLines() []linelist.Line {
	lines := make([]linelist.Line, len(arcWavelengths))
	for i, w := range arcWavelengths {
		lines[i] = linelist.Line{Wavelength: w, Intensity: arcIntensities[i]}
	}

	return lines
}

func arcMatcher(t *testing.T) *linematch.Matcher {
	t.Helper()

	res := 2 * math.Sqrt(2*math.Ln2) * lineSigma * dispersion

	m, err := linematch.NewMatcher(arcLines(), linematch.DefaultConfig(res))
	if err != nil {
		t.Fatal(err)
	}

	return m
}

func linearGuess(t *testing.T, c0 float64) wavesol.Solution {
	t.Helper()

	s, err := wavesol.New(wavesol.Power, 1, wavesol.Domain{Min: 0, Max: imageCols - 1},
		wavesol.WithCoef([]float64{c0, dispersion}))
	if err != nil {
		t.Fatal(err)
	}

	return s
}

type recorder struct {
	accepted []int
	rejected map[int]error
	done     int
	total    int
}

func newRecorder() *recorder {
	return &recorder{rejected: make(map[int]error)}
}

func (r *recorder) OnRowAccepted(res RowResult) { r.accepted = append(r.accepted, res.Row) }

func (r *recorder) OnRowRejected(row int, err error) { r.rejected[row] = err }

func (r *recorder) OnProgress(done, total int) { r.done, r.total = done, total }

// curvedArc returns rows with a quadratic dispersion that a linear solution
// cannot follow, and a matcher for its lines.
func curvedArc(t *testing.T, rows int) (*Image, *linematch.Matcher) {
	t.Helper()

	pixels := []float64{40, 110, 180, 250, 320, 390, 460}
	truth := []float64{4000, dispersion, 2e-5}

	em := make([]testutil.Emission, len(pixels))
	lines := make([]linelist.Line, len(pixels))

	for i, px := range pixels {
		em[i] = testutil.Emission{Pixel: px, Amplitude: 500}
		lines[i] = linelist.Line{Wavelength: testutil.Polynomial([]float64{px}, truth)[0], Intensity: linelist.NoIntensity}
	}

	row := testutil.GaussianLines(imageCols, lineSigma, em)

	data := make([][]float64, rows)
	for k := range data {
		data[k] = row
	}

	im, err := NewImage(testutil.Pixels(imageCols), data)
	if err != nil {
		t.Fatal(err)
	}

	res := 2 * math.Sqrt(2*math.Ln2) * lineSigma * dispersion

	m, err := linematch.NewMatcher(lines, linematch.DefaultConfig(res))
	if err != nil {
		t.Fatal(err)
	}

	return im, m
}
