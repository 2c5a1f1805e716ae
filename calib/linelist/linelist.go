// Package linelist reads and manipulates reference emission line lists.
//
// The text format has one line per entry, "wavelength [intensity]",
// whitespace separated. Text after '#' is ignored. A missing intensity is
// recorded as [NoIntensity].
package linelist

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
	"github.com/cwbudde/algo-wavecal/calib/wavesol"
	"github.com/cwbudde/algo-wavecal/dsp/detect"
)

// NoIntensity marks a line without a tabulated intensity.
const NoIntensity = -1.0

// ErrParse is returned for malformed line list input.
var ErrParse = fmt.Errorf("linelist: parse error: %w", calerr.ErrConfiguration)

// Line is one reference line.
type Line struct {
	Wavelength float64
	Intensity  float64
}

// HasIntensity reports whether the line carries a positive intensity.
func (l Line) HasIntensity() bool { return l.Intensity > 0 }

// Parse reads a line list from r.
func Parse(r io.Reader) ([]Line, error) {
	var lines []Line

	sc := bufio.NewScanner(r)
	n := 0

	for sc.Scan() {
		n++

		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}

		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		w, err := strconv.ParseFloat(fields[0], 64)
		if err != nil || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: line %d: bad wavelength %q", ErrParse, n, fields[0])
		}

		line := Line{Wavelength: w, Intensity: NoIntensity}

		if len(fields) > 1 {
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad intensity %q", ErrParse, n, fields[1])
			}

			line.Intensity = v
		}

		lines = append(lines, line)
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("linelist: read: %w", err)
	}

	return lines, nil
}

// ReadFile parses the line list stored at path.
func ReadFile(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("linelist: %w", err)
	}
	defer f.Close()

	lines, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return lines, nil
}

// Write writes lines in the text format read by Parse.
func Write(w io.Writer, lines []Line) error {
	bw := bufio.NewWriter(w)

	for _, l := range lines {
		if l.HasIntensity() {
			fmt.Fprintf(bw, "%.4f %g\n", l.Wavelength, l.Intensity)
		} else {
			fmt.Fprintf(bw, "%.4f\n", l.Wavelength)
		}
	}

	return bw.Flush()
}

// FromPeaks converts detected peaks of a solved spectrum into reference lines
// using sol to map pixel to wavelength and the peak flux as intensity.
func FromPeaks(peaks []detect.Peak, sol wavesol.Solution) []Line {
	lines := make([]Line, len(peaks))
	for i, p := range peaks {
		lines[i] = Line{Wavelength: sol.Value(p.Pixel), Intensity: p.Flux}
	}

	return SortByWavelength(lines)
}

// SortByWavelength returns a copy of lines in ascending wavelength order.
func SortByWavelength(lines []Line) []Line {
	out := slices.Clone(lines)
	slices.SortStableFunc(out, func(a, b Line) int { return cmp.Compare(a.Wavelength, b.Wavelength) })

	return out
}

// Brightest returns a copy of lines ordered by descending intensity.
// Lines without intensity come last; ties keep wavelength order.
func Brightest(lines []Line) []Line {
	out := SortByWavelength(lines)
	slices.SortStableFunc(out, func(a, b Line) int { return cmp.Compare(b.Intensity, a.Intensity) })

	return out
}

// Dedup returns lines with at most one entry per wavelength, keeping the
// brightest, in ascending wavelength order.
func Dedup(lines []Line) []Line {
	sorted := SortByWavelength(lines)
	out := sorted[:0]

	for _, l := range sorted {
		if n := len(out); n > 0 && out[n-1].Wavelength == l.Wavelength {
			if l.Intensity > out[n-1].Intensity {
				out[n-1] = l
			}

			continue
		}

		out = append(out, l)
	}

	return out
}

// Within returns the lines with wmin <= wavelength <= wmax.
func Within(lines []Line, wmin, wmax float64) []Line {
	var out []Line

	for _, l := range lines {
		if l.Wavelength >= wmin && l.Wavelength <= wmax {
			out = append(out, l)
		}
	}

	return out
}

// Wavelengths extracts the wavelengths of lines.
func Wavelengths(lines []Line) []float64 {
	out := make([]float64, len(lines))
	for i, l := range lines {
		out[i] = l.Wavelength
	}

	return out
}
