package propagate

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
	"github.com/cwbudde/algo-wavecal/dsp/detect"
)

// Provider errors.
var (
	ErrRowRange  = fmt.Errorf("propagate: row out of range: %w", calerr.ErrConfiguration)
	ErrBadImage  = fmt.Errorf("propagate: malformed image: %w", calerr.ErrConfiguration)
	ErrParseText = fmt.Errorf("propagate: cannot parse spectrum text: %w", calerr.ErrConfiguration)
)

// SpectrumProvider supplies one extracted 1-D spectrum per image row.
type SpectrumProvider interface {
	Rows() int
	Row(k int) (x, f []float64, err error)
}

// Image is an in-memory 2-D spectrum sharing one pixel axis across rows.
type Image struct {
	x    []float64
	data [][]float64
}

// NewImage returns an Image over x with one flux slice per row. All rows
// must have len(x) samples. The slices are not copied.
func NewImage(x []float64, data [][]float64) (*Image, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("%w: empty pixel axis", ErrBadImage)
	}

	for k, row := range data {
		if len(row) != len(x) {
			return nil, fmt.Errorf("%w: row %d has %d samples, want %d", ErrBadImage, k, len(row), len(x))
		}
	}

	return &Image{x: x, data: data}, nil
}

// Rows returns the number of rows.
func (im *Image) Rows() int { return len(im.data) }

// Row returns the pixel axis and the flux of row k.
func (im *Image) Row(k int) ([]float64, []float64, error) {
	if k < 0 || k >= len(im.data) {
		return nil, nil, fmt.Errorf("%w: %d of %d", ErrRowRange, k, len(im.data))
	}

	return im.x, im.data[k], nil
}

// Extraction averages adjacent rows and optionally subtracts a running-median
// continuum before handing a row to the matcher.
type Extraction struct {
	Src SpectrumProvider
	// Average is the number of rows averaged around each requested row.
	Average int
	// Continuum is the running-median half width; zero disables it.
	Continuum int
}

// Rows returns the number of rows of the source.
func (e Extraction) Rows() int { return e.Src.Rows() }

// Row returns ExtractRow(e.Src, k, e.Average, e.Continuum).
func (e Extraction) Row(k int) ([]float64, []float64, error) {
	return ExtractRow(e.Src, k, e.Average, e.Continuum)
}

// ExtractRow averages nrows rows centred on k, clipped to the image, and
// subtracts a running median of half width continuumWidth when it is positive.
// The returned flux is a new slice.
func ExtractRow(src SpectrumProvider, k, nrows, continuumWidth int) ([]float64, []float64, error) {
	rows := src.Rows()
	if k < 0 || k >= rows {
		return nil, nil, fmt.Errorf("%w: %d of %d", ErrRowRange, k, rows)
	}

	nrows = max(nrows, 1)
	lo := max(k-(nrows-1)/2, 0)
	hi := min(lo+nrows, rows)

	x, f, err := src.Row(lo)
	if err != nil {
		return nil, nil, err
	}

	sum := slices.Clone(f)

	for r := lo + 1; r < hi; r++ {
		xr, fr, err := src.Row(r)
		if err != nil {
			return nil, nil, err
		}

		if len(xr) != len(x) || len(fr) != len(sum) {
			return nil, nil, fmt.Errorf("%w: row %d has %d samples, want %d", ErrBadImage, r, len(fr), len(sum))
		}

		for i, v := range fr {
			sum[i] += v
		}
	}

	if n := float64(hi - lo); n > 1 {
		for i := range sum {
			sum[i] /= n
		}
	}

	if continuumWidth > 0 {
		sum = detect.Flatten(sum, continuumWidth)
	}

	return x, sum, nil
}

// ReadTable reads a two-column "x f" table. Blank lines and lines starting
// with '#' are ignored, as are columns after the second.
func ReadTable(r io.Reader) (x, f []float64, err error) {
	err = scanFields(r, 2, func(lineNo int, fields []float64) error {
		if len(fields) < 2 {
			return fmt.Errorf("%w: line %d: want 2 columns, got %d", ErrParseText, lineNo, len(fields))
		}

		x = append(x, fields[0])
		f = append(f, fields[1])

		return nil
	})

	return x, f, err
}

// ReadImage reads one image row per text line as whitespace-separated flux
// values. The pixel axis is 0..n-1.
func ReadImage(r io.Reader) (*Image, error) {
	var data [][]float64

	err := scanFields(r, 0, func(_ int, fields []float64) error {
		data = append(data, fields)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrBadImage)
	}

	x := make([]float64, len(data[0]))
	for i := range x {
		x[i] = float64(i)
	}

	return NewImage(x, data)
}

// scanFields parses the first limit tokens of every data line, or all of
// them when limit is zero.
func scanFields(r io.Reader, limit int, fn func(lineNo int, fields []float64) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	lineNo := 0

	for sc.Scan() {
		lineNo++

		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		tokens := strings.Fields(text)
		if limit > 0 && len(tokens) > limit {
			tokens = tokens[:limit]
		}

		fields := make([]float64, len(tokens))

		for i, tok := range tokens {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return fmt.Errorf("%w: line %d: %q", ErrParseText, lineNo, tok)
			}

			fields[i] = v
		}

		if err := fn(lineNo, fields); err != nil {
			return err
		}
	}

	if err := sc.Err(); err != nil {
		return fmt.Errorf("propagate: read: %w", err)
	}

	return nil
}
