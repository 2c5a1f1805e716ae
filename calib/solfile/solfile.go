package solfile

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
	"github.com/cwbudde/algo-wavecal/calib/propagate"
	"github.com/cwbudde/algo-wavecal/calib/wavesol"
)

// ErrParse is returned for malformed solution files.
var ErrParse = fmt.Errorf("solfile: malformed solution file: %w", calerr.ErrConfiguration)

// Header describes the instrument setup and solution form of a block.
type Header struct {
	Instrument        string
	Grating           string
	GratingAngle      float64
	ArticulationAngle float64
	Filter            string
	Slit              string
	Date              time.Time
	RunID             uuid.UUID
	Function          wavesol.BasisKind
	Order             int
	Domain            wavesol.Domain
}

// Block is one stored calibration: a header and the coefficients per row.
type Block struct {
	Header
	Rows map[int][]float64
}

// RowIndices returns the stored rows in ascending order.
func (b Block) RowIndices() []int {
	return slices.Sorted(maps.Keys(b.Rows))
}

// Solution returns the solution stored for row k.
func (b Block) Solution(k int) (wavesol.Solution, bool, error) {
	coef, ok := b.Rows[k]
	if !ok {
		return wavesol.Solution{}, false, nil
	}

	sol, err := wavesol.New(b.Function, b.Order, b.Domain, wavesol.WithCoef(coef))

	return sol, err == nil, err
}

// Nearest returns the solution of the stored row closest to k and that row.
// Ties go to the lower row.
func (b Block) Nearest(k int) (wavesol.Solution, int, error) {
	rows := b.RowIndices()
	if len(rows) == 0 {
		return wavesol.Solution{}, 0, fmt.Errorf("%w: block has no rows", ErrNoMatch)
	}

	best := rows[0]
	for _, r := range rows[1:] {
		if absInt(r-k) < absInt(best-k) {
			best = r
		}
	}

	sol, _, err := b.Solution(best)

	return sol, best, err
}

// ImageSolution rebuilds the per-row solutions of the block.
func (b Block) ImageSolution() (*propagate.ImageSolution, error) {
	img := propagate.NewImageSolution()

	for _, k := range b.RowIndices() {
		sol, _, err := b.Solution(k)
		if err != nil {
			return nil, fmt.Errorf("solfile: row %d: %w", k, err)
		}

		img.Add(k, sol)
	}

	return img, nil
}

// Read parses all blocks in r.
func Read(r io.Reader) ([]Block, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var (
		blocks []Block
		cur    *Block
		seen   map[string]bool
	)

	finish := func(lineNo int) error {
		if cur == nil {
			return nil
		}

		for _, key := range []string{"function", "order", "domain"} {
			if !seen[key] {
				return fmt.Errorf("%w: block ending at line %d lacks #%s", ErrParse, lineNo, key)
			}
		}

		blocks = append(blocks, *cur)
		cur = nil

		return nil
	}

	lineNo := 0

	for sc.Scan() {
		lineNo++
		text := strings.TrimSpace(sc.Text())

		switch {
		case text == "":
			if err := finish(lineNo); err != nil {
				return nil, err
			}
		case strings.HasPrefix(text, "#"):
			if cur == nil {
				cur = &Block{Rows: make(map[int][]float64)}
				seen = make(map[string]bool)
			} else if len(cur.Rows) > 0 {
				return nil, fmt.Errorf("%w: line %d: header after rows", ErrParse, lineNo)
			}

			key, err := parseHeader(&cur.Header, text[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrParse, lineNo, err)
			}

			seen[key] = true
		default:
			if cur == nil {
				return nil, fmt.Errorf("%w: line %d: row outside a block", ErrParse, lineNo)
			}

			row, coef, err := parseRow(text)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrParse, lineNo, err)
			}

			if len(coef) != cur.Order+1 {
				return nil, fmt.Errorf("%w: line %d: %d coefficients for order %d", ErrParse, lineNo, len(coef), cur.Order)
			}

			if _, dup := cur.Rows[row]; dup {
				return nil, fmt.Errorf("%w: line %d: duplicate row %d", ErrParse, lineNo, row)
			}

			cur.Rows[row] = coef
		}
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("solfile: read: %w", err)
	}

	if err := finish(lineNo); err != nil {
		return nil, err
	}

	return blocks, nil
}

func parseHeader(h *Header, text string) (string, error) {
	key, value, _ := strings.Cut(text, " ")
	value = strings.TrimSpace(value)

	var err error

	switch key {
	case "instrument":
		h.Instrument = value
	case "grating":
		h.Grating = value
	case "grangle":
		h.GratingAngle, err = strconv.ParseFloat(value, 64)
	case "arangle":
		h.ArticulationAngle, err = strconv.ParseFloat(value, 64)
	case "filter":
		h.Filter = value
	case "slit":
		h.Slit = value
	case "date":
		h.Date, err = time.Parse(time.RFC3339Nano, value)
	case "runid":
		h.RunID, err = uuid.Parse(value)
	case "function":
		h.Function, err = wavesol.ParseBasisKind(value)
	case "order":
		h.Order, err = strconv.Atoi(value)
		if err == nil && h.Order < 0 {
			err = fmt.Errorf("negative order %d", h.Order)
		}
	case "domain":
		h.Domain, err = parseDomain(value)
	}

	if err != nil {
		return key, fmt.Errorf("#%s: %w", key, err)
	}

	return key, nil
}

func parseDomain(value string) (wavesol.Domain, error) {
	f := strings.Fields(value)
	if len(f) != 2 {
		return wavesol.Domain{}, fmt.Errorf("want 2 values, got %d", len(f))
	}

	lo, err := strconv.ParseFloat(f[0], 64)
	if err != nil {
		return wavesol.Domain{}, err
	}

	hi, err := strconv.ParseFloat(f[1], 64)
	if err != nil {
		return wavesol.Domain{}, err
	}

	return wavesol.Domain{Min: lo, Max: hi}, nil
}

func parseRow(text string) (int, []float64, error) {
	f := strings.Fields(text)

	row, err := strconv.Atoi(f[0])
	if err != nil {
		return 0, nil, fmt.Errorf("row index %q", f[0])
	}

	coef := make([]float64, len(f)-1)
	for i, tok := range f[1:] {
		if coef[i], err = strconv.ParseFloat(tok, 64); err != nil {
			return 0, nil, fmt.Errorf("coefficient %q", tok)
		}
	}

	return row, coef, nil
}

func formatHeader(h Header) string {
	var b strings.Builder

	fmt.Fprintf(&b, "#instrument %s\n", h.Instrument)
	fmt.Fprintf(&b, "#grating %s\n", h.Grating)
	fmt.Fprintf(&b, "#grangle %s\n", formatFloat(h.GratingAngle))
	fmt.Fprintf(&b, "#arangle %s\n", formatFloat(h.ArticulationAngle))
	fmt.Fprintf(&b, "#filter %s\n", h.Filter)
	fmt.Fprintf(&b, "#slit %s\n", h.Slit)
	fmt.Fprintf(&b, "#date %s\n", h.Date.UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(&b, "#runid %s\n", h.RunID)
	fmt.Fprintf(&b, "#function %s\n", h.Function)
	fmt.Fprintf(&b, "#order %d\n", h.Order)
	fmt.Fprintf(&b, "#domain %s %s\n", formatFloat(h.Domain.Min), formatFloat(h.Domain.Max))

	return b.String()
}

func formatRow(row int, coef []float64) string {
	var b strings.Builder

	b.WriteString(strconv.Itoa(row))

	for _, c := range coef {
		b.WriteByte(' ')
		b.WriteString(formatFloat(c))
	}

	b.WriteByte('\n')

	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}

	return v
}
