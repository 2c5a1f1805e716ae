package solfile

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
)

// ErrNoMatch is returned when no stored block fits a query.
var ErrNoMatch = fmt.Errorf("solfile: no matching solution: %w", calerr.ErrConfiguration)

// angleTol is the largest angle difference in degrees treated as equal.
const angleTol = 1e-6

// Query describes the observation a stored solution is wanted for. Empty
// string fields match any value.
type Query struct {
	Instrument        string
	Grating           string
	GratingAngle      float64
	ArticulationAngle float64
	Filter            string
	Slit              string
	Date              time.Time
}

// Select returns the stored solution best suited to q.
//
// Blocks must agree with q on instrument, grating, filter and slit. Among
// those, the blocks with the smallest summed grating and articulation angle
// difference are kept. A block dated exactly q.Date is returned as is. When
// q.Date lies between two blocks with the same function, order and domain,
// their coefficients are averaged with weights proportional to time
// proximity over the rows both contain. Otherwise the block nearest in time
// is returned.
func Select(blocks []Block, q Query) (Block, error) {
	candidates := closestSetup(blocks, q)
	if len(candidates) == 0 {
		return Block{}, fmt.Errorf("%w: %s %s %s %s", ErrNoMatch, q.Instrument, q.Grating, q.Filter, q.Slit)
	}

	var before, after *Block

	for i := range candidates {
		b := &candidates[i]

		switch {
		case b.Date.Equal(q.Date):
			return *b, nil
		case b.Date.Before(q.Date):
			if before == nil || b.Date.After(before.Date) {
				before = b
			}
		default:
			if after == nil || b.Date.Before(after.Date) {
				after = b
			}
		}
	}

	if before != nil && after != nil {
		if avg, ok := interpolate(*before, *after, q.Date); ok {
			return avg, nil
		}
	}

	return nearestInTime(before, after, q.Date), nil
}

func closestSetup(blocks []Block, q Query) []Block {
	var (
		out  []Block
		best = math.Inf(1)
	)

	for _, b := range blocks {
		if !matches(q.Instrument, b.Instrument) || !matches(q.Grating, b.Grating) ||
			!matches(q.Filter, b.Filter) || !matches(q.Slit, b.Slit) {
			continue
		}

		d := math.Abs(b.GratingAngle-q.GratingAngle) + math.Abs(b.ArticulationAngle-q.ArticulationAngle)

		switch {
		case d < best-angleTol:
			best = d
			out = append(out[:0], b)
		case d <= best+angleTol:
			out = append(out, b)
		}
	}

	return out
}

func matches(want, got string) bool {
	return want == "" || want == got
}

func interpolate(a, b Block, at time.Time) (Block, bool) {
	if a.Function != b.Function || a.Order != b.Order || a.Domain != b.Domain {
		return Block{}, false
	}

	span := b.Date.Sub(a.Date).Seconds()
	wb := at.Sub(a.Date).Seconds() / span
	wa := 1 - wb

	out := Block{Header: a.Header, Rows: make(map[int][]float64)}
	out.Date = at

	for k, ca := range a.Rows {
		cb, ok := b.Rows[k]
		if !ok {
			continue
		}

		coef := make([]float64, len(ca))
		for i := range coef {
			coef[i] = wa*ca[i] + wb*cb[i]
		}

		out.Rows[k] = coef
	}

	return out, len(out.Rows) > 0
}

func nearestInTime(before, after *Block, at time.Time) Block {
	switch {
	case before == nil:
		return *after
	case after == nil:
		return *before
	case at.Sub(before.Date) <= after.Date.Sub(at):
		return *before
	default:
		return *after
	}
}
