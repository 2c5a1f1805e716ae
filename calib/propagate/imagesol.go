package propagate

import (
	"iter"
	"maps"
	"slices"

	"github.com/cwbudde/algo-wavecal/calib/wavesol"
)

// ImageSolution maps row indices to accepted solutions. Rows are only ever
// added; a row that failed calibration is simply absent.
type ImageSolution struct {
	rows map[int]wavesol.Solution
}

// NewImageSolution returns an empty ImageSolution.
func NewImageSolution() *ImageSolution {
	return &ImageSolution{rows: make(map[int]wavesol.Solution)}
}

// Get returns the solution of row k.
func (s *ImageSolution) Get(k int) (wavesol.Solution, bool) {
	sol, ok := s.rows[k]
	return sol, ok
}

// Has reports whether row k has a solution.
func (s *ImageSolution) Has(k int) bool {
	_, ok := s.rows[k]
	return ok
}

// Len returns the number of calibrated rows.
func (s *ImageSolution) Len() int { return len(s.rows) }

// Rows returns the calibrated row indices in ascending order.
func (s *ImageSolution) Rows() []int {
	return slices.Sorted(maps.Keys(s.rows))
}

// All yields the calibrated rows in ascending order.
func (s *ImageSolution) All() iter.Seq2[int, wavesol.Solution] {
	return func(yield func(int, wavesol.Solution) bool) {
		for _, k := range s.Rows() {
			if !yield(k, s.rows[k]) {
				return
			}
		}
	}
}

// Nearest returns the calibrated row closest to k; ties go to the lower row.
func (s *ImageSolution) Nearest(k int) (int, bool) {
	best, dist := 0, -1

	for r := range s.rows {
		d := abs(r - k)
		if dist < 0 || d < dist || (d == dist && r < best) {
			best, dist = r, d
		}
	}

	return best, dist >= 0
}

// Add stores sol for row k unless the row is already present and reports
// whether it was stored.
func (s *ImageSolution) Add(k int, sol wavesol.Solution) bool {
	if _, ok := s.rows[k]; ok {
		return false
	}

	s.rows[k] = sol

	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}

	return v
}
