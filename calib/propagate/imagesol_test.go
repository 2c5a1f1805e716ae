package propagate

import (
	"slices"
	"testing"

	"github.com/cwbudde/algo-wavecal/calib/wavesol"
)

func TestImageSolutionGrowOnly(t *testing.T) {
	s := NewImageSolution()
	a := linearGuess(t, 4000)
	b := linearGuess(t, 5000)

	if !s.Add(3, a) || s.Add(3, b) {
		t.Fatal("second add to the same row succeeded")
	}

	got, ok := s.Get(3)
	if !ok || got.Coef()[0] != 4000 {
		t.Fatalf("row 3 = %v", got.Coef())
	}
}

func TestImageSolutionNearest(t *testing.T) {
	s := NewImageSolution()

	if _, ok := s.Nearest(5); ok {
		t.Fatal("empty solution has a nearest row")
	}

	for _, k := range []int{10, 2, 6} {
		s.Add(k, linearGuess(t, float64(k)))
	}

	tests := []struct{ k, want int }{
		{0, 2}, {4, 2}, {5, 6}, {8, 6}, {9, 10}, {40, 10},
	}

	for _, tt := range tests {
		if got, _ := s.Nearest(tt.k); got != tt.want {
			t.Fatalf("Nearest(%d) = %d, want %d", tt.k, got, tt.want)
		}
	}

	if !slices.Equal(s.Rows(), []int{2, 6, 10}) {
		t.Fatalf("rows = %v", s.Rows())
	}

	var seen []int
	for k, sol := range s.All() {
		if sol.Coef()[0] != float64(k) {
			t.Fatalf("row %d carries %v", k, sol.Coef())
		}

		seen = append(seen, k)
	}

	if !slices.Equal(seen, []int{2, 6, 10}) {
		t.Fatalf("All yielded %v", seen)
	}
}

func TestObserversFanOut(t *testing.T) {
	a, b := newRecorder(), newRecorder()
	obs := Observers(a, nil, b)

	obs.OnRowAccepted(RowResult{Row: 7, Solution: wavesol.Solution{}})
	obs.OnRowRejected(8, ErrRMSTooLarge)
	obs.OnProgress(2, 9)

	for _, r := range []*recorder{a, b} {
		if !slices.Equal(r.accepted, []int{7}) || r.rejected[8] == nil || r.done != 2 || r.total != 9 {
			t.Fatalf("recorder = %+v", r)
		}
	}
}
