package testutil

import (
	"math"
	"testing"
)

// RequireSliceNearlyEqual fails t unless got and want have equal length and
// every pair differs by at most eps.
func RequireSliceNearlyEqual(t *testing.T, got, want []float64, eps float64) {
	t.Helper()

	requireSameLength(t, got, want)

	for i := range got {
		if diff := math.Abs(got[i] - want[i]); diff > eps {
			t.Fatalf("index %d: got %v, want %v (diff %v > eps %v)", i, got[i], want[i], diff, eps)
		}
	}
}

// RequireRelativeClose fails t if any element differs from want by more than
// rel times max(|want|, 1).
func RequireRelativeClose(t *testing.T, got, want []float64, rel float64) {
	t.Helper()

	requireSameLength(t, got, want)

	for i := range got {
		scale := math.Max(math.Abs(want[i]), 1)
		if diff := math.Abs(got[i] - want[i]); diff > rel*scale {
			t.Fatalf("index %d: got %v, want %v (rel diff %g > %g)", i, got[i], want[i], diff/scale, rel)
		}
	}
}

func requireSameLength(t *testing.T, got, want []float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
}
