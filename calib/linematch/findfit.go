package linematch

import (
	"fmt"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
	"github.com/cwbudde/algo-wavecal/calib/wavesol"
)

// ErrTooFewMatches is returned when fewer pairs remain than the solution has
// coefficients.
var ErrTooFewMatches = fmt.Errorf("linematch: too few matched lines for the solution order: %w", calerr.ErrFit)

// FitResult is the outcome of FindFit.
type FitResult struct {
	Solution wavesol.Solution
	Accepted []Pair
	Rejected []Pair
}

// FindFit fits sol to pairs with the solution's robust fit options. Pairs
// down-weighted to zero are returned as Rejected. The result depends only on
// its arguments.
func FindFit(pairs []Pair, sol wavesol.Solution) (FitResult, error) {
	need := sol.Order() + 1
	if len(pairs) < need {
		return FitResult{}, fmt.Errorf("%w: %d pairs, need %d", ErrTooFewMatches, len(pairs), need)
	}

	fitted, err := sol.Fit(Pixels(pairs), Wavelengths(pairs), nil)
	if err != nil {
		return FitResult{}, fmt.Errorf("linematch: fit %d pairs: %w", len(pairs), err)
	}

	_, _, mask := fitted.Points()

	res := FitResult{Solution: fitted}

	for i, p := range pairs {
		if mask[i] {
			res.Accepted = append(res.Accepted, p)
		} else {
			res.Rejected = append(res.Rejected, p)
		}
	}

	if len(res.Accepted) < need {
		return FitResult{}, fmt.Errorf("%w: %d accepted, need %d", ErrTooFewMatches, len(res.Accepted), need)
	}

	return res, nil
}
