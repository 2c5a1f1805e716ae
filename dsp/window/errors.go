package window

import (
	"fmt"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
)

// Errors returned by the window constructors.
var (
	ErrSize      = fmt.Errorf("window: size must be > 0: %w", calerr.ErrConfiguration)
	ErrParameter = fmt.Errorf("window: shape parameter out of range: %w", calerr.ErrConfiguration)
)

func validateLength(size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: %d", ErrSize, size)
	}

	return nil
}

func validateTukey(size int, alpha float64) error {
	if err := validateLength(size); err != nil {
		return err
	}

	if alpha < 0 || alpha > 1 {
		return fmt.Errorf("%w: tukey alpha %g not in [0, 1]", ErrParameter, alpha)
	}

	return nil
}

func validateGauss(size int, alpha float64) error {
	if err := validateLength(size); err != nil {
		return err
	}

	if !(alpha > 0) {
		return fmt.Errorf("%w: gauss width %g", ErrParameter, alpha)
	}

	return nil
}
