// Package calerr defines the error categories shared by the calibration packages.
//
// Package-level sentinels wrap one of the three categories so callers can decide
// how far a failure propagates with [errors.Is]:
//
//   - [ErrConfiguration]: invalid setup (unknown basis, mismatched lengths). Fatal.
//   - [ErrFit]: a fit could not be computed (singular system, too few points).
//     Recoverable per row.
//   - [ErrMatch]: a reference line found no acceptable counterpart. Recoverable per line.
package calerr

import "errors"

var (
	ErrConfiguration = errors.New("configuration error")
	ErrFit           = errors.New("fit error")
	ErrMatch         = errors.New("match error")
)

// IsRecoverable reports whether err belongs to a category that only affects a
// single row or line.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrFit) || errors.Is(err, ErrMatch)
}
