// Package robust provides outlier-resistant summary statistics used by the
// detection and fitting stages: median, median absolute deviation, and
// iterative sigma clipping.
//
// All functions treat their input as read-only and return NaN (or a zero
// [ClipResult]) for empty input rather than panicking.
package robust
