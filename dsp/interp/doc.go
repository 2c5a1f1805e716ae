// Package interp evaluates uniformly sampled functions at arbitrary abscissae.
//
// Two kernels are available:
//
//   - [Linear]:  2-point linear interpolation
//   - [Hermite]: 4-point cubic Hermite (good default for smooth line profiles)
//
// A [Grid] samples outside its support return zero, which matches an emission
// spectrum with no flux beyond its tabulated range.
package interp
