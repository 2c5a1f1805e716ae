// Package wavesol implements pixel-to-wavelength solutions.
//
// A [Solution] is an immutable value: [Solution.Fit] and [Solution.SetCoef]
// return new solutions and never modify the receiver, so a solution can be
// shared between rows without copying.
//
// # Bases
//
// The basis is selected with [BasisKind]:
//
//   - [Power]: x^n evaluated on raw pixel coordinates
//   - [Legendre]: P_n(t) with t the pixel mapped from the domain to [-1, 1]
//   - [Chebyshev]: T_n(t) on the same normalised coordinate
//   - [Spline]: clamped cubic B-spline with order+1 control knots over the domain
//
// The domain is fixed when the solution is constructed and is reused for every
// evaluation; changing it would invalidate fitted coefficients, so there is no
// setter.
package wavesol
