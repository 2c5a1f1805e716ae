// Package linematch refines wavelength solutions by matching detected arc
// lines to a reference line list.
//
// A [Synthetic] spectrum is rendered from the reference lines at the
// instrumental resolution. [FindXCor] searches a grid of perturbed solution
// coefficients for the one whose resampled synthetic spectrum best correlates
// with the observed flux ([NCor]); the best grid point is polished with a
// parabola through the five highest-scoring candidates.
//
// [CrossLineMatch] then walks the reference lines from brightest to faintest,
// realigns a window around each predicted position, and pairs the line with
// the nearest detected peak when position, local brightness rank and global
// wavelength discrepancy all agree. [FindFit] fits the accepted pairs
// robustly and hands back the rejected ones. [Matcher] chains these steps.
//
// # Concurrency
//
// The coefficient grid is scored in parallel with errgroup; the synthetic
// spectrum is read-only and each worker owns its scratch buffers. Results do
// not depend on the number of workers. All other functions are sequential.
//
// # Build tags
//
// With the fastmath tag the correlation normalisation uses algo-approx's
// FastSqrt.
package linematch
