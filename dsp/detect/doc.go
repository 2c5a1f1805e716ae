// Package detect locates emission features in a 1-D flux array and refines
// them to sub-pixel precision.
//
// # Threshold
//
// The background level is estimated by iterative sigma clipping. A sample is a
// candidate when it is a local maximum of at least one matched-filtered copy
// of the flux (Gaussian kernels of several widths) that exceeds that copy's
// own clipped mean + sigma*std, and its raw flux exceeds the raw threshold.
//
// # Centroid
//
// Each candidate is refined with the derivative kernel
//
//	g[j] = sum_{k=1..m} (f[j+k] - f[j-k])
//
// evaluated around the candidate, and the +/- zero crossing of g nearest the
// candidate is linearly interpolated. Candidates without a crossing keep their
// integer position.
//
// Candidates are merged only when their integer positions coincide, so two
// features closer than the centroid window may both be reported.
package detect
