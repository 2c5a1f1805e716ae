// Package conv provides linear convolution of sampled spectra with line-profile kernels.
//
// Two strategies are offered:
//
//   - Direct convolution: O(N*M) time-domain sum, best for short kernels (<= 32 samples)
//   - Overlap-add (OLA): FFT-based block convolution for long line-profile kernels
//
// # Usage
//
//	smoothed, err := conv.ConvolveMode(flux, kernel, conv.ModeSame)
//
// For repeated convolution with the same kernel, create an [OverlapAdd]
// once and call Process per row.
package conv
