// Package fit provides parametric least-squares fitting with optional
// outlier rejection.
//
// A [Model] maps parameters and an abscissa to a value. Models that are linear
// in their parameters implement [LinearModel] and are solved directly by
// weighted QR least squares; any other model is minimised numerically.
//
// # Methods
//
//   - [LeastSquares]: a single (optionally error-weighted) fit.
//   - [Interfit]: iteratively reweighted least squares with biweight weights.
//     Points whose robust residual exceeds the threshold get weight zero and
//     are reported as rejected in [Result.Mask].
//   - [SigmaClip]: repeated fits dropping points outside lower/upper sigma of
//     the residual distribution until the rejected set is stable.
//
// # Usage
//
//	res, err := fit.Fit(model, init, x, y, nil,
//		fit.WithMethod(fit.Interfit),
//		fit.WithIterations(5),
//		fit.WithThreshold(5),
//	)
//
// Errors wrap [calerr.ErrConfiguration] for unusable input and [calerr.ErrFit]
// when no solution can be computed.
package fit
