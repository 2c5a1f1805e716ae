// Package propagate calibrates every row of a spectrograph image by walking
// outward from a seed row.
//
// The seed row is solved first from the caller's guess: its zero point is
// refined against the synthetic spectrum and the full line match is run.
// Rows are then visited at seed±i·Step. Each row starts from the solution of
// the nearest accepted row, or from the seed solution when no accepted row
// is closer, so a band of unusable rows does not break the chain. A row is
// accepted when its fit RMS is below [Config.MaxRMS]; rejected rows stay
// absent from the [ImageSolution] and are not retried.
//
// # Observing progress
//
// The package never logs. Progress is reported through an [Observer]; use
// [Observers] to fan out to several sinks.
package propagate
