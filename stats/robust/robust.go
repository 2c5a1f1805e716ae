package robust

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// MADToSigma converts a median absolute deviation into a Gaussian-equivalent
// standard deviation.
const MADToSigma = 0.6745

// Median returns the median of x. Even-length input averages the two middle
// values. Returns NaN for empty input.
func Median(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return math.NaN()
	}

	sorted := slices.Clone(x)
	slices.Sort(sorted)

	if n%2 == 1 {
		return sorted[n/2]
	}

	return 0.5 * (sorted[n/2-1] + sorted[n/2])
}

// MAD returns the median absolute deviation of x about its median.
func MAD(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}

	med := Median(x)
	dev := make([]float64, len(x))

	for i, v := range x {
		dev[i] = math.Abs(v - med)
	}

	return Median(dev)
}

// Scale returns the robust standard deviation estimate MAD/0.6745.
func Scale(x []float64) float64 {
	return MAD(x) / MADToSigma
}

// ClipResult summarises the samples that survived sigma clipping.
type ClipResult struct {
	Mean       float64
	Std        float64
	Kept       int
	Iterations int
	Mask       []bool
}

// SigmaClip iteratively rejects samples further than lower/upper standard
// deviations below/above the median of the surviving samples. It stops when an
// iteration rejects nothing, when it would reject everything, or after niter
// iterations. Mean and Std describe the surviving samples.
func SigmaClip(x []float64, lower, upper float64, niter int) ClipResult {
	n := len(x)
	if n == 0 {
		return ClipResult{Mean: math.NaN(), Std: math.NaN()}
	}

	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}

	kept := slices.Clone(x)
	mean, std := meanStd(kept)

	iter := 0
	for ; iter < niter; iter++ {
		center := Median(kept)
		lo := center - lower*std
		hi := center + upper*std

		next := make([]float64, 0, len(kept))
		nextMask := make([]bool, n)

		for i, v := range x {
			if mask[i] && v >= lo && v <= hi {
				nextMask[i] = true
				next = append(next, v)
			}
		}

		if len(next) == len(kept) || len(next) == 0 {
			break
		}

		kept, mask = next, nextMask
		mean, std = meanStd(kept)
	}

	return ClipResult{
		Mean:       mean,
		Std:        std,
		Kept:       len(kept),
		Iterations: iter,
		Mask:       mask,
	}
}

// MeanStd returns the mean and sample standard deviation of x.
func MeanStd(x []float64) (mean, std float64) {
	if len(x) == 0 {
		return math.NaN(), math.NaN()
	}

	return meanStd(x)
}

func meanStd(x []float64) (float64, float64) {
	if len(x) == 1 {
		return x[0], 0
	}

	mean, std := stat.MeanStdDev(x, nil)

	return mean, std
}
