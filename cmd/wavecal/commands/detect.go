package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-wavecal/calib/guess"
	"github.com/cwbudde/algo-wavecal/calib/linelist"
	"github.com/cwbudde/algo-wavecal/calib/propagate"
	"github.com/cwbudde/algo-wavecal/calib/wavesol"
	"github.com/cwbudde/algo-wavecal/dsp/detect"
)

type detectOptions struct {
	sigma    float64
	niter    int
	flatten  int
	function string
	coef     []float64
	domain   []float64
}

func newDetectCommand() *cobra.Command {
	opts := &detectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <table>",
		Short: "Detect emission lines in a spectrum",
		Long: `Detect emission lines in a two-column "x flux" spectrum.

Without a solution the refined peak positions and fluxes are printed. With
--coef the peaks are converted to a line list (wavelength, flux) through the
given solution.`,
		Example: `  wavecal detect spectrum.txt
  wavecal detect --sigma 3 --flatten 50 spectrum.txt
  wavecal detect --function legendre --coef 5000,600,-3 --domain 0,2047 spectrum.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, f, err := readTable(args[0])
			if err != nil {
				return err
			}

			var dopts []detect.Option
			if opts.flatten > 0 {
				dopts = append(dopts, detect.WithFlatten(opts.flatten))
			}

			peaks, err := detect.Detect(x, f, opts.sigma, opts.niter, dopts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if len(opts.coef) == 0 {
				for _, p := range peaks {
					if _, err := fmt.Fprintf(out, "%.4f %g\n", p.Pixel, p.Flux); err != nil {
						return err
					}
				}

				return nil
			}

			sol, err := opts.solution(x)
			if err != nil {
				return err
			}

			return linelist.Write(out, linelist.FromPeaks(peaks, sol))
		},
	}

	cmd.Flags().Float64Var(&opts.sigma, "sigma", 5, "detection threshold in clipped standard deviations")
	cmd.Flags().IntVar(&opts.niter, "niter", 5, "sigma-clipping iterations")
	cmd.Flags().IntVar(&opts.flatten, "flatten", 0, "running-median continuum half width (0 disables)")
	cmd.Flags().StringVar(&opts.function, "function", "poly", "solution basis (poly, legendre, chebyshev, spline)")
	cmd.Flags().Float64SliceVar(&opts.coef, "coef", nil, "solution coefficients")
	cmd.Flags().Float64SliceVar(&opts.domain, "domain", nil, "solution domain min,max (default: x range)")

	return cmd
}

func (o *detectOptions) solution(x []float64) (wavesol.Solution, error) {
	kind, err := wavesol.ParseBasisKind(o.function)
	if err != nil {
		return wavesol.Solution{}, err
	}

	domain := wavesol.Domain{Min: x[0], Max: x[len(x)-1]}

	if len(o.domain) > 0 {
		if len(o.domain) != 2 {
			return wavesol.Solution{}, fmt.Errorf("wavecal: --domain needs 2 values, got %d", len(o.domain))
		}

		domain = wavesol.Domain{Min: o.domain[0], Max: o.domain[1]}
	}

	return guess.Explicit(kind, domain, o.coef)
}

func readTable(path string) (x, f []float64, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("wavecal: open spectrum: %w", err)
	}
	defer file.Close()

	return propagate.ReadTable(file)
}
