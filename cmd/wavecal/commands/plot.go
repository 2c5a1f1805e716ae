package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-wavecal/calib/solfile"
	"github.com/cwbudde/algo-wavecal/dsp/detect"
	"github.com/cwbudde/algo-wavecal/internal/diagplot"
)

func newPlotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Render diagnostic plots",
	}

	cmd.AddCommand(newPlotSpectrumCommand())
	cmd.AddCommand(newPlotCoefCommand())

	return cmd
}

func newPlotSpectrumCommand() *cobra.Command {
	var (
		output string
		sigma  float64
		niter  int
	)

	cmd := &cobra.Command{
		Use:   "spectrum <table>",
		Short: "Plot a spectrum with its detected peaks",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			x, f, err := readTable(args[0])
			if err != nil {
				return err
			}

			peaks, err := detect.Detect(x, f, sigma, niter)
			if err != nil {
				return err
			}

			p, err := diagplot.Spectrum(x, f, peaks)
			if err != nil {
				return err
			}

			return diagplot.Save(p, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "spectrum.png", "output image (png, svg, pdf)")
	cmd.Flags().Float64Var(&sigma, "sigma", 5, "detection threshold in clipped standard deviations")
	cmd.Flags().IntVar(&niter, "niter", 5, "sigma-clipping iterations")

	return cmd
}

func newPlotCoefCommand() *cobra.Command {
	var (
		output string
		index  int
		block  int
	)

	cmd := &cobra.Command{
		Use:   "coef <solution-file>",
		Short: "Plot one coefficient of a stored solution against row",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("wavecal: open solutions: %w", err)
			}
			defer f.Close()

			blocks, err := solfile.Read(f)
			if err != nil {
				return err
			}

			if block < 0 {
				block += len(blocks)
			}

			if block < 0 || block >= len(blocks) {
				return fmt.Errorf("wavecal: block %d of %d", block, len(blocks))
			}

			img, err := blocks[block].ImageSolution()
			if err != nil {
				return err
			}

			p, err := diagplot.Coefficient(img, index)
			if err != nil {
				return err
			}

			return diagplot.Save(p, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "coef.png", "output image (png, svg, pdf)")
	cmd.Flags().IntVar(&index, "index", 0, "coefficient index")
	cmd.Flags().IntVar(&block, "block", -1, "block index in the file; negative counts from the end")

	return cmd
}
