package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-wavecal/calib/guess"
	"github.com/cwbudde/algo-wavecal/calib/linelist"
	"github.com/cwbudde/algo-wavecal/calib/linematch"
	"github.com/cwbudde/algo-wavecal/calib/propagate"
	"github.com/cwbudde/algo-wavecal/calib/solfile"
	"github.com/cwbudde/algo-wavecal/calib/wavesol"
	"github.com/cwbudde/algo-wavecal/internal/config"
	"github.com/cwbudde/algo-wavecal/internal/diagplot"
	"github.com/cwbudde/algo-wavecal/internal/logobs"
)

// progressEvery is the number of rows between progress log lines.
const progressEvery = 10

func newSolveCommand(root *rootOptions) *cobra.Command {
	var (
		output    string
		residuals string
	)

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Calibrate every row of an arc image",
		Long: `Calibrate every row of an arc image.

The image, line list, solution form, initial guess and matching parameters
are read from the configuration file. Accepted rows are appended to the
output solution file as they are solved.`,
		Example: `  wavecal solve -c wavecal.yaml
  wavecal solve -c wavecal.yaml -o arc.sol --residuals seed.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			if output != "" {
				cfg.Output = output
			}

			return runSolve(cmd.Context(), cfg, cmd.OutOrStdout(), residuals)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "solution file (default from config, else stdout)")
	cmd.Flags().StringVar(&residuals, "residuals", "", "write the residual plot of the row nearest the seed")

	return cmd
}

func loadConfig(root *rootOptions) (*config.Config, error) {
	if root.configPath == "" {
		return nil, errors.New("wavecal: --config is required")
	}

	cfg, err := config.Load(root.configPath)
	if err != nil {
		return nil, err
	}

	if root.logLevel != "" {
		cfg.Logging.Level = root.logLevel
	}

	if root.logFormat != "" {
		cfg.Logging.Format = root.logFormat
	}

	return cfg, cfg.Validate()
}

func runSolve(ctx context.Context, cfg *config.Config, stdout io.Writer, residualsPath string) (runErr error) {
	logger, closer, err := logobs.NewLogger(logobs.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	if cfg.Image == "" {
		return errors.New("wavecal: no image configured")
	}

	lines, err := linelist.ReadFile(cfg.LineList)
	if err != nil {
		return err
	}

	im, err := readImage(cfg.Image)
	if err != nil {
		return err
	}

	src := cfg.Extraction(im)

	start, err := initialGuess(cfg, src.Rows())
	if err != nil {
		return err
	}

	mcfg, err := cfg.MatcherConfig()
	if err != nil {
		return err
	}

	matcher, err := linematch.NewMatcher(lines, mcfg)
	if err != nil {
		return err
	}

	hdr, err := cfg.SolfileHeader()
	if err != nil {
		return err
	}

	if hdr.Date.IsZero() {
		hdr.Date = time.Now().UTC()
	}

	out := stdout

	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return fmt.Errorf("wavecal: create output: %w", err)
		}

		defer closeInto(&runErr, f, "output")

		out = f
	}

	writer := solfile.NewWriter(out, hdr)
	obs := logobs.NewObserver(logger, writer.Header().RunID, progressEvery)

	prop, err := propagate.New(matcher, cfg.PropagateConfig(), propagate.WithObserver(propagate.Observers(obs, writer)))
	if err != nil {
		return err
	}

	logger.Info().
		Str("run_id", writer.Header().RunID.String()).
		Int("rows", src.Rows()).
		Int("lines", len(lines)).
		Str("function", hdr.Function.String()).
		Int("order", hdr.Order).
		Msg("starting propagation")

	img, runErr := prop.Run(ctx, src, start)

	if err := writer.Close(); err != nil && runErr == nil {
		runErr = err
	}

	logger.Info().Int("accepted", img.Len()).Int("rows", src.Rows()).Msg("propagation finished")

	if residualsPath != "" {
		if err := plotSeedResiduals(logger, img, cfg.PropagateConfig().SeedRow(src.Rows()), residualsPath); err != nil && runErr == nil {
			runErr = err
		}
	}

	return runErr
}

// closeInto closes c and stores its error in *errp unless *errp is already set.
func closeInto(errp *error, c io.Closer, what string) {
	if err := c.Close(); err != nil && *errp == nil {
		*errp = fmt.Errorf("wavecal: close %s: %w", what, err)
	}
}

func readImage(path string) (*propagate.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavecal: open image: %w", err)
	}
	defer f.Close()

	return propagate.ReadImage(f)
}

// initialGuess builds the seed solution from explicit coefficients, the
// grating model or the solution database, in that order.
func initialGuess(cfg *config.Config, rows int) (wavesol.Solution, error) {
	kind, err := cfg.Kind()
	if err != nil {
		return wavesol.Solution{}, err
	}

	order, domain := cfg.Solution.Order, cfg.Domain()

	if coef := cfg.Guess.Coefficients; len(coef) > 0 {
		if len(coef) != order+1 {
			return wavesol.Solution{}, fmt.Errorf("%w: %d guess coefficients for order %d", wavesol.ErrCoefLength, len(coef), order)
		}

		return guess.Explicit(kind, domain, coef)
	}

	if g, ok := cfg.Grating(); ok {
		return g.Solution(kind, order, domain, nil)
	}

	if cfg.Guess.Database != "" {
		f, err := os.Open(cfg.Guess.Database)
		if err != nil {
			return wavesol.Solution{}, fmt.Errorf("wavecal: open solution database: %w", err)
		}
		defer f.Close()

		blocks, err := solfile.Read(f)
		if err != nil {
			return wavesol.Solution{}, err
		}

		block, err := solfile.Select(blocks, cfg.Query())
		if err != nil {
			return wavesol.Solution{}, err
		}

		stored, _, err := block.Nearest(cfg.PropagateConfig().SeedRow(rows))
		if err != nil {
			return wavesol.Solution{}, err
		}

		return guess.Convert(stored, kind, order, domain)
	}

	return wavesol.Solution{}, errors.New("wavecal: no initial guess configured (coefficients, grating or database)")
}

func plotSeedResiduals(logger zerolog.Logger, img *propagate.ImageSolution, seed int, path string) error {
	k, ok := img.Nearest(seed)
	if !ok {
		logger.Warn().Msg("no calibrated row to plot")
		return nil
	}

	sol, _ := img.Get(k)

	p, err := diagplot.Residuals(sol)
	if err != nil {
		return err
	}

	return diagplot.Save(p, path)
}
