// Package commands implements the wavecal command tree.
package commands

import (
	"context"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// Execute runs the command tree with args.
func Execute(ctx context.Context, version string, args []string) error {
	root := newRootCommand(version)
	root.SetArgs(args)

	return root.ExecuteContext(ctx)
}

func newRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "wavecal",
		Short: "Wavelength calibration of arc-lamp spectra",
		Long: `wavecal fits pixel-to-wavelength solutions to arc-lamp spectra.

It detects emission lines, matches them to a reference line list via
cross-correlation with a synthetic spectrum, fits robust solutions, and
propagates the solution row by row across a 2-D image.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "override the configured log format (console, json)")

	root.AddCommand(newSolveCommand(opts))
	root.AddCommand(newDetectCommand())
	root.AddCommand(newPlotCommand())

	return root
}
