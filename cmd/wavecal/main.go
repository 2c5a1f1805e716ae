// Command wavecal calibrates the wavelength scale of arc-lamp spectra.
//
// Usage:
//
//	wavecal solve -c wavecal.yaml
//	wavecal detect spectrum.txt
//	wavecal detect --function legendre --coef 4000,2.5 --domain 0,2047 spectrum.txt
//	wavecal plot spectrum spectrum.txt -o spectrum.png
//	wavecal plot coef arc.sol --index 1 -o c1.png
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cwbudde/algo-wavecal/cmd/wavecal/commands"
)

// Version is set via ldflags.
var Version = "dev"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx, Version, os.Args[1:]); err != nil {
		log.Error().Err(err).Msg("wavecal failed")
		stop()
		os.Exit(1)
	}
}
