// Package logobs builds the command's zerolog logger and adapts it to
// propagate.Observer.
package logobs

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cwbudde/algo-wavecal/calib/propagate"
)

// Config selects the logger level, format and destination.
type Config struct {
	// Level is one of trace, debug, info, warn, error.
	Level string
	// Format is console or json.
	Format string
	// Output is stdout, stderr or a file path.
	Output string
}

// NewLogger returns a logger writing to cfg.Output. The returned closer
// releases a file output and is a no-op otherwise.
func NewLogger(cfg Config) (zerolog.Logger, io.Closer, error) {
	var (
		w      io.Writer
		closer io.Closer = nopCloser{}
	)

	switch cfg.Output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("logobs: open log output: %w", err)
		}

		w, closer = f, f
	}

	return New(w, cfg), closer, nil
}

// New returns a logger writing to w with cfg's level and format.
func New(w io.Writer, cfg Config) zerolog.Logger {
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Observer logs propagation events. Accepted rows are logged at debug level,
// rejected rows at warn level, and progress at info level every Every rows.
type Observer struct {
	log   zerolog.Logger
	every int
}

var _ propagate.Observer = (*Observer)(nil)

// NewObserver returns an Observer tagging every event with runID. every <= 0
// logs progress only at completion.
func NewObserver(log zerolog.Logger, runID uuid.UUID, every int) *Observer {
	return &Observer{
		log:   log.With().Str("run_id", runID.String()).Logger(),
		every: every,
	}
}

// OnRowAccepted logs the accepted row.
func (o *Observer) OnRowAccepted(res propagate.RowResult) {
	o.log.Debug().
		Int("row", res.Row).
		Float64("rms", res.RMS()).
		Int("nlines", res.Lines).
		Int("npeaks", res.Peaks).
		Msg("row accepted")
}

// OnRowRejected logs the rejected row and the reason.
func (o *Observer) OnRowRejected(row int, err error) {
	o.log.Warn().Int("row", row).Err(err).Msg("row rejected")
}

// OnProgress logs the number of visited rows.
func (o *Observer) OnProgress(done, total int) {
	if done != total && (o.every <= 0 || done%o.every != 0) {
		return
	}

	o.log.Info().Int("done", done).Int("total", total).Msg("propagation progress")
}
