// Package config loads the YAML configuration of the wavecal command.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
	"github.com/cwbudde/algo-wavecal/calib/guess"
	"github.com/cwbudde/algo-wavecal/calib/linematch"
	"github.com/cwbudde/algo-wavecal/calib/propagate"
	"github.com/cwbudde/algo-wavecal/calib/solfile"
	"github.com/cwbudde/algo-wavecal/calib/wavesol"
	"github.com/cwbudde/algo-wavecal/dsp/detect"
	"github.com/cwbudde/algo-wavecal/dsp/window"
)

// ErrInvalid is returned for configurations that fail to parse or validate.
var ErrInvalid = fmt.Errorf("config: invalid configuration: %w", calerr.ErrConfiguration)

// Config is the complete command configuration.
type Config struct {
	LineList  string          `yaml:"linelist" validate:"required"`
	Image     string          `yaml:"image"`
	Output    string          `yaml:"output"`
	Solution  SolutionConfig  `yaml:"solution"`
	Guess     GuessConfig     `yaml:"guess"`
	Header    HeaderConfig    `yaml:"header"`
	Detect    DetectConfig    `yaml:"detect"`
	Match     MatchConfig     `yaml:"match"`
	Propagate PropagateConfig `yaml:"propagate"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SolutionConfig fixes the form of every row solution.
type SolutionConfig struct {
	Function  string  `yaml:"function" validate:"oneof=poly power polynomial legendre chebyshev spline"`
	Order     int     `yaml:"order" validate:"gte=0,lte=15"`
	DomainMin float64 `yaml:"domain_min"`
	DomainMax float64 `yaml:"domain_max" validate:"gtfield=DomainMin"`
}

// GuessConfig selects the initial solution source. Exactly one of
// Coefficients, Grating and Database is used, in that order of preference.
type GuessConfig struct {
	Coefficients []float64      `yaml:"coefficients"`
	Grating      *GratingConfig `yaml:"grating"`
	Database     string         `yaml:"database"`
}

// GratingConfig mirrors guess.Grating.
type GratingConfig struct {
	Grooves      float64 `yaml:"grooves" validate:"gt=0"`
	GratingAngle float64 `yaml:"grating_angle"`
	CameraAngle  float64 `yaml:"camera_angle"`
	Order        int     `yaml:"order" validate:"ne=0"`
	FocalLength  float64 `yaml:"focal_length" validate:"gt=0"`
	PixelSize    float64 `yaml:"pixel_size" validate:"gt=0"`
	XBin         int     `yaml:"xbin" validate:"gte=0"`
	CenterPixel  float64 `yaml:"center_pixel"`
}

// HeaderConfig describes the observation for the output header and the
// solution database query.
type HeaderConfig struct {
	Instrument        string    `yaml:"instrument"`
	Grating           string    `yaml:"grating"`
	GratingAngle      float64   `yaml:"grating_angle"`
	ArticulationAngle float64   `yaml:"articulation_angle"`
	Filter            string    `yaml:"filter"`
	Slit              string    `yaml:"slit"`
	Date              time.Time `yaml:"date"`
}

// DetectConfig controls peak detection.
type DetectConfig struct {
	Sigma             float64   `yaml:"sigma" validate:"gt=0"`
	Niter             int       `yaml:"niter" validate:"gte=0"`
	Widths            []float64 `yaml:"widths" validate:"omitempty,dive,gt=0"`
	CentroidHalfWidth int       `yaml:"centroid_half_width" validate:"gte=0"`
	Flatten           int       `yaml:"flatten" validate:"gte=0"`
}

// MatchConfig controls the line matcher.
type MatchConfig struct {
	Res            float64    `yaml:"res" validate:"gt=0"`
	Dres           float64    `yaml:"dres" validate:"gte=0"`
	Margin         float64    `yaml:"margin" validate:"gte=0"`
	Iterations     int        `yaml:"iterations" validate:"gte=1"`
	Window         int        `yaml:"window" validate:"gte=0"`
	Shift          float64    `yaml:"shift" validate:"gte=0"`
	Steps          int        `yaml:"steps" validate:"gte=0"`
	Taper          string     `yaml:"taper" validate:"oneof=tukey hann rectangular"`
	TaperFraction  float64    `yaml:"taper_fraction" validate:"gte=0,lte=1"`
	PixelTolerance float64    `yaml:"pixel_tolerance" validate:"gte=0"`
	MaxDelta       float64    `yaml:"max_delta" validate:"gte=0"`
	SkipRankCheck  bool       `yaml:"skip_rank_check"`
	XCor           XCorConfig `yaml:"xcor"`
}

// XCorConfig controls the global coefficient search.
type XCorConfig struct {
	Dcoef           []float64 `yaml:"dcoef" validate:"omitempty,dive,gte=0"`
	Ndstep          int       `yaml:"ndstep" validate:"gte=1"`
	MaxCombinations int       `yaml:"max_combinations" validate:"gte=0"`
	Workers         int       `yaml:"workers" validate:"gte=0"`
}

// PropagateConfig controls the row walk and row extraction.
type PropagateConfig struct {
	Seed           int     `yaml:"seed" validate:"gte=-1"`
	Step           int     `yaml:"step" validate:"gte=1"`
	RowMin         int     `yaml:"row_min" validate:"gte=0"`
	RowMax         int     `yaml:"row_max" validate:"gte=-1"`
	MaxRMS         float64 `yaml:"max_rms" validate:"gt=0"`
	SeedIterations int     `yaml:"seed_iterations" validate:"gte=0"`
	SeedShift      float64 `yaml:"seed_shift" validate:"gt=0"`
	SeedSteps      int     `yaml:"seed_steps" validate:"gte=1"`
	Average        int     `yaml:"average" validate:"gte=1"`
	Continuum      int     `yaml:"continuum" validate:"gte=0"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
	Output string `yaml:"output" validate:"required"`
}

// Default returns the configuration used for fields absent from the file.
func Default() Config {
	xc := linematch.DefaultXCorConfig()
	mc := linematch.DefaultMatchConfig()
	pc := propagate.DefaultConfig()

	return Config{
		Solution: SolutionConfig{Function: "legendre", Order: 3, DomainMin: 0, DomainMax: 2047},
		Detect:   DetectConfig{Sigma: 5, Niter: 5},
		Match: MatchConfig{
			Res:            1,
			Iterations:     3,
			Window:         mc.Window,
			Shift:          mc.Shift,
			Steps:          mc.Steps,
			Taper:          mc.TaperWindow.String(),
			TaperFraction:  mc.Taper,
			PixelTolerance: mc.PixelTolerance,
			MaxDelta:       mc.MaxDelta,
			XCor:           XCorConfig{Ndstep: xc.Ndstep, MaxCombinations: xc.MaxCombinations},
		},
		Propagate: PropagateConfig{
			Seed:           pc.Seed,
			Step:           pc.Step,
			RowMin:         pc.RowMin,
			RowMax:         pc.RowMax,
			MaxRMS:         pc.MaxRMS,
			SeedIterations: pc.SeedIterations,
			SeedShift:      pc.SeedShift,
			SeedSteps:      pc.SeedSteps,
			Average:        1,
		},
		Logging: LoggingConfig{Level: "info", Format: "console", Output: "stderr"},
	}
}

// Load reads and validates the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return nil
}

// Kind returns the configured basis.
func (c *Config) Kind() (wavesol.BasisKind, error) {
	return wavesol.ParseBasisKind(c.Solution.Function)
}

// Domain returns the configured pixel domain.
func (c *Config) Domain() wavesol.Domain {
	return wavesol.Domain{Min: c.Solution.DomainMin, Max: c.Solution.DomainMax}
}

// DetectOptions converts the detection settings.
func (c *Config) DetectOptions() []detect.Option {
	var opts []detect.Option

	if len(c.Detect.Widths) > 0 {
		opts = append(opts, detect.WithWidths(c.Detect.Widths...))
	}

	if c.Detect.CentroidHalfWidth > 0 {
		opts = append(opts, detect.WithCentroidHalfWidth(c.Detect.CentroidHalfWidth))
	}

	if c.Detect.Flatten > 0 {
		opts = append(opts, detect.WithFlatten(c.Detect.Flatten))
	}

	return opts
}

// MatcherConfig converts the matcher settings.
func (c *Config) MatcherConfig() (linematch.Config, error) {
	m := c.Match

	taper, err := window.ParseType(m.Taper)
	if err != nil {
		return linematch.Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return linematch.Config{
		Sigma:  c.Detect.Sigma,
		Niter:  c.Detect.Niter,
		Detect: c.DetectOptions(),
		Res:    m.Res,
		Dres:   m.Dres,
		Margin: m.Margin,
		XCor: linematch.XCorConfig{
			Dcoef:           m.XCor.Dcoef,
			Ndstep:          m.XCor.Ndstep,
			MaxCombinations: m.XCor.MaxCombinations,
			Workers:         m.XCor.Workers,
		},
		Match: linematch.MatchConfig{
			Window:         m.Window,
			Shift:          m.Shift,
			Steps:          m.Steps,
			TaperWindow:    taper,
			Taper:          m.TaperFraction,
			PixelTolerance: m.PixelTolerance,
			MaxDelta:       m.MaxDelta,
			SkipRankCheck:  m.SkipRankCheck,
		},
		Iterations: m.Iterations,
	}, nil
}

// PropagateConfig converts the row-walk settings.
func (c *Config) PropagateConfig() propagate.Config {
	p := c.Propagate

	return propagate.Config{
		Seed:           p.Seed,
		Step:           p.Step,
		RowMin:         p.RowMin,
		RowMax:         p.RowMax,
		MaxRMS:         p.MaxRMS,
		SeedIterations: p.SeedIterations,
		SeedShift:      p.SeedShift,
		SeedSteps:      p.SeedSteps,
	}
}

// Extraction wraps src with the configured row averaging and continuum
// subtraction.
func (c *Config) Extraction(src propagate.SpectrumProvider) propagate.Extraction {
	return propagate.Extraction{Src: src, Average: c.Propagate.Average, Continuum: c.Propagate.Continuum}
}

// SolfileHeader returns the output header for a run.
func (c *Config) SolfileHeader() (solfile.Header, error) {
	kind, err := c.Kind()
	if err != nil {
		return solfile.Header{}, err
	}

	h := c.Header

	return solfile.Header{
		Instrument:        h.Instrument,
		Grating:           h.Grating,
		GratingAngle:      h.GratingAngle,
		ArticulationAngle: h.ArticulationAngle,
		Filter:            h.Filter,
		Slit:              h.Slit,
		Date:              h.Date,
		Function:          kind,
		Order:             c.Solution.Order,
		Domain:            c.Domain(),
	}, nil
}

// Query returns the solution database query for this observation.
func (c *Config) Query() solfile.Query {
	h := c.Header

	return solfile.Query{
		Instrument:        h.Instrument,
		Grating:           h.Grating,
		GratingAngle:      h.GratingAngle,
		ArticulationAngle: h.ArticulationAngle,
		Filter:            h.Filter,
		Slit:              h.Slit,
		Date:              h.Date,
	}
}

// Grating returns the configured grating model, if any.
func (c *Config) Grating() (guess.Grating, bool) {
	g := c.Guess.Grating
	if g == nil {
		return guess.Grating{}, false
	}

	return guess.Grating{
		Grooves:      g.Grooves,
		GratingAngle: g.GratingAngle,
		CameraAngle:  g.CameraAngle,
		Order:        g.Order,
		FocalLength:  g.FocalLength,
		PixelSize:    g.PixelSize,
		XBin:         g.XBin,
		CenterPixel:  g.CenterPixel,
	}, true
}
