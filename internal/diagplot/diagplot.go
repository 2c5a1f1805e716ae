// Package diagplot renders diagnostic plots of calibration results.
package diagplot

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/cwbudde/algo-wavecal/calib/propagate"
	"github.com/cwbudde/algo-wavecal/calib/wavesol"
	"github.com/cwbudde/algo-wavecal/dsp/detect"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("diagplot: no data to plot")

var (
	acceptedColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	rejectedColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// Residuals plots w - sol(x) against pixel for the points of the last fit.
// Rejected points are drawn as red crosses.
func Residuals(sol wavesol.Solution) (*plot.Plot, error) {
	x, w, mask := sol.Points()
	if len(x) == 0 {
		return nil, ErrNoData
	}

	var kept, dropped plotter.XYs

	for i, xi := range x {
		pt := plotter.XY{X: xi, Y: w[i] - sol.Value(xi)}
		if mask[i] {
			kept = append(kept, pt)
		} else {
			dropped = append(dropped, pt)
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%v order %d residuals, RMS %.4g", sol.Kind(), sol.Order(), sol.RMS())
	p.X.Label.Text = "Pixel"
	p.Y.Label.Text = "Residual (A)"
	p.Add(plotter.NewGrid())

	if err := addScatter(p, "accepted", kept, acceptedColor, draw.CircleGlyph{}); err != nil {
		return nil, err
	}

	if err := addScatter(p, "rejected", dropped, rejectedColor, draw.CrossGlyph{}); err != nil {
		return nil, err
	}

	return p, nil
}

// Spectrum plots flux against x and marks the detected peaks.
func Spectrum(x, f []float64, peaks []detect.Peak) (*plot.Plot, error) {
	if len(x) == 0 || len(x) != len(f) {
		return nil, ErrNoData
	}

	pts := make(plotter.XYs, len(x))
	for i := range x {
		pts[i] = plotter.XY{X: x[i], Y: f[i]}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Spectrum, %d peaks", len(peaks))
	p.X.Label.Text = "Pixel"
	p.Y.Label.Text = "Flux"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("diagplot: spectrum line: %w", err)
	}

	line.Width = vg.Points(1)
	line.Color = acceptedColor
	p.Add(line)

	marks := make(plotter.XYs, len(peaks))
	for i, pk := range peaks {
		marks[i] = plotter.XY{X: pk.Pixel, Y: pk.Flux}
	}

	if err := addScatter(p, "peaks", marks, rejectedColor, draw.TriangleGlyph{}); err != nil {
		return nil, err
	}

	return p, nil
}

// Coefficient plots coefficient index of every calibrated row against row.
func Coefficient(img *propagate.ImageSolution, index int) (*plot.Plot, error) {
	var pts plotter.XYs

	for k, sol := range img.All() {
		coef := sol.Coef()
		if index < 0 || index >= len(coef) {
			return nil, fmt.Errorf("diagplot: row %d has no coefficient %d", k, index)
		}

		pts = append(pts, plotter.XY{X: float64(k), Y: coef[index]})
	}

	if len(pts) == 0 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Coefficient c%d by row", index)
	p.X.Label.Text = "Row"
	p.Y.Label.Text = fmt.Sprintf("c%d", index)
	p.Add(plotter.NewGrid())

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, fmt.Errorf("diagplot: coefficient track: %w", err)
	}

	line.Color = acceptedColor
	points.Color = acceptedColor
	p.Add(line, points)

	return p, nil
}

// Save writes p to path; the format follows the file extension.
func Save(p *plot.Plot, path string) error {
	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("diagplot: save %s: %w", path, err)
	}

	return nil
}

func addScatter(p *plot.Plot, name string, pts plotter.XYs, c color.Color, shape draw.GlyphDrawer) error {
	if len(pts) == 0 {
		return nil
	}

	s, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("diagplot: %s scatter: %w", name, err)
	}

	s.GlyphStyle.Color = c
	s.GlyphStyle.Shape = shape
	s.GlyphStyle.Radius = vg.Points(3)

	p.Add(s)
	p.Legend.Add(name, s)

	return nil
}
