package guess

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
	"github.com/cwbudde/algo-wavecal/calib/wavesol"
)

func littrow() Grating {
	return Grating{
		Grooves:      900,
		GratingAngle: 13.625,
		CameraAngle:  27.25,
		Order:        1,
		FocalLength:  330,
		PixelSize:    0.015,
		CenterPixel:  1024,
	}
}

func TestGratingWavelengthAtCentre(t *testing.T) {
	g := littrow()
	want := 1e7 / 900 * 2 * math.Sin(13.625*math.Pi/180)

	if got := g.Wavelength(g.CenterPixel); math.Abs(got-want) > 1e-9 {
		t.Fatalf("centre wavelength = %v, want %v", got, want)
	}
}

func TestGratingBinningAndOrder(t *testing.T) {
	g := littrow()
	binned := g
	binned.XBin = 2

	// One binned pixel spans two unbinned ones.
	if a, b := g.Wavelength(g.CenterPixel+20), binned.Wavelength(g.CenterPixel+10); math.Abs(a-b) > 1e-9 {
		t.Fatalf("binned %v, unbinned %v", b, a)
	}

	second := g
	second.Order = 2

	if a, b := g.Wavelength(300), second.Wavelength(300); math.Abs(a-2*b) > 1e-9 {
		t.Fatalf("order 2 gives %v, want %v", b, a/2)
	}
}

func TestGratingSolutionFollowsModel(t *testing.T) {
	g := littrow()
	domain := wavesol.Domain{Min: 0, Max: 2047}

	for _, kind := range []wavesol.BasisKind{wavesol.Legendre, wavesol.Chebyshev} {
		t.Run(kind.String(), func(t *testing.T) {
			sol, err := g.Solution(kind, 4, domain, nil)
			if err != nil {
				t.Fatal(err)
			}

			worst := 0.0
			for x := 0.0; x <= 2047; x += 16 {
				worst = math.Max(worst, math.Abs(sol.Value(x)-g.Wavelength(x)))
			}

			if worst > 1e-2 {
				t.Fatalf("max model deviation %v A", worst)
			}

			if sol.NumPoints() != 0 {
				t.Fatal("returned solution carries the model fit state")
			}
		})
	}
}

func TestGratingValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Grating)
	}{
		{name: "grooves", mutate: func(g *Grating) { g.Grooves = 0 }},
		{name: "order", mutate: func(g *Grating) { g.Order = 0 }},
		{name: "focal length", mutate: func(g *Grating) { g.FocalLength = -1 }},
		{name: "pixel size", mutate: func(g *Grating) { g.PixelSize = math.NaN() }},
		{name: "binning", mutate: func(g *Grating) { g.XBin = -2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := littrow()
			tt.mutate(&g)

			_, err := g.Solution(wavesol.Legendre, 3, wavesol.Domain{Min: 0, Max: 2047}, nil)
			if !errors.Is(err, ErrBadGrating) || !errors.Is(err, calerr.ErrConfiguration) {
				t.Fatalf("error = %v, want ErrBadGrating", err)
			}
		})
	}
}

func TestExplicit(t *testing.T) {
	sol, err := Explicit(wavesol.Power, wavesol.Domain{Min: 0, Max: 100}, []float64{4000, 2.5})
	if err != nil {
		t.Fatal(err)
	}

	if sol.Order() != 1 || sol.Value(10) != 4025 {
		t.Fatalf("order %d, value %v", sol.Order(), sol.Value(10))
	}

	if _, err := Explicit(wavesol.Power, wavesol.Domain{Min: 0, Max: 100}, nil); !errors.Is(err, wavesol.ErrCoefLength) {
		t.Fatalf("empty coefficients: %v", err)
	}
}

func TestConvert(t *testing.T) {
	src, err := Explicit(wavesol.Power, wavesol.Domain{Min: 0, Max: 1000}, []float64{4000, 2.5, 1e-4})
	if err != nil {
		t.Fatal(err)
	}

	same, err := Convert(src, wavesol.Power, 2, wavesol.Domain{Min: 0, Max: 1000})
	if err != nil {
		t.Fatal(err)
	}

	if same.Value(500) != src.Value(500) {
		t.Fatalf("identity conversion changed the value: %v", same.Value(500))
	}

	leg, err := Convert(src, wavesol.Legendre, 2, wavesol.Domain{Min: 0, Max: 1000})
	if err != nil {
		t.Fatal(err)
	}

	for _, x := range []float64{0, 123, 500, 999} {
		if d := math.Abs(leg.Value(x) - src.Value(x)); d > 1e-8 {
			t.Fatalf("x=%v: Legendre differs by %v", x, d)
		}
	}
}
