package propagate

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/cwbudde/algo-wavecal/calib/calerr"
)

func smallImage(t *testing.T) *Image {
	t.Helper()

	im, err := NewImage([]float64{0, 1, 2, 3}, [][]float64{
		{1, 1, 1, 1},
		{2, 4, 6, 8},
		{3, 3, 3, 3},
		{10, 10, 10, 10},
	})
	if err != nil {
		t.Fatal(err)
	}

	return im
}

func TestExtractRowAverages(t *testing.T) {
	im := smallImage(t)

	tests := []struct {
		name string
		k, n int
		want []float64
	}{
		{name: "single", k: 1, n: 1, want: []float64{2, 4, 6, 8}},
		{name: "three centred", k: 1, n: 3, want: []float64{2, 8.0 / 3, 10.0 / 3, 4}},
		{name: "clipped at top", k: 3, n: 3, want: []float64{6.5, 6.5, 6.5, 6.5}},
		{name: "zero means one", k: 0, n: 0, want: []float64{1, 1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, f, err := ExtractRow(im, tt.k, tt.n, 0)
			if err != nil {
				t.Fatal(err)
			}

			if !cmp.Equal(f, tt.want, cmpopts.EquateApprox(0, 1e-12)) {
				t.Fatalf("row = %v, want %v", f, tt.want)
			}
		})
	}
}

func TestExtractRowDoesNotAlias(t *testing.T) {
	im := smallImage(t)

	_, f, err := ExtractRow(im, 0, 1, 0)
	if err != nil {
		t.Fatal(err)
	}

	f[0] = 99

	if _, orig, _ := im.Row(0); orig[0] != 1 {
		t.Fatal("ExtractRow returned the image storage")
	}
}

func TestExtractRowContinuum(t *testing.T) {
	im, err := NewImage([]float64{0, 1, 2, 3, 4}, [][]float64{{5, 5, 9, 5, 5}})
	if err != nil {
		t.Fatal(err)
	}

	_, f, err := ExtractRow(im, 0, 1, 2)
	if err != nil {
		t.Fatal(err)
	}

	if want := []float64{0, 0, 4, 0, 0}; !cmp.Equal(f, want) {
		t.Fatalf("flattened = %v, want %v", f, want)
	}
}

func TestExtractionProvider(t *testing.T) {
	im := smallImage(t)
	var src SpectrumProvider = Extraction{Src: im, Average: 3}

	if src.Rows() != 4 {
		t.Fatalf("rows = %d", src.Rows())
	}

	_, f, err := src.Row(1)
	if err != nil {
		t.Fatal(err)
	}

	if !cmp.Equal(f, []float64{2, 8.0 / 3, 10.0 / 3, 4}, cmpopts.EquateApprox(0, 1e-12)) {
		t.Fatalf("row = %v", f)
	}
}

func TestImageErrors(t *testing.T) {
	if _, err := NewImage(nil, nil); !errors.Is(err, ErrBadImage) {
		t.Fatalf("empty axis: %v", err)
	}

	if _, err := NewImage([]float64{0, 1}, [][]float64{{1}}); !errors.Is(err, ErrBadImage) {
		t.Fatalf("short row: %v", err)
	}

	im := smallImage(t)
	if _, _, err := im.Row(4); !errors.Is(err, ErrRowRange) || !errors.Is(err, calerr.ErrConfiguration) {
		t.Fatalf("row range: %v", err)
	}

	if _, _, err := ExtractRow(im, -1, 1, 0); !errors.Is(err, ErrRowRange) {
		t.Fatalf("extract range: %v", err)
	}
}

func TestReadTable(t *testing.T) {
	x, f, err := ReadTable(strings.NewReader("# pixel flux\n0 1.5\n\n1 2.5 extra\n2 -3\n"))
	if err != nil {
		t.Fatal(err)
	}

	if !cmp.Equal(x, []float64{0, 1, 2}) || !cmp.Equal(f, []float64{1.5, 2.5, -3}) {
		t.Fatalf("x = %v f = %v", x, f)
	}

	if _, _, err := ReadTable(strings.NewReader("0 1\n1\n")); !errors.Is(err, ErrParseText) {
		t.Fatalf("one column: %v", err)
	}

	if _, _, err := ReadTable(strings.NewReader("0 abc\n")); !errors.Is(err, ErrParseText) {
		t.Fatalf("bad number: %v", err)
	}
}

func TestReadImage(t *testing.T) {
	im, err := ReadImage(strings.NewReader("1 2 3\n# comment\n4 5 6\n"))
	if err != nil {
		t.Fatal(err)
	}

	if im.Rows() != 2 {
		t.Fatalf("rows = %d", im.Rows())
	}

	x, f, err := im.Row(1)
	if err != nil {
		t.Fatal(err)
	}

	if !cmp.Equal(x, []float64{0, 1, 2}) || !cmp.Equal(f, []float64{4, 5, 6}) {
		t.Fatalf("x = %v f = %v", x, f)
	}

	if _, err := ReadImage(strings.NewReader("1 2 3\n4 5\n")); !errors.Is(err, ErrBadImage) {
		t.Fatalf("ragged: %v", err)
	}

	if _, err := ReadImage(strings.NewReader("")); !errors.Is(err, ErrBadImage) {
		t.Fatalf("empty: %v", err)
	}
}
