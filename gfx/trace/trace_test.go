package trace

import (
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/peragwin/compscope/audio/sensors/scope"
)

var nan = float32(math.NaN())

func TestSpan(t *testing.T) {
	cases := []struct {
		v, vNext, ext, extNext float32
		a, b                   float32
	}{
		{1, 2, nan, nan, 1, 2},
		{0.5, 0.8, -0.5, nan, 0.8, -0.5},
		{0.5, -0.8, -0.5, nan, 0.5, -0.8},
		{0.5, 0.1, -0.5, 0.9, 0.5, -0.5},
		{0.5, -0.6, -0.5, -0.9, 0.5, -0.6},
		{0.5, 0.9, -0.5, 0.7, 0.7, -0.5},
		{0.2, 0.9, nan, 0.6, 0.2, 0.6},
		{0.7, 0.1, nan, 0.6, 0.7, 0.6},
		{-0.8, 0.1, 0.9, nan, 0.9, -0.8},
	}
	for _, c := range cases {
		a, b := Span(c.v, c.vNext, c.ext, c.extNext)
		if a != c.a || b != c.b {
			t.Fatal(c, a, b)
		}

		// the time order of a column's extrema does not change the span
		if !math.IsNaN(float64(c.ext)) {
			if a, b := Span(c.ext, c.vNext, c.v, c.extNext); a != c.a || b != c.b {
				t.Fatal("reversed column", c, a, b)
			}
		}
		if !math.IsNaN(float64(c.extNext)) {
			if a, b := Span(c.v, c.extNext, c.ext, c.vNext); a != c.a || b != c.b {
				t.Fatal("reversed next column", c, a, b)
			}
		}
	}

	if a, b := Span(nan, 1, nan, nan); finite(a) && finite(b) {
		t.Fatal("a missing value should not draw", a, b)
	}
}

// TestDrawSpikeOrder draws the same spike with its dip first and with its
// peak first and expects identical frames.
func TestDrawSpikeOrder(t *testing.T) {
	draw := func(spike []float64) *image.RGBA {
		params := scope.DefaultParameters()
		params.Time = 0.015625
		params.Smoothing = false
		s, err := scope.New(&scope.Config{
			Channels:   1,
			Columns:    4,
			SampleRate: 1024,
			BlockSize:  64,
			Parameters: params,
		})
		if err != nil {
			t.Fatal(err)
		}
		if s.Strategy() != scope.MinMaxDecimate || s.SamplesPerPixel() != 4 {
			t.Fatal(s.Strategy(), s.SamplesPerPixel())
		}
		frames := append(constant(4, 0.1), spike...)
		frames = append(frames, constant(8, 0.1)...)
		s.PushFrames([][]float64{frames})

		cols := s.NewColumns()
		if n := s.ReadLatest(cols); n != 4 {
			t.Fatal("read", n)
		}
		return NewRenderer(4, 101).Draw(cols, s.Params())
	}

	dipFirst := draw([]float64{-0.8, 0.9, 0.1, 0.1})
	peakFirst := draw([]float64{0.9, -0.8, 0.1, 0.1})
	drawn := 0
	for y := 0; y < 101; y++ {
		for x := 0; x < 4; x++ {
			if dipFirst.RGBAAt(x, y) != peakFirst.RGBAAt(x, y) {
				t.Fatal("frames differ at", x, y)
			}
		}
		if lit(dipFirst.RGBAAt(2, y)) {
			drawn++
		}
	}
	// the spike is drawn in full where it joins the flat column after it
	if drawn < 80 {
		t.Fatal("spike not drawn", drawn)
	}
}

// unitScope returns a scope with one column per frame.
func unitScope(t *testing.T, channels, columns int) *scope.Scope {
	t.Helper()
	params := scope.DefaultParameters()
	params.Time = float64(columns) / 1000
	params.Smoothing = false
	s, err := scope.New(&scope.Config{
		Channels:   channels,
		Columns:    columns,
		SampleRate: 1000,
		BlockSize:  64,
		Parameters: params,
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.Strategy() != scope.UnitCopy {
		t.Fatal("expected a unit copy scope", s.Strategy())
	}
	return s
}

func constant(n int, v float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = v
	}
	return x
}

func lit(c color.RGBA) bool { return c.R != 0 || c.G != 0 || c.B != 0 }

func brightness(c color.RGBA) int { return int(c.R) + int(c.G) + int(c.B) }

func near(a, b color.RGBA) bool {
	d := func(x, y uint8) bool { return math.Abs(float64(x)-float64(y)) <= 2 }
	return d(a.R, b.R) && d(a.G, b.G) && d(a.B, b.B)
}

func TestDrawSignal(t *testing.T) {
	s := unitScope(t, 2, 64)
	s.PushFrames([][]float64{constant(64, 0.5), constant(64, -0.5)})
	cols := s.NewColumns()
	s.ReadLatest(cols)

	r := NewRenderer(64, 101)
	img := r.Draw(cols, s.Params())
	if img.Bounds() != image.Rect(0, 0, 64, 101) {
		t.Fatal(img.Bounds())
	}

	for x := 1; x < 64; x++ {
		if c := img.RGBAAt(x, 25); !near(c, r.Palette.At(0)) {
			t.Fatal("left channel at", x, c, r.Palette.At(0))
		}
		if c := img.RGBAAt(x, 75); !near(c, r.Palette.At(1)) {
			t.Fatal("right channel at", x, c, r.Palette.At(1))
		}
		if c := img.RGBAAt(x, 50); lit(c) {
			t.Fatal("nothing should be drawn between the traces", x, c)
		}
	}
	// the first pixel has no column to its left
	if c := img.RGBAAt(0, 25); lit(c) {
		t.Fatal(c)
	}

	p := s.Params()
	p.Gain1 = 20 * math.Log10(2)
	img = r.Draw(cols, p)
	if c := img.RGBAAt(10, 0); !lit(c) {
		t.Fatal("gain should move the left channel to the top", c)
	}
}

func TestDrawCompression(t *testing.T) {
	s := unitScope(t, 2, 64)
	s.PushFrames([][]float64{constant(64, 0.5), constant(64, 0.25)})
	cols := s.NewColumns()
	s.ReadLatest(cols)

	p := s.Params()
	p.CompMode = true
	p.YMax, p.YMin = 0, -12

	r := NewRenderer(64, 101)
	img := r.Draw(cols, p)
	// a ratio of one half is about -6 dB, halfway down
	if c := img.RGBAAt(32, 50); !near(c, r.Palette.At(2)) {
		t.Fatal(c, r.Palette.At(2))
	}
	if c := img.RGBAAt(32, 25); lit(c) {
		t.Fatal("signals are not drawn in compression mode", c)
	}

	// non-positive ratios are skipped
	s.PushFrames([][]float64{constant(64, 0.5), constant(64, 0)})
	s.ReadLatest(cols)
	img = r.Draw(cols, p)
	for y := 0; y < 101; y++ {
		if c := img.RGBAAt(32, y); lit(c) {
			t.Fatal("zero ratio drawn at", y, c)
		}
	}
}

func TestDrawFreeze(t *testing.T) {
	s := unitScope(t, 1, 32)
	r := NewRenderer(32, 101)
	cols := s.NewColumns()

	s.PushFrames([][]float64{constant(32, 0.5)})
	s.ReadLatest(cols)
	p := s.Params()
	r.Draw(cols, p)

	s.PushFrames([][]float64{constant(32, -0.5)})
	s.ReadLatest(cols)
	p.Freeze = true
	img := r.Draw(cols, p)
	if !lit(img.RGBAAt(16, 25)) || lit(img.RGBAAt(16, 75)) {
		t.Fatal("frozen renderer should keep the old columns")
	}

	p.Freeze = false
	img = r.Draw(cols, p)
	if lit(img.RGBAAt(16, 25)) || !lit(img.RGBAAt(16, 75)) {
		t.Fatal("unfrozen renderer should draw the new columns")
	}
	if r.Columns().Value(0)[31] != -0.5 {
		t.Fatal(r.Columns().Value(0))
	}
}

func TestDrawPersistence(t *testing.T) {
	s := unitScope(t, 1, 32)
	r := NewRenderer(32, 101)
	r.Persistence = 0.5
	cols := s.NewColumns()
	p := s.Params()

	s.PushFrames([][]float64{constant(32, 0.5)})
	s.ReadLatest(cols)
	r.Draw(cols, p)

	s.PushFrames([][]float64{constant(32, -0.5)})
	s.ReadLatest(cols)
	img := r.Draw(cols, p)

	old, cur := img.RGBAAt(16, 25), img.RGBAAt(16, 75)
	if !lit(old) || brightness(old) >= brightness(cur) {
		t.Fatal("old trace should fade", old, cur)
	}
}

func TestPalette(t *testing.T) {
	p := EvenPalette(3)
	if p.At(0) == p.At(1) || p.At(1) == p.At(2) || p.At(0) != p.At(3) {
		t.Fatal(p.At(0), p.At(1), p.At(2), p.At(3))
	}

	g := Spectral()
	same := func(c colorful.Color, hex string) bool {
		return c.DistanceRgb(mustParseHex(hex)) < 0.01
	}
	if !same(g.At(0), "#9e0142") || !same(g.At(1), "#5e4fa2") || !same(g.At(2), "#5e4fa2") {
		t.Fatal(g.At(0).Hex(), g.At(1).Hex(), g.At(2).Hex())
	}

	sp, err := PaletteByName("spectral", 1)
	if err != nil || len(sp) != 1 || !same(sp[0], "#ffffbf") {
		t.Fatal(sp, err)
	}
	if _, err := PaletteByName("plaid", 3); err == nil {
		t.Fatal("expected an error for an unknown palette")
	}
}

func TestSavePlot(t *testing.T) {
	s := unitScope(t, 2, 50)
	left := make([]float64, 20)
	for i := range left {
		left[i] = math.Sin(float64(i) / 3)
	}
	s.PushFrames([][]float64{left, constant(20, 0.5)})
	cols := s.NewColumns()
	s.ReadLatest(cols)

	// placeholders come first, then a run of real columns
	segs := Segments(cols.Value(0))
	if len(segs) != 1 || len(segs[0]) != 20 || segs[0][0].X != 30 {
		t.Fatal(segs)
	}
	if segs := Segments([]float64{1, math.NaN(), 2, 3, math.Inf(1)}); len(segs) != 2 || len(segs[1]) != 2 {
		t.Fatal(segs)
	}
	if TraceName(2, 3) != "compression" || TraceName(1, 3) != "ch1" {
		t.Fatal(TraceName(2, 3), TraceName(1, 3))
	}

	path := filepath.Join(t.TempDir(), "columns.png")
	if err := SavePlot(cols, path, "test"); err != nil {
		t.Fatal(err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Fatal(fi, err)
	}
}

func TestDrawEmptyColumns(t *testing.T) {
	s := unitScope(t, 1, 32)
	r := NewRenderer(32, 101)
	cols := s.NewColumns()
	s.PushFrames([][]float64{constant(32, 0.5)})
	s.ReadLatest(cols)
	r.Draw(cols, s.Params())

	img := r.Draw(scope.NewColumns(1, 32), s.Params())
	if !lit(img.RGBAAt(16, 25)) || r.Columns().Len() != 32 {
		t.Fatal("empty columns should redraw the last trace", r.Columns().Len())
	}
}
