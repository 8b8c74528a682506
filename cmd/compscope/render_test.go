package main

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/peragwin/compscope/audio/sensors/scope"
	"github.com/peragwin/compscope/gfx/skgrid"
)

// testScope returns a scope drawing one column per frame with a block of
// frames already pushed.
func testScope(t *testing.T, columns int) *scope.Scope {
	t.Helper()
	params := scope.DefaultParameters()
	params.Time = float64(columns) / 1000
	params.Smoothing = false
	s, err := scope.New(&scope.Config{
		Channels:   2,
		Columns:    columns,
		SampleRate: 1000,
		BlockSize:  64,
		Parameters: params,
	})
	if err != nil {
		t.Fatal(err)
	}
	left := make([]float64, columns)
	right := make([]float64, columns)
	for i := range left {
		left[i] = 0.5
		right[i] = 0.25
	}
	s.PushFrames([][]float64{left, right})
	return s
}

type failingGrid struct {
	skgrid.Grid
	closed bool
}

func (f *failingGrid) Show() error { return errors.New("gone") }

func (f *failingGrid) Close() error {
	f.closed = true
	return nil
}

func TestDisplayFrame(t *testing.T) {
	s := testScope(t, 32)
	d, err := newDisplay(s, RenderConfig{Width: 32, Height: 21, Palette: "even"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Latest() != nil {
		t.Fatal("no frame before the first render")
	}

	var shown *image.RGBA
	g, err := skgrid.NewGrid(16, 7, "image", map[string]interface{}{
		"onShow": func(img *image.RGBA) { shown = img },
	})
	if err != nil {
		t.Fatal(err)
	}
	inner, _ := skgrid.NewGrid(16, 7, "image", nil)
	bad := &failingGrid{Grid: inner}
	d.attach(g)
	d.attach(bad)

	img := d.frame()
	if img.Bounds() != image.Rect(0, 0, 32, 21) || d.Latest() != img {
		t.Fatal("latest frame not kept", img.Bounds())
	}
	// 0.5 maps a quarter of the way down
	if c := img.RGBAAt(16, 5); c == (color.RGBA{0, 0, 0, 255}) {
		t.Fatal("trace not drawn", c)
	}
	if shown == nil || shown.Bounds().Dx() != 16 {
		t.Fatal("grid not shown")
	}
	if !bad.closed || d.attached() != 1 {
		t.Fatal("failing grid should be dropped", d.attached())
	}
	if d.Columns().Len() != 32 {
		t.Fatal(d.Columns().Len())
	}

	if _, err := newDisplay(s, RenderConfig{Width: 2, Height: 2, Palette: "plaid"}); err == nil {
		t.Fatal("expected a palette error")
	}
}

func TestDisplayKeepsFrameWithoutColumns(t *testing.T) {
	s := testScope(t, 32)
	d, err := newDisplay(s, RenderConfig{Width: 32, Height: 21, Palette: "even"})
	if err != nil {
		t.Fatal(err)
	}
	first := d.frame()

	// same width but the wrong trace count reads nothing
	d.cols = scope.NewColumns(1, 32)
	if n := s.ReadLatest(d.cols); n != 0 {
		t.Fatal("mismatched columns read", n)
	}
	img := d.frame()
	if img != first || d.Latest() != first {
		t.Fatal("empty read should keep the previous frame")
	}
	if c := img.RGBAAt(16, 5); c == (color.RGBA{0, 0, 0, 255}) {
		t.Fatal("trace lost", c)
	}
}
