// Package trace rasterises scope columns into images.
package trace

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/chewxy/math32"
	"github.com/phrozen/blend"

	"github.com/peragwin/compscope/audio/sensors/scope"
)

// Renderer draws the most recent columns of a scope, one pixel per column,
// newest on the right.
type Renderer struct {
	Width, Height int
	// Persistence is the fraction of the previous frame kept under the new
	// one, from 0 (none) to 1.
	Persistence float32
	Palette     Palette

	last   *scope.Columns
	canvas *image.RGBA
	layer  *image.RGBA
}

// NewRenderer creates a renderer with the even palette.
func NewRenderer(width, height int) *Renderer {
	return &Renderer{
		Width:   width,
		Height:  height,
		Palette: EvenPalette(3),
		last:    scope.NewColumns(1, 1),
	}
}

// Columns returns the columns drawn by the last call to Draw.
func (r *Renderer) Columns() *scope.Columns { return r.last }

// Draw renders cols with params. While params.Freeze is set, or when cols is
// empty, the columns drawn last are drawn again. The returned image is reused
// by the next call.
func (r *Renderer) Draw(cols *scope.Columns, params scope.Parameters) *image.RGBA {
	if cols.Len() > 0 && (!params.Freeze || r.last.Len() == 0) {
		r.last.CopyFrom(cols)
	}
	bounds := image.Rect(0, 0, r.Width, r.Height)
	if r.canvas == nil || r.canvas.Bounds() != bounds {
		r.canvas = image.NewRGBA(bounds)
		r.layer = image.NewRGBA(bounds)
		draw.Draw(r.canvas, bounds, image.NewUniform(color.Black), image.Point{}, draw.Src)
	}
	draw.Draw(r.layer, bounds, image.NewUniform(color.Black), image.Point{}, draw.Src)

	c := r.last
	if params.CompMode {
		r.drawCompression(c, c.Traces()-1, params)
	} else {
		for t := 0; t < c.Traces()-1; t++ {
			gain := params.Gain2
			if t == 0 {
				gain = params.Gain1
			}
			r.drawSignal(c, t, decibelsToGain(float32(gain)))
		}
	}

	r.fade()
	blend.BlendImage(r.canvas, r.layer, blend.Screen)
	return r.canvas
}

func (r *Renderer) drawSignal(c *scope.Columns, t int, gain float32) {
	h := float32(r.Height - 1)
	toY := func(v float32) int {
		return r.clampY(int(math32.Floor((1-v*gain)/2*h + 0.5)))
	}
	col := r.Palette.At(t)
	r.eachSpan(c, t, func(x int, a, b float32) {
		r.fill(x, toY(a), toY(b), col)
	})
}

func (r *Renderer) drawCompression(c *scope.Columns, t int, params scope.Parameters) {
	ymin, ymax := float32(params.YMin), float32(params.YMax)
	if ymin == ymax {
		ymax += 0.0001
	}
	h := float32(r.Height - 1)
	toY := func(v float32) int {
		db := 20 * math32.Log10(v)
		return r.clampY(int(math32.Floor((ymax-db)/(ymax-ymin)*h + 0.5)))
	}
	col := r.Palette.At(t)
	value := c.Value(t)
	r.eachSpan(c, t, func(x int, a, b float32) {
		i := len(value) - r.Width + x - 1
		if value[i] <= 0 || value[i+1] <= 0 || a <= 0 || b <= 0 {
			return
		}
		r.fill(x, toY(a), toY(b), col)
	})
}

// eachSpan calls f for every pixel column that joins two columns of trace t
// with finite values.
func (r *Renderer) eachSpan(c *scope.Columns, t int, f func(x int, a, b float32)) {
	value, extent := c.Value(t), c.Extent(t)
	n := len(value)
	for x := 0; x < r.Width; x++ {
		i := n - r.Width + x - 1
		if i < 0 {
			continue
		}
		a, b := Span(float32(value[i]), float32(value[i+1]),
			float32(extent[i]), float32(extent[i+1]))
		if finite(a) && finite(b) {
			f(x, a, b)
		}
	}
}

func (r *Renderer) fill(x, y1, y2 int, col color.RGBA) {
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	for y := y1; y <= y2; y++ {
		r.layer.SetRGBA(x, y, col)
	}
}

func (r *Renderer) clampY(y int) int {
	if y < 0 {
		return 0
	}
	if y >= r.Height {
		return r.Height - 1
	}
	return y
}

func (r *Renderer) fade() {
	k := r.Persistence
	if k < 0 {
		k = 0
	} else if k > 1 {
		k = 1
	}
	pix := r.canvas.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i] = uint8(float32(pix[i]) * k)
		pix[i+1] = uint8(float32(pix[i+1]) * k)
		pix[i+2] = uint8(float32(pix[i+2]) * k)
		pix[i+3] = 0xff
	}
}

func decibelsToGain(db float32) float32 {
	return math32.Pow(10, db/20)
}
