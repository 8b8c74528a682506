package trace

import (
	"fmt"
	"image/color"

	hsluv "github.com/hsluv/hsluv-go"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Palette holds one colour per trace.
type Palette []colorful.Color

// At returns the colour of trace i, wrapping around.
func (p Palette) At(i int) color.RGBA {
	r, g, b := p[i%len(p)].Clamped().RGB255()
	return color.RGBA{r, g, b, 0xff}
}

// EvenPalette spaces n hues evenly at constant HSLuv lightness so that no
// trace stands out over another.
func EvenPalette(n int) Palette {
	p := make(Palette, n)
	for i := range p {
		r, g, b := hsluv.HsluvToRGB(30+360*float64(i)/float64(n), 90, 65)
		p[i] = colorful.Color{R: r, G: g, B: b}
	}
	return p
}

// Gradient is a list of keypoints. Positions live in [0,1] and must be
// sorted.
type Gradient []struct {
	Col colorful.Color
	Pos float64
}

// At returns an HCL blend of the keypoints around t.
func (g Gradient) At(t float64) colorful.Color {
	for i := 0; i < len(g)-1; i++ {
		c1, c2 := g[i], g[i+1]
		if c1.Pos <= t && t <= c2.Pos {
			t := (t - c1.Pos) / (c2.Pos - c1.Pos)
			return c1.Col.BlendHcl(c2.Col, t).Clamped()
		}
	}
	if t < g[0].Pos {
		return g[0].Col
	}
	return g[len(g)-1].Col
}

// Sample takes n evenly spaced colours from the gradient.
func (g Gradient) Sample(n int) Palette {
	p := make(Palette, n)
	for i := range p {
		t := 0.5
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		p[i] = g.At(t)
	}
	return p
}

func mustParseHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic("mustParseHex: " + err.Error())
	}
	return c
}

// Spectral is a diverging red to blue gradient.
func Spectral() Gradient {
	return Gradient{
		{mustParseHex("#9e0142"), 0.0},
		{mustParseHex("#d53e4f"), 0.1},
		{mustParseHex("#f46d43"), 0.2},
		{mustParseHex("#fdae61"), 0.3},
		{mustParseHex("#fee090"), 0.4},
		{mustParseHex("#ffffbf"), 0.5},
		{mustParseHex("#e6f598"), 0.6},
		{mustParseHex("#abdda4"), 0.7},
		{mustParseHex("#66c2a5"), 0.8},
		{mustParseHex("#3288bd"), 0.9},
		{mustParseHex("#5e4fa2"), 1.0},
	}
}

// PaletteByName returns a palette of n colours: "even" or "spectral".
func PaletteByName(name string, n int) (Palette, error) {
	if n < 1 {
		n = 1
	}
	switch name {
	case "", "even":
		return EvenPalette(n), nil
	case "spectral":
		return Spectral().Sample(n), nil
	default:
		return nil, fmt.Errorf("unknown palette %q", name)
	}
}
