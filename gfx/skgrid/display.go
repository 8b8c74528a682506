// Package skgrid drives small LED grids with the rendered scope.
package skgrid

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
)

// Driver carries a frame to the hardware.
type Driver interface {
	Send([]byte) error
	Close() error
}

// Grid is a display of Rect().Dx() by Rect().Dy() pixels.
type Grid interface {
	Rect() image.Rectangle
	Pixel(x, y int, col color.RGBA)
	Show() error
	Close() error
}

type initFunc func(int, int, map[string]interface{}) (Grid, error)

var drivers = map[string]initFunc{
	"skgrid": newSkGrid,
	"image":  newImageGrid,
}

// NewGrid creates a new Grid display object using the given driver and options
func NewGrid(width, height int, driver string, opts map[string]interface{}) (Grid, error) {
	init, ok := drivers[driver]
	if !ok {
		return nil, errors.New("unknown grid driver: " + driver)
	}
	if width < 1 || height < 1 {
		return nil, errors.New("grid dimensions must be positive")
	}
	return init(width, height, opts)
}

// Draw samples img onto every pixel of g and shows it.
func Draw(g Grid, img image.Image) error {
	dst, src := g.Rect(), img.Bounds()
	if src.Empty() {
		return g.Show()
	}
	for y := 0; y < dst.Dy(); y++ {
		sy := src.Min.Y + y*src.Dy()/dst.Dy()
		for x := 0; x < dst.Dx(); x++ {
			sx := src.Min.X + x*src.Dx()/dst.Dx()
			g.Pixel(x, y, color.RGBAModel.Convert(img.At(sx, sy)).(color.RGBA))
		}
	}
	return g.Show()
}

// skGrid packs pixels into an APA102 frame: a zero start word, one word of
// brightness, blue, green and red per LED, and an end frame.
type skGrid struct {
	Width     int
	Height    int
	buffer    []byte
	driver    Driver
	transpose bool
}

func newSkGrid(width, height int, opts map[string]interface{}) (Grid, error) {
	ln := width * height
	endframe := make([]byte, 6+ln/16)
	endframe[0] = 0xff
	buffer := make([]byte, 4*(ln+1))
	drv := opts["driver"]
	if drv == nil {
		return nil, errors.New("skgrid driver missing required option: 'driver'")
	}
	driver, ok := drv.(Driver)
	if !ok {
		return nil, errors.New("skgrid option 'driver' is not a `skgrid.Driver`")
	}
	var transpose bool
	if trans, ok := opts["transpose"]; ok {
		tp, ok := trans.(bool)
		if !ok {
			return nil, errors.New("skgrid option 'transpose' is not a `bool`")
		}
		transpose = tp
	}
	return &skGrid{
		Width:     width,
		Height:    height,
		transpose: transpose,
		buffer:    append(buffer, endframe...),
		driver:    driver,
	}, nil
}

func (s *skGrid) Rect() image.Rectangle {
	if s.transpose {
		return image.Rect(0, 0, s.Height, s.Width)
	}
	return image.Rect(0, 0, s.Width, s.Height)
}

func (s *skGrid) setBuffer(idx int, col color.RGBA) {
	n := 4*idx + 4
	s.buffer[n] = 0xe0 | col.A
	s.buffer[n+1] = col.B
	s.buffer[n+2] = col.G
	s.buffer[n+3] = col.R
}

func (s *skGrid) Pixel(x, y int, col color.RGBA) {
	r := s.Rect()
	if x < 0 || y < 0 || x >= r.Dx() || y >= r.Dy() {
		return
	}
	// adjust B/G channels to match R
	col.G /= 2
	col.B /= 2
	// global brightness is 5 bits
	col.A = uint8(float64(col.A)/8 + 0.5)
	if col.A > 0x1f {
		col.A = 0x1f
	}

	// the strip snakes, so every other line runs backwards
	var idx int
	if s.transpose {
		if x%2 == 1 {
			y = s.Width - 1 - y
		}
		idx = s.Width*x + y
	} else {
		if y%2 == 1 {
			x = s.Width - 1 - x
		}
		idx = s.Width*y + x
	}
	s.setBuffer(idx, col)
}

func (s *skGrid) Show() error {
	return s.driver.Send(s.buffer)
}

func (s *skGrid) Close() error {
	return s.driver.Close()
}

// ImageGrid keeps the frame in memory. Shown frames are handed to the
// optional "onShow" callback.
type ImageGrid struct {
	img    *image.RGBA
	onShow func(*image.RGBA)
}

func newImageGrid(width, height int, opts map[string]interface{}) (Grid, error) {
	g := &ImageGrid{img: image.NewRGBA(image.Rect(0, 0, width, height))}
	if cb, ok := opts["onShow"]; ok {
		f, ok := cb.(func(*image.RGBA))
		if !ok {
			return nil, errors.New("image option 'onShow' is not a `func(*image.RGBA)`")
		}
		g.onShow = f
	}
	return g, nil
}

func (g *ImageGrid) Rect() image.Rectangle { return g.img.Bounds() }

func (g *ImageGrid) Pixel(x, y int, col color.RGBA) { g.img.SetRGBA(x, y, col) }

// Image returns a copy of the current frame.
func (g *ImageGrid) Image() *image.RGBA {
	img := image.NewRGBA(g.img.Bounds())
	draw.Draw(img, img.Bounds(), g.img, image.Point{}, draw.Src)
	return img
}

func (g *ImageGrid) Show() error {
	if g.onShow != nil {
		g.onShow(g.Image())
	}
	return nil
}

func (g *ImageGrid) Close() error { return nil }
