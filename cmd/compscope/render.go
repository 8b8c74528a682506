package main

import (
	"context"
	"image"
	"image/draw"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/peragwin/compscope/audio/sensors/scope"
	"github.com/peragwin/compscope/gfx/skgrid"
	"github.com/peragwin/compscope/gfx/trace"
)

// display pulls columns from the scope at the frame rate and renders them.
// The latest frame is kept for the snapshot handler and shown on any
// attached grids.
type display struct {
	scope    *scope.Scope
	renderer *trace.Renderer
	cols     *scope.Columns

	latest atomic.Pointer[image.RGBA]

	mu    sync.Mutex
	grids []skgrid.Grid
}

func newDisplay(s *scope.Scope, cfg RenderConfig) (*display, error) {
	palette, err := trace.PaletteByName(cfg.Palette, s.Traces())
	if err != nil {
		return nil, err
	}
	r := trace.NewRenderer(cfg.Width, cfg.Height)
	r.Persistence = cfg.Persistence
	r.Palette = palette
	return &display{
		scope:    s,
		renderer: r,
		cols:     s.NewColumns(),
	}, nil
}

// frame renders one frame and returns it. When no columns can be read the
// previous frame is returned unchanged.
func (d *display) frame() *image.RGBA {
	if d.cols.Width() != d.scope.Columns() {
		d.cols = d.scope.NewColumns()
	}
	if d.scope.ReadLatest(d.cols) == 0 {
		if prev := d.latest.Load(); prev != nil {
			return prev
		}
	}
	img := d.renderer.Draw(d.cols, d.scope.Params())

	snap := image.NewRGBA(img.Bounds())
	draw.Draw(snap, snap.Bounds(), img, image.Point{}, draw.Src)
	d.latest.Store(snap)

	d.mu.Lock()
	defer d.mu.Unlock()
	live := d.grids[:0]
	for _, g := range d.grids {
		if err := skgrid.Draw(g, snap); err != nil {
			glog.Warningf("grid: dropping after failed frame: %v", err)
			g.Close()
			continue
		}
		live = append(live, g)
	}
	d.grids = live
	return snap
}

// Latest returns the most recent frame, or nil before the first one.
func (d *display) Latest() *image.RGBA { return d.latest.Load() }

// Columns returns the columns drawn in the latest frame. It must only be
// called from the goroutine running the display.
func (d *display) Columns() *scope.Columns { return d.renderer.Columns() }

func (d *display) attach(g skgrid.Grid) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.grids = append(d.grids, g)
}

func (d *display) attached() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.grids)
}

func (d *display) run(ctx context.Context, frameRate int) {
	ticker := time.NewTicker(time.Second / time.Duration(frameRate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.mu.Lock()
			for _, g := range d.grids {
				g.Close()
			}
			d.grids = nil
			d.mu.Unlock()
			return
		case <-ticker.C:
			d.frame()
		}
	}
}

// connectGrid keeps a remote grid controller attached, redialling after
// retry whenever it drops.
func (d *display) connectGrid(ctx context.Context, cfg GridConfig, retry time.Duration) {
	for {
		if d.attached() == 0 {
			if err := d.dialGrid(cfg); err != nil {
				glog.Errorf("grid: %v. Retrying in %v...", err, retry)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}

func (d *display) dialGrid(cfg GridConfig) error {
	rem, err := skgrid.NewRemote(cfg.Remote, time.Second)
	if err != nil {
		return err
	}
	g, err := skgrid.NewGrid(cfg.Width, cfg.Height, "skgrid", map[string]interface{}{
		"transpose": cfg.Transpose,
		"driver":    rem,
	})
	if err != nil {
		rem.Close()
		return err
	}
	glog.Infof("grid: connected to %s", cfg.Remote)
	d.attach(g)
	return nil
}
