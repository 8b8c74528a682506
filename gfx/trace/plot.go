package trace

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/peragwin/compscope/audio/sensors/scope"
)

// TraceName labels trace t of columns holding the given number of traces.
// The last trace is the compression ratio.
func TraceName(t, traces int) string {
	if t == traces-1 {
		return "compression"
	}
	return fmt.Sprintf("ch%d", t)
}

// Segments splits x into runs of finite values, indexed by column.
func Segments(x []float64) []plotter.XYs {
	var segs []plotter.XYs
	var cur plotter.XYs
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			if len(cur) > 0 {
				segs = append(segs, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: float64(i), Y: v})
	}
	if len(cur) > 0 {
		segs = append(segs, cur)
	}
	return segs
}

// NewPlot builds a line plot of each trace in cols.
func NewPlot(cols *scope.Columns, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "column"
	p.Y.Label.Text = "value"

	for t := 0; t < cols.Traces(); t++ {
		labelled := false
		for _, seg := range Segments(cols.Value(t)) {
			l, err := plotter.NewLine(seg)
			if err != nil {
				return nil, fmt.Errorf("trace %d: %w", t, err)
			}
			l.Color = plotutil.Color(t)
			p.Add(l)
			if !labelled {
				p.Legend.Add(TraceName(t, cols.Traces()), l)
				labelled = true
			}
		}
	}
	return p, nil
}

// SavePlot writes a plot of cols to path. The format follows the extension.
func SavePlot(cols *scope.Columns, path, title string) error {
	p, err := NewPlot(cols, title)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving plot: %w", err)
	}
	return nil
}
