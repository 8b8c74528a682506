package scope

// Columns holds the most recent display columns read from a Scope.
//
// Each trace has a value per column and an extent: the second extremum of a
// decimated column, or NaN when the column is a single value. Renderers draw
// a vertical span from value to extent.
type Columns struct {
	traces int
	data   [][]float64
	n      int
}

// NewColumns allocates room for width columns of the given number of traces.
func NewColumns(traces, width int) *Columns {
	data := make([][]float64, 2*traces)
	for i := range data {
		data[i] = make([]float64, width)
	}
	return &Columns{traces: traces, data: data}
}

// Traces is the number of traces per column.
func (c *Columns) Traces() int { return c.traces }

// Width is the number of columns that fit.
func (c *Columns) Width() int { return len(c.data[0]) }

// Len is the number of valid columns from the last read.
func (c *Columns) Len() int { return c.n }

// Value returns the values of a trace, oldest column first.
func (c *Columns) Value(trace int) []float64 { return c.data[trace][:c.n] }

// Extent returns the paired extents of a trace.
func (c *Columns) Extent(trace int) []float64 { return c.data[c.traces+trace][:c.n] }

// CopyFrom makes c a copy of o, reallocating if the shapes differ.
func (c *Columns) CopyFrom(o *Columns) {
	if c.traces != o.traces || c.Width() < o.n {
		*c = *NewColumns(o.traces, o.Width())
	}
	for i := range o.data {
		copy(c.data[i], o.data[i][:o.n])
	}
	c.n = o.n
}
