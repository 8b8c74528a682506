package trace

import "github.com/chewxy/math32"

// Span returns the vertical extent to fill at a pixel so that a trace stays
// connected to the next column. v and ext are a column's value and extent,
// vNext and extNext those of the column to its right. An extent is NaN when
// the column holds a single value.
//
// The value and extent of a column may come in either time order; the span
// only depends on their max and min. The returned pair is unordered. Either
// may be NaN, in which case the pixel is not drawn.
func Span(v, vNext, ext, extNext float32) (a, b float32) {
	v, ext = collapse(v, ext)
	vNext, extNext = collapse(vNext, extNext)

	if !math32.IsNaN(ext) {
		a, b = v, ext
		next := vNext
		if !math32.IsNaN(extNext) {
			next = extNext
		}
		if v < next {
			a = next
		}
		if ext > vNext {
			b = vNext
		}
		return a, b
	}

	a, b = v, vNext
	if !math32.IsNaN(extNext) && v < extNext {
		b = extNext
		if v > vNext {
			a = vNext
		}
	}
	return a, b
}

// collapse orders a decimated column as (max, min). A column without an
// extent is returned as is.
func collapse(v, ext float32) (hi, lo float32) {
	if ext > v {
		return ext, v
	}
	return v, ext
}

func finite(x float32) bool {
	return !math32.IsNaN(x) && !math32.IsInf(x, 0)
}
