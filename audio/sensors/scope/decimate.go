package scope

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Strategy is how raw frames become display columns.
type Strategy int

// Decimation strategies
const (
	// UnitCopy copies one raw frame to one column.
	UnitCopy Strategy = iota
	// MinMaxDecimate summarizes several raw frames as their two extrema.
	MinMaxDecimate
	// Interpolate spreads each pair of raw frames over several columns.
	Interpolate
)

func (s Strategy) String() string {
	switch s {
	case UnitCopy:
		return "unit"
	case MinMaxDecimate:
		return "minmax"
	case Interpolate:
		return "interpolate"
	}
	return "unknown"
}

// StrategyFor picks the strategy for a samples-per-pixel ratio.
func StrategyFor(spp float64) Strategy {
	switch {
	case spp > 1:
		return MinMaxDecimate
	case spp < 1:
		return Interpolate
	default:
		return UnitCopy
	}
}

// readCount is the number of raw frames that make up column k (k >= 1).
// Summed over k = 1..K it is exactly floor(K*spp).
func readCount(k int, spp float64) int {
	return int(math.Floor(float64(k)*spp)) - int(math.Floor(float64(k-1)*spp))
}

// writeCount is the number of columns produced by the k-th raw frame pair
// when interpolating. Summed over k = 1..K it is exactly floor(K/spp).
func writeCount(k int, spp float64) int {
	return int(math.Floor(float64(k)/spp)) - int(math.Floor(float64(k-1)/spp))
}

// extrema accumulates the minimum and maximum of a run of samples fed in
// chunks, remembering where each first occurred.
type extrema struct {
	min, max       float64
	minPos, maxPos int
	seen           int
	valid          bool
}

func (e *extrema) reset() {
	*e = extrema{min: math.NaN(), max: math.NaN()}
}

func (e *extrema) add(x []float64) {
	if len(x) == 0 {
		return
	}
	lo, hi := floats.MinIdx(x), floats.MaxIdx(x)
	// all NaN
	if math.IsNaN(x[lo]) {
		e.seen += len(x)
		return
	}
	if !e.valid || x[lo] < e.min {
		e.min, e.minPos = x[lo], e.seen+lo
	}
	if !e.valid || x[hi] > e.max {
		e.max, e.maxPos = x[hi], e.seen+hi
	}
	e.valid = true
	e.seen += len(x)
}

// ordered returns the extrema in the order they occurred.
func (e *extrema) ordered() (first, second float64) {
	if e.minPos <= e.maxPos {
		return e.min, e.max
	}
	return e.max, e.min
}

// OrderedExtrema returns the minimum and maximum of x, whichever occurred
// first being returned first. NaN samples are ignored; an all NaN block
// yields NaN twice.
func OrderedExtrema(x []float64) (first, second float64) {
	var e extrema
	e.reset()
	e.add(x)
	return e.ordered()
}

// interpolate fills dst with len(dst) evenly spaced points from a to b, so
// dst[0] == a and dst[len(dst)-1] == b.
func interpolate(dst []float64, a, b float64) {
	floats.Span(dst, a, b)
}
