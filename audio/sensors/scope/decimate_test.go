package scope

import (
	"math"
	"math/rand"
	"testing"
)

func TestOrderedExtrema(t *testing.T) {
	cases := []struct {
		name          string
		in            []float64
		first, second float64
	}{
		{"dip then peak", []float64{0.2, -0.8, 0.9, -0.3}, -0.8, 0.9},
		{"peak then dip", []float64{0.2, 0.9, -0.8, -0.3}, 0.9, -0.8},
		{"flat", []float64{0.5, 0.5, 0.5}, 0.5, 0.5},
		{"nan ignored", []float64{math.NaN(), 0.3, math.NaN(), -0.1}, 0.3, -0.1},
		{"first occurrence wins", []float64{1, -1, 1, -1}, 1, -1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			first, second := OrderedExtrema(c.in)
			if first != c.first || second != c.second {
				t.Fatal(c.in, first, second)
			}
		})
	}

	first, second := OrderedExtrema([]float64{math.NaN(), math.NaN()})
	if !math.IsNaN(first) || !math.IsNaN(second) {
		t.Fatal("all NaN block should give NaN", first, second)
	}
}

func TestExtremaChunked(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	x := make([]float64, 1000)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	first, second := OrderedExtrema(x)

	var e extrema
	e.reset()
	for off := 0; off < len(x); off += 37 {
		end := off + 37
		if end > len(x) {
			end = len(x)
		}
		e.add(x[off:end])
	}
	f, s := e.ordered()
	if f != first || s != second {
		t.Fatal(first, second, f, s)
	}
}

func TestScheduleNoDrift(t *testing.T) {
	const pixels = 10000

	for _, spp := range []float64{1.37, 2, 3.3333, 7.123, 44.1, 220.5} {
		total := 0
		for k := 1; k <= pixels; k++ {
			n := readCount(k, spp)
			if n < 1 {
				t.Fatalf("spp %v: column %d reads %d frames", spp, k, n)
			}
			total += n
		}
		if exp := int(math.Floor(pixels * spp)); total != exp {
			t.Fatalf("spp %v: read %d frames, want %d", spp, total, exp)
		}
	}

	for _, spp := range []float64{0.9, 0.5, 0.37, 0.1, 1.0 / 3, 0.0123} {
		total := 0
		for k := 1; k <= pixels; k++ {
			n := writeCount(k, spp)
			if n < 1 {
				t.Fatalf("spp %v: pair %d writes %d columns", spp, k, n)
			}
			total += n
		}
		if exp := int(math.Floor(pixels / spp)); total != exp {
			t.Fatalf("spp %v: wrote %d columns, want %d", spp, total, exp)
		}
	}
}

func TestStrategyFor(t *testing.T) {
	for spp, exp := range map[float64]Strategy{
		0.25: Interpolate,
		1:    UnitCopy,
		1.01: MinMaxDecimate,
		300:  MinMaxDecimate,
	} {
		if got := StrategyFor(spp); got != exp {
			t.Fatal(spp, got, exp)
		}
	}
}

func TestInterpolateContinuity(t *testing.T) {
	for _, n := range []int{1, 2, 5, 17} {
		for _, ends := range [][2]float64{{0.1, 0.9}, {0.9, -0.4}, {-1, -1}} {
			a, b := ends[0], ends[1]
			dst := make([]float64, n+1)
			interpolate(dst, a, b)
			if dst[0] != a || dst[n] != b {
				t.Fatal(n, a, b, dst)
			}
			for i := 1; i <= n; i++ {
				d := dst[i] - dst[i-1]
				if (b >= a && d < 0) || (b < a && d > 0) {
					t.Fatal("not monotonic", n, a, b, dst)
				}
			}
		}
	}
}
