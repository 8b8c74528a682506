package util

import (
	"fmt"
	"math"
)

const nilNode = -1

type medianNode struct {
	value      float64
	prev, next int
	valid      bool
}

// MedianFilter tracks the running median of the last Order pushed values.
//
// Values live in a fixed pool of Order+1 nodes that is filled and emptied in
// FIFO order. The valid nodes are also threaded into a doubly linked list in
// ascending order, and the filter keeps either the middle node (odd count) or
// the two middle nodes (even count) of that list, so Median is O(1) and a push
// only scans from the current middle to the insertion point.
//
// A NaN push occupies a slot but is not part of the sorted list. The filter
// is not safe for concurrent use.
type MedianFilter struct {
	nodes []medianNode
	order int
	head  int
	used  int
	size  int

	lowest, highest int
	median          int
	low, high       int
}

// NewMedianFilter returns a filter with a window of order values.
func NewMedianFilter(order int) *MedianFilter {
	f := new(MedianFilter)
	f.SetOrder(order)
	return f
}

// SetOrder changes the window length, clamped to at least 1. The node pool is
// only reallocated when the length actually changes, in which case the window
// is emptied.
func (f *MedianFilter) SetOrder(order int) {
	if order < 1 {
		order = 1
	}
	if order == f.order && f.nodes != nil {
		return
	}
	f.order = order
	f.nodes = make([]medianNode, order+1)
	f.Reset()
}

// Reset empties the window without reallocating.
func (f *MedianFilter) Reset() {
	for i := range f.nodes {
		f.nodes[i] = medianNode{prev: nilNode, next: nilNode}
	}
	f.head, f.used, f.size = 0, 0, 0
	f.lowest, f.highest = nilNode, nilNode
	f.median, f.low, f.high = nilNode, nilNode, nilNode
}

// Order is the window length.
func (f *MedianFilter) Order() int { return f.order }

// Len is the number of slots in use, including NaN pushes.
func (f *MedianFilter) Len() int { return f.used }

// Ready reports whether the window holds at least one non-NaN value.
func (f *MedianFilter) Ready() bool { return f.size > 0 }

// Median returns the median of the non-NaN values in the window, or NaN when
// there are none.
func (f *MedianFilter) Median() float64 {
	switch {
	case f.size == 0:
		return math.NaN()
	case f.size%2 == 1:
		return f.nodes[f.median].value
	default:
		return (f.nodes[f.low].value + f.nodes[f.high].value) / 2
	}
}

// Push appends v to the window, evicting the oldest value when full.
func (f *MedianFilter) Push(v float64) {
	if f.used == f.order {
		f.Pop()
	}
	x := (f.head + f.used) % len(f.nodes)
	f.used++
	f.nodes[x] = medianNode{value: v, prev: nilNode, next: nilNode}
	if math.IsNaN(v) {
		return
	}
	f.nodes[x].valid = true
	f.insert(x)
	f.check()
}

// Pop evicts the oldest value. It panics on an empty window.
func (f *MedianFilter) Pop() {
	if f.used == 0 {
		panic("pop from empty median filter")
	}
	x := f.head
	f.head = (f.head + 1) % len(f.nodes)
	f.used--
	if f.nodes[x].valid {
		f.remove(x)
		f.nodes[x] = medianNode{prev: nilNode, next: nilNode}
	}
	f.check()
}

func (f *MedianFilter) insert(x int) {
	v := f.nodes[x].value

	pivot := f.median
	if f.size%2 == 0 {
		pivot = f.high
	}

	// x goes in front of the first node whose value is >= v
	at := nilNode
	switch {
	case pivot == nilNode:
	case v <= f.nodes[pivot].value:
		at = pivot
		for p := f.nodes[at].prev; p != nilNode && f.nodes[p].value >= v; p = f.nodes[p].prev {
			at = p
		}
	case v > f.nodes[f.highest].value:
	default:
		at = f.nodes[pivot].next
		for at != nilNode && f.nodes[at].value < v {
			at = f.nodes[at].next
		}
	}

	prev := f.highest
	if at != nilNode {
		prev = f.nodes[at].prev
	}
	f.link(prev, x)
	f.link(x, at)

	switch {
	case f.size == 0:
		f.median = x
	case f.size%2 == 1:
		m := f.median
		if v <= f.nodes[m].value {
			f.low, f.high = f.nodes[m].prev, m
		} else {
			f.low, f.high = m, f.nodes[m].next
		}
		f.median = nilNode
	default:
		if v <= f.nodes[f.high].value {
			f.median = f.nodes[f.high].prev
		} else {
			f.median = f.high
		}
		f.low, f.high = nilNode, nilNode
	}
	f.size++
}

func (f *MedianFilter) remove(x int) {
	v := f.nodes[x].value

	switch {
	case f.size == 1:
		f.median = nilNode
	case f.size%2 == 1:
		m := f.median
		if x != m && v == f.nodes[m].value {
			// equal values can trade places, which makes x the middle node
			f.swap(x, m)
			m = x
		}
		switch {
		case x == m:
			f.low, f.high = f.nodes[x].prev, f.nodes[x].next
		case v < f.nodes[m].value:
			f.low, f.high = m, f.nodes[m].next
		default:
			f.low, f.high = f.nodes[m].prev, m
		}
		f.median = nilNode
	default:
		lo, hi := f.low, f.high
		if x != lo && x != hi && v == f.nodes[lo].value && v == f.nodes[hi].value {
			f.swap(x, hi)
			hi = x
		}
		switch {
		case x == hi:
			f.median = lo
		case x == lo:
			f.median = hi
		case v <= f.nodes[lo].value:
			f.median = hi
		default:
			f.median = lo
		}
		f.low, f.high = nilNode, nilNode
	}

	f.link(f.nodes[x].prev, f.nodes[x].next)
	f.size--
}

// link makes b follow a, updating the list ends when either is absent.
func (f *MedianFilter) link(a, b int) {
	if a == nilNode {
		f.lowest = b
	} else {
		f.nodes[a].next = b
	}
	if b == nilNode {
		f.highest = a
	} else {
		f.nodes[b].prev = a
	}
}

// swap exchanges the list positions of a and b.
func (f *MedianFilter) swap(a, b int) {
	switch {
	case f.nodes[a].next == b:
		p, q := f.nodes[a].prev, f.nodes[b].next
		f.link(p, b)
		f.link(b, a)
		f.link(a, q)
	case f.nodes[b].next == a:
		f.swap(b, a)
	default:
		ap, an := f.nodes[a].prev, f.nodes[a].next
		bp, bn := f.nodes[b].prev, f.nodes[b].next
		f.link(ap, b)
		f.link(b, an)
		f.link(bp, a)
		f.link(a, bn)
	}
}

func (f *MedianFilter) check() {
	if !checkInvariants {
		return
	}
	if err := f.validate(); err != nil {
		panic(err)
	}
}

// validate walks the sorted list and checks links, ordering, counts and the
// position of the middle node(s).
func (f *MedianFilter) validate() error {
	if f.used > f.order {
		return fmt.Errorf("median filter holds %d slots with order %d", f.used, f.order)
	}
	n := 0
	prev := nilNode
	for i := f.lowest; i != nilNode; i = f.nodes[i].next {
		if n > f.size {
			return fmt.Errorf("median filter list longer than %d", f.size)
		}
		node := f.nodes[i]
		if !node.valid {
			return fmt.Errorf("median filter node %d is linked but empty", i)
		}
		if node.prev != prev {
			return fmt.Errorf("median filter node %d has prev %d, want %d", i, node.prev, prev)
		}
		if prev != nilNode && f.nodes[prev].value > node.value {
			return fmt.Errorf("median filter out of order at node %d: %v > %v", i, f.nodes[prev].value, node.value)
		}
		switch {
		case f.size%2 == 1 && n == f.size/2 && i != f.median:
			return fmt.Errorf("median filter median is %d, want %d", f.median, i)
		case f.size%2 == 0 && n == f.size/2-1 && i != f.low:
			return fmt.Errorf("median filter low median is %d, want %d", f.low, i)
		case f.size%2 == 0 && n == f.size/2 && i != f.high:
			return fmt.Errorf("median filter high median is %d, want %d", f.high, i)
		}
		prev = i
		n++
	}
	if prev != f.highest {
		return fmt.Errorf("median filter highest is %d, want %d", f.highest, prev)
	}
	if n != f.size {
		return fmt.Errorf("median filter has %d linked nodes, want %d", n, f.size)
	}
	if f.size%2 == 1 && (f.low != nilNode || f.high != nilNode) {
		return fmt.Errorf("median filter has half medians with an odd count")
	}
	if f.size%2 == 0 && f.median != nilNode {
		return fmt.Errorf("median filter has a median with an even count")
	}
	return nil
}
