package util

import (
	"fmt"
	"math"
	"sync/atomic"
)

// maxPeekAttempts bounds how often ReadHead retries a copy that the producer
// overwrote while it was in progress.
const maxPeekAttempts = 4

// TransferBuffer is a fixed capacity FIFO of multi-channel frames that hands
// audio from a real-time producer to a single consumer without locks.
//
// Frames are stored planar: data[ch][i] holds the bits of channel ch of the
// i-th slot. Slots and the monotonically increasing read and write cursors
// are only accessed atomically. A push neither blocks nor allocates.
//
// Consistency is relaxed. When the buffer is overwritable, the
// producer evicts the oldest frames before writing over them; a consumer that
// lags behind can observe stale frames but ReadHead refuses to return a
// region that was overwritten during its copy. Callers size buffers with
// slack so this is rare.
//
// Resize, ResizeChannels and Reset must not run concurrently with any other
// method.
type TransferBuffer struct {
	data     [][]uint64
	capacity int

	read  atomic.Uint64
	write atomic.Uint64

	overwrite bool
}

// NewTransferBuffer creates a buffer holding capacity frames of the given
// number of channels.
func NewTransferBuffer(channels, capacity int) *TransferBuffer {
	b := new(TransferBuffer)
	b.ResizeChannels(channels, capacity)
	return b
}

// SetOverwritable selects whether a push that does not fit evicts the oldest
// unread frames (true) or is treated as a programming error (false).
func (b *TransferBuffer) SetOverwritable(overwrite bool) {
	b.overwrite = overwrite
}

// Overwritable reports the overwrite policy.
func (b *TransferBuffer) Overwritable() bool { return b.overwrite }

// Channels is the number of channels per frame.
func (b *TransferBuffer) Channels() int { return len(b.data) }

// Capacity is the maximum number of unread frames.
func (b *TransferBuffer) Capacity() int { return b.capacity }

// Unread is the number of committed frames not yet consumed.
func (b *TransferBuffer) Unread() int {
	r := b.read.Load()
	w := b.write.Load()
	return int(w - r)
}

// SpaceLeft is the number of frames that can be pushed without eviction.
func (b *TransferBuffer) SpaceLeft() int {
	return b.capacity - b.Unread()
}

// Push writes every frame of in and commits all of them.
func (b *TransferBuffer) Push(in [][]float64) {
	b.PushCommit(in, -1, -1)
}

// PushCommit writes numToWrite frames of in at the write cursor but only
// makes the first numToCommit of them visible to the consumer. The remaining
// frames are written ahead and will be overwritten by the next push. A
// negative numToWrite means all of in; a negative numToCommit means
// numToWrite.
func (b *TransferBuffer) PushCommit(in [][]float64, numToWrite, numToCommit int) {
	if len(in) < len(b.data) {
		panic(fmt.Sprintf("cant push %d channels into a %d channel buffer", len(in), len(b.data)))
	}
	if numToWrite < 0 {
		numToWrite = len(in[0])
	}
	if numToCommit < 0 {
		numToCommit = numToWrite
	}
	if numToCommit > numToWrite {
		panic(fmt.Sprintf("cant commit %d frames when writing %d", numToCommit, numToWrite))
	}
	if numToWrite > b.capacity {
		panic(fmt.Sprintf("cant push %d frames into a buffer of size %d", numToWrite, b.capacity))
	}

	if free := b.SpaceLeft(); numToWrite > free {
		if !b.overwrite {
			panic(fmt.Sprintf("push of %d frames overflows a buffer with %d free", numToWrite, free))
		}
		// evict first so the consumer never copies a slot while we fill it
		b.advance(numToWrite - free)
	}
	w := b.write.Load()
	start := int(w % uint64(b.capacity))
	size1 := b.capacity - start
	if size1 > numToWrite {
		size1 = numToWrite
	}
	for ch, dst := range b.data {
		src := in[ch][:numToWrite]
		store(dst[start:start+size1], src[:size1])
		store(dst, src[size1:])
	}

	b.write.Store(w + uint64(numToCommit))
}

// Pop copies len(out[0]) frames into out and consumes them.
func (b *TransferBuffer) Pop(out [][]float64) {
	b.PopCommit(out, -1, -1)
}

// PopCommit copies the oldest numToRead unread frames into out and then
// consumes numToCommit of them. Frames read but not committed are returned
// again by the next pop. Negative counts default like PushCommit.
func (b *TransferBuffer) PopCommit(out [][]float64, numToRead, numToCommit int) {
	if len(out) < len(b.data) {
		panic(fmt.Sprintf("cant pop %d channels into %d", len(b.data), len(out)))
	}
	if numToRead < 0 {
		numToRead = len(out[0])
	}
	if numToCommit < 0 {
		numToCommit = numToRead
	}
	if numToCommit > numToRead {
		panic(fmt.Sprintf("cant commit %d frames when reading %d", numToCommit, numToRead))
	}
	if unread := b.Unread(); numToRead > unread {
		panic(fmt.Sprintf("cant pop %d frames, only %d unread", numToRead, unread))
	}

	r := b.read.Load()
	b.copyOut(out, r, numToRead)
	b.advanceFrom(r, numToCommit)
}

// ReadHead copies the newest numToRead unread frames into out, oldest first,
// without consuming anything. It returns the number of frames copied, which
// is less than numToRead when fewer frames are unread and zero when the
// producer kept overwriting the region being copied. A negative numToRead
// means len(out[0]).
func (b *TransferBuffer) ReadHead(out [][]float64, numToRead int) int {
	if len(out) < len(b.data) {
		panic(fmt.Sprintf("cant read %d channels into %d", len(b.data), len(out)))
	}
	if numToRead < 0 {
		numToRead = len(out[0])
	}

	for attempt := 0; attempt < maxPeekAttempts; attempt++ {
		r := b.read.Load()
		w := b.write.Load()
		n := numToRead
		if avail := int(w - r); n > avail {
			n = avail
		}
		from := w - uint64(n)
		b.copyOut(out, from, n)

		// the producer always evicts before it overwrites, so an untouched
		// read cursor means the copy is whole
		if b.read.Load() <= from {
			return n
		}
	}
	return 0
}

// Trim discards up to n of the oldest unread frames without copying them and
// returns how many were discarded.
func (b *TransferBuffer) Trim(n int) int {
	if n <= 0 {
		return 0
	}
	return b.advance(n)
}

// Reset clears the cursors and zeroes the storage.
func (b *TransferBuffer) Reset() {
	for _, ch := range b.data {
		for i := range ch {
			atomic.StoreUint64(&ch[i], 0)
		}
	}
	b.read.Store(0)
	b.write.Store(0)
}

// Resize changes the capacity, keeping the channel count. Content is lost.
func (b *TransferBuffer) Resize(capacity int) {
	b.ResizeChannels(len(b.data), capacity)
}

// ResizeChannels changes both the channel count and the capacity. Content is
// lost.
func (b *TransferBuffer) ResizeChannels(channels, capacity int) {
	if channels < 1 || capacity < 1 {
		panic(fmt.Sprintf("invalid transfer buffer shape %dx%d", channels, capacity))
	}
	b.data = make([][]uint64, channels)
	for i := range b.data {
		b.data[i] = make([]uint64, capacity)
	}
	b.capacity = capacity
	b.read.Store(0)
	b.write.Store(0)
}

func (b *TransferBuffer) copyOut(out [][]float64, from uint64, n int) {
	start := int(from % uint64(b.capacity))
	size1 := b.capacity - start
	if size1 > n {
		size1 = n
	}
	for ch, src := range b.data {
		dst := out[ch][:n]
		load(dst[:size1], src[start:start+size1])
		load(dst[size1:], src[:n-size1])
	}
}

func store(dst []uint64, src []float64) {
	for i, v := range src {
		atomic.StoreUint64(&dst[i], math.Float64bits(v))
	}
}

func load(dst []float64, src []uint64) {
	for i := range dst {
		dst[i] = math.Float64frombits(atomic.LoadUint64(&src[i]))
	}
}

// advance moves the read cursor forward by up to n frames.
func (b *TransferBuffer) advance(n int) int {
	for {
		r := b.read.Load()
		w := b.write.Load()
		if avail := int(w - r); n > avail {
			n = avail
		}
		if b.read.CompareAndSwap(r, r+uint64(n)) {
			return n
		}
	}
}

// advanceFrom moves the read cursor to from+n unless the producer already
// evicted past that point.
func (b *TransferBuffer) advanceFrom(from uint64, n int) {
	for {
		r := b.read.Load()
		target := from + uint64(n)
		if r >= target {
			return
		}
		if w := b.write.Load(); target > w {
			target = w
		}
		if b.read.CompareAndSwap(r, target) {
			return
		}
	}
}
