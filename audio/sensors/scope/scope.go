package scope

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/graphql-go/graphql"

	"github.com/peragwin/compscope/audio/util"
)

// minWork is the smallest number of raw frames popped at once while
// decimating.
const minWork = 256

// Scope turns a stream of audio frames into display columns.
//
// The audio side calls PushFrames or PushInterleaved from a single goroutine.
// Each frame is queued in a raw TransferBuffer along with a compression trace
// |ch1/ch0|, optionally smoothed by a MedianFilter, and then as many columns
// as the queued frames allow are produced into a display TransferBuffer. A
// renderer on another goroutine pulls the newest columns with ReadLatest.
//
// Setters may be called from any goroutine. They take effect at the start of
// the next push.
type Scope struct {
	channels int
	traces   int

	sampleRate float64
	blockSize  int

	raw     *util.TransferBuffer
	display atomic.Pointer[util.TransferBuffer]
	median  *util.MedianFilter

	mu      sync.Mutex
	params  atomic.Pointer[Parameters]
	columns atomic.Int64
	dirty   atomic.Bool

	sppBits  atomic.Uint64
	compBits atomic.Uint64
	mode     atomic.Int32
	produced atomic.Uint64

	// owned by the pushing goroutine
	spp       float64
	strategy  Strategy
	counter   int
	width     int
	smoothing bool
	in        [][]float64
	work      [][]float64
	out       [][]float64
	ext       []extrema

	schema graphql.Schema
}

// New creates a Scope from a Config and prepares it for cfg.SampleRate.
func New(cfg *Config) (*Scope, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	params := DefaultParameters()
	if cfg.Parameters != nil {
		*params = *cfg.Parameters
	}
	params.Clamp()

	columns := cfg.Columns
	if columns < 1 {
		columns = 1
	}

	s := &Scope{
		channels: cfg.Channels,
		traces:   cfg.Channels + 1,
		median:   util.NewMedianFilter(1),
	}
	s.params.Store(params)
	s.columns.Store(int64(columns))
	s.compBits.Store(math.Float64bits(math.NaN()))
	s.Prepare(cfg.SampleRate, cfg.BlockSize)

	if err := s.initGraphql(); err != nil {
		return nil, fmt.Errorf("scope schema: %w", err)
	}
	return s, nil
}

// Prepare sizes every buffer for a sample rate and the largest block the
// audio callback will push. It must not run concurrently with a push.
func (s *Scope) Prepare(sampleRate float64, blockSize int) {
	s.sampleRate = sampleRate
	s.blockSize = blockSize

	capacity := int(math.Ceil(sampleRate * MaxTime))
	if capacity < blockSize {
		capacity = blockSize
	}
	s.raw = util.NewTransferBuffer(s.traces, capacity)
	s.raw.SetOverwritable(true)

	work := blockSize
	if work < minWork {
		work = minWork
	}
	s.in = newBlock(s.traces, blockSize)
	s.work = newBlock(s.traces, work)
	s.ext = make([]extrema, s.traces)

	s.median.Reset()
	s.width = 0
	s.update()
}

// update applies pending parameter changes and restarts the column schedule.
func (s *Scope) update() {
	s.dirty.Store(false)
	p := s.params.Load()
	columns := int(s.columns.Load())

	spp := p.Time * s.sampleRate / float64(columns)
	if lo := 1 / float64(columns); spp < lo {
		spp = lo
	}
	if math.Abs(spp-1) < ratioEpsilon {
		spp = 1
	}
	s.spp = spp
	s.strategy = StrategyFor(spp)
	s.counter = 1
	s.sppBits.Store(math.Float64bits(spp))
	s.mode.Store(int32(s.strategy))

	s.median.SetOrder(int(s.sampleRate * p.Filter / 1000))
	if p.Smoothing != s.smoothing {
		s.median.Reset()
		s.smoothing = p.Smoothing
	}

	if columns != s.width {
		s.resizeDisplay(columns)
	}

	glog.V(2).Infof("scope: %d columns, %.4f samples per pixel (%v), median order %d",
		columns, spp, s.strategy, s.median.Order())
}

// resizeDisplay publishes a new display buffer filled with a screen of
// placeholder columns.
func (s *Scope) resizeDisplay(columns int) {
	d := util.NewTransferBuffer(2*s.traces, 2*columns+Slack)
	d.SetOverwritable(true)
	blank := newBlock(2*s.traces, columns)
	for _, ch := range blank {
		for i := range ch {
			ch[i] = math.NaN()
		}
	}
	d.Push(blank)

	s.out = newBlock(2*s.traces, columns+2)
	s.width = columns
	s.display.Store(d)
}

// PushFrames queues a block of planar frames, one slice per input channel.
func (s *Scope) PushFrames(block [][]float64) {
	if len(block) < s.channels {
		panic(fmt.Sprintf("scope expects %d channels, got %d", s.channels, len(block)))
	}
	if s.dirty.Load() {
		s.update()
	}
	total := len(block[0])
	for off := 0; off < total; {
		n := total - off
		if n > len(s.in[0]) {
			n = len(s.in[0])
		}
		for ch := 0; ch < s.channels; ch++ {
			copy(s.in[ch][:n], block[ch][off:off+n])
		}
		s.commit(n)
		off += n
	}
}

// PushInterleaved queues a block of interleaved frames as delivered by the
// audio device. The block must hold whole frames.
func (s *Scope) PushInterleaved(buf []float32) {
	if len(buf)%s.channels != 0 {
		panic(fmt.Sprintf("scope expects whole frames of %d channels, got %d samples", s.channels, len(buf)))
	}
	if s.dirty.Load() {
		s.update()
	}
	frames := len(buf) / s.channels
	for off := 0; off < frames; {
		n := frames - off
		if n > len(s.in[0]) {
			n = len(s.in[0])
		}
		for i := 0; i < n; i++ {
			frame := buf[(off+i)*s.channels:]
			for ch := 0; ch < s.channels; ch++ {
				s.in[ch][i] = float64(frame[ch])
			}
		}
		s.commit(n)
		off += n
	}
}

// commit derives the compression trace for the first n frames in s.in,
// queues them and drains every column that is ready.
func (s *Scope) commit(n int) {
	comp := s.in[s.channels]
	for i := 0; i < n; i++ {
		c := math.NaN()
		if s.channels > 1 {
			c = math.Abs(s.in[1][i] / s.in[0][i])
		}
		if s.smoothing {
			s.median.Push(c)
			c = s.median.Median()
		}
		comp[i] = c
	}
	if n > 0 {
		s.compBits.Store(math.Float64bits(comp[n-1]))
	}
	s.raw.PushCommit(s.in, n, n)
	s.drain()
}

func (s *Scope) drain() {
	d := s.display.Load()
	for {
		var ok bool
		switch s.strategy {
		case UnitCopy:
			ok = s.copyColumn(d)
		case MinMaxDecimate:
			ok = s.decimateColumn(d)
		case Interpolate:
			ok = s.interpolateColumns(d)
		}
		if !ok {
			return
		}
		if extra := d.Unread() - (s.width + Slack); extra > 0 {
			d.Trim(extra)
		}
	}
}

func (s *Scope) copyColumn(d *util.TransferBuffer) bool {
	if s.raw.Unread() < 1 {
		return false
	}
	s.raw.PopCommit(s.work, 1, 1)
	for t := 0; t < s.traces; t++ {
		s.out[t][0] = s.work[t][0]
		s.out[s.traces+t][0] = math.NaN()
	}
	d.PushCommit(s.out, 1, 1)
	s.produced.Add(1)
	return true
}

func (s *Scope) decimateColumn(d *util.TransferBuffer) bool {
	n := readCount(s.counter, s.spp)
	if s.raw.Unread() < n {
		return false
	}
	s.counter++
	if n == 1 {
		return s.copyColumn(d)
	}

	for t := range s.ext {
		s.ext[t].reset()
	}
	for rem := n; rem > 0; {
		m := rem
		if m > len(s.work[0]) {
			m = len(s.work[0])
		}
		s.raw.PopCommit(s.work, m, m)
		for t := range s.ext {
			s.ext[t].add(s.work[t][:m])
		}
		rem -= m
	}
	for t := range s.ext {
		s.out[t][0], s.out[s.traces+t][0] = s.ext[t].ordered()
	}
	d.PushCommit(s.out, 1, 1)
	s.produced.Add(1)
	return true
}

// interpolateColumns spreads the next raw frame pair over the columns owed
// to it. The pair's second frame is written ahead but not committed, so the
// next pair starts exactly where this one ended.
func (s *Scope) interpolateColumns(d *util.TransferBuffer) bool {
	if s.raw.Unread() < 2 {
		return false
	}
	n := writeCount(s.counter, s.spp)
	s.counter++
	s.raw.PopCommit(s.work, 2, 1)
	for t := 0; t < s.traces; t++ {
		interpolate(s.out[t][:n+1], s.work[t][0], s.work[t][1])
		ext := s.out[s.traces+t][:n+1]
		for i := range ext {
			ext[i] = math.NaN()
		}
	}
	d.PushCommit(s.out, n+1, n)
	s.produced.Add(uint64(n))
	return true
}

// Process pushes interleaved blocks from in until in is closed or done is.
// The returned channel is closed when it stops.
func (s *Scope) Process(done <-chan struct{}, in <-chan []float32) <-chan struct{} {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case <-done:
				return
			case x, ok := <-in:
				if !ok {
					return
				}
				s.PushInterleaved(x)
			}
		}
	}()
	return stopped
}

// NewColumns allocates a Columns sized for the current display width.
func (s *Scope) NewColumns() *Columns {
	return NewColumns(s.traces, s.Columns())
}

// ReadLatest copies the newest columns into c without consuming them and
// returns how many were copied. It returns 0 when the producer overran the
// read, in which case the caller should keep what it drew last.
func (s *Scope) ReadLatest(c *Columns) int {
	d := s.display.Load()
	if d.Channels() != len(c.data) {
		c.n = 0
		return 0
	}
	c.n = d.ReadHead(c.data, c.Width())
	return c.n
}

// Params returns a copy of the current parameters.
func (s *Scope) Params() Parameters {
	return *s.params.Load()
}

// SetParameters replaces all parameters.
func (s *Scope) SetParameters(p Parameters) {
	s.modify(func(cur *Parameters) error {
		*cur = p
		return nil
	})
}

// SetTimeWindow sets the visible time window in seconds.
func (s *Scope) SetTimeWindow(seconds float64) {
	s.modify(func(p *Parameters) error {
		p.Time = seconds
		return nil
	})
}

// SetSmoothingWindow sets the median window of the compression trace in ms.
func (s *Scope) SetSmoothingWindow(ms float64) {
	s.modify(func(p *Parameters) error {
		p.Filter = ms
		return nil
	})
}

// SetSmoothing turns median smoothing of the compression trace on or off.
func (s *Scope) SetSmoothing(on bool) {
	s.modify(func(p *Parameters) error {
		p.Smoothing = on
		return nil
	})
}

// SetFreeze freezes or unfreezes renderers reading this scope.
func (s *Scope) SetFreeze(on bool) {
	s.modify(func(p *Parameters) error {
		p.Freeze = on
		return nil
	})
}

// SetColumns sets the display width in pixels.
func (s *Scope) SetColumns(n int) {
	if n < 1 {
		n = 1
	}
	s.columns.Store(int64(n))
	s.dirty.Store(true)
}

func (s *Scope) modify(f func(*Parameters) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *s.params.Load()
	if err := f(&p); err != nil {
		return err
	}
	p.Clamp()
	s.params.Store(&p)
	s.dirty.Store(true)
	return nil
}

// Columns is the requested display width.
func (s *Scope) Columns() int { return int(s.columns.Load()) }

// Channels is the number of input channels.
func (s *Scope) Channels() int { return s.channels }

// Traces is the number of traces per column: the inputs and compression.
func (s *Scope) Traces() int { return s.traces }

// SampleRate is the rate the scope was prepared for.
func (s *Scope) SampleRate() float64 { return s.sampleRate }

// SamplesPerPixel is the ratio in effect since the last update.
func (s *Scope) SamplesPerPixel() float64 { return math.Float64frombits(s.sppBits.Load()) }

// Zoom is the horizontal zoom in percent.
func (s *Scope) Zoom() float64 { return 100 / s.SamplesPerPixel() }

// Strategy is the decimation strategy in effect.
func (s *Scope) Strategy() Strategy { return Strategy(s.mode.Load()) }

// Compression is the most recent value of the compression trace.
func (s *Scope) Compression() float64 { return math.Float64frombits(s.compBits.Load()) }

// Produced counts the columns produced since New.
func (s *Scope) Produced() uint64 { return s.produced.Load() }

func newBlock(channels, frames int) [][]float64 {
	b := make([][]float64, channels)
	for i := range b {
		b[i] = make([]float64, frames)
	}
	return b
}
