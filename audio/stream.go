package audio

import (
	"context"
	"fmt"

	"github.com/golang/glog"
	"github.com/gordonklaus/portaudio"
)

// Config represents a config that is used to open a new Stream.
type Config struct {
	// BlockSize is the number of frames in each block
	BlockSize int
	// Channels is the number of input channels
	Channels int
	// SampleRate is the sample rate (Fs).
	SampleRate float64
}

// NewSource opens the default portaudio input device and returns a channel
// of interleaved blocks. A received block stays valid until the next one is
// received.
func NewSource(ctx context.Context, cfg *Config) (<-chan []float32, <-chan error) {
	out := make(chan []float32)
	errc := make(chan error, 1)
	done := ctx.Done()

	go func() {
		defer close(out)

		if err := portaudio.Initialize(); err != nil {
			errc <- fmt.Errorf("initializing portaudio: %w", err)
			return
		}
		defer portaudio.Terminate()

		// two buffers so the device fills one while the receiver reads the other
		bufs := [2][]float32{
			make([]float32, cfg.BlockSize*cfg.Channels),
			make([]float32, cfg.BlockSize*cfg.Channels),
		}
		in := bufs[0]

		stream, err := portaudio.OpenDefaultStream(
			cfg.Channels, 0, cfg.SampleRate, cfg.BlockSize, &in)
		if err != nil {
			errc <- fmt.Errorf("opening stream: %w", err)
			return
		}
		defer stream.Close()
		if err := stream.Start(); err != nil {
			errc <- fmt.Errorf("starting stream: %w", err)
			return
		}
		defer stream.Stop()
		glog.Infof("audio: reading %d channels at %v Hz, %d frames per block",
			cfg.Channels, cfg.SampleRate, cfg.BlockSize)

		for n := 0; ; n++ {
			in = bufs[n%2]
			if err := stream.Read(); err != nil {
				if err == portaudio.InputOverflowed {
					glog.V(1).Infof("audio: input overflowed")
				} else {
					errc <- fmt.Errorf("reading from stream: %w", err)
					return
				}
			}

			select {
			case <-done:
				return
			case out <- in:
			}
		}
	}()

	return out, errc
}
