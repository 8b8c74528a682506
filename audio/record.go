package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/golang/glog"
)

// Record writes interleaved blocks from in to a 16 bit wav file at path
// until in is closed or done is. The returned channel yields the first
// error, or nil once the file is complete, and is then closed.
func Record(done <-chan struct{}, in <-chan []float32, path string, sampleRate, channels int) <-chan error {
	errc := make(chan error, 1)

	go func() {
		defer close(errc)
		errc <- record(done, in, path, sampleRate, channels)
	}()

	return errc
}

func record(done <-chan struct{}, in <-chan []float32, path string, sampleRate, channels int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating recording: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	frames := 0
	defer func() {
		if cerr := enc.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("finishing recording: %w", cerr)
		}
		glog.V(1).Infof("audio: recorded %d frames to %s", frames, path)
	}()

	for {
		var x []float32
		var ok bool
		select {
		case <-done:
			return nil
		case x, ok = <-in:
			if !ok {
				return nil
			}
		}

		x = x[:len(x)-len(x)%channels]
		if cap(buf.Data) < len(x) {
			buf.Data = make([]int, len(x))
		}
		buf.Data = buf.Data[:len(x)]
		for i, v := range x {
			buf.Data[i] = toInt16(v)
		}
		if err := enc.Write(buf); err != nil {
			return fmt.Errorf("writing recording: %w", err)
		}
		frames += len(x) / channels
	}
}

func toInt16(v float32) int {
	s := int(v * (1 << 15))
	if s > 1<<15-1 {
		return 1<<15 - 1
	}
	if s < -1<<15 {
		return -1 << 15
	}
	return s
}
