package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/golang/glog"
	"github.com/hajimehoshi/go-mp3"
)

var (
	// ErrUnsupportedFormat is returned by OpenFile for an unknown extension.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrInvalidFile is returned by OpenFile when the file cannot be decoded.
	ErrInvalidFile = errors.New("invalid audio file")
)

// FileSource replays a decoded audio file as if it came from a device.
type FileSource struct {
	samples    []float32
	channels   int
	sampleRate float64
}

// OpenFile decodes a .wav or .mp3 file into memory.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var src *FileSource
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		src, err = decodeWAV(f)
	case ".mp3":
		src, err = decodeMP3(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	glog.V(1).Infof("audio: decoded %s: %d frames, %d channels at %v Hz",
		path, src.Frames(), src.channels, src.sampleRate)
	return src, nil
}

func decodeWAV(r io.ReadSeeker) (*FileSource, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidFile
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if dec.NumChans == 0 || dec.BitDepth == 0 {
		return nil, fmt.Errorf("%w: missing format chunk", ErrInvalidFile)
	}

	// 8 bit wav is unsigned
	offset := 0
	if dec.BitDepth == 8 {
		offset = 128
	}
	scale := 1 / float32(int64(1)<<(dec.BitDepth-1))
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v-offset) * scale
	}
	return &FileSource{
		samples:    samples,
		channels:   int(dec.NumChans),
		sampleRate: float64(dec.SampleRate),
	}, nil
}

// decodeMP3 decodes to 16 bit little endian stereo, which is all go-mp3
// produces.
func decodeMP3(r io.Reader) (*FileSource, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / (1 << 15)
	}
	return &FileSource{
		samples:    samples,
		channels:   2,
		sampleRate: float64(dec.SampleRate()),
	}, nil
}

// NewFileSource wraps interleaved samples already in memory.
func NewFileSource(samples []float32, channels int, sampleRate float64) *FileSource {
	return &FileSource{samples: samples, channels: channels, sampleRate: sampleRate}
}

// SampleRate of the decoded audio.
func (f *FileSource) SampleRate() float64 { return f.sampleRate }

// Channels of the decoded audio.
func (f *FileSource) Channels() int { return f.channels }

// Frames is the length of the decoded audio in frames.
func (f *FileSource) Frames() int { return len(f.samples) / f.channels }

// Samples returns the interleaved samples.
func (f *FileSource) Samples() []float32 { return f.samples }

// Stream sends blocks of blockSize interleaved frames paced at the sample
// rate until ctx is done, starting over at the end when loop is set. The
// blocks share memory with the source and must not be modified.
func (f *FileSource) Stream(ctx context.Context, blockSize int, loop bool) <-chan []float32 {
	out := make(chan []float32)
	period := time.Duration(float64(blockSize) / f.sampleRate * float64(time.Second))
	if period <= 0 {
		period = time.Millisecond
	}

	go func() {
		defer close(out)
		if f.Frames() == 0 {
			return
		}
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		step := blockSize * f.channels
		for pos := 0; ; {
			end := pos + step
			if end > len(f.samples) {
				end = len(f.samples) - len(f.samples)%f.channels
			}
			select {
			case <-ctx.Done():
				return
			case out <- f.samples[pos:end]:
			}

			pos = end
			if pos+f.channels > len(f.samples) {
				if !loop {
					return
				}
				pos = 0
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return out
}
