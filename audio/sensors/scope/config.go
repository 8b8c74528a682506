package scope

import (
	"errors"
	"fmt"
	"math"
)

// Ranges of the user facing parameters.
const (
	// MinTime and MaxTime bound the visible time window in seconds.
	MinTime = 1e-4
	MaxTime = 5.0

	// MinFilter and MaxFilter bound the smoothing window in milliseconds.
	MinFilter = 0.1
	MaxFilter = 10.0

	MinGain = 0.0
	MaxGain = 100.0

	// MinLevel and MaxLevel bound the compression view in dBFS.
	MinLevel = -100.0
	MaxLevel = 60.0

	// Slack is how many columns beyond the visible width the display keeps
	// so a reader that lags slightly still finds whole columns.
	Slack = 20

	// ratioEpsilon snaps samples-per-pixel ratios this close to 1 to exactly 1.
	ratioEpsilon = 1e-9
)

// ErrInvalidConfig is returned by New for a config that cannot be used.
var ErrInvalidConfig = errors.New("invalid scope config")

// Parameters is the set of parameters that control the scope and how it is
// drawn.
type Parameters struct {
	// Time is the visible time window in seconds.
	Time float64 `json:"time" yaml:"time"`
	// Filter is the smoothing window of the compression trace in ms.
	Filter float64 `json:"filter" yaml:"filter"`
	Gain1  float64 `json:"gain1" yaml:"gain1"`
	Gain2  float64 `json:"gain2" yaml:"gain2"`
	YMax   float64 `json:"ymax" yaml:"ymax"`
	YMin   float64 `json:"ymin" yaml:"ymin"`

	CompMode  bool `json:"compMode" yaml:"compMode"`
	Freeze    bool `json:"freeze" yaml:"freeze"`
	Smoothing bool `json:"smoothing" yaml:"smoothing"`
}

// DefaultParameters returns a set of parameters that work okay for a stereo
// compressor input/output pair.
func DefaultParameters() *Parameters {
	return &Parameters{
		Time:      1,
		Filter:    0.1,
		YMax:      0,
		YMin:      -54,
		Smoothing: true,
	}
}

// Clamp forces every parameter into its range.
func (p *Parameters) Clamp() {
	p.Time = clamp(p.Time, MinTime, MaxTime)
	p.Filter = clamp(p.Filter, MinFilter, MaxFilter)
	p.Gain1 = clamp(p.Gain1, MinGain, MaxGain)
	p.Gain2 = clamp(p.Gain2, MinGain, MaxGain)
	p.YMax = clamp(p.YMax, MinLevel, MaxLevel)
	p.YMin = clamp(p.YMin, MinLevel, MaxLevel)
	if p.YMin > p.YMax {
		p.YMin, p.YMax = p.YMax, p.YMin
	}
}

// Config is passed to initialize the scope.
type Config struct {
	// Channels is the number of input channels. The compression trace needs
	// at least two.
	Channels int
	// Columns is the display width in pixels.
	Columns    int
	SampleRate float64
	// BlockSize is the largest block the audio callback delivers, in frames.
	BlockSize  int
	Parameters *Parameters
}

func (c *Config) validate() error {
	switch {
	case c.Channels < 1:
		return fmt.Errorf("%w: %d channels", ErrInvalidConfig, c.Channels)
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %v", ErrInvalidConfig, c.SampleRate)
	case c.BlockSize < 1:
		return fmt.Errorf("%w: block size %d", ErrInvalidConfig, c.BlockSize)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo || math.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
