package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/peragwin/compscope/audio/sensors/scope"
)

// Config is the host configuration. It is read from YAML and then overridden
// by any flags set on the command line.
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Scope     ScopeConfig     `yaml:"scope"`
	Render    RenderConfig    `yaml:"render"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type SourceConfig struct {
	// File replays a .wav or .mp3 instead of reading the default input.
	File       string  `yaml:"file"`
	Loop       bool    `yaml:"loop"`
	SampleRate float64 `yaml:"sample_rate"`
	Channels   int     `yaml:"channels"`
	BlockSize  int     `yaml:"block_size"`
	// Record also writes the input to a wav file.
	Record string `yaml:"record"`
}

type ScopeConfig struct {
	Params scope.Parameters `yaml:"params"`
}

type RenderConfig struct {
	Width       int        `yaml:"width"`
	Height      int        `yaml:"height"`
	FrameRate   int        `yaml:"frame_rate"`
	Persistence float32    `yaml:"persistence"`
	Palette     string     `yaml:"palette"`
	Grid        GridConfig `yaml:"grid"`
}

// GridConfig describes an optional LED grid controller.
type GridConfig struct {
	Remote    string `yaml:"remote"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Transpose bool   `yaml:"transpose"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
	// StreamMs is the period of the websocket column stream.
	StreamMs int `yaml:"stream_ms"`
}

type TelemetryConfig struct {
	Broker     string `yaml:"broker"`
	Topic      string `yaml:"topic"`
	IntervalMs int    `yaml:"interval_ms"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			SampleRate: 48000,
			Channels:   2,
			BlockSize:  256,
		},
		Scope: ScopeConfig{Params: *scope.DefaultParameters()},
		Render: RenderConfig{
			Width:     800,
			Height:    300,
			FrameRate: 30,
			Palette:   "even",
			Grid:      GridConfig{Width: 60, Height: 16, Transpose: true},
		},
		Server: ServerConfig{
			Addr:     ":8080",
			StreamMs: 50,
		},
		Telemetry: TelemetryConfig{
			Topic:      "compscope/compression",
			IntervalMs: 100,
		},
	}
}

// LoadConfig reads a YAML file over cfg, so fields missing from the file keep
// their current values.
func LoadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return cfg.validate()
}

func (c *Config) validate() error {
	switch {
	case c.Source.File == "" && c.Source.SampleRate <= 0:
		return fmt.Errorf("source: sample rate %v", c.Source.SampleRate)
	case c.Source.File == "" && c.Source.Channels < 1:
		return fmt.Errorf("source: %d channels", c.Source.Channels)
	case c.Source.BlockSize < 1:
		return fmt.Errorf("source: block size %d", c.Source.BlockSize)
	case c.Render.Width < 2 || c.Render.Height < 2:
		return fmt.Errorf("render: size %dx%d", c.Render.Width, c.Render.Height)
	case c.Render.FrameRate < 1:
		return fmt.Errorf("render: frame rate %d", c.Render.FrameRate)
	case c.Server.StreamMs < 1:
		return fmt.Errorf("server: stream period %d ms", c.Server.StreamMs)
	case c.Telemetry.Broker != "" && c.Telemetry.IntervalMs < 1:
		return fmt.Errorf("telemetry: interval %d ms", c.Telemetry.IntervalMs)
	}
	return nil
}
