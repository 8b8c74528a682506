package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	yamlContent := `
source:
  file: "take1.wav"
  loop: true
scope:
  params:
    time: 0.25
    compMode: true
    ymin: -30
render:
  width: 400
  palette: spectral
  grid:
    remote: "10.0.0.2:2000"
telemetry:
  broker: "tcp://localhost:1883"
`
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := DefaultConfig()
	if err := LoadConfig(cfgPath, cfg); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Source.File != "take1.wav" || !cfg.Source.Loop {
		t.Errorf("unexpected source %+v", cfg.Source)
	}
	if p := cfg.Scope.Params; p.Time != 0.25 || !p.CompMode || p.YMin != -30 {
		t.Errorf("unexpected params %+v", p)
	}
	// fields missing from the file keep their defaults
	if p := cfg.Scope.Params; !p.Smoothing || p.Filter != 0.1 {
		t.Errorf("defaults lost %+v", p)
	}
	if cfg.Render.Width != 400 || cfg.Render.Height != 300 || cfg.Render.Palette != "spectral" {
		t.Errorf("unexpected render %+v", cfg.Render)
	}
	if g := cfg.Render.Grid; g.Remote != "10.0.0.2:2000" || g.Width != 60 || !g.Transpose {
		t.Errorf("unexpected grid %+v", g)
	}
	if cfg.Telemetry.Topic != "compscope/compression" || cfg.Telemetry.IntervalMs != 100 {
		t.Errorf("unexpected telemetry %+v", cfg.Telemetry)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	if err := LoadConfig(filepath.Join(dir, "missing.yaml"), DefaultConfig()); err == nil {
		t.Error("expected an error for a missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("render: [1, 2"), 0644)
	if err := LoadConfig(bad, DefaultConfig()); err == nil {
		t.Error("expected a parse error")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	os.WriteFile(invalid, []byte("render:\n  frame_rate: 0\n"), 0644)
	if err := LoadConfig(invalid, DefaultConfig()); err == nil {
		t.Error("expected a validation error")
	}
}
