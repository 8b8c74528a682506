// Command compscope shows a stereo signal and the ratio between its channels
// as a scrolling oscilloscope, served over HTTP and optionally mirrored to
// an LED grid.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/golang/glog"

	"github.com/peragwin/compscope/audio"
	"github.com/peragwin/compscope/audio/sensors/scope"
	"github.com/peragwin/compscope/gfx/trace"
)

var (
	configPath  = flag.String("config", "", "path to a YAML config file")
	listDevices = flag.Bool("list-devices", false, "print the audio devices and exit")
	plotPath    = flag.String("plot", "", "write a plot of the last columns here on exit")

	file       = flag.String("file", "", "replay a .wav or .mp3 instead of the default input")
	loop       = flag.Bool("loop", false, "loop the replayed file")
	sampleRate = flag.Float64("sample-rate", 0, "input sample rate")
	channels   = flag.Int("channels", 0, "number of input channels")
	blockSize  = flag.Int("block-size", 0, "frames per audio block")
	record     = flag.String("record", "", "also write the input to this wav file")

	timeWindow = flag.Float64("time", 0, "visible time window in seconds")

	width       = flag.Int("width", 0, "width of the rendered trace")
	height      = flag.Int("height", 0, "height of the rendered trace")
	frameRate   = flag.Int("frame-rate", 0, "frame rate to render at")
	persistence = flag.Float64("persistence", -1, "fraction of the previous frame kept, 0 to 1")
	palette     = flag.String("palette", "", "trace palette: even or spectral")
	remote      = flag.String("remote", "", "ip:port of remote grid")

	addr    = flag.String("addr", "", "address to serve the API on")
	httpDir = flag.String("http-dir", "", "where to host static client gui files")

	broker = flag.String("mqtt-broker", "", "mqtt broker url for compression telemetry")
	topic  = flag.String("mqtt-topic", "", "mqtt topic for compression telemetry")
)

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cfg *Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "file":
			cfg.Source.File = *file
		case "loop":
			cfg.Source.Loop = *loop
		case "sample-rate":
			cfg.Source.SampleRate = *sampleRate
		case "channels":
			cfg.Source.Channels = *channels
		case "block-size":
			cfg.Source.BlockSize = *blockSize
		case "record":
			cfg.Source.Record = *record
		case "time":
			cfg.Scope.Params.Time = *timeWindow
		case "width":
			cfg.Render.Width = *width
		case "height":
			cfg.Render.Height = *height
		case "frame-rate":
			cfg.Render.FrameRate = *frameRate
		case "persistence":
			cfg.Render.Persistence = float32(*persistence)
		case "palette":
			cfg.Render.Palette = *palette
		case "remote":
			cfg.Render.Grid.Remote = *remote
		case "addr":
			cfg.Server.Addr = *addr
		case "http-dir":
			cfg.Server.StaticDir = *httpDir
		case "mqtt-broker":
			cfg.Telemetry.Broker = *broker
		case "mqtt-topic":
			cfg.Telemetry.Topic = *topic
		}
	})
}

// openSource starts the configured audio source. The sample rate and
// channel count of a replayed file replace the configured ones.
func openSource(ctx context.Context, cfg *SourceConfig) (<-chan []float32, <-chan error, error) {
	if cfg.File == "" {
		source, errc := audio.NewSource(ctx, &audio.Config{
			BlockSize:  cfg.BlockSize,
			Channels:   cfg.Channels,
			SampleRate: cfg.SampleRate,
		})
		return source, errc, nil
	}

	f, err := audio.OpenFile(cfg.File)
	if err != nil {
		return nil, nil, err
	}
	cfg.SampleRate = f.SampleRate()
	cfg.Channels = f.Channels()
	return f.Stream(ctx, cfg.BlockSize, cfg.Loop), make(chan error), nil
}

func main() {
	flag.Parse()
	defer glog.Flush()

	if *listDevices {
		if err := audio.PrintDevices(); err != nil {
			glog.Fatal(err)
		}
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		if err := LoadConfig(*configPath, cfg); err != nil {
			glog.Fatal(err)
		}
	}
	applyFlags(cfg)
	if err := cfg.validate(); err != nil {
		glog.Fatal("invalid config: ", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	source, errc, err := openSource(ctx, &cfg.Source)
	if err != nil {
		glog.Fatal("error opening source: ", err)
	}

	sc, err := scope.New(&scope.Config{
		Channels:   cfg.Source.Channels,
		Columns:    cfg.Render.Width,
		SampleRate: cfg.Source.SampleRate,
		BlockSize:  cfg.Source.BlockSize,
		Parameters: &cfg.Scope.Params,
	})
	if err != nil {
		glog.Fatal("error creating scope: ", err)
	}
	var recorded <-chan error
	if cfg.Source.Record != "" {
		outs := audio.Tee(ctx.Done(), source, 2)
		source = outs[0]
		recorded = audio.Record(ctx.Done(), outs[1], cfg.Source.Record,
			int(cfg.Source.SampleRate), cfg.Source.Channels)
	}
	stopped := sc.Process(ctx.Done(), source)

	disp, err := newDisplay(sc, cfg.Render)
	if err != nil {
		glog.Fatal("error creating display: ", err)
	}
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		disp.run(ctx, cfg.Render.FrameRate)
	}()

	// If a remote is passed try to stream to it. If we lose the connection,
	// try again after 10 seconds.
	if cfg.Render.Grid.Remote != "" {
		go disp.connectGrid(ctx, cfg.Render.Grid, 10*time.Second)
	}

	if cfg.Telemetry.Broker != "" {
		tel, err := newTelemetry(cfg.Telemetry, sc)
		if err != nil {
			glog.Errorf("telemetry disabled: %v", err)
		} else {
			go tel.run(ctx, time.Duration(cfg.Telemetry.IntervalMs)*time.Millisecond)
		}
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: newServer(sc, disp.Latest, cfg.Server),
	}
	go func() {
		glog.Infof("serving on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Errorf("http: %v", err)
			cancel()
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		glog.Errorf("audio: %v", err)
	case <-stopped:
		glog.Info("audio source ended")
	}
	cancel()

	shutdown, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	srv.Shutdown(shutdown)
	<-rendered
	if recorded != nil {
		if err := <-recorded; err != nil {
			glog.Errorf("record: %v", err)
		}
	}

	if *plotPath != "" {
		if err := trace.SavePlot(disp.Columns(), *plotPath, "compscope"); err != nil {
			glog.Errorf("plot: %v", err)
		}
	}
}
