// ABOUTME: Entry point for the tone streamer
// ABOUTME: Parses CLI flags, builds the generator, transport and driver, then streams
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/tonestream/internal/config"
	"github.com/Resonate-Protocol/tonestream/internal/control"
	"github.com/Resonate-Protocol/tonestream/internal/discovery"
	"github.com/Resonate-Protocol/tonestream/internal/metrics"
	"github.com/Resonate-Protocol/tonestream/internal/ui"
	"github.com/Resonate-Protocol/tonestream/internal/version"
	"github.com/Resonate-Protocol/tonestream/pkg/audio"
	"github.com/Resonate-Protocol/tonestream/pkg/audio/output"
	"github.com/Resonate-Protocol/tonestream/pkg/stream"
	"github.com/Resonate-Protocol/tonestream/pkg/wave"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	flag.StringVar(&cfg.Waveform, "waveform", cfg.Waveform, "Waveform: sine or triangle")
	flag.Float64Var(&cfg.Frequency, "freq", cfg.Frequency, "Tone frequency in Hz")
	flag.Float64Var(&cfg.Amplitude, "amplitude", cfg.Amplitude, "Peak amplitude in (0, 1]")
	flag.IntVar(&cfg.SampleRate, "rate", cfg.SampleRate, "Sample rate in Hz")
	flag.IntVar(&cfg.Channels, "channels", cfg.Channels, "Channel count (1 or 2)")
	flag.IntVar(&cfg.Descriptors, "descriptors", cfg.Descriptors, "Transfer descriptors queued by the transport")
	flag.IntVar(&cfg.DescriptorFrames, "descriptor-frames", cfg.DescriptorFrames, "Frames per descriptor")
	flag.DurationVar(&cfg.MaxWait, "max-wait", cfg.MaxWait, "Bound on each transport write")
	flag.IntVar(&cfg.TimeoutLogEvery, "timeout-log-every", cfg.TimeoutLogEvery, "Warn after this many consecutive write timeouts")
	flag.BoolVar(&cfg.Completion, "completion", cfg.Completion, "Pace buffer reuse on drained-descriptor events")
	flag.StringVar(&cfg.Clock, "clock", cfg.Clock, "Clock source: default, pll or external")
	flag.StringVar(&cfg.Output, "output", cfg.Output, "Output: oto, malgo, portaudio, headless, stdout or websocket")
	flag.StringVar(&cfg.ControlAddr, "control", cfg.ControlAddr, "Control API listen address (empty disables)")
	flag.StringVar(&cfg.Name, "name", cfg.Name, "Stream friendly name (default: hostname-tonestream)")
	flag.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file path")
	noMDNS := flag.Bool("no-mdns", !cfg.Advertise, "Disable mDNS advertisement")
	cycles := flag.Int("cycles", 0, "Stop after this many buffers (0 streams until stopped)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	noTUI := flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	streamLogs := flag.Bool("stream-logs", false, "Alias for -no-tui")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	cfg.Advertise = !*noMDNS

	// stdout carries PCM, so the TUI cannot share it
	useTUI := !(*noTUI || *streamLogs) && cfg.Output != "stdout"

	logger, err := newLogger(cfg.LogFile, *debug, !useTUI)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := run(cfg, *cycles, useTUI, logger); err != nil {
		logger.Error("tonestream exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, cycles int, useTUI bool, logger *zap.Logger) (err error) {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		cfg.Name = fmt.Sprintf("%s-tonestream", hostname)
	}

	format := audio.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels, BitDepth: 16}

	kind, err := wave.ParseKind(cfg.Waveform)
	if err != nil {
		return err
	}
	gen, err := wave.New(wave.Descriptor{
		Kind:      kind,
		Frequency: cfg.Frequency,
		Format:    format,
		Amplitude: cfg.Amplitude,
	})
	if err != nil {
		return err
	}

	clock, err := output.ParseClockSource(cfg.Clock)
	if err != nil {
		return err
	}

	logger.Info("starting tonestream",
		zap.String("name", cfg.Name),
		zap.String("version", version.Version),
		zap.Stringer("waveform", kind),
		zap.Float64("frequency_hz", cfg.Frequency),
		zap.Stringer("format", format),
		zap.String("output", cfg.Output),
	)

	transport, ws, err := newTransport(cfg.Output, logger.Named("output"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, transport.Close())
	}()

	if err := transport.Open(output.Config{
		Format:           format,
		Descriptors:      cfg.Descriptors,
		DescriptorFrames: cfg.DescriptorFrames,
		Clock:            clock,
	}); err != nil {
		return fmt.Errorf("failed to open %s output: %w", cfg.Output, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(reg)

	driver, err := stream.NewDriver(gen, transport, stream.Config{
		Descriptors:      cfg.Descriptors,
		DescriptorFrames: cfg.DescriptorFrames,
		MaxWait:          cfg.MaxWait,
		TimeoutLogEvery:  cfg.TimeoutLogEvery,
		UseCompletion:    cfg.Completion,
		Logger:           logger.Named("stream"),
		Observer:         collector,
	})
	if err != nil {
		return err
	}

	info := control.Info{
		Name:      cfg.Name,
		Waveform:  kind.String(),
		Frequency: cfg.Frequency,
		Format:    format.String(),
		Output:    cfg.Output,
	}
	listeners := func() int { return 0 }
	if ws != nil {
		info.StreamID = ws.StreamID()
		listeners = ws.Listeners
	}

	if cfg.ControlAddr != "" {
		opts := control.Options{
			Streamer: driver,
			Info:     info,
			Gatherer: reg,
			Logger:   logger.Named("control"),
		}
		if ws != nil {
			opts.Stream = ws
			opts.Listeners = ws.Listeners
		}

		ctrl := control.New(opts)
		if err := ctrl.Start(cfg.ControlAddr); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = multierr.Append(err, ctrl.Shutdown(ctx))
		}()

		if cfg.Advertise {
			disc := discovery.NewManager(discovery.Config{
				ServiceName: cfg.Name,
				Port:        ctrl.Port(),
				Info: []string{
					"waveform=" + kind.String(),
					fmt.Sprintf("frequency=%g", cfg.Frequency),
					fmt.Sprintf("rate=%d", format.SampleRate),
					fmt.Sprintf("channels=%d", format.Channels),
					"output=" + cfg.Output,
					"version=" + version.Version,
				},
				Logger: logger.Named("discovery"),
			})
			if err := disc.Advertise(); err != nil {
				logger.Warn("mDNS advertisement failed", zap.Error(err))
			}
			defer disc.Stop()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if useTUI {
		monitor := ui.NewMonitor()
		tuiDone := make(chan struct{})
		go func() {
			defer close(tuiDone)
			if err := monitor.Start(); err != nil {
				logger.Error("TUI failed", zap.Error(err))
			}
		}()
		defer func() {
			monitor.Stop()
			<-tuiDone
		}()

		monitor.Update(ui.StatusMsg{
			State:     driver.State(),
			Name:      info.Name,
			Waveform:  info.Waveform,
			Frequency: info.Frequency,
			Format:    info.Format,
			Output:    info.Output,
		})

		statsCtx, cancelStats := context.WithCancel(ctx)
		defer cancelStats()
		go statsUpdateLoop(statsCtx, driver, listeners, monitor.Update)

		go func() {
			select {
			case <-monitor.Quit:
				logger.Info("received quit from TUI")
				driver.Stop()
			case <-statsCtx.Done():
			}
		}()
	} else {
		logger.Info("TUI disabled, streaming logs", zap.String("log_file", cfg.LogFile))
	}

	if cycles > 0 {
		err = driver.RunCycles(ctx, cycles)
	} else {
		err = driver.Run(ctx)
	}

	if errors.Is(err, stream.ErrFault) {
		logger.Error("stream faulted", zap.Error(err))
		return err
	}
	if err != nil {
		return err
	}

	stats := driver.Stats()
	logger.Info("stream stopped",
		zap.Uint64("buffers", stats.Buffers),
		zap.Uint64("bytes", stats.Bytes),
		zap.Uint64("timeouts", stats.Timeouts),
		zap.Uint64("partial_writes", stats.PartialWrites),
	)
	return nil
}

// newTransport builds the selected output; ws is set for the websocket output
func newTransport(kind string, logger *zap.Logger) (output.Transport, *output.WebSocket, error) {
	switch kind {
	case "oto":
		return output.NewOto(logger), nil, nil
	case "malgo":
		return output.NewMalgo(logger), nil, nil
	case "portaudio":
		return output.NewPortAudio(logger), nil, nil
	case "headless":
		return output.NewHeadless(logger), nil, nil
	case "stdout":
		return output.NewWriter(os.Stdout, logger), nil, nil
	case "websocket":
		ws := output.NewWebSocket(logger)
		return ws, ws, nil
	default:
		return nil, nil, fmt.Errorf("unknown output %q", kind)
	}
}

// newLogger writes JSON logs to path, and to stderr when console is set
func newLogger(path string, debug, console bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if debug {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.OutputPaths = []string{path}
	if console {
		zcfg.OutputPaths = append(zcfg.OutputPaths, "stderr")
	}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

// statsUpdateLoop periodically updates the TUI with driver statistics
func statsUpdateLoop(ctx context.Context, driver *stream.Driver, listeners func() int, update func(ui.StatusMsg)) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	// Use a slower ticker for expensive runtime stats to avoid GC pauses
	runtimeStatsTicker := time.NewTicker(2 * time.Second)
	defer runtimeStatsTicker.Stop()

	var lastGoroutines int
	var lastMemAlloc, lastMemSys uint64

	for {
		select {
		case <-ctx.Done():
			return

		case <-runtimeStatsTicker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			lastGoroutines = runtime.NumGoroutine()
			lastMemAlloc = m.Alloc
			lastMemSys = m.Sys

		case <-ticker.C:
			update(ui.StatusMsg{
				State:      driver.State(),
				Listeners:  listeners(),
				Stats:      driver.Stats(),
				Goroutines: lastGoroutines,
				MemAlloc:   lastMemAlloc,
				MemSys:     lastMemSys,
			})
		}
	}
}
