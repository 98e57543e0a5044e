// ABOUTME: Entry point for the tone stream listener
// ABOUTME: Finds a streamer, receives its PCM over WebSocket and logs levels and continuity
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/tonestream/internal/discovery"
	"github.com/Resonate-Protocol/tonestream/pkg/audio"
	"github.com/Resonate-Protocol/tonestream/pkg/audio/decode"
	"github.com/Resonate-Protocol/tonestream/pkg/audio/output"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	serverAddr = flag.String("server", "", "Streamer address host:port or ws:// URL (skip mDNS)")
	discover   = flag.Duration("discover-timeout", 10*time.Second, "How long to browse for a streamer")
	interval   = flag.Duration("interval", time.Second, "Level report interval")
	duration   = flag.Duration("duration", 0, "Stop after this long (0 listens until interrupted)")
	channel    = flag.Int("channel", 0, "Channel to meter")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	logger, _ := zap.NewProduction()
	if *debug {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	url, err := resolve(ctx, *serverAddr, *discover, logger)
	if err != nil {
		logger.Fatal("no streamer", zap.Error(err))
	}

	if err := listen(ctx, url, logger); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("listener stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("listener stopped")
}

// resolve returns the stream URL from -server or mDNS
func resolve(ctx context.Context, addr string, timeout time.Duration, logger *zap.Logger) (string, error) {
	if addr != "" {
		if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
			return addr, nil
		}
		return "ws://" + addr + discovery.StreamPath, nil
	}

	logger.Info("browsing for streamers", zap.String("type", discovery.ServiceType))
	disc := discovery.NewManager(discovery.Config{Logger: logger.Named("discovery")})
	defer disc.Stop()
	disc.Browse()

	select {
	case server := <-disc.Servers():
		return server.URL(), nil
	case <-time.After(timeout):
		return "", fmt.Errorf("no streamer found after %v", timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func listen(ctx context.Context, url string, logger *zap.Logger) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read stream/start: %w", err)
	}
	if msgType != websocket.TextMessage {
		return fmt.Errorf("expected stream/start text message, got type %d", msgType)
	}

	var start output.StreamStart
	if err := json.Unmarshal(data, &start); err != nil {
		return fmt.Errorf("invalid stream/start: %w", err)
	}

	format := audio.Format{SampleRate: start.SampleRate, Channels: start.Channels, BitDepth: start.BitDepth}
	dec, err := decode.NewPCM(format)
	if err != nil {
		return err
	}
	if *channel < 0 || *channel >= format.Channels {
		return fmt.Errorf("channel %d out of range for %d channels", *channel, format.Channels)
	}

	logger.Info("receiving stream",
		zap.String("url", url),
		zap.String("stream_id", start.StreamID),
		zap.Stringer("format", format),
		zap.Int("descriptor_frames", start.DescriptorFrames),
	)

	meter := NewMeter(format.SampleRate)
	descriptorBytes := format.FramesToBytes(start.DescriptorFrames)
	var descriptors, odd uint64
	windowStart := time.Now()
	began := windowStart

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("stream read failed: %w", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		if len(data) != descriptorBytes {
			odd++
		}
		samples, err := dec.Decode(data)
		if err != nil {
			return fmt.Errorf("malformed descriptor: %w", err)
		}
		meter.Add(dec.Channel(samples, *channel))
		descriptors++

		if time.Since(windowStart) >= *interval {
			r := meter.Reading()
			expected := time.Since(began).Seconds() * float64(format.SampleRate) / float64(start.DescriptorFrames)

			logger.Info("levels",
				zap.Float64("peak_dbfs", round2(r.PeakDBFS)),
				zap.Float64("rms", round2(r.RMS)),
				zap.Float64("frequency_hz", round2(r.Frequency)),
				zap.Uint64("descriptors", descriptors),
				zap.Float64("expected_descriptors", round2(expected)),
				zap.Uint64("odd_sized", odd),
			)
			meter.Reset()
			windowStart = time.Now()
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
