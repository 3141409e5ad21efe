// ABOUTME: Device probe that plays a test tone or file straight through the engine
// ABOUTME: Reports the completion result, or a timeout when none arrives
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nigamp/nigamp/pkg/audio"
	"github.com/nigamp/nigamp/pkg/audio/decode"
	"github.com/nigamp/nigamp/pkg/audio/output"
	"github.com/nigamp/nigamp/pkg/engine"
	flag "github.com/spf13/pflag"
)

var (
	backend   = flag.String("output", output.DefaultBackend, fmt.Sprintf("Output backend %v", output.Backends()))
	device    = flag.String("device", "", "Backend device name")
	file      = flag.StringP("file", "f", "", "Play this file instead of a tone")
	rate      = flag.Int("rate", 44100, "Tone sample rate")
	channels  = flag.Int("channels", 2, "Tone channel count")
	frequency = flag.Float64("freq", 440, "Tone frequency in Hz")
	duration  = flag.Duration("duration", 2*time.Second, "Tone length")
	volume    = flag.Float64("volume", 0.5, "Playback volume 0..1")
	timeout   = flag.Duration("timeout", 3*time.Second, "How long to wait for completion after the last sample is queued")
	verbose   = flag.BoolP("verbose", "v", false, "Debug logging")
)

func main() {
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := probe(ctx)
	if err != nil {
		log.Fatalf("Probe failed: %v", err)
	}

	fmt.Printf("code=%s samples=%d time=%s session=%s\n",
		result.Code, result.SamplesProcessed, result.CompletionTime.Round(time.Millisecond), result.SessionID)
	if result.Message != "" {
		fmt.Printf("message=%s\n", result.Message)
	}
	if !result.OK() {
		os.Exit(2)
	}
}

func openSource() (decode.Decoder, error) {
	if *file != "" {
		return decode.Open(*file)
	}
	format := audio.Format{SampleRate: *rate, Channels: *channels, BitDepth: 16}
	return decode.NewTone(*frequency, *duration, format), nil
}

func probe(ctx context.Context) (engine.CompletionResult, error) {
	dev, err := output.New(*backend, output.Config{Device: *device})
	if err != nil {
		return engine.CompletionResult{}, err
	}

	dec, err := openSource()
	if err != nil {
		return engine.CompletionResult{}, err
	}
	defer dec.Close()

	cfg := engine.DefaultConfig()
	var underruns atomic.Int64
	cfg.OnUnderrun = func() { underruns.Add(1) }

	eng := engine.New(dev, cfg)
	defer func() {
		if err := eng.Shutdown(); err != nil {
			log.Warnf("Shutdown failed: %v", err)
		}
	}()

	if err := eng.Initialize(dec.Format()); err != nil {
		return engine.CompletionResult{}, err
	}
	eng.SetVolume(*volume)

	done := make(chan engine.CompletionResult, 1)
	eng.SetCompletionCallback(func(r engine.CompletionResult) { done <- r })
	if err := eng.Start(); err != nil {
		return engine.CompletionResult{}, err
	}

	log.Infof("Probing %s with %s (%s)", dev.Name(), dec.Format(), dec.Duration().Round(time.Millisecond))

	if err := feed(ctx, eng, dec); err != nil {
		return engine.CompletionResult{}, err
	}
	eng.SignalEOF()

	select {
	case r := <-done:
		log.Debug("Completion received", "underruns", underruns.Load())
		return r, nil
	case <-time.After(*timeout):
		stats := eng.Stats()
		return engine.CompletionResult{
			Code:             engine.CallbackTimeout,
			Message:          fmt.Sprintf("no completion within %s (%d samples still queued)", *timeout, stats.Buffered),
			SamplesProcessed: stats.Processed,
			SessionID:        stats.SessionID,
		}, nil
	case <-ctx.Done():
		return engine.CompletionResult{}, ctx.Err()
	}
}

// feed decodes the whole source into the engine, staying about a second ahead of the device
func feed(ctx context.Context, eng *engine.Engine, dec decode.Decoder) error {
	format := dec.Format()
	highWater := format.SamplesFor(time.Second)
	buf := make([]int16, eng.PeriodSamples())

	for !dec.EOF() {
		for eng.BufferedSamples() >= highWater {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(10 * time.Millisecond):
			}
		}

		n, err := dec.Decode(buf)
		if n > 0 {
			if werr := eng.WriteSamples(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return nil
}
