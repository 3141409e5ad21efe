// ABOUTME: Entry point for the nigamp music player
// ABOUTME: Parses CLI flags, builds the playlist and runs the player with TUI or log output
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/nigamp/nigamp/internal/config"
	"github.com/nigamp/nigamp/internal/library"
	"github.com/nigamp/nigamp/internal/metrics"
	"github.com/nigamp/nigamp/internal/player"
	"github.com/nigamp/nigamp/internal/playlist"
	"github.com/nigamp/nigamp/internal/ui"
	"github.com/nigamp/nigamp/internal/version"
	"github.com/nigamp/nigamp/pkg/audio/output"
	"github.com/nigamp/nigamp/pkg/engine"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

var (
	dir        = flag.StringP("dir", "d", "", "Music directory to play")
	file       = flag.StringP("file", "f", "", "Play a single file")
	preview    = flag.BoolP("preview", "p", false, "Play only the first seconds of each song")
	configPath = flag.String("config", "nigamp.yaml", "YAML config file")
	backend    = flag.String("output", "", fmt.Sprintf("Output backend %v", output.Backends()))
	device     = flag.String("device", "", "Backend device name, e.g. hw:0,0")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, read commands from stdin and log to stdout")
	logFile    = flag.String("log-file", "", "Log file path")
	logLevel   = flag.String("log-level", "", "Log level (debug, info, warn, error)")
	metricsAt  = flag.String("metrics", "", "Serve Prometheus metrics on this address")
	showVer    = flag.BoolP("version", "v", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version.String())
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "nigamp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadEnvFiles(".env"); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(cfg.Log.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	log.SetReportTimestamp(true)
	if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(level)
	}

	log.Infof("Starting %s", version.String())

	songs, err := loadSongs(cfg)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Listen != "" {
		m = metrics.New()
	}

	pcfg := playerConfig(cfg)
	pcfg.Metrics = m
	p, err := player.New(pcfg, playlist.New(songs))
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	gctx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		// The rest of the group winds down once playback ends
		defer cancel()
		err := p.Run(gctx)
		if errors.Is(err, playlist.ErrEmpty) {
			return fmt.Errorf("no songs to play")
		}
		return err
	})

	if m != nil {
		g.Go(func() error {
			return m.Serve(gctx, cfg.Metrics.Listen)
		})
	}

	if useTUI {
		g.Go(func() error {
			return runTUI(gctx, p, cfg)
		})
	} else {
		g.Go(func() error {
			return runHeadless(gctx, p)
		})
	}

	err = g.Wait()
	log.Info("Player stopped")
	return err
}

// applyFlags lets command-line flags override file and environment settings
func applyFlags(cfg *config.Config) {
	if *dir != "" {
		cfg.Library.Dir = *dir
	}
	if *file != "" {
		cfg.Library.File = *file
	}
	if *preview {
		cfg.Playback.Preview = true
	}
	if *backend != "" {
		cfg.Output.Backend = *backend
	}
	if *device != "" {
		cfg.Output.Device = *device
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *metricsAt != "" {
		cfg.Metrics.Listen = *metricsAt
	}
}

// loadSongs builds the initial song list from a single file or the library directory
func loadSongs(cfg *config.Config) ([]library.Song, error) {
	scanner := library.NewScanner()
	if cfg.Library.File != "" {
		song, err := scanner.SongFromFile(cfg.Library.File)
		if err != nil {
			return nil, err
		}
		log.Infof("Playing single file: %s", song.Path)
		return []library.Song{song}, nil
	}

	log.Infof("Scanning %s", cfg.Library.Dir)
	songs, err := scanner.Scan(cfg.Library.Dir)
	if err != nil {
		return nil, err
	}
	if len(songs) == 0 {
		return nil, fmt.Errorf("no playable songs in %s", cfg.Library.Dir)
	}
	log.Infof("Found %d songs", len(songs))
	return songs, nil
}

// playerConfig maps the file/env configuration onto the orchestrator
func playerConfig(cfg *config.Config) player.Config {
	pc := player.DefaultConfig()

	pc.Backend = cfg.Output.Backend
	pc.Output = output.Config{
		Device:   cfg.Output.Device,
		BufferMs: cfg.Output.BufferMs,
		PeriodMs: cfg.Output.PeriodMs,
	}
	pc.Engine = engine.Config{
		PollInterval: cfg.Engine.PollInterval,
		Period:       time.Duration(cfg.Output.PeriodMs) * time.Millisecond,
	}

	pb := cfg.Playback
	pc.Volume = pb.Volume
	pc.VolumeStep = pb.VolumeStep
	pc.CompletionTimeout = pb.CompletionTimeout
	pc.PacingTolerance = pb.PacingTolerance
	pc.QueueAhead = pb.QueueAhead
	pc.DurationPacing = pb.DurationPacing
	pc.Preview = pb.Preview
	pc.PreviewDuration = pb.PreviewDuration
	pc.Shuffle = pb.Shuffle

	if cfg.Library.File != "" {
		// A single file has no library to rescan; previewing it plays once
		pc.QuitAfterTrack = pb.Preview
		pc.Shuffle = false
		return pc
	}

	pc.LibraryDir = cfg.Library.Dir
	pc.ReindexInterval = cfg.Library.ReindexInterval
	pc.CheckInterval = cfg.Library.CheckInterval
	pc.Scanner = library.NewScanner()
	return pc
}

// runTUI drives the terminal UI until the player or the UI exits
func runTUI(ctx context.Context, p *player.Player, cfg *config.Config) error {
	prog := ui.Run(p.Hotkeys())

	tuiDone := make(chan error, 1)
	go func() {
		_, err := prog.Run()
		tuiDone <- err
	}()

	go statsUpdateLoop(ctx, p, cfg, prog.Send)

	select {
	case err := <-tuiDone:
		// The UI closed on its own (q or ctrl+c); make sure playback follows
		p.Quit()
		return err
	case <-ctx.Done():
	case <-p.Done():
	}

	prog.Quit()
	return <-tuiDone
}

// statsUpdateLoop periodically updates TUI with playback status
func statsUpdateLoop(ctx context.Context, p *player.Player, cfg *config.Config, send func(tea.Msg)) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	// Use a slower ticker for expensive runtime stats to avoid GC pauses
	runtimeStatsTicker := time.NewTicker(2 * time.Second)
	defer runtimeStatsTicker.Stop()

	var lastGoroutines int
	var lastMemAlloc uint64

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.Done():
			return
		case <-runtimeStatsTicker.C:
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			lastGoroutines = runtime.NumGoroutine()
			lastMemAlloc = ms.Alloc
		case <-ticker.C:
			msg := statusMsg(p.Status(), cfg)
			msg.Goroutines = lastGoroutines
			msg.MemAlloc = lastMemAlloc
			send(msg)
		}
	}
}

// statusMsg converts a player snapshot into a TUI update
func statusMsg(s player.Status, cfg *config.Config) ui.StatusMsg {
	last := ""
	if s.LastResult.SessionID != "" {
		last = s.LastResult.Code.String()
	}

	return ui.StatusMsg{
		Title:      s.Song.Title,
		Artist:     s.Song.Artist,
		Album:      s.Song.Album,
		Path:       s.Song.Path,
		Position:   s.Position,
		Total:      s.Total,
		Codec:      s.Format.Codec,
		SampleRate: s.Format.SampleRate,
		Channels:   s.Format.Channels,
		BitDepth:   s.Format.BitDepth,
		Duration:   s.Duration,
		Limit:      s.Limit,
		Elapsed:    s.Elapsed,
		Playing:    s.Playing,
		Paused:     s.Paused,
		Volume:     int(s.Volume*100 + 0.5),
		Preview:    cfg.Playback.Preview,
		Backend:    backendName(cfg),
		BufferMs:   cfg.Output.BufferMs,
		Underruns:  s.Underruns,
		LastResult: last,
		SessionID:  s.SessionID,
	}
}

func backendName(cfg *config.Config) string {
	if cfg.Output.Backend == "" {
		return output.DefaultBackend
	}
	return cfg.Output.Backend
}

// runHeadless reads commands from stdin and logs a countdown line every few seconds
func runHeadless(ctx context.Context, p *player.Player) error {
	log.Info("TUI disabled - type n, p, r, +, - or q and press enter")

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := p.Hotkeys().ReadLines(readCtx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
			log.Warnf("Command input stopped: %v", err)
		}
	}()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.Done():
			return nil
		case <-ticker.C:
			s := p.Status()
			if s.Song.Path == "" {
				continue
			}
			state := "playing"
			if s.Paused {
				state = "paused"
			}
			log.Info("Status",
				"song", filepath.Base(s.Song.Path),
				"state", state,
				"elapsed", s.Elapsed.Round(time.Second),
				"remaining", s.Remaining().Round(time.Second),
				"volume", fmt.Sprintf("%d%%", int(s.Volume*100+0.5)))
		}
	}
}
