// ABOUTME: Per-track playback session and decode loop
// ABOUTME: Feeds the engine ahead of the device and paces end-of-stream against the track duration
package player

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nigamp/nigamp/internal/library"
	"github.com/nigamp/nigamp/pkg/audio"
	"github.com/nigamp/nigamp/pkg/audio/decode"
	"github.com/nigamp/nigamp/pkg/audio/output"
	"github.com/nigamp/nigamp/pkg/engine"
)

// track is one song's playback session
type track struct {
	gen       uint64
	song      library.Song
	dec       decode.Decoder
	format    audio.Format
	duration  time.Duration
	limit     time.Duration // pacing target; zero means wait for decoder EOF
	clock     *stopwatch
	dog       *watchdog
	sessionID string

	cancel  context.CancelFunc
	done    chan struct{}
	eofSent atomic.Bool
}

// paceLimit returns how long a track of duration d plays before EOF is signaled
func (p *Player) paceLimit(d time.Duration) time.Duration {
	limit := time.Duration(0)
	if p.cfg.DurationPacing && d > 0 {
		limit = d
	}
	if p.cfg.Preview && (limit == 0 || p.cfg.PreviewDuration < limit) {
		limit = p.cfg.PreviewDuration
	}
	return limit
}

// startTrack stops the current session and starts song. Must hold navMu.
func (p *Player) startTrack(song library.Song) error {
	p.stopCurrent()

	dec, err := p.cfg.OpenDecoder(song.Path)
	if err != nil {
		p.metrics.TrackFailed("open")
		return fmt.Errorf("failed to open %s: %w", song.Path, err)
	}

	dec, err = p.prepareEngine(dec)
	if err != nil {
		dec.Close()
		p.metrics.TrackFailed("device")
		log.Debug("Device setup failed", "path", song.Path, "code", engine.CodeOf(err))
		return err
	}

	t := &track{
		gen:      p.gen.Add(1),
		song:     song,
		dec:      dec,
		format:   dec.Format(),
		duration: dec.Duration(),
		done:     make(chan struct{}),
	}
	t.limit = p.paceLimit(t.duration)
	t.dog = newWatchdog(p.cfg.CompletionTimeout, func() { p.onWatchdog(t) })

	gen := t.gen
	p.eng.SetCompletionCallback(func(r engine.CompletionResult) {
		p.requestAdvance(advanceRequest{gen: gen, result: r})
	})
	if err := p.eng.Start(); err != nil {
		p.eng.SetCompletionCallback(nil)
		dec.Close()
		p.metrics.TrackFailed("device")
		log.Debug("Engine start failed", "path", song.Path, "code", engine.CodeOf(err))
		return fmt.Errorf("failed to start engine: %w", err)
	}
	t.sessionID = p.eng.SessionID()
	t.clock = newStopwatch(nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	p.setCurrent(t)
	go p.decodeLoop(ctx, t)

	p.metrics.TrackStarted()
	log.Infof("Now playing: %s - %s [%s, %s]", song.Artist, song.Title, t.format, t.duration.Round(time.Second))
	if p.cfg.OnTrackStart != nil {
		p.cfg.OnTrackStart(song)
	}
	return nil
}

// prepareEngine opens the device for the decoder's format, reopening it when
// the format changed and resampling when the device is locked to another rate.
func (p *Player) prepareEngine(dec decode.Decoder) (decode.Decoder, error) {
	err := p.eng.Initialize(dec.Format())
	if errors.Is(err, engine.ErrAlreadyInitialized) {
		if serr := p.eng.Shutdown(); serr != nil {
			log.Warnf("Device close before format change failed: %v", serr)
		}
		err = p.eng.Initialize(dec.Format())
	}

	if errors.Is(err, output.ErrFormatLocked) {
		if locker, ok := p.device.(output.FormatLocker); ok {
			locked, ok := locker.LockedFormat()
			if ok && locked.Channels == dec.Format().Channels {
				log.Infof("Resampling %dHz to %dHz for %s", dec.Format().SampleRate, locked.SampleRate, p.device.Name())
				dec = decode.NewResampled(dec, locked.SampleRate)
				err = p.eng.Initialize(dec.Format())
			}
		}
	}

	if err != nil {
		return dec, fmt.Errorf("failed to initialize device: %w", err)
	}
	return dec, nil
}

// stopCurrent tears down the running session: decode loop, engine, decoder.
// Must hold navMu.
func (p *Player) stopCurrent() {
	t := p.current()
	if t == nil {
		return
	}

	t.dog.Stop()
	t.cancel()
	<-t.done

	if err := p.eng.Stop(); err != nil {
		log.Warnf("Engine stop failed: %v", err)
	}
	if err := t.dec.Close(); err != nil {
		log.Debug("Decoder close failed", "path", t.song.Path, "err", err)
	}
	p.setCurrent(nil)
}

// decodeLoop keeps the engine queue QueueAhead deep and signals EOF once
// the pacing target passes, or at decoder EOF when there is none.
func (p *Player) decodeLoop(ctx context.Context, t *track) {
	defer close(t.done)

	period := p.eng.PeriodSamples()
	buf := make([]int16, period)
	silence := make([]int16, period)
	highWater := max(t.format.SamplesFor(p.cfg.QueueAhead), 2*period)

	ticker := time.NewTicker(p.cfg.Engine.PollInterval)
	defer ticker.Stop()

	decoderDone := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if p.eng.IsPaused() {
			continue
		}

		if t.limit > 0 && t.clock.Elapsed() >= t.limit+p.cfg.PacingTolerance {
			log.Debug("Track duration elapsed", "title", t.song.Title, "limit", t.limit)
			p.signalEOF(t)
			return
		}

		if !decoderDone {
			failed := false
			decoderDone, failed = p.fill(t, buf, highWater)
			if failed {
				p.signalEOF(t)
				return
			}
		}

		if decoderDone {
			if t.limit == 0 {
				p.signalEOF(t)
				return
			}
			// Keep the device fed until the pacing target
			if p.eng.BufferedSamples() < period {
				p.eng.WriteSamples(silence)
			}
		}

		p.metrics.SetQueueDepth(p.eng.BufferedSamples())
	}
}

// fill decodes until the queue reaches highWater. It reports decoder EOF and hard failure.
func (p *Player) fill(t *track, buf []int16, highWater int) (eof, failed bool) {
	for p.eng.BufferedSamples() < highWater {
		n, err := t.dec.Decode(buf)
		if n > 0 {
			if werr := p.eng.WriteSamples(buf[:n]); werr != nil {
				log.Errorf("Engine rejected samples: %v", werr)
				return true, true
			}
		}
		if err != nil {
			log.Errorf("Decode failed for %s: %v", t.song.Path, err)
			p.metrics.TrackFailed("decode")
			return true, true
		}
		if t.dec.EOF() {
			log.Debug("Decoder reached end of stream", "title", t.song.Title, "elapsed", t.clock.Elapsed())
			return true, false
		}
		if n == 0 {
			return false, false
		}
	}
	return false, false
}

// signalEOF arms the watchdog and tells the engine no more samples follow
func (p *Player) signalEOF(t *track) {
	if !t.eofSent.CompareAndSwap(false, true) {
		return
	}
	t.dog.Arm()
	p.eng.SignalEOF()
}

// onWatchdog forces an advance when no completion arrived in time
func (p *Player) onWatchdog(t *track) {
	log.Warnf("No completion for %s within %s, forcing advance", t.song.Title, p.cfg.CompletionTimeout)
	p.metrics.WatchdogTimeout()

	p.requestAdvance(advanceRequest{
		gen: t.gen,
		result: engine.CompletionResult{
			Code:             engine.CallbackTimeout,
			Message:          fmt.Sprintf("no completion within %s", p.cfg.CompletionTimeout),
			CompletionTime:   t.clock.Elapsed(),
			SamplesProcessed: p.eng.Stats().Processed,
			SessionID:        t.sessionID,
		},
	})
}
