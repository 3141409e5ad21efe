// ABOUTME: Playback orchestrator
// ABOUTME: Plays the playlist through the engine and advances on completion or watchdog timeout
package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nigamp/nigamp/internal/hotkey"
	"github.com/nigamp/nigamp/internal/library"
	"github.com/nigamp/nigamp/internal/metrics"
	"github.com/nigamp/nigamp/internal/playlist"
	"github.com/nigamp/nigamp/pkg/audio"
	"github.com/nigamp/nigamp/pkg/audio/decode"
	"github.com/nigamp/nigamp/pkg/audio/output"
	"github.com/nigamp/nigamp/pkg/engine"
)

// ErrClosed is returned by navigation after Run has finished
var ErrClosed = errors.New("player closed")

// Scanner lists the songs in a library directory
type Scanner interface {
	Scan(dir string) ([]library.Song, error)
}

// Config holds orchestrator settings and collaborators
type Config struct {
	// Backend names the output backend; Device overrides it when set
	Backend string
	Output  output.Config
	Device  output.Device
	Engine  engine.Config

	Volume            float64
	VolumeStep        float64
	CompletionTimeout time.Duration
	PacingTolerance   time.Duration
	QueueAhead        time.Duration
	DurationPacing    bool
	Preview           bool
	PreviewDuration   time.Duration
	Shuffle           bool

	// QuitAfterTrack ends Run after the first completed track
	QuitAfterTrack bool

	LibraryDir      string
	ReindexInterval time.Duration
	CheckInterval   time.Duration
	Scanner         Scanner

	// OpenDecoder returns an opened decoder for a song path
	OpenDecoder func(path string) (decode.Decoder, error)

	Metrics *metrics.Metrics

	// Track hooks run with the navigation lock held and must not call back into the Player
	OnTrackStart func(library.Song)
	OnTrackEnd   func(library.Song, engine.CompletionResult)
}

// DefaultConfig returns the stock orchestrator settings
func DefaultConfig() Config {
	return Config{
		Output:            output.DefaultConfig(),
		Engine:            engine.DefaultConfig(),
		Volume:            0.8,
		VolumeStep:        0.1,
		CompletionTimeout: 3 * time.Second,
		QueueAhead:        500 * time.Millisecond,
		DurationPacing:    true,
		PreviewDuration:   10 * time.Second,
		Shuffle:           true,
		ReindexInterval:   10 * time.Minute,
		CheckInterval:     time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Backend == "" {
		c.Backend = output.DefaultBackend
	}
	if c.VolumeStep <= 0 {
		c.VolumeStep = d.VolumeStep
	}
	if c.CompletionTimeout <= 0 {
		c.CompletionTimeout = d.CompletionTimeout
	}
	if c.QueueAhead <= 0 {
		c.QueueAhead = d.QueueAhead
	}
	if c.PreviewDuration <= 0 {
		c.PreviewDuration = d.PreviewDuration
	}
	if c.ReindexInterval <= 0 {
		c.ReindexInterval = d.ReindexInterval
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = d.CheckInterval
	}
	if c.Engine.PollInterval <= 0 {
		c.Engine.PollInterval = d.Engine.PollInterval
	}
	if c.OpenDecoder == nil {
		c.OpenDecoder = decode.Open
	}
	return c
}

// advanceRequest asks the run loop to move past session gen
type advanceRequest struct {
	gen    uint64
	result engine.CompletionResult
}

// Player coordinates decoding, the engine and the playlist
type Player struct {
	cfg     Config
	pl      *playlist.Playlist
	eng     *engine.Engine
	device  output.Device
	hotkeys *hotkey.Handler
	metrics *metrics.Metrics

	// navMu serializes auto-advance with manual navigation, pause and volume
	navMu    sync.Mutex
	finished bool
	gen      atomic.Uint64

	// stateMu guards cur for readers that must not wait on navMu; writers hold both
	stateMu sync.Mutex
	cur     *track

	advance  chan advanceRequest
	quit     chan struct{}
	quitOnce sync.Once
	closed   chan struct{}
}

// New creates a player for pl
func New(cfg Config, pl *playlist.Playlist) (*Player, error) {
	cfg = cfg.withDefaults()

	device := cfg.Device
	if device == nil {
		d, err := output.New(cfg.Backend, cfg.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to create output: %w", err)
		}
		device = d
	}

	ecfg := cfg.Engine
	onUnderrun := ecfg.OnUnderrun
	m := cfg.Metrics
	ecfg.OnUnderrun = func() {
		m.Underrun()
		if onUnderrun != nil {
			onUnderrun()
		}
	}

	p := &Player{
		cfg:     cfg,
		pl:      pl,
		eng:     engine.New(device, ecfg),
		device:  device,
		hotkeys: hotkey.NewHandler(),
		metrics: m,
		advance: make(chan advanceRequest, 8),
		quit:    make(chan struct{}),
		closed:  make(chan struct{}),
	}
	p.eng.SetVolume(cfg.Volume)
	p.hotkeys.SetCallback(p.HandleAction)

	return p, nil
}

// Hotkeys returns the handler that feeds actions to this player
func (p *Player) Hotkeys() *hotkey.Handler {
	return p.hotkeys
}

// Engine exposes the playback engine
func (p *Player) Engine() *engine.Engine {
	return p.eng
}

// Playlist returns the playlist being played
func (p *Player) Playlist() *playlist.Playlist {
	return p.pl
}

// Run plays until ctx is cancelled or Quit is called
func (p *Player) Run(ctx context.Context) error {
	defer close(p.closed)

	if p.pl.Len() == 0 {
		p.shutdown()
		return playlist.ErrEmpty
	}
	if p.cfg.Shuffle {
		p.pl.Shuffle()
	}

	log.Infof("Starting playback: %d songs (shuffle=%v, preview=%v)", p.pl.Len(), p.cfg.Shuffle, p.cfg.Preview)

	p.navMu.Lock()
	err := p.play(p.pl.Current, p.pl.Next)
	p.navMu.Unlock()
	if err != nil {
		p.shutdown()
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if p.cfg.LibraryDir != "" && p.cfg.Scanner != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.reindexLoop(loopCtx)
		}()
	}

loop:
	for {
		select {
		case <-ctx.Done():
			log.Info("Playback cancelled")
			break loop
		case <-p.quit:
			log.Info("Quit requested")
			break loop
		case req := <-p.advance:
			p.handleAdvance(req)
		}
	}

	cancel()
	wg.Wait()
	p.shutdown()
	return nil
}

// shutdown stops the session and releases the device
func (p *Player) shutdown() {
	p.navMu.Lock()
	defer p.navMu.Unlock()

	p.finished = true
	p.stopCurrent()
	if err := p.eng.Shutdown(); err != nil {
		log.Warnf("Engine shutdown failed: %v", err)
	}
	p.hotkeys.Close()
}

// Quit asks Run to return
func (p *Player) Quit() {
	p.quitOnce.Do(func() { close(p.quit) })
}

// Done is closed once Run has returned
func (p *Player) Done() <-chan struct{} {
	return p.closed
}

// requestAdvance hands an advance to the run loop
func (p *Player) requestAdvance(req advanceRequest) {
	select {
	case p.advance <- req:
	case <-p.quit:
	case <-p.closed:
	}
}

// handleAdvance finishes the current session and starts the next song
func (p *Player) handleAdvance(req advanceRequest) {
	p.navMu.Lock()
	defer p.navMu.Unlock()

	t := p.current()
	if p.finished || t == nil || t.gen != req.gen {
		log.Debug("Ignoring stale advance", "gen", req.gen, "code", req.result.Code)
		return
	}
	t.dog.Stop()

	r := req.result
	p.metrics.Completion(r.Code.String(), r.CompletionTime)
	if r.OK() {
		log.Infof("Finished: %s (%s, %d samples)", t.song.Title, r.CompletionTime.Round(time.Millisecond), r.SamplesProcessed)
	} else {
		log.Warnf("Finished with %s: %s (%s)", r.Code, t.song.Title, r.Message)
	}
	if p.cfg.OnTrackEnd != nil {
		p.cfg.OnTrackEnd(t.song, r)
	}

	if p.cfg.QuitAfterTrack {
		p.stopCurrent()
		p.Quit()
		return
	}

	if !p.pl.HasNext() {
		log.Info("Reached end of playlist, starting over")
	}
	if err := p.play(p.pl.Next, p.pl.Next); err != nil {
		log.Errorf("Playback stopped: %v", err)
	}
}

// play starts the song from first, stepping with skip past songs that fail to start.
// Must hold navMu.
func (p *Player) play(first, skip func() (library.Song, error)) error {
	attempts := max(p.pl.Len(), 1)

	song, err := first()
	for i := 1; ; i++ {
		if err != nil {
			return err
		}
		startErr := p.startTrack(song)
		if startErr == nil {
			return nil
		}
		log.Errorf("Skipping %s: %v", song.Path, startErr)
		if i >= attempts {
			return fmt.Errorf("no playable songs: %w", startErr)
		}
		song, err = skip()
	}
}

// Next skips to the next song
func (p *Player) Next() error {
	p.navMu.Lock()
	defer p.navMu.Unlock()

	if p.finished {
		return ErrClosed
	}
	return p.play(p.pl.Next, p.pl.Next)
}

// Previous goes back one song
func (p *Player) Previous() error {
	p.navMu.Lock()
	defer p.navMu.Unlock()

	if p.finished {
		return ErrClosed
	}
	if !p.pl.HasPrevious() {
		log.Debug("At start of playlist, wrapping to the last song")
	}
	return p.play(p.pl.Previous, p.pl.Previous)
}

// TogglePause pauses or resumes the current song and reports the new paused state
func (p *Player) TogglePause() bool {
	p.navMu.Lock()
	defer p.navMu.Unlock()

	t := p.current()
	if t == nil {
		return false
	}

	if p.eng.IsPaused() {
		p.eng.Resume()
		t.clock.Resume()
		t.dog.Resume()
		log.Info("Resumed")
		return false
	}

	p.eng.Pause()
	t.clock.Pause()
	t.dog.Pause()
	log.Info("Paused")
	return true
}

// AdjustVolume changes the volume by delta and returns the new value
func (p *Player) AdjustVolume(delta float64) float64 {
	p.navMu.Lock()
	defer p.navMu.Unlock()

	v := audio.ClampVolume(p.eng.Volume() + delta)
	v = math.Round(v*100) / 100
	p.eng.SetVolume(v)
	log.Infof("Volume: %d%%", int(math.Round(v*100)))
	return v
}

// HandleAction applies a hotkey action
func (p *Player) HandleAction(a hotkey.Action) {
	log.Debug("Hotkey", "action", a)

	switch a {
	case hotkey.NextTrack:
		if err := p.Next(); err != nil {
			log.Warnf("Next failed: %v", err)
		}
	case hotkey.PreviousTrack:
		if err := p.Previous(); err != nil {
			log.Warnf("Previous failed: %v", err)
		}
	case hotkey.PauseResume:
		p.TogglePause()
	case hotkey.VolumeUp:
		p.AdjustVolume(p.cfg.VolumeStep)
	case hotkey.VolumeDown:
		p.AdjustVolume(-p.cfg.VolumeStep)
	case hotkey.Quit:
		p.Quit()
	}
}

// Reindex rescans the library and replaces the playlist when the song count changed
func (p *Player) Reindex() (bool, error) {
	if p.cfg.Scanner == nil || p.cfg.LibraryDir == "" {
		return false, nil
	}

	songs, err := p.cfg.Scanner.Scan(p.cfg.LibraryDir)
	if err != nil {
		return false, fmt.Errorf("reindex: %w", err)
	}

	before := p.pl.Len()
	if len(songs) == 0 || len(songs) == before {
		log.Debug("Library unchanged", "songs", before)
		return false, nil
	}

	p.pl.Replace(songs)
	log.Infof("Library changed: %d -> %d songs", before, len(songs))
	return true, nil
}

// reindexLoop checks every CheckInterval whether ReindexInterval has passed
func (p *Player) reindexLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.CheckInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if now.Sub(last) < p.cfg.ReindexInterval {
				continue
			}
			last = now
			if _, err := p.Reindex(); err != nil {
				log.Warnf("Reindex failed: %v", err)
			}
		}
	}
}

func (p *Player) current() *track {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.cur
}

// setCurrent must be called with navMu held
func (p *Player) setCurrent(t *track) {
	p.stateMu.Lock()
	p.cur = t
	p.stateMu.Unlock()
}

// Status is a snapshot for displays
type Status struct {
	Song       library.Song
	Position   int
	Total      int
	Format     audio.Format
	Duration   time.Duration
	Limit      time.Duration
	Elapsed    time.Duration
	Playing    bool
	Paused     bool
	Volume     float64
	Buffered   int
	Underruns  int64
	SessionID  string
	EOF        bool
	LastResult engine.CompletionResult
}

// Remaining returns the time left before the track is paced out
func (s Status) Remaining() time.Duration {
	end := s.Limit
	if end == 0 {
		end = s.Duration
	}
	if s.Elapsed >= end {
		return 0
	}
	return end - s.Elapsed
}

// Status returns the current playback state
func (p *Player) Status() Status {
	st := p.eng.Stats()
	s := Status{
		Playing:    st.Playing,
		Paused:     st.Paused,
		Volume:     st.Volume,
		Buffered:   st.Buffered,
		Underruns:  st.Underruns,
		SessionID:  st.SessionID,
		EOF:        st.EOF,
		LastResult: st.LastResult,
	}
	s.Position, s.Total = p.pl.Position()

	if t := p.current(); t != nil {
		s.Song = t.song
		s.Format = t.format
		s.Duration = t.duration
		s.Limit = t.limit
		s.Elapsed = t.clock.Elapsed()
	}
	return s
}
