// ABOUTME: Shuffle playlist with wrap-around navigation
// ABOUTME: Safe for concurrent use by navigation, auto-advance and reindexing
package playlist

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nigamp/nigamp/internal/library"
)

// ErrEmpty is returned when navigating an empty playlist
var ErrEmpty = errors.New("playlist is empty")

// Playlist is an ordered song list with an optional shuffled play order
type Playlist struct {
	mu       sync.Mutex
	songs    []library.Song
	order    []int // play order as indexes into songs
	index    int   // position in order
	shuffled bool
	rng      *rand.Rand
}

// New creates a playlist in library order
func New(songs []library.Song) *Playlist {
	seed := uint64(time.Now().UnixNano())
	return NewWithRand(songs, rand.New(rand.NewPCG(seed, seed>>1|1)))
}

// NewWithRand creates a playlist using rng for shuffling
func NewWithRand(songs []library.Song, rng *rand.Rand) *Playlist {
	p := &Playlist{rng: rng}
	p.setSongs(songs)
	return p
}

func (p *Playlist) setSongs(songs []library.Song) {
	p.songs = append([]library.Song(nil), songs...)
	p.order = make([]int, len(p.songs))
	for i := range p.order {
		p.order[i] = i
	}
	p.index = 0
}

// Add appends a song; in shuffle mode it lands at a random position
// after the current one.
func (p *Playlist) Add(song library.Song) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.songs = append(p.songs, song)
	p.order = append(p.order, len(p.songs)-1)

	if p.shuffled && len(p.order)-1 > p.index+1 {
		last := len(p.order) - 1
		j := p.index + 1 + p.rng.IntN(last-p.index)
		p.order[last], p.order[j] = p.order[j], p.order[last]
	}
}

// Shuffle randomizes the play order and rewinds to its start
func (p *Playlist) Shuffle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.shuffleLocked()
	p.index = 0
}

// Fisher-Yates over the play order
func (p *Playlist) shuffleLocked() {
	for i := len(p.order) - 1; i > 0; i-- {
		j := p.rng.IntN(i + 1)
		p.order[i], p.order[j] = p.order[j], p.order[i]
	}
	p.shuffled = len(p.order) > 0
}

// Reset restores library order and rewinds
func (p *Playlist) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.order {
		p.order[i] = i
	}
	p.index = 0
	p.shuffled = false
}

// Current returns the song at the cursor
func (p *Playlist) Current() (library.Song, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.order) == 0 {
		return library.Song{}, ErrEmpty
	}
	return p.songs[p.order[p.index]], nil
}

// Next advances the cursor, wrapping to the first song.
// A single-song playlist returns the same song.
func (p *Playlist) Next() (library.Song, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.order) == 0 {
		return library.Song{}, ErrEmpty
	}
	p.index = (p.index + 1) % len(p.order)
	return p.songs[p.order[p.index]], nil
}

// Previous moves the cursor back, wrapping to the last song
func (p *Playlist) Previous() (library.Song, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.order) == 0 {
		return library.Song{}, ErrEmpty
	}
	p.index = (p.index - 1 + len(p.order)) % len(p.order)
	return p.songs[p.order[p.index]], nil
}

// HasNext reports whether Next moves forward without wrapping
func (p *Playlist) HasNext() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index+1 < len(p.order)
}

// HasPrevious reports whether Previous moves back without wrapping
func (p *Playlist) HasPrevious() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order) > 0 && p.index > 0
}

// Len returns the number of songs
func (p *Playlist) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.songs)
}

// Position returns the 1-based cursor position and the length
func (p *Playlist) Position() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.order) == 0 {
		return 0, 0
	}
	return p.index + 1, len(p.order)
}

// Shuffled reports whether the play order is shuffled
func (p *Playlist) Shuffled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shuffled
}

// Replace swaps in a new song list, reshuffling if the playlist was shuffled.
// The cursor stays on the current song when it is still present.
func (p *Playlist) Replace(songs []library.Song) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var currentPath string
	if len(p.order) > 0 {
		currentPath = p.songs[p.order[p.index]].Path
	}
	wasShuffled := p.shuffled

	p.setSongs(songs)
	if wasShuffled {
		p.shuffleLocked()
	}

	if currentPath == "" {
		return
	}
	for pos, idx := range p.order {
		if p.songs[idx].Path == currentPath {
			p.index = pos
			return
		}
	}
}

// Songs returns a copy of the songs in play order
func (p *Playlist) Songs() []library.Song {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]library.Song, len(p.order))
	for i, idx := range p.order {
		out[i] = p.songs[idx]
	}
	return out
}
