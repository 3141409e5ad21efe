// ABOUTME: Music library scanner
// ABOUTME: Walks a directory for playable files and reads their tags
package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dhowden/tag"
	"github.com/nigamp/nigamp/pkg/audio/decode"
)

// UnknownArtist is used when a file carries no artist tag
const UnknownArtist = "Unknown Artist"

// Song is one playable file
type Song struct {
	Path     string
	Title    string
	Artist   string
	Album    string
	Duration time.Duration
}

// Scanner finds songs under a directory
type Scanner struct {
	// ProbeDuration opens each file with its decoder to read the duration.
	// Slow on large MP3 libraries; the orchestrator reads it at play time anyway.
	ProbeDuration bool
}

// NewScanner creates a scanner
func NewScanner() *Scanner {
	return &Scanner{}
}

// Scan returns the supported files under dir, recursively, sorted by path.
// Unreadable subdirectories are skipped.
func (s *Scanner) Scan(dir string) ([]Song, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan %s: not a directory", dir)
	}

	var songs []Song
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != dir {
				log.Debug("Skipping unreadable directory", "path", path, "err", err)
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || !decode.Supported(path) {
			return nil
		}
		songs = append(songs, s.songFromFile(path))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	sort.Slice(songs, func(i, j int) bool {
		return songs[i].Path < songs[j].Path
	})

	log.Debug("Library scan complete", "dir", dir, "songs", len(songs))
	return songs, nil
}

// SongFromFile describes a single file
func (s *Scanner) SongFromFile(path string) (Song, error) {
	if !decode.Supported(path) {
		return Song{}, fmt.Errorf("%s: %w", path, decode.ErrUnsupported)
	}
	if _, err := os.Stat(path); err != nil {
		return Song{}, err
	}
	return s.songFromFile(path), nil
}

func (s *Scanner) songFromFile(path string) Song {
	song := Song{
		Path:   path,
		Title:  TitleFromFilename(path),
		Artist: UnknownArtist,
	}

	if err := readTags(path, &song); err != nil && !errors.Is(err, tag.ErrNoTagsFound) {
		log.Debug("Tag read failed", "path", path, "err", err)
	}

	if s.ProbeDuration {
		if dec, err := decode.Open(path); err == nil {
			song.Duration = dec.Duration()
			dec.Close()
		}
	}

	return song
}

func readTags(path string, song *Song) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return err
	}

	if t := strings.TrimSpace(m.Title()); t != "" {
		song.Title = t
	}
	if a := strings.TrimSpace(m.Artist()); a != "" {
		song.Artist = a
	}
	song.Album = strings.TrimSpace(m.Album())
	return nil
}

// TitleFromFilename derives a display title from the file stem
func TitleFromFilename(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		return "Unknown Title"
	}
	return strings.NewReplacer("_", " ", "-", " ").Replace(stem)
}
