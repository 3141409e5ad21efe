// ABOUTME: Runtime configuration for the player
// ABOUTME: Defaults, YAML config file, .env file and NIGAMP_* environment overrides
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Output   OutputConfig   `yaml:"output"`
	Engine   EngineConfig   `yaml:"engine"`
	Playback PlaybackConfig `yaml:"playback"`
	Library  LibraryConfig  `yaml:"library"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// OutputConfig selects and sizes the audio device
type OutputConfig struct {
	Backend  string `yaml:"backend"`
	Device   string `yaml:"device,omitempty"`
	BufferMs int    `yaml:"buffer_ms"`
	PeriodMs int    `yaml:"period_ms"`
}

// EngineConfig tunes the device writer loop
type EngineConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// PlaybackConfig holds orchestrator settings
type PlaybackConfig struct {
	Volume            float64       `yaml:"volume"`
	VolumeStep        float64       `yaml:"volume_step"`
	CompletionTimeout time.Duration `yaml:"completion_timeout"`
	PacingTolerance   time.Duration `yaml:"pacing_tolerance"`
	QueueAhead        time.Duration `yaml:"queue_ahead"`
	DurationPacing    bool          `yaml:"duration_pacing"`
	Preview           bool          `yaml:"preview"`
	PreviewDuration   time.Duration `yaml:"preview_duration"`
	Shuffle           bool          `yaml:"shuffle"`
}

// LibraryConfig locates music and controls rescanning
type LibraryConfig struct {
	Dir             string        `yaml:"dir"`
	File            string        `yaml:"file,omitempty"`
	ReindexInterval time.Duration `yaml:"reindex_interval"`
	CheckInterval   time.Duration `yaml:"check_interval"`
}

// LogConfig controls log output
type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// MetricsConfig controls the Prometheus listener; empty Listen disables it
type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Backend:  "",
			BufferMs: 2000,
			PeriodMs: 50,
		},
		Engine: EngineConfig{
			PollInterval: 10 * time.Millisecond,
		},
		Playback: PlaybackConfig{
			Volume:            0.8,
			VolumeStep:        0.1,
			CompletionTimeout: 3 * time.Second,
			QueueAhead:        500 * time.Millisecond,
			DurationPacing:    true,
			PreviewDuration:   10 * time.Second,
			Shuffle:           true,
		},
		Library: LibraryConfig{
			Dir:             defaultMusicDir(),
			ReindexInterval: 10 * time.Minute,
			CheckInterval:   time.Minute,
		},
		Log: LogConfig{
			File:  "nigamp.log",
			Level: "info",
		},
	}
}

func defaultMusicDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "Music"
	}
	return home + string(os.PathSeparator) + "Music"
}

// LoadConfig loads configuration from file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, return default config
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to file
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnvFiles loads the given .env files into the process environment.
// Missing files are skipped; variables already set are not overwritten.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from NIGAMP_* environment variables
func (c *Config) ApplyEnv() {
	c.Output.Backend = envStr("NIGAMP_OUTPUT", c.Output.Backend)
	c.Output.Device = envStr("NIGAMP_DEVICE", c.Output.Device)
	c.Output.BufferMs = envInt("NIGAMP_BUFFER_MS", c.Output.BufferMs)
	c.Output.PeriodMs = envInt("NIGAMP_PERIOD_MS", c.Output.PeriodMs)

	c.Engine.PollInterval = envDuration("NIGAMP_POLL_INTERVAL", c.Engine.PollInterval)

	c.Playback.Volume = envFloat("NIGAMP_VOLUME", c.Playback.Volume)
	c.Playback.VolumeStep = envFloat("NIGAMP_VOLUME_STEP", c.Playback.VolumeStep)
	c.Playback.CompletionTimeout = envDuration("NIGAMP_COMPLETION_TIMEOUT", c.Playback.CompletionTimeout)
	c.Playback.PacingTolerance = envDuration("NIGAMP_PACING_TOLERANCE", c.Playback.PacingTolerance)
	c.Playback.QueueAhead = envDuration("NIGAMP_QUEUE_AHEAD", c.Playback.QueueAhead)
	c.Playback.DurationPacing = envBool("NIGAMP_DURATION_PACING", c.Playback.DurationPacing)
	c.Playback.Preview = envBool("NIGAMP_PREVIEW", c.Playback.Preview)
	c.Playback.PreviewDuration = envDuration("NIGAMP_PREVIEW_DURATION", c.Playback.PreviewDuration)
	c.Playback.Shuffle = envBool("NIGAMP_SHUFFLE", c.Playback.Shuffle)

	c.Library.Dir = envStr("NIGAMP_DIR", c.Library.Dir)
	c.Library.File = envStr("NIGAMP_FILE", c.Library.File)
	c.Library.ReindexInterval = envDuration("NIGAMP_REINDEX_INTERVAL", c.Library.ReindexInterval)
	c.Library.CheckInterval = envDuration("NIGAMP_CHECK_INTERVAL", c.Library.CheckInterval)

	c.Log.File = envStr("NIGAMP_LOG_FILE", c.Log.File)
	c.Log.Level = envStr("NIGAMP_LOG_LEVEL", c.Log.Level)

	c.Metrics.Listen = envStr("NIGAMP_METRICS_LISTEN", c.Metrics.Listen)
}

// Validate rejects settings the player cannot run with
func (c *Config) Validate() error {
	if c.Output.BufferMs <= 0 {
		return fmt.Errorf("output.buffer_ms must be positive, got %d", c.Output.BufferMs)
	}
	if c.Output.PeriodMs <= 0 {
		return fmt.Errorf("output.period_ms must be positive, got %d", c.Output.PeriodMs)
	}
	if c.Engine.PollInterval <= 0 {
		return fmt.Errorf("engine.poll_interval must be positive, got %s", c.Engine.PollInterval)
	}
	if c.Playback.Volume < 0 || c.Playback.Volume > 1 {
		return fmt.Errorf("playback.volume must be within [0, 1], got %g", c.Playback.Volume)
	}
	if c.Playback.VolumeStep <= 0 || c.Playback.VolumeStep > 1 {
		return fmt.Errorf("playback.volume_step must be within (0, 1], got %g", c.Playback.VolumeStep)
	}
	if c.Playback.CompletionTimeout <= 0 {
		return fmt.Errorf("playback.completion_timeout must be positive, got %s", c.Playback.CompletionTimeout)
	}
	if c.Playback.PacingTolerance < 0 {
		return fmt.Errorf("playback.pacing_tolerance must not be negative, got %s", c.Playback.PacingTolerance)
	}
	if c.Playback.Preview && c.Playback.PreviewDuration <= 0 {
		return fmt.Errorf("playback.preview_duration must be positive in preview mode")
	}
	if c.Library.Dir == "" && c.Library.File == "" {
		return errors.New("either library.dir or library.file is required")
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// Bare numbers are seconds
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(n * float64(time.Second))
		}
	}
	return fallback
}
