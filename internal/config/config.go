package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/easyaudiostream/internal/cache"
	"github.com/dgnsrekt/easyaudiostream/internal/playback"
	"github.com/dgnsrekt/easyaudiostream/internal/segment"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "EASYAUDIOSTREAM_"

// AppName names the config and cache directories.
const AppName = "easyaudiostream"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config contains every tunable setting.
type Config struct {
	// Backend is auto, oto, portaudio, ffplay, command or null.
	Backend string `env:"BACKEND" mapstructure:"backend"`

	// Output format every segment is converted to.
	SampleRate  int `env:"SAMPLE_RATE"  mapstructure:"sample_rate"`
	Channels    int `env:"CHANNELS"     mapstructure:"channels"`
	SampleWidth int `env:"SAMPLE_WIDTH" mapstructure:"sample_width"`

	// Pump tuning
	ChunkSize     time.Duration `env:"CHUNK_SIZE"      mapstructure:"chunk_size"`
	WarmUp        time.Duration `env:"WARM_UP"         mapstructure:"warm_up"`
	MaxAhead      time.Duration `env:"MAX_AHEAD"       mapstructure:"max_ahead"`
	IdleInterval  time.Duration `env:"IDLE_INTERVAL"   mapstructure:"idle_interval"`
	QueueMaxBytes int64         `env:"QUEUE_MAX_BYTES" mapstructure:"queue_max_bytes"`

	// External binaries
	FFplay        string        `env:"FFPLAY"         mapstructure:"ffplay"`
	FFmpeg        string        `env:"FFMPEG"         mapstructure:"ffmpeg"`
	Players       []string      `env:"PLAYERS"        mapstructure:"players" envSeparator:","`
	DecodeTimeout time.Duration `env:"DECODE_TIMEOUT" mapstructure:"decode_timeout"`
	TempDir       string        `env:"TEMP_DIR"       mapstructure:"temp_dir"`

	// Microphone
	MicFramesPerBuffer int `env:"MIC_FRAMES_PER_BUFFER" mapstructure:"mic_frames_per_buffer"`

	Cache CacheConfig `envPrefix:"CACHE_" mapstructure:"cache"`

	// MockAudio forces the null backend for auto selection.
	MockAudio bool `env:"MOCK_AUDIO" mapstructure:"mock_audio"`

	LogLevel string `env:"LOG_LEVEL" mapstructure:"log_level"`
}

// CacheConfig holds decode cache settings
type CacheConfig struct {
	Enabled   bool          `env:"ENABLED"   mapstructure:"enabled"`
	Dir       string        `env:"DIR"       mapstructure:"dir"`
	MaxSizeMB int           `env:"MAX_SIZE"  mapstructure:"max_size"`
	MemoryMB  int           `env:"MEMORY"    mapstructure:"memory"`
	TTL       time.Duration `env:"TTL"       mapstructure:"ttl"`
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	opts := playback.DefaultOptions()
	return Config{
		Backend:            playback.BackendAuto,
		SampleRate:         opts.Format.SampleRate,
		Channels:           opts.Format.Channels,
		SampleWidth:        opts.Format.SampleWidth,
		ChunkSize:          opts.ChunkSize,
		WarmUp:             opts.WarmUp,
		MaxAhead:           opts.MaxAhead,
		IdleInterval:       opts.IdleInterval,
		FFplay:             opts.FFplayPath,
		FFmpeg:             "ffmpeg",
		Players:            opts.Players,
		DecodeTimeout:      30 * time.Second,
		MicFramesPerBuffer: 1200,
		Cache: CacheConfig{
			Enabled:   true,
			MaxSizeMB: 512,
			MemoryMB:  64,
			TTL:       7 * 24 * time.Hour,
		},
		LogLevel: "info",
	}
}

// Load resolves the configuration: DefaultConfig, then the keys v holds
// (usually read from the config file), then EASYAUDIOSTREAM_* variables.
// v may be nil.
func Load(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	if v != nil {
		var err error
		if cfg, err = LoadFromViper(v, cfg); err != nil {
			return cfg, err
		}
	}
	return ApplyEnv(cfg)
}

// LoadFromEnv applies EASYAUDIOSTREAM_* variables over DefaultConfig.
func LoadFromEnv() (Config, error) {
	return ApplyEnv(DefaultConfig())
}

// ApplyEnv overlays the EASYAUDIOSTREAM_* variables that are set onto base.
func ApplyEnv(base Config) (Config, error) {
	cfg := base
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return base, fmt.Errorf("error parsing environment: %w", err)
	}
	return cfg, nil
}

// LoadFromViper overlays the keys v holds onto base. Keys absent from v,
// including nested cache keys, keep their base values.
func LoadFromViper(v *viper.Viper, base Config) (Config, error) {
	cfg := base
	if err := v.Unmarshal(&cfg); err != nil {
		return base, fmt.Errorf("error parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate bounds-checks the settings.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	switch strings.ToLower(c.Backend) {
	case playback.BackendAuto, playback.BackendOto, playback.BackendPortAudio,
		playback.BackendFFplay, playback.BackendCommand, playback.BackendNull:
	default:
		add("unknown backend %q", c.Backend)
	}
	if err := c.Format().Validate(); err != nil {
		add("%v", err)
	}
	if c.ChunkSize < 10*time.Millisecond || c.ChunkSize > 10*time.Second {
		add("chunk_size must be between 10ms and 10s, got %v", c.ChunkSize)
	}
	if c.WarmUp < 0 || c.WarmUp > 5*time.Second {
		add("warm_up must be between 0 and 5s, got %v", c.WarmUp)
	}
	if c.MaxAhead <= 0 {
		add("max_ahead must be positive, got %v", c.MaxAhead)
	}
	if c.IdleInterval < time.Millisecond || c.IdleInterval > time.Second {
		add("idle_interval must be between 1ms and 1s, got %v", c.IdleInterval)
	}
	if c.QueueMaxBytes < 0 {
		add("queue_max_bytes must not be negative, got %d", c.QueueMaxBytes)
	}
	if c.MicFramesPerBuffer <= 0 {
		add("mic_frames_per_buffer must be positive, got %d", c.MicFramesPerBuffer)
	}
	if c.Cache.Enabled && (c.Cache.MaxSizeMB < 1 || c.Cache.MaxSizeMB > 10000) {
		add("cache max_size must be between 1 and 10000 MB, got %d", c.Cache.MaxSizeMB)
	}
	if c.Cache.MemoryMB < 0 {
		add("cache memory must not be negative, got %d", c.Cache.MemoryMB)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		add("log_level: %v", err)
	}
	return errors.Join(errs...)
}

// Format returns the output format.
func (c Config) Format() segment.Format {
	return segment.Format{SampleRate: c.SampleRate, Channels: c.Channels, SampleWidth: c.SampleWidth}
}

// PlaybackOptions converts the settings for playback.Select.
func (c Config) PlaybackOptions() playback.Options {
	return playback.Options{
		Format:        c.Format(),
		ChunkSize:     c.ChunkSize,
		WarmUp:        c.WarmUp,
		MaxAhead:      c.MaxAhead,
		IdleInterval:  c.IdleInterval,
		QueueMaxBytes: c.QueueMaxBytes,
		FFplayPath:    c.FFplay,
		Players:       c.Players,
		TempDir:       expand(c.TempDir),
	}
}

// Decoder returns the decoder for encoded input.
func (c Config) Decoder() *segment.Decoder {
	return &segment.Decoder{
		FFmpegPath:     c.FFmpeg,
		FallbackFormat: segment.DefaultDecoder.FallbackFormat,
		Timeout:        c.DecodeTimeout,
	}
}

// CacheSettings converts the cache settings. The disk tier lives in Dir, or
// the user cache directory when Dir is empty.
func (c Config) CacheSettings() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.MemoryCapacity = int64(c.Cache.MemoryMB) * 1024 * 1024
	cfg.DiskCapacity = int64(c.Cache.MaxSizeMB) * 1024 * 1024
	cfg.TTL = c.Cache.TTL
	cfg.DiskPath = expand(c.Cache.Dir)
	if cfg.DiskPath == "" {
		cfg.DiskPath = DefaultCacheDir()
	}
	return cfg
}

// DefaultCacheDir returns the per-user cache directory, or "" when it
// cannot be determined.
func DefaultCacheDir() string {
	dir, err := gap.NewScope(gap.User, AppName).CacheDir()
	if err != nil {
		log.Debug("No user cache directory", "error", err)
		return ""
	}
	return dir
}

func expand(path string) string {
	if path == "" {
		return ""
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}
