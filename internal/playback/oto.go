//go:build !nocgo
// +build !nocgo

package playback

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/easyaudiostream/internal/segment"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process, created with a fixed format.
var (
	otoOnce    sync.Once
	otoContext *oto.Context
	otoFormat  segment.Format
	otoLatency time.Duration
	otoErr     error
)

// otoAvailable reports whether this build links oto.
const otoAvailable = true

func sharedOtoContext(format segment.Format) (*oto.Context, time.Duration, error) {
	otoOnce.Do(func() {
		otoFormat = format
		otoContext, otoLatency, otoErr = newOtoContextWithRetry(format, DetectPlatform())
	})
	if otoErr != nil {
		return nil, 0, otoErr
	}
	if otoFormat != format {
		return nil, 0, fmt.Errorf("%w: oto already initialised at %v, requested %v",
			ErrBackendUnavailable, otoFormat, format)
	}
	return otoContext, otoLatency, nil
}

func newOtoContextWithRetry(format segment.Format, platform *PlatformInfo) (*oto.Context, time.Duration, error) {
	if format.SampleWidth != 2 {
		return nil, 0, fmt.Errorf("%w: oto output needs 16-bit samples, got %d-bit",
			ErrBackendUnavailable, format.SampleWidth*8)
	}

	maxRetries, retryDelay := platform.InitRetries()
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			log.Debug("Retrying audio context initialization", "attempt", i+1, "of", maxRetries)
			time.Sleep(retryDelay)
		}

		ctx, err := newOtoContext(format, platform)
		if err != nil {
			lastErr = err
			log.Debug("Audio context initialization failed", "attempt", i+1, "error", err)
			continue
		}
		log.Debug("Audio context initialized", "attempt", i+1, "platform", platform.OS)
		return ctx, platform.BufferSize(), nil
	}

	return nil, 0, fmt.Errorf("failed to initialize audio context after %d attempts: %w", maxRetries, lastErr)
}

func newOtoContext(format segment.Format, platform *PlatformInfo) (*oto.Context, error) {
	options := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   platform.BufferSize(),
	}

	log.Debug("Initializing audio context",
		"audio_subsystem", platform.AudioSubsystem,
		"sample_rate", options.SampleRate,
		"channels", options.ChannelCount,
		"buffer_size", options.BufferSize)

	ctx, ready, err := oto.NewContext(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio context: %w", err)
	}

	timeout := platform.ReadyTimeout()
	select {
	case <-ready:
		return ctx, nil
	case <-time.After(timeout):
		// oto v3 contexts cannot be closed
		return nil, fmt.Errorf("audio context initialization timeout after %v", timeout)
	}
}

// OtoDevice plays through the process-wide oto context.
type OtoDevice struct {
	format segment.Format

	mu      sync.Mutex
	player  *oto.Player
	latency time.Duration
}

// NewOtoDevice returns a device for format. The audio context is created on
// Start.
func NewOtoDevice(format segment.Format) *OtoDevice {
	return &OtoDevice{format: format}
}

func (d *OtoDevice) Name() string { return BackendOto }

func (d *OtoDevice) Format() segment.Format { return d.format }

func (d *OtoDevice) Latency() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latency
}

// Start creates an oto player pulling from src and starts it.
func (d *OtoDevice) Start(src io.Reader) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.player != nil {
		return nil
	}

	ctx, latency, err := sharedOtoContext(d.format)
	if err != nil {
		return wrapErr(BackendOto, "init", err)
	}

	player := ctx.NewPlayer(src)
	player.Play()
	if err := player.Err(); err != nil {
		return wrapErr(BackendOto, "play", err)
	}

	d.player = player
	d.latency = latency
	return nil
}

// Close stops and releases the player. The context stays alive.
func (d *OtoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.player == nil {
		return nil
	}
	d.player.Pause()
	err := d.player.Close()
	d.player = nil
	if err != nil && !errors.Is(err, io.EOF) {
		return wrapErr(BackendOto, "close", err)
	}
	return nil
}

// tryOto initialises the shared context so auto selection can skip oto
// when no device answers.
func tryOto(format segment.Format) error {
	_, _, err := sharedOtoContext(format)
	return err
}
