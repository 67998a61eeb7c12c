package audiostream

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/easyaudiostream/internal/cache"
	"github.com/dgnsrekt/easyaudiostream/internal/config"
	"github.com/dgnsrekt/easyaudiostream/internal/playback"
	"github.com/dgnsrekt/easyaudiostream/internal/segment"
	"github.com/google/uuid"
)

type (
	// Config configures a Player.
	Config = config.Config

	// Format describes raw PCM layout.
	Format = segment.Format

	// Segment is decoded audio ready to be queued.
	Segment = segment.Segment

	// Stats reports playback counters.
	Stats = playback.Stats
)

// ErrClosed is returned when playing on a closed Player.
var ErrClosed = playback.ErrClosed

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config { return config.DefaultConfig() }

type decoder interface {
	Decode(ctx context.Context, data []byte) (*segment.Segment, error)
}

// Player decodes audio and queues it on one output backend. The backend is
// opened on first use.
type Player struct {
	cfg     Config
	decoder decoder
	cache   *cache.DecodeCache // nil when caching is off

	mu      sync.Mutex
	manager playback.Manager
	open    func() (playback.Manager, error)
	closed  bool
}

// New validates cfg and returns a Player. No audio device is touched until
// the first segment is played.
func New(cfg Config) (*Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Player{cfg: cfg, decoder: cfg.Decoder()}
	p.open = p.selectBackend

	if cfg.Cache.Enabled {
		c, err := cache.NewDecodeCache(cfg.CacheSettings(), cfg.Decoder())
		if err != nil {
			log.Warn("Decode cache disabled", "error", err)
		} else {
			p.cache = c
			p.decoder = c
		}
	}
	return p, nil
}

// NewWithManager returns a Player that plays on m instead of selecting a
// backend.
func NewWithManager(cfg Config, m playback.Manager) *Player {
	p := &Player{cfg: cfg, decoder: cfg.Decoder(), manager: m}
	p.open = func() (playback.Manager, error) { return m, nil }
	return p
}

func (p *Player) selectBackend() (playback.Manager, error) {
	caps := playback.DetectCapabilities(p.cfg.FFplay, p.cfg.FFmpeg, p.cfg.Players)
	caps.MockAudio = caps.MockAudio || p.cfg.MockAudio

	m, err := playback.SelectWith(p.cfg.Backend, p.cfg.PlaybackOptions(), caps)
	if err != nil {
		return nil, err
	}
	log.Debug("Selected audio backend", "backend", m.Name(), "format", p.cfg.Format())
	return m, nil
}

func (p *Player) backend() (playback.Manager, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if p.manager == nil {
		m, err := p.open()
		if err != nil {
			return nil, fmt.Errorf("failed to open audio output: %w", err)
		}
		p.manager = m
	}
	return p.manager, nil
}

// Backend returns the name of the output backend, opening it if needed.
func (p *Player) Backend() (string, error) {
	m, err := p.backend()
	if err != nil {
		return "", err
	}
	return m.Name(), nil
}

// PlaySegment queues seg and returns without waiting for it to play.
func (p *Player) PlaySegment(seg *Segment) error {
	if seg == nil || seg.Empty() {
		return nil
	}
	m, err := p.backend()
	if err != nil {
		return err
	}

	id := uuid.NewString()
	log.Debug("Queueing segment", "id", id[:8], "segment", seg)
	if err := m.Play(seg); err != nil {
		return fmt.Errorf("failed to queue segment %s: %w", id[:8], err)
	}
	return nil
}

// PlayAudio decodes a complete encoded file and queues it.
func (p *Player) PlayAudio(data []byte) error {
	return p.PlayAudioContext(context.Background(), data)
}

// PlayAudioContext is PlayAudio with a context bounding the decode.
func (p *Player) PlayAudioContext(ctx context.Context, data []byte) error {
	if p.isClosed() {
		return ErrClosed
	}
	seg, err := p.Decode(ctx, data)
	if err != nil {
		return err
	}
	return p.PlaySegment(seg)
}

// Decode decodes a complete encoded file through the cache without queueing
// it.
func (p *Player) Decode(ctx context.Context, data []byte) (*Segment, error) {
	seg, err := p.decoder.Decode(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio: %w", err)
	}
	return seg, nil
}

// PlayRawAudio queues raw PCM. The format defaults to 16-bit mono 24kHz
// little-endian; opts override it.
func (p *Player) PlayRawAudio(data []byte, opts ...RawOption) error {
	seg, err := segment.New(data, RawFormat(opts...))
	if err != nil {
		return err
	}
	return p.PlaySegment(seg)
}

// PlayStream queues every chunk of stream as a complete encoded file. It
// returns when the stream ends or ctx is done, not when playback ends.
func (p *Player) PlayStream(ctx context.Context, stream iter.Seq[[]byte]) error {
	return p.consume(ctx, stream, func(chunk []byte) error {
		return p.PlayAudioContext(ctx, chunk)
	})
}

// PlayRawStream queues every chunk of stream as raw PCM in the format given
// by opts. It returns when the stream ends or ctx is done.
func (p *Player) PlayRawStream(ctx context.Context, stream iter.Seq[[]byte], opts ...RawOption) error {
	format := RawFormat(opts...)
	return p.consume(ctx, stream, func(chunk []byte) error {
		seg, err := segment.New(chunk, format)
		if err != nil {
			return err
		}
		return p.PlaySegment(seg)
	})
}

func (p *Player) consume(ctx context.Context, stream iter.Seq[[]byte], play func([]byte) error) error {
	n := 0
	for chunk := range stream {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(chunk) == 0 {
			continue
		}
		if err := play(chunk); err != nil {
			return fmt.Errorf("stream chunk %d: %w", n, err)
		}
		n++
	}
	log.Debug("Stream exhausted", "chunks", n)
	return ctx.Err()
}

// Wait blocks until everything queued so far has played or ctx is done.
func (p *Player) Wait(ctx context.Context) error {
	p.mu.Lock()
	m := p.manager
	p.mu.Unlock()

	if m == nil {
		return nil
	}
	return m.Wait(ctx)
}

// Stats returns the backend counters. Nothing is reported before the first
// segment is played.
func (p *Player) Stats() Stats {
	p.mu.Lock()
	m := p.manager
	p.mu.Unlock()

	if m == nil {
		return Stats{}
	}
	return m.Stats()
}

// CacheStats returns decode cache counters for the memory and disk tiers.
func (p *Player) CacheStats() (memory, disk cache.Stats) {
	if p.cache == nil {
		return cache.Stats{}, cache.Stats{}
	}
	return p.cache.Stats()
}

// Close discards queued audio and releases the backend.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	m := p.manager
	p.mu.Unlock()

	var errs []error
	if m != nil {
		errs = append(errs, m.Close())
	}
	if p.cache != nil {
		errs = append(errs, p.cache.Close())
	}
	return errors.Join(errs...)
}

func (p *Player) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
