package audiostream

import (
	"context"
	"iter"
	"sync"

	"github.com/dgnsrekt/easyaudiostream/internal/config"
)

var (
	defaultMu     sync.Mutex
	defaultPlayer *Player
)

// Default returns the shared Player, creating it from the environment on
// first use.
func Default() (*Player, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultPlayer != nil {
		return defaultPlayer, nil
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	p, err := New(cfg)
	if err != nil {
		return nil, err
	}
	defaultPlayer = p
	return p, nil
}

// SetDefault replaces the shared Player and returns the previous one, which
// is not closed.
func SetDefault(p *Player) *Player {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	prev := defaultPlayer
	defaultPlayer = p
	return prev
}

// PlayAudio decodes a complete encoded file and queues it on the default
// Player.
func PlayAudio(data []byte) error {
	p, err := Default()
	if err != nil {
		return err
	}
	return p.PlayAudio(data)
}

// PlayRawAudio queues raw PCM on the default Player.
func PlayRawAudio(data []byte, opts ...RawOption) error {
	p, err := Default()
	if err != nil {
		return err
	}
	return p.PlayRawAudio(data, opts...)
}

// PlayStream queues every chunk of stream as an encoded file on the default
// Player.
func PlayStream(ctx context.Context, stream iter.Seq[[]byte]) error {
	p, err := Default()
	if err != nil {
		return err
	}
	return p.PlayStream(ctx, stream)
}

// PlayRawStream queues every chunk of stream as raw PCM on the default
// Player.
func PlayRawStream(ctx context.Context, stream iter.Seq[[]byte], opts ...RawOption) error {
	p, err := Default()
	if err != nil {
		return err
	}
	return p.PlayRawStream(ctx, stream, opts...)
}

// Wait blocks until the default Player has played everything queued.
func Wait(ctx context.Context) error {
	defaultMu.Lock()
	p := defaultPlayer
	defaultMu.Unlock()

	if p == nil {
		return nil
	}
	return p.Wait(ctx)
}

// Close releases the default Player. The next call creates a new one.
func Close() error {
	p := SetDefault(nil)
	if p == nil {
		return nil
	}
	return p.Close()
}

// MicStream opens the microphone on the default Player. A negative deviceID
// selects the default input.
func MicStream(ctx context.Context, deviceID int, opts ...MicOption) (*Mic, error) {
	p, err := Default()
	if err != nil {
		return nil, err
	}
	return p.OpenMic(ctx, deviceID, opts...)
}
