package playback

import (
	"context"
	"time"

	"github.com/dgnsrekt/easyaudiostream/internal/segment"
)

// Backend names accepted by Select.
const (
	BackendAuto      = "auto"
	BackendOto       = "oto"
	BackendPortAudio = "portaudio"
	BackendFFplay    = "ffplay"
	BackendCommand   = "command"
	BackendNull      = "null"
)

// Manager plays segments back to back.
type Manager interface {
	// Play enqueues seg and returns without waiting for the device.
	Play(seg *segment.Segment) error

	// Wait blocks until everything queued so far has been played.
	Wait(ctx context.Context) error

	// Close stops playback and releases the device.
	Close() error

	// Name returns the backend name.
	Name() string

	// Stats returns playback counters.
	Stats() Stats
}

// Stats reports what a manager has done so far.
type Stats struct {
	Backend        string
	SegmentsQueued int64
	SegmentsPlayed int64
	BytesPlayed    int64
	PendingAudio   time.Duration
	Underruns      int64
	SilenceWrites  int64
	Errors         int64
}

// Options tunes the managers. Zero values are replaced by defaults.
type Options struct {
	// Format is the output format every segment is converted to.
	Format segment.Format

	// ChunkSize is how much audio the pump hands the device at a time.
	ChunkSize time.Duration

	// WarmUp delays the first write after the device opens.
	WarmUp time.Duration

	// MaxAhead bounds how much audio may sit in the ring buffer.
	MaxAhead time.Duration

	// IdleInterval is the silence slice written to ffplay while idle.
	IdleInterval time.Duration

	// QueueMaxBytes bounds the segment queue; zero is unbounded.
	QueueMaxBytes int64

	// FFplayPath is the ffplay binary.
	FFplayPath string

	// Players are the command fallback players, tried in order.
	Players []string

	// TempDir receives the WAV files the command fallback plays.
	TempDir string
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		Format:       segment.DefaultFormat,
		ChunkSize:    500 * time.Millisecond,
		WarmUp:       100 * time.Millisecond,
		MaxAhead:     time.Second,
		IdleInterval: 50 * time.Millisecond,
		FFplayPath:   "ffplay",
		Players:      DefaultPlayers(),
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Format == (segment.Format{}) {
		o.Format = def.Format
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = def.ChunkSize
	}
	if o.WarmUp < 0 {
		o.WarmUp = 0
	}
	if o.MaxAhead <= 0 {
		o.MaxAhead = def.MaxAhead
	}
	if o.IdleInterval <= 0 {
		o.IdleInterval = def.IdleInterval
	}
	if o.FFplayPath == "" {
		o.FFplayPath = def.FFplayPath
	}
	if len(o.Players) == 0 {
		o.Players = def.Players
	}
	return o
}

// waitPoll is how often Wait re-checks for drained output.
const waitPoll = 10 * time.Millisecond

// waitUntil polls done until it reports true, ctx ends or stop closes.
func waitUntil(ctx context.Context, stop <-chan struct{}, done func() bool) error {
	ticker := time.NewTicker(waitPoll)
	defer ticker.Stop()

	for !done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
