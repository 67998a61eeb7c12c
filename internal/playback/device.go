package playback

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/easyaudiostream/internal/segment"
)

// Device is a pull-based output. Once started it keeps reading src at the
// rate of its format until closed.
type Device interface {
	// Name identifies the device in logs and stats.
	Name() string

	// Format is the PCM format the device consumes.
	Format() segment.Format

	// Start begins pulling audio from src.
	Start(src io.Reader) error

	// Latency is how much audio the device holds after reading it.
	Latency() time.Duration

	// Close stops the device.
	Close() error
}

// NullDevice consumes audio in real time without producing sound. It is
// used in CI, with mock audio and in tests. Everything read is copied to
// Sink when set.
type NullDevice struct {
	format segment.Format
	tick   time.Duration

	mu     sync.Mutex
	sink   io.Writer
	cancel context.CancelFunc
	done   chan struct{}
}

// NewNullDevice creates a null device for format. sink may be nil.
func NewNullDevice(format segment.Format, sink io.Writer) *NullDevice {
	return &NullDevice{
		format: format,
		tick:   10 * time.Millisecond,
		sink:   sink,
	}
}

func (d *NullDevice) Name() string { return BackendNull }

func (d *NullDevice) Format() segment.Format { return d.format }

// Latency is one tick: audio is handed to Sink just after it is read.
func (d *NullDevice) Latency() time.Duration { return d.tick }

// Start begins consuming src one tick of audio at a time.
func (d *NullDevice) Start(src io.Reader) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})

	log.Debug("Starting null audio device", "format", d.format)
	go d.run(ctx, src)
	return nil
}

func (d *NullDevice) run(ctx context.Context, src io.Reader) {
	defer close(d.done)

	buf := make([]byte, d.format.FramesFor(d.tick)*d.format.FrameWidth())
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n, err := io.ReadFull(src, buf)
		if n > 0 && d.sink != nil {
			_, _ = d.sink.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// Close stops the consuming goroutine.
func (d *NullDevice) Close() error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
