package mic

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/easyaudiostream/internal/segment"
)

// ErrUnavailable is returned when the build has no capture support.
var ErrUnavailable = errors.New("microphone capture unavailable: install PortAudio " +
	"(libportaudio2 / portaudio19-dev, brew install portaudio) and rebuild with -tags portaudio")

// DefaultFramesPerBuffer matches 50ms at 24kHz.
const DefaultFramesPerBuffer = 1200

// pollInterval is how long the reader sleeps when no input is ready.
const pollInterval = 50 * time.Millisecond

// MaxSampleWidth is the widest capture sample in bytes. 32-bit capture is
// not offered because PCM segments carry at most 24-bit samples.
const MaxSampleWidth = 3

// Options selects the device and capture format.
type Options struct {
	// DeviceID picks an input device; nil uses the default one.
	DeviceID *int
	// SampleWidth is 1 (unsigned 8-bit), 2 or 3 (signed little-endian).
	SampleWidth     int
	Channels        int
	Rate            int
	FramesPerBuffer int
}

// Option overrides a capture default.
type Option func(*Options)

// WithDevice captures from the device with the given ID.
func WithDevice(id int) Option {
	return func(o *Options) { o.DeviceID = &id }
}

// WithSampleWidth sets bytes per sample.
func WithSampleWidth(width int) Option {
	return func(o *Options) { o.SampleWidth = width }
}

// WithChannels sets the channel count.
func WithChannels(channels int) Option {
	return func(o *Options) { o.Channels = channels }
}

// WithRate sets the sample rate.
func WithRate(rate int) Option {
	return func(o *Options) { o.Rate = rate }
}

// WithFramesPerBuffer sets the device buffer size.
func WithFramesPerBuffer(frames int) Option {
	return func(o *Options) { o.FramesPerBuffer = frames }
}

// DefaultOptions captures 24kHz mono 16-bit from the default device.
func DefaultOptions() Options {
	return Options{
		SampleWidth:     segment.DefaultFormat.SampleWidth,
		Channels:        segment.DefaultFormat.Channels,
		Rate:            segment.DefaultFormat.SampleRate,
		FramesPerBuffer: DefaultFramesPerBuffer,
	}
}

// Format returns the PCM format of captured frames.
func (o Options) Format() segment.Format {
	return segment.Format{SampleRate: o.Rate, Channels: o.Channels, SampleWidth: o.SampleWidth}
}

// Device describes an input-capable device.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	Default           bool
}

func (d Device) String() string {
	return fmt.Sprintf("ID: %d -- %s", d.ID, d.Name)
}

// source is a started input stream.
type source interface {
	// Available returns how many frames can be read without blocking.
	Available() (int, error)
	// Read reads exactly frames frames.
	Read(frames int) ([]byte, error)
	Close() error
}

// Stream delivers captured audio until closed.
type Stream struct {
	src    source
	format segment.Format
	frames chan []byte
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Open starts capturing with opts applied over DefaultOptions.
func Open(ctx context.Context, opts ...Option) (*Stream, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.Format().Validate(); err != nil {
		return nil, err
	}
	if o.FramesPerBuffer <= 0 {
		o.FramesPerBuffer = DefaultFramesPerBuffer
	}

	src, err := openSource(o)
	if err != nil {
		return nil, err
	}
	return newStream(ctx, src, o.Format()), nil
}

func newStream(ctx context.Context, src source, format segment.Format) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		src:    src,
		format: format,
		frames: make(chan []byte, 64),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

func (s *Stream) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.frames)

	for ctx.Err() == nil {
		n, err := s.src.Available()
		if err != nil {
			s.setErr(err)
			return
		}
		if n == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
			continue
		}

		data, err := s.src.Read(n)
		if err != nil {
			s.setErr(err)
			return
		}
		select {
		case s.frames <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
		log.Error("Microphone capture stopped", "error", err)
	}
}

// Format returns the PCM format of the captured frames.
func (s *Stream) Format() segment.Format { return s.format }

// Frames returns captured PCM. The channel closes when the stream ends.
func (s *Stream) Frames() <-chan []byte { return s.frames }

// All iterates over captured PCM until the stream ends or the loop breaks.
func (s *Stream) All() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for data := range s.frames {
			if !yield(data) {
				return
			}
		}
	}
}

// Err returns the error that ended capture, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops capture and releases the device.
func (s *Stream) Close() error {
	s.cancel()
	<-s.done
	return s.src.Close()
}

// ListDevices returns every device with at least one input channel.
func ListDevices() ([]Device, error) {
	return listDevices()
}
