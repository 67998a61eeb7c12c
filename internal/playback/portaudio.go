//go:build portaudio

package playback

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/easyaudiostream/internal/queue"
	"github.com/dgnsrekt/easyaudiostream/internal/segment"
	"github.com/gordonklaus/portaudio"
)

// portAudioAvailable reports whether this build links PortAudio.
const portAudioAvailable = true

// PortAudioManager writes to a blocking PortAudio output stream opened on
// the default output device.
type PortAudioManager struct {
	opts  Options
	queue *queue.SegmentQueue

	stream *portaudio.Stream
	out    []int16

	startOnce sync.Once
	startErr  error
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}

	mu     sync.Mutex
	closed bool

	pending   atomic.Int64
	played    atomic.Int64
	bytes     atomic.Int64
	underruns atomic.Int64
	failed    atomic.Int64
}

// NewPortAudioManager creates a manager. The stream is opened on the first
// Play. Output is always 16-bit.
func NewPortAudioManager(opts Options) (*PortAudioManager, error) {
	opts = opts.withDefaults()
	opts.Format.SampleWidth = 2
	ctx, cancel := context.WithCancel(context.Background())
	return &PortAudioManager{
		opts:   opts,
		queue:  queue.New(opts.QueueMaxBytes),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}, nil
}

func newPortAudio(opts Options) (Manager, error) {
	return NewPortAudioManager(opts)
}

func (m *PortAudioManager) Name() string { return BackendPortAudio }

// Play enqueues seg, opening the output stream on first use.
func (m *PortAudioManager) Play(seg *segment.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.startOnce.Do(func() {
		if err := m.open(); err != nil {
			m.startErr = wrapErr(BackendPortAudio, "open", err)
			close(m.done)
			return
		}
		go m.pump()
	})
	if m.startErr != nil {
		return m.startErr
	}

	m.pending.Add(1)
	if err := m.queue.Put(seg); err != nil {
		m.pending.Add(-1)
		return err
	}
	return nil
}

func (m *PortAudioManager) open() error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	format := m.opts.Format
	stream, err := portaudio.OpenDefaultStream(0, format.Channels, float64(format.SampleRate), 0, &m.out)
	if err != nil {
		_ = portaudio.Terminate()
		return err
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return err
	}
	m.stream = stream
	log.Debug("PortAudio output stream started", "format", format)
	return nil
}

func (m *PortAudioManager) pump() {
	defer close(m.done)

	if err := sleepCtx(m.ctx, m.opts.WarmUp); err != nil {
		return
	}
	for {
		seg, err := m.queue.Get(m.ctx)
		if err != nil {
			return
		}
		if err := m.write(seg); err != nil && m.ctx.Err() == nil {
			m.failed.Add(1)
			log.Error("Failed to play segment", "backend", BackendPortAudio, "error", err)
		}
		m.pending.Add(-1)
	}
}

func (m *PortAudioManager) write(seg *segment.Segment) error {
	out, err := seg.Convert(m.opts.Format)
	if err != nil {
		return err
	}
	for _, chunk := range out.Chunks(m.opts.ChunkSize) {
		if m.ctx.Err() != nil {
			return m.ctx.Err()
		}
		data := chunk.Data()
		m.out = m.out[:0]
		for i := 0; i+1 < len(data); i += 2 {
			m.out = append(m.out, int16(binary.LittleEndian.Uint16(data[i:])))
		}
		if err := m.stream.Write(); err != nil {
			if errors.Is(err, portaudio.OutputUnderflowed) {
				m.underruns.Add(1)
				log.Debug("PortAudio output underflowed")
				continue
			}
			return wrapErr(BackendPortAudio, "write", err)
		}
		m.bytes.Add(int64(len(data)))
	}
	m.played.Add(1)
	return nil
}

// Wait blocks until every queued segment has been written and the stream's
// output latency has passed.
func (m *PortAudioManager) Wait(ctx context.Context) error {
	if err := waitUntil(ctx, m.done, func() bool { return m.pending.Load() == 0 }); err != nil {
		return err
	}
	var latency time.Duration
	m.mu.Lock()
	if m.stream != nil {
		latency = m.stream.Info().OutputLatency
	}
	m.mu.Unlock()
	return sleepCtx(ctx, latency)
}

// Close stops the stream and releases PortAudio.
func (m *PortAudioManager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	started := true
	m.startOnce.Do(func() { started = false })
	m.cancel()
	_ = m.queue.Close()
	if !started || m.startErr != nil {
		return nil
	}
	<-m.done

	var errs []error
	if err := m.stream.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := m.stream.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return wrapErr(BackendPortAudio, "close", errors.Join(errs...))
	}
	return nil
}

// Stats returns playback counters.
func (m *PortAudioManager) Stats() Stats {
	return Stats{
		Backend:        BackendPortAudio,
		SegmentsQueued: m.queue.Stats().TotalEnqueued,
		SegmentsPlayed: m.played.Load(),
		BytesPlayed:    m.bytes.Load(),
		PendingAudio:   m.queue.Pending(),
		Underruns:      m.underruns.Load(),
		Errors:         m.failed.Load(),
	}
}
