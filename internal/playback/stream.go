package playback

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/easyaudiostream/internal/queue"
	"github.com/dgnsrekt/easyaudiostream/internal/segment"
)

// StreamManager feeds a pull-based Device through a PCM ring buffer. The
// device reads silence whenever the buffer runs dry, so gaps between
// segments never stall it.
type StreamManager struct {
	device Device
	opts   Options
	queue  *queue.SegmentQueue
	buffer *pcmBuffer

	startOnce sync.Once
	startErr  error
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}

	mu     sync.Mutex
	closed bool

	pending atomic.Int64
	played  atomic.Int64
	bytes   atomic.Int64
	failed  atomic.Int64
}

// NewStreamManager creates a manager writing to device. The device is
// started on the first Play.
func NewStreamManager(device Device, opts Options) *StreamManager {
	opts = opts.withDefaults()
	format := device.Format()
	ctx, cancel := context.WithCancel(context.Background())
	return &StreamManager{
		device: device,
		opts:   opts,
		queue:  queue.New(opts.QueueMaxBytes),
		buffer: newPCMBuffer(format, format.FramesFor(opts.MaxAhead)*format.FrameWidth()),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (m *StreamManager) Name() string { return m.device.Name() }

// Play enqueues seg, starting the device on first use.
func (m *StreamManager) Play(seg *segment.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if err := m.start(); err != nil {
		return err
	}

	m.pending.Add(1)
	if err := m.queue.Put(seg); err != nil {
		m.pending.Add(-1)
		return err
	}
	return nil
}

func (m *StreamManager) start() error {
	m.startOnce.Do(func() {
		if err := m.device.Start(m.buffer); err != nil {
			m.startErr = err
			close(m.done)
			return
		}
		log.Debug("Audio device started", "backend", m.device.Name(), "format", m.device.Format())
		go m.pump()
	})
	return m.startErr
}

func (m *StreamManager) pump() {
	defer close(m.done)

	if err := sleepCtx(m.ctx, m.opts.WarmUp); err != nil {
		return
	}

	format := m.device.Format()
	for {
		seg, err := m.queue.Get(m.ctx)
		if err != nil {
			return
		}

		if err := m.write(seg, format); err != nil {
			if m.ctx.Err() != nil {
				return
			}
			m.failed.Add(1)
			log.Error("Failed to play segment", "backend", m.device.Name(), "error", err)
		}
		m.pending.Add(-1)
	}
}

func (m *StreamManager) write(seg *segment.Segment, format segment.Format) error {
	out, err := seg.Convert(format)
	if err != nil {
		return err
	}
	for _, chunk := range out.Chunks(m.opts.ChunkSize) {
		if err := m.buffer.Write(m.ctx, chunk.Data()); err != nil {
			return err
		}
		m.bytes.Add(int64(chunk.Len()))
	}
	m.played.Add(1)
	return nil
}

// Wait blocks until the queue and ring buffer are empty and the device has
// had time to play out what it read.
func (m *StreamManager) Wait(ctx context.Context) error {
	err := waitUntil(ctx, m.done, func() bool {
		return m.pending.Load() == 0 && m.buffer.Buffered() == 0
	})
	if err != nil {
		return err
	}
	return sleepCtx(ctx, m.device.Latency())
}

// Close stops the pump and the device. Queued audio is discarded.
func (m *StreamManager) Close() error {
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
	m.buffer.Close()
	if started {
		<-m.done
	}

	return m.device.Close()
}

// Stats returns playback counters.
func (m *StreamManager) Stats() Stats {
	return Stats{
		Backend:        m.device.Name(),
		SegmentsQueued: m.queue.Stats().TotalEnqueued,
		SegmentsPlayed: m.played.Load(),
		BytesPlayed:    m.bytes.Load(),
		PendingAudio:   m.queue.Pending(),
		Underruns:      m.buffer.underruns.Load(),
		SilenceWrites:  m.buffer.silentReads.Load(),
		Errors:         m.failed.Load(),
	}
}
