package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/easyaudiostream/internal/queue"
	"github.com/dgnsrekt/easyaudiostream/internal/segment"
)

// PipeStarter launches a player that reads raw PCM in format from the
// returned writer. Closing the writer ends the player.
type PipeStarter func(ctx context.Context, format segment.Format) (io.WriteCloser, error)

// FFplayArgs returns the ffplay arguments for reading raw PCM from stdin.
func FFplayArgs(format segment.Format) []string {
	return []string{
		"-nodisp",
		"-loglevel", "error",
		"-f", format.FFmpegSampleFormat(),
		"-ar", strconv.Itoa(format.SampleRate),
		"-ac", strconv.Itoa(format.Channels),
		"-i", "-",
	}
}

// FFplayStarter starts the ffplay binary at path.
func FFplayStarter(path string) PipeStarter {
	return func(ctx context.Context, format segment.Format) (io.WriteCloser, error) {
		cmd := exec.CommandContext(ctx, path, FFplayArgs(format)...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("failed to start process: %w", err)
		}
		log.Debug("Started ffplay", "path", path, "pid", cmd.Process.Pid)
		return &processPipe{stdin: stdin, cmd: cmd, stderr: &stderr}, nil
	}
}

type processPipe struct {
	stdin  io.WriteCloser
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	once   sync.Once
	err    error
}

func (p *processPipe) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

func (p *processPipe) Close() error {
	p.once.Do(func() {
		_ = p.stdin.Close()
		err := p.cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			p.err = err
		} else if err != nil && p.stderr.Len() > 0 {
			log.Debug("ffplay exited", "error", err, "stderr", p.stderr.String())
		}
	})
	return p.err
}

// FFplayManager pipes PCM into a long-running ffplay process. ffplay pauses
// when its pipe runs dry, so silence is written while nothing is queued.
type FFplayManager struct {
	opts    Options
	starter PipeStarter
	queue   *queue.SegmentQueue

	startOnce sync.Once
	startErr  error
	pipe      io.WriteCloser
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}

	mu     sync.Mutex
	closed bool

	playingUntil atomic.Int64 // unix nanos
	pending      atomic.Int64
	played       atomic.Int64
	bytes        atomic.Int64
	silences     atomic.Int64
	failed       atomic.Int64
}

// NewFFplayManager creates a manager. A nil starter runs opts.FFplayPath.
func NewFFplayManager(starter PipeStarter, opts Options) *FFplayManager {
	opts = opts.withDefaults()
	if starter == nil {
		starter = FFplayStarter(opts.FFplayPath)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &FFplayManager{
		opts:    opts,
		starter: starter,
		queue:   queue.New(opts.QueueMaxBytes),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

func (m *FFplayManager) Name() string { return BackendFFplay }

// Play enqueues seg, starting ffplay on first use.
func (m *FFplayManager) Play(seg *segment.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	m.startOnce.Do(func() {
		pipe, err := m.starter(m.ctx, m.opts.Format)
		if err != nil {
			m.startErr = wrapErr(BackendFFplay, "start", err)
			close(m.done)
			return
		}
		m.pipe = pipe
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

func (m *FFplayManager) pump() {
	defer close(m.done)

	format := m.opts.Format
	silence, err := segment.Silence(m.opts.IdleInterval, format)
	if err != nil {
		log.Error("Failed to build silence", "error", err)
		return
	}
	m.playingUntil.Store(time.Now().UnixNano())

	for m.ctx.Err() == nil {
		seg, err := m.queue.TryGet()
		switch {
		case err == nil:
			m.writeSegment(seg, format)
			m.pending.Add(-1)
			continue
		case errors.Is(err, queue.ErrQueueClosed):
			return
		}

		remaining := time.Until(time.Unix(0, m.playingUntil.Load()))
		if remaining > 0 {
			// check back once the current audio is half done
			_ = sleepCtx(m.ctx, max(min(m.opts.IdleInterval, remaining), remaining/2))
			continue
		}

		if _, err := m.pipe.Write(silence.Data()); err != nil {
			m.fail("write silence", err)
			return
		}
		m.silences.Add(1)
		_ = sleepCtx(m.ctx, m.opts.IdleInterval)
		m.playingUntil.Store(time.Now().UnixNano())
	}
}

func (m *FFplayManager) writeSegment(seg *segment.Segment, format segment.Format) {
	out, err := seg.Convert(format)
	if err != nil {
		m.failed.Add(1)
		log.Error("Failed to convert segment", "backend", BackendFFplay, "error", err)
		return
	}
	if _, err := m.pipe.Write(out.Data()); err != nil {
		m.fail("write", err)
		return
	}
	m.playingUntil.Add(int64(out.Duration()))
	m.played.Add(1)
	m.bytes.Add(int64(out.Len()))
}

func (m *FFplayManager) fail(op string, err error) {
	if m.ctx.Err() != nil {
		return
	}
	m.failed.Add(1)
	log.Error("ffplay pipe failed", "op", op, "error", wrapErr(BackendFFplay, op, err))
}

// Wait blocks until the queue is empty and the audio written so far should
// have finished playing.
func (m *FFplayManager) Wait(ctx context.Context) error {
	return waitUntil(ctx, m.done, func() bool {
		return m.pending.Load() == 0 && time.Now().UnixNano() >= m.playingUntil.Load()
	})
}

// Close stops the pump and ends the ffplay process.
func (m *FFplayManager) Close() error {
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
	if !started {
		return nil
	}
	<-m.done
	if m.pipe != nil {
		return wrapErr(BackendFFplay, "close", m.pipe.Close())
	}
	return nil
}

// Stats returns playback counters.
func (m *FFplayManager) Stats() Stats {
	return Stats{
		Backend:        BackendFFplay,
		SegmentsQueued: m.queue.Stats().TotalEnqueued,
		SegmentsPlayed: m.played.Load(),
		BytesPlayed:    m.bytes.Load(),
		PendingAudio:   m.queue.Pending(),
		SilenceWrites:  m.silences.Load(),
		Errors:         m.failed.Load(),
	}
}
