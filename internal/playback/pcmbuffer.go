package playback

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/dgnsrekt/easyaudiostream/internal/segment"
)

// pcmBuffer sits between the pump and a pull-based device. Reads never
// block: whatever is missing is filled with silence in whole frames.
type pcmBuffer struct {
	format   segment.Format
	maxAhead int
	silence  byte

	mu      sync.Mutex
	buf     bytes.Buffer
	pad     int // silence bytes owed to finish a partial frame
	closed  bool
	drained chan struct{}

	underruns   atomic.Int64
	silentReads atomic.Int64
	bytesRead   atomic.Int64
}

func newPCMBuffer(format segment.Format, maxAhead int) *pcmBuffer {
	var silence byte
	if format.SampleWidth == 1 {
		silence = 0x80
	}
	return &pcmBuffer{
		format:   format,
		maxAhead: maxAhead,
		silence:  silence,
		drained:  make(chan struct{}, 1),
	}
}

// Write appends whole frames, blocking while more than maxAhead bytes are
// already buffered.
func (b *pcmBuffer) Write(ctx context.Context, p []byte) error {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return io.ErrClosedPipe
		}
		if b.buf.Len() <= b.maxAhead {
			b.buf.Write(p)
			b.mu.Unlock()
			return nil
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.drained:
		}
	}
}

// Read implements io.Reader for the device.
func (b *pcmBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, io.EOF
	}

	n := 0
	if b.pad > 0 {
		n = min(b.pad, len(p))
		b.fill(p[:n])
		b.pad -= n
	}

	had := b.buf.Len()
	m, _ := b.buf.Read(p[n:])
	n += m
	b.bytesRead.Add(int64(m))

	if rest := len(p) - n; rest > 0 {
		b.fill(p[n:])
		fw := b.format.FrameWidth()
		b.pad = (fw - rest%fw) % fw
		if had > 0 {
			b.underruns.Add(1)
		} else {
			b.silentReads.Add(1)
		}
	}

	if m > 0 {
		select {
		case b.drained <- struct{}{}:
		default:
		}
	}
	return len(p), nil
}

func (b *pcmBuffer) fill(p []byte) {
	for i := range p {
		p[i] = b.silence
	}
}

// Buffered returns the bytes not yet read by the device.
func (b *pcmBuffer) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func (b *pcmBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.buf.Reset()
	close(b.drained)
}
