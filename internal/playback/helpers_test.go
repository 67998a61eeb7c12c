package playback

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/easyaudiostream/internal/segment"
)

// syncBuffer is a goroutine-safe sink for devices and pipes.
type syncBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *syncBuffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// filledSegment returns d of 16-bit mono audio where every byte is fill.
func filledSegment(t *testing.T, d time.Duration, fill byte) *segment.Segment {
	t.Helper()
	format := segment.DefaultFormat
	data := bytes.Repeat([]byte{fill}, format.FramesFor(d)*format.FrameWidth())
	seg, err := segment.New(data, format)
	if err != nil {
		t.Fatalf("segment.New failed: %v", err)
	}
	return seg
}

// nonSilentRuns collapses the non-zero bytes of data into the order their
// values first appear, with counts.
func nonSilentRuns(data []byte) (order []byte, counts map[byte]int) {
	counts = make(map[byte]int)
	for _, b := range data {
		if b == 0 {
			continue
		}
		if counts[b] == 0 {
			order = append(order, b)
		}
		counts[b]++
	}
	return order, counts
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.WarmUp = 0
	opts.ChunkSize = 50 * time.Millisecond
	opts.MaxAhead = 100 * time.Millisecond
	opts.IdleInterval = 20 * time.Millisecond
	return opts
}
