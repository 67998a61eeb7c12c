package mic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/easyaudiostream/internal/segment"
	"github.com/google/go-cmp/cmp"
)

// fakeSource hands out queued reads, reporting nothing available between
// them.
type fakeSource struct {
	mu     sync.Mutex
	reads  [][]byte
	err    error
	polls  int
	closed bool
}

func (f *fakeSource) Available() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if len(f.reads) == 0 {
		return 0, f.err
	}
	return len(f.reads[0]) / 2, nil
}

func (f *fakeSource) Read(frames int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data := f.reads[0]
	f.reads = f.reads[1:]
	return data[:frames*2], nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestStream_DeliversReadsInOrder(t *testing.T) {
	src := &fakeSource{reads: [][]byte{{1, 0, 2, 0}, {3, 0}, {4, 0, 5, 0, 6, 0}}}
	s := newStream(context.Background(), src, segment.DefaultFormat)

	var got [][]byte
	for data := range s.All() {
		got = append(got, data)
		if len(got) == 3 {
			break
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	want := [][]byte{{1, 0, 2, 0}, {3, 0}, {4, 0, 5, 0, 6, 0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Frames mismatch (-want +got):\n%s", diff)
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	if len(src.reads) != 0 {
		t.Errorf("Expected every read consumed, %d left", len(src.reads))
	}
	if !src.closed {
		t.Error("Close should close the source")
	}
}

func TestStream_PollsWhenIdle(t *testing.T) {
	src := &fakeSource{}
	s := newStream(context.Background(), src, segment.DefaultFormat)

	time.Sleep(3*pollInterval + pollInterval/2)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	src.mu.Lock()
	polls := src.polls
	src.mu.Unlock()
	// one immediate poll plus roughly one per interval, never a busy loop
	if polls < 2 || polls > 6 {
		t.Errorf("Expected a handful of polls, got %d", polls)
	}
	if _, ok := <-s.Frames(); ok {
		t.Error("Frames should be closed after Close")
	}
}

func TestStream_SourceError(t *testing.T) {
	boom := errors.New("device unplugged")
	src := &fakeSource{err: boom}
	s := newStream(context.Background(), src, segment.DefaultFormat)

	select {
	case _, ok := <-s.Frames():
		if ok {
			t.Fatal("Expected no frames")
		}
	case <-time.After(time.Second):
		t.Fatal("Stream did not end after a source error")
	}
	if !errors.Is(s.Err(), boom) {
		t.Errorf("Expected %v, got %v", boom, s.Err())
	}
	_ = s.Close()
}

func TestStream_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newStream(ctx, &fakeSource{}, segment.DefaultFormat)
	cancel()

	select {
	case <-s.done:
	case <-time.After(time.Second):
		t.Fatal("Stream did not stop on context cancel")
	}
	if s.Err() != nil {
		t.Errorf("Cancel is not an error, got %v", s.Err())
	}
	_ = s.Close()
}

func TestOptions(t *testing.T) {
	o := DefaultOptions()
	for _, opt := range []Option{WithDevice(3), WithChannels(2), WithRate(48000), WithSampleWidth(1), WithFramesPerBuffer(600)} {
		opt(&o)
	}
	if o.DeviceID == nil || *o.DeviceID != 3 {
		t.Errorf("Expected device 3, got %v", o.DeviceID)
	}
	want := segment.Format{SampleRate: 48000, Channels: 2, SampleWidth: 1}
	if o.Format() != want || o.FramesPerBuffer != 600 {
		t.Errorf("Unexpected options %+v", o)
	}
}

func TestOpenWithoutSupport(t *testing.T) {
	if Available {
		t.Skip("built with capture support")
	}
	if _, err := Open(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
	if _, err := ListDevices(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

func TestOpenRejectsBadFormat(t *testing.T) {
	if _, err := Open(context.Background(), WithRate(0)); !errors.Is(err, segment.ErrInvalidFormat) {
		t.Errorf("Expected ErrInvalidFormat, got %v", err)
	}
	if _, err := Open(context.Background(), WithSampleWidth(MaxSampleWidth+1)); !errors.Is(err, segment.ErrInvalidFormat) {
		t.Errorf("Expected ErrInvalidFormat for 32-bit capture, got %v", err)
	}
}

func TestOpenAcceptsEveryCaptureWidth(t *testing.T) {
	if Available {
		t.Skip("needs a real input device")
	}
	for width := 1; width <= MaxSampleWidth; width++ {
		// the format passes validation and only the missing backend fails
		if _, err := Open(context.Background(), WithSampleWidth(width)); !errors.Is(err, ErrUnavailable) {
			t.Errorf("width %d: expected ErrUnavailable, got %v", width, err)
		}
	}
}
