package queue

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/easyaudiostream/internal/segment"
)

func testSegment(t *testing.T, frames int, fill byte) *segment.Segment {
	t.Helper()
	data := make([]byte, frames*2)
	for i := range data {
		data[i] = fill
	}
	seg, err := segment.New(data, segment.DefaultFormat)
	if err != nil {
		t.Fatalf("segment.New failed: %v", err)
	}
	return seg
}

func TestSegmentQueue_BasicOperations(t *testing.T) {
	q := New(0)
	defer q.Close()

	if size := q.Len(); size != 0 {
		t.Errorf("Expected empty queue, got size %d", size)
	}
	if _, err := q.TryGet(); !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("Expected ErrQueueEmpty, got %v", err)
	}

	seg := testSegment(t, 2400, 1) // 100ms
	if err := q.Put(seg); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if size := q.Len(); size != 1 {
		t.Errorf("Expected size 1, got %d", size)
	}
	if pending := q.Pending(); pending != 100*time.Millisecond {
		t.Errorf("Expected 100ms pending, got %v", pending)
	}

	got, err := q.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != seg {
		t.Error("Get returned a different segment")
	}
	if pending := q.Pending(); pending != 0 {
		t.Errorf("Expected nothing pending, got %v", pending)
	}
}

func TestSegmentQueue_FIFO(t *testing.T) {
	q := New(0)
	defer q.Close()

	for i := 0; i < 5; i++ {
		if err := q.Put(testSegment(t, 10, byte(i))); err != nil {
			t.Fatalf("Put %d failed: %v", i, err)
		}
	}

	for i := 0; i < 5; i++ {
		seg, err := q.TryGet()
		if err != nil {
			t.Fatalf("TryGet %d failed: %v", i, err)
		}
		if seg.Data()[0] != byte(i) {
			t.Errorf("Expected segment %d, got %d", i, seg.Data()[0])
		}
	}
}

func TestSegmentQueue_GetWaits(t *testing.T) {
	q := New(0)
	defer q.Close()

	result := make(chan *segment.Segment, 1)
	go func() {
		seg, err := q.Get(context.Background())
		if err != nil {
			t.Errorf("Get failed: %v", err)
		}
		result <- seg
	}()

	time.Sleep(20 * time.Millisecond)
	want := testSegment(t, 10, 7)
	if err := q.Put(want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	select {
	case got := <-result:
		if got != want {
			t.Error("Waiting Get returned the wrong segment")
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not wake up after Put")
	}
}

func TestSegmentQueue_GetContextCancel(t *testing.T) {
	q := New(0)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Get(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
}

func TestSegmentQueue_ByteBudget(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	q := New(100)
	defer q.Close()

	if err := q.Put(testSegment(t, 40, 0)); err != nil { // 80 bytes
		t.Fatalf("Put failed: %v", err)
	}
	if err := q.Put(testSegment(t, 20, 0)); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
	if dropped := q.Stats().TotalDropped; dropped != 1 {
		t.Errorf("Expected 1 dropped, got %d", dropped)
	}
	if out := logs.String(); !strings.Contains(out, "queue is full") || !strings.Contains(out, "max_bytes=100") {
		t.Errorf("Expected a drop warning, got %q", out)
	}
}

func TestSegmentQueue_Close(t *testing.T) {
	q := New(0)
	if err := q.Put(testSegment(t, 10, 0)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// drains the queued item first
		if _, err := q.Get(context.Background()); err != nil {
			t.Errorf("Get before close failed: %v", err)
		}
		if _, err := q.Get(context.Background()); !errors.Is(err, ErrQueueClosed) {
			t.Errorf("Expected ErrQueueClosed, got %v", err)
		}
	}()

	time.Sleep(10 * time.Millisecond)
	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	wg.Wait()

	if err := q.Put(testSegment(t, 10, 0)); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed on Put after Close, got %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
}

func TestSegmentQueue_Drain(t *testing.T) {
	q := New(0)
	defer q.Close()

	for i := 0; i < 3; i++ {
		_ = q.Put(testSegment(t, 10, byte(i)))
	}
	items := q.Drain()
	if len(items) != 3 {
		t.Fatalf("Expected 3 drained items, got %d", len(items))
	}
	stats := q.Stats()
	if stats.CurrentSize != 0 || stats.PendingBytes != 0 {
		t.Errorf("Expected empty queue after drain, got %+v", stats)
	}
	if stats.PeakSize != 3 {
		t.Errorf("Expected peak size 3, got %d", stats.PeakSize)
	}
}
