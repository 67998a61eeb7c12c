package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/easyaudiostream/internal/segment"
)

var (
	// ErrQueueFull is returned when a segment would exceed the byte budget
	ErrQueueFull = errors.New("queue is full")

	// ErrQueueClosed is returned when operations are attempted on a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueEmpty is returned by TryGet when nothing is waiting
	ErrQueueEmpty = errors.New("queue is empty")
)

// SegmentQueue is a FIFO of audio segments shared by a producer (Play)
// and one pump goroutine feeding the device.
type SegmentQueue struct {
	items    []*segment.Segment
	maxBytes int64 // 0 means unbounded
	bytes    int64
	pending  time.Duration

	mu     sync.Mutex
	signal chan struct{}
	closed bool
	stats  Stats
}

// Stats tracks queue performance metrics
type Stats struct {
	TotalEnqueued int64
	TotalDequeued int64
	TotalDropped  int64
	CurrentSize   int
	PeakSize      int
	PendingBytes  int64
	PendingAudio  time.Duration
	LastEnqueue   time.Time
	LastDequeue   time.Time
}

// New creates a queue. maxBytes of zero disables the byte budget.
func New(maxBytes int64) *SegmentQueue {
	return &SegmentQueue{
		maxBytes: maxBytes,
		signal:   make(chan struct{}, 1),
	}
}

// Put appends a segment without blocking.
func (q *SegmentQueue) Put(seg *segment.Segment) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	size := int64(seg.Len())
	if q.maxBytes > 0 && q.bytes+size > q.maxBytes {
		q.stats.TotalDropped++
		log.Warn("Dropping segment, queue is full",
			"segment_bytes", size, "queued_bytes", q.bytes, "max_bytes", q.maxBytes,
			"dropped", q.stats.TotalDropped)
		return ErrQueueFull
	}

	q.items = append(q.items, seg)
	q.bytes += size
	q.pending += seg.Duration()

	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = time.Now()
	if len(q.items) > q.stats.PeakSize {
		q.stats.PeakSize = len(q.items)
	}

	q.notify()
	return nil
}

// Get removes the oldest segment, waiting until one is available, the queue
// is closed or ctx is done.
func (q *SegmentQueue) Get(ctx context.Context) (*segment.Segment, error) {
	for {
		seg, err := q.TryGet()
		if !errors.Is(err, ErrQueueEmpty) {
			return seg, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.signal:
		}
	}
}

// TryGet removes the oldest segment or returns ErrQueueEmpty.
func (q *SegmentQueue) TryGet() (*segment.Segment, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		if q.closed {
			return nil, ErrQueueClosed
		}
		return nil, ErrQueueEmpty
	}

	seg := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.bytes -= int64(seg.Len())
	q.pending -= seg.Duration()

	q.stats.TotalDequeued++
	q.stats.LastDequeue = time.Now()

	// keep the wakeup alive for the next consumer
	if len(q.items) > 0 {
		q.notify()
	}
	return seg, nil
}

// Drain removes and returns everything currently queued.
func (q *SegmentQueue) Drain() []*segment.Segment {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	q.bytes = 0
	q.pending = 0
	q.stats.TotalDequeued += int64(len(items))
	if len(items) > 0 {
		q.stats.LastDequeue = time.Now()
	}
	return items
}

// Len returns the number of queued segments.
func (q *SegmentQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns the total audio duration waiting in the queue.
func (q *SegmentQueue) Pending() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Stats returns a snapshot of the queue statistics.
func (q *SegmentQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.CurrentSize = len(q.items)
	stats.PendingBytes = q.bytes
	stats.PendingAudio = q.pending
	return stats
}

// Close rejects further Puts. Segments already queued can still be taken;
// once empty, Get returns ErrQueueClosed.
func (q *SegmentQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.signal)
	return nil
}

func (q *SegmentQueue) notify() {
	if q.closed {
		return
	}
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
