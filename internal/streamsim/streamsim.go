// Package streamsim generates paced audio streams that imitate a slow
// producer, such as a speech synthesizer returning one second at a time.
package streamsim

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/dgnsrekt/easyaudiostream/internal/segment"
	"golang.org/x/time/rate"
)

// Mode selects a stream shape.
type Mode string

const (
	ModeFast       Mode = "fast"
	ModeChoppy     Mode = "choppy"
	ModeChoppySlow Mode = "choppy-slow"
)

// Modes lists every mode in the order shown to users.
var Modes = []Mode{ModeFast, ModeChoppy, ModeChoppySlow}

var (
	// DefaultChunk is one second of DefaultFormat audio.
	DefaultChunk = segment.DefaultFormat.BytesPerSecond()

	// DefaultInterval paces chunks slightly faster than real time.
	DefaultInterval = 950 * time.Millisecond
)

const (
	// SlowGroup is how many chunks ChoppySlow yields between stalls.
	SlowGroup = 5

	// SlowStall is how long ChoppySlow pauses after each group, on top of
	// the usual interval.
	SlowStall = 3 * time.Second
)

// ParseMode resolves a mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown stream mode %q (want fast, choppy or choppy-slow)", s)
}

// Stream returns the stream for mode using the default pacing.
func Stream(ctx context.Context, mode Mode, data []byte) iter.Seq[[]byte] {
	switch mode {
	case ModeChoppy:
		return Choppy(ctx, data, DefaultChunk, DefaultInterval)
	case ModeChoppySlow:
		return ChoppySlow(ctx, data, DefaultChunk, DefaultInterval, SlowStall)
	default:
		return Fast(data)
	}
}

// Fast yields all of data at once.
func Fast(data []byte) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		if len(data) > 0 {
			yield(data)
		}
	}
}

// Choppy yields chunk-sized pieces of data, one per interval. The stream ends
// early when ctx is done.
func Choppy(ctx context.Context, data []byte, chunk int, interval time.Duration) iter.Seq[[]byte] {
	return paced(ctx, data, chunk, interval, 0, 0)
}

// ChoppySlow behaves like Choppy but stalls for stall after every SlowGroup
// chunks, so the gap after a group is interval+stall.
func ChoppySlow(ctx context.Context, data []byte, chunk int, interval, stall time.Duration) iter.Seq[[]byte] {
	return paced(ctx, data, chunk, interval, SlowGroup, stall)
}

func paced(ctx context.Context, data []byte, chunk int, interval time.Duration, group int, stall time.Duration) iter.Seq[[]byte] {
	if chunk <= 0 {
		chunk = len(data)
	}
	return func(yield func([]byte) bool) {
		// rate.Every returns rate.Inf for a non-positive interval
		limiter := rate.NewLimiter(rate.Every(interval), 1)

		sent := 0
		for off := 0; off < len(data); off += chunk {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			if !yield(data[off:min(off+chunk, len(data))]) {
				return
			}
			sent++

			last := off+chunk >= len(data)
			if group > 0 && sent%group == 0 && !last {
				if !sleep(ctx, stall) {
					return
				}
				// restart pacing so the next chunk still waits a full interval
				limiter = rate.NewLimiter(rate.Every(interval), 1)
				limiter.Allow()
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
