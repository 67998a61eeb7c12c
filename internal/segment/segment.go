package segment

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidFormat is returned for formats that cannot be represented.
	ErrInvalidFormat = errors.New("invalid audio format")

	// ErrMisaligned is returned when data does not hold a whole number of frames.
	ErrMisaligned = errors.New("audio data is not aligned to frame width")

	// ErrEmptyInput is returned when there is nothing to decode.
	ErrEmptyInput = errors.New("empty audio input")

	// ErrUnknownFormat is returned when no decoder recognises the input.
	ErrUnknownFormat = errors.New("unrecognised audio container")
)

// Segment is an immutable run of PCM frames in a known format.
type Segment struct {
	data   []byte
	format Format
}

// New wraps raw PCM data. The slice is not copied; callers must not modify it
// afterwards.
func New(data []byte, format Format) (*Segment, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if len(data)%format.FrameWidth() != 0 {
		return nil, fmt.Errorf("%w: %d bytes with %d-byte frames", ErrMisaligned, len(data), format.FrameWidth())
	}
	return &Segment{data: data, format: format}, nil
}

// Silence returns a segment of digital silence lasting d.
func Silence(d time.Duration, format Format) (*Segment, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	data := make([]byte, format.FramesFor(d)*format.FrameWidth())
	if format.SampleWidth == 1 {
		// unsigned 8-bit silence sits at the midpoint
		for i := range data {
			data[i] = 0x80
		}
	}
	return &Segment{data: data, format: format}, nil
}

// Data returns the raw PCM bytes.
func (s *Segment) Data() []byte { return s.data }

// Format returns the PCM layout of the segment.
func (s *Segment) Format() Format { return s.format }

// Len returns the size of the segment in bytes.
func (s *Segment) Len() int { return len(s.data) }

// Frames returns the number of frames in the segment.
func (s *Segment) Frames() int {
	return len(s.data) / s.format.FrameWidth()
}

// Duration returns the playback length of the segment.
func (s *Segment) Duration() time.Duration {
	return s.format.DurationOf(s.Frames())
}

// Empty reports whether the segment holds no frames.
func (s *Segment) Empty() bool { return len(s.data) == 0 }

// Slice returns frames [from, to) as a new segment sharing the same storage.
func (s *Segment) Slice(from, to int) *Segment {
	frames := s.Frames()
	from = clamp(from, 0, frames)
	to = clamp(to, from, frames)
	fw := s.format.FrameWidth()
	return &Segment{data: s.data[from*fw : to*fw], format: s.format}
}

// Chunks splits the segment into consecutive pieces of at most d each. Every
// chunk but the last is exactly d long (rounded down to whole frames).
func (s *Segment) Chunks(d time.Duration) []*Segment {
	size := s.format.FramesFor(d)
	frames := s.Frames()
	if size <= 0 || size >= frames {
		return []*Segment{s}
	}

	chunks := make([]*Segment, 0, (frames+size-1)/size)
	for from := 0; from < frames; from += size {
		chunks = append(chunks, s.Slice(from, from+size))
	}
	return chunks
}

// Append returns a new segment holding s followed by other. When the formats
// differ both sides are converted to the highest sample rate, channel count
// and sample width among them first.
func (s *Segment) Append(other *Segment) (*Segment, error) {
	target := s.format
	if other.format != target {
		target = Format{
			SampleRate:  max(s.format.SampleRate, other.format.SampleRate),
			Channels:    max(s.format.Channels, other.format.Channels),
			SampleWidth: max(s.format.SampleWidth, other.format.SampleWidth),
		}
	}

	left, err := s.Convert(target)
	if err != nil {
		return nil, err
	}
	right, err := other.Convert(target)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(left.Len() + right.Len())
	buf.Write(left.data)
	buf.Write(right.data)
	return &Segment{data: buf.Bytes(), format: target}, nil
}

// Concat joins segments in order, converting as Append does.
func Concat(segments ...*Segment) (*Segment, error) {
	if len(segments) == 0 {
		return nil, ErrEmptyInput
	}
	out := segments[0]
	for _, seg := range segments[1:] {
		var err error
		if out, err = out.Append(seg); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Segment) String() string {
	return fmt.Sprintf("segment(%s, %v)", s.format, s.Duration())
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
