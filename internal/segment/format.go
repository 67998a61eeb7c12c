package segment

import (
	"fmt"
	"time"

	"github.com/gopxl/beep/v2"
)

// Format describes the layout of raw PCM data.
type Format struct {
	SampleRate  int // frames per second
	Channels    int // interleaved channels per frame
	SampleWidth int // bytes per sample: 1 (unsigned), 2 or 3 (signed LE)
}

// DefaultFormat is 16-bit little-endian mono PCM at 24kHz, the format every
// playback backend converts to before writing to a device.
var DefaultFormat = Format{
	SampleRate:  24000,
	Channels:    1,
	SampleWidth: 2,
}

// FrameWidth returns the size of a single frame in bytes.
func (f Format) FrameWidth() int {
	return f.Channels * f.SampleWidth
}

// BytesPerSecond returns the data rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.FrameWidth()
}

// Validate checks that the format can be represented.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidFormat, f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("%w: channels must be positive, got %d", ErrInvalidFormat, f.Channels)
	}
	if f.SampleWidth < 1 || f.SampleWidth > 3 {
		return fmt.Errorf("%w: sample width must be 1, 2 or 3 bytes, got %d", ErrInvalidFormat, f.SampleWidth)
	}
	return nil
}

// FramesFor returns the number of whole frames in d.
func (f Format) FramesFor(d time.Duration) int {
	return beep.SampleRate(f.SampleRate).N(d)
}

// DurationOf returns how long n frames play for.
func (f Format) DurationOf(frames int) time.Duration {
	return beep.SampleRate(f.SampleRate).D(frames)
}

// FFmpegSampleFormat returns the ffmpeg raw format name (-f) for the format.
func (f Format) FFmpegSampleFormat() string {
	switch f.SampleWidth {
	case 1:
		return "u8"
	case 3:
		return "s24le"
	default:
		return "s16le"
	}
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.SampleWidth*8)
}

// beepFormat maps the format onto beep's representation.
func (f Format) beepFormat() beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(f.SampleRate),
		NumChannels: f.Channels,
		Precision:   f.SampleWidth,
	}
}

func fromBeepFormat(bf beep.Format) Format {
	return Format{
		SampleRate:  int(bf.SampleRate),
		Channels:    bf.NumChannels,
		SampleWidth: bf.Precision,
	}
}

// encode writes one beep sample into p using the format's layout.
func (f Format) encode(p []byte, sample [2]float64) int {
	if f.SampleWidth == 1 {
		return f.beepFormat().EncodeUnsigned(p, sample)
	}
	return f.beepFormat().EncodeSigned(p, sample)
}

// decode reads one frame from p as a beep sample.
func (f Format) decode(p []byte) ([2]float64, int) {
	if f.SampleWidth == 1 {
		return f.beepFormat().DecodeUnsigned(p)
	}
	return f.beepFormat().DecodeSigned(p)
}
