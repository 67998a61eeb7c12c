package audiostream

import "github.com/dgnsrekt/easyaudiostream/internal/segment"

// RawOption overrides one field of the raw PCM format.
type RawOption func(*Format)

// WithSampleWidth sets the bytes per sample (1, 2 or 3).
func WithSampleWidth(width int) RawOption {
	return func(f *Format) { f.SampleWidth = width }
}

// WithChannels sets the number of interleaved channels.
func WithChannels(channels int) RawOption {
	return func(f *Format) { f.Channels = channels }
}

// WithFrameRate sets the sample rate in Hz.
func WithFrameRate(rate int) RawOption {
	return func(f *Format) { f.SampleRate = rate }
}

// RawFormat applies opts to the default raw format.
func RawFormat(opts ...RawOption) Format {
	f := segment.DefaultFormat
	for _, opt := range opts {
		opt(&f)
	}
	return f
}
