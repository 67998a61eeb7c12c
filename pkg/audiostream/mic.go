package audiostream

import (
	"context"

	"github.com/dgnsrekt/easyaudiostream/internal/mic"
)

type (
	// Mic delivers captured microphone frames.
	Mic = mic.Stream

	// MicDevice describes an input-capable device.
	MicDevice = mic.Device

	// MicOption overrides a capture default.
	MicOption = mic.Option
)

// ErrMicUnavailable is returned by the microphone functions in builds
// without PortAudio.
var ErrMicUnavailable = mic.ErrUnavailable

// Capture options
var (
	MicSampleWidth     = mic.WithSampleWidth
	MicChannels        = mic.WithChannels
	MicRate            = mic.WithRate
	MicFramesPerBuffer = mic.WithFramesPerBuffer
)

// OpenMic starts capturing from deviceID, or the default input when
// deviceID is negative. Frames are raw PCM, 16-bit mono 24kHz unless opts
// say otherwise.
func (p *Player) OpenMic(ctx context.Context, deviceID int, opts ...MicOption) (*Mic, error) {
	all := []MicOption{mic.WithFramesPerBuffer(p.cfg.MicFramesPerBuffer)}
	if deviceID >= 0 {
		all = append(all, mic.WithDevice(deviceID))
	}
	return mic.Open(ctx, append(all, opts...)...)
}

// Echo plays everything captured on s until the stream ends or ctx is done.
func (p *Player) Echo(ctx context.Context, s *Mic) error {
	if err := p.PlayRawStream(ctx, s.All(), formatOptions(s.Format())...); err != nil {
		return err
	}
	return s.Err()
}

// ListMics returns the input-capable devices.
func ListMics() ([]MicDevice, error) {
	return mic.ListDevices()
}

func formatOptions(f Format) []RawOption {
	return []RawOption{WithSampleWidth(f.SampleWidth), WithChannels(f.Channels), WithFrameRate(f.SampleRate)}
}
