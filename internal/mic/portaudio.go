//go:build portaudio

package mic

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Available reports whether this build can capture audio.
const Available = true

type paSource struct {
	stream   *portaudio.Stream
	channels int
	width    int
	buf24    []portaudio.Int24
	buf16    []int16
	buf8     []uint8
}

func openSource(o Options) (source, error) {
	if o.SampleWidth < 1 || o.SampleWidth > MaxSampleWidth {
		return nil, fmt.Errorf("unsupported capture sample width %d", o.SampleWidth)
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	dev, err := inputDevice(o.DeviceID)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = o.Channels
	params.SampleRate = float64(o.Rate)
	params.FramesPerBuffer = o.FramesPerBuffer

	src := &paSource{channels: o.Channels, width: o.SampleWidth}
	var stream *portaudio.Stream
	switch o.SampleWidth {
	case 1:
		stream, err = portaudio.OpenStream(params, &src.buf8)
	case 3:
		stream, err = portaudio.OpenStream(params, &src.buf24)
	default:
		stream, err = portaudio.OpenStream(params, &src.buf16)
	}
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open input stream on %q: %w", dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}
	src.stream = stream
	return src, nil
}

func inputDevice(id *int) (*portaudio.DeviceInfo, error) {
	if id == nil {
		return portaudio.DefaultInputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Index == *id {
			if d.MaxInputChannels == 0 {
				return nil, fmt.Errorf("device %d (%s) has no input channels", d.Index, d.Name)
			}
			return d, nil
		}
	}
	return nil, fmt.Errorf("no input device with ID %d", *id)
}

func (s *paSource) Available() (int, error) {
	return s.stream.AvailableToRead()
}

func (s *paSource) Read(frames int) ([]byte, error) {
	samples := frames * s.channels
	switch s.width {
	case 1:
		s.buf8 = resize(s.buf8, samples)
	case 3:
		s.buf24 = resize(s.buf24, samples)
	default:
		s.buf16 = resize(s.buf16, samples)
	}

	// overflow only means samples were dropped before this read
	if err := s.stream.Read(); err != nil && err != portaudio.InputOverflowed {
		return nil, err
	}

	switch s.width {
	case 1:
		return append([]byte(nil), s.buf8...), nil
	case 3:
		// Int24 is native order, little-endian on supported hosts
		out := make([]byte, 0, len(s.buf24)*3)
		for _, v := range s.buf24 {
			out = append(out, v[:]...)
		}
		return out, nil
	}
	out := make([]byte, len(s.buf16)*2)
	for i, v := range s.buf16 {
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out, nil
}

func (s *paSource) Close() error {
	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	termErr := portaudio.Terminate()
	for _, err := range []error{stopErr, closeErr, termErr} {
		if err != nil {
			return err
		}
	}
	return nil
}

func resize[T any](buf []T, n int) []T {
	if cap(buf) >= n {
		return buf[:n]
	}
	return make([]T, n)
}

func listDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	def, _ := portaudio.DefaultInputDevice()

	var out []Device
	for _, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}
		out = append(out, Device{
			ID:                d.Index,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           def != nil && def.Index == d.Index,
		})
	}
	return out, nil
}
