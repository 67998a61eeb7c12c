package segment

import (
	"github.com/gopxl/beep/v2"
)

// resampleQuality is passed to beep.Resample. 4 is beep's recommended
// trade-off for realtime use.
const resampleQuality = 4

// streamBufferFrames is the number of frames pulled from a streamer per call.
const streamBufferFrames = 512

// Convert returns the segment in the target format. Sample rate changes are
// resampled, mono is duplicated into every output channel, stereo is averaged
// down to mono and sample widths are rescaled. A segment already in the target
// format is returned unchanged.
func (s *Segment) Convert(target Format) (*Segment, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if s.format == target {
		return s, nil
	}
	if s.Empty() {
		return &Segment{data: []byte{}, format: target}, nil
	}

	var st beep.Streamer = newPCMStreamer(s.data, s.format)
	if s.format.SampleRate != target.SampleRate {
		st = beep.Resample(resampleQuality, beep.SampleRate(s.format.SampleRate), beep.SampleRate(target.SampleRate), st)
	}

	frames := int(int64(s.Frames()) * int64(target.SampleRate) / int64(s.format.SampleRate))
	data, err := render(st, target, frames)
	if err != nil {
		return nil, err
	}
	return &Segment{data: fitFrames(data, target, frames), format: target}, nil
}

// fitFrames trims or silence-pads data to exactly frames frames. The
// resampler's filter can end a few frames early or late.
func fitFrames(data []byte, format Format, frames int) []byte {
	fw := format.FrameWidth()
	want := frames * fw
	if len(data) >= want {
		return data[:want]
	}
	silence := make([]byte, fw)
	format.encode(silence, [2]float64{})
	for len(data) < want {
		data = append(data, silence...)
	}
	return data
}

// pcmStreamer exposes raw PCM as a beep.Streamer.
type pcmStreamer struct {
	data   []byte
	format Format
	pos    int
}

func newPCMStreamer(data []byte, format Format) *pcmStreamer {
	return &pcmStreamer{data: data, format: format}
}

func (p *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	fw := p.format.FrameWidth()
	if p.pos+fw > len(p.data) {
		return 0, false
	}
	for n < len(samples) && p.pos+fw <= len(p.data) {
		samples[n], _ = p.format.decode(p.data[p.pos:])
		p.pos += fw
		n++
	}
	return n, true
}

func (p *pcmStreamer) Err() error { return nil }

// render drains st into PCM bytes laid out as format. framesHint sizes the
// initial allocation.
func render(st beep.Streamer, format Format, framesHint int) ([]byte, error) {
	fw := format.FrameWidth()
	out := make([]byte, 0, max(framesHint, 0)*fw)
	frame := make([]byte, fw)

	var samples [streamBufferFrames][2]float64
	for {
		n, ok := st.Stream(samples[:])
		for i := 0; i < n; i++ {
			format.encode(frame, samples[i])
			out = append(out, frame...)
		}
		if !ok {
			break
		}
	}
	if err := st.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
