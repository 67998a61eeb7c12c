package segment

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"
)

// generateTone returns 16-bit PCM of a sine wave in the given format.
func generateTone(format Format, duration time.Duration, frequency float64) []byte {
	frames := format.FramesFor(duration)
	buf := bytes.NewBuffer(make([]byte, 0, frames*format.FrameWidth()))
	for i := 0; i < frames; i++ {
		t := float64(i) / float64(format.SampleRate)
		sample := int16(math.Sin(2*math.Pi*frequency*t) * 16000)
		for c := 0; c < format.Channels; c++ {
			_ = binary.Write(buf, binary.LittleEndian, sample)
		}
	}
	return buf.Bytes()
}

func int16Samples(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

func assertCloseSamples(t *testing.T, want, got []int16) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if d := int(want[i]) - int(got[i]); d > 1 || d < -1 {
			t.Fatalf("Sample %d differs: want %d, got %d", i, want[i], got[i])
		}
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		format  Format
		wantErr error
	}{
		{name: "aligned mono", data: make([]byte, 4), format: DefaultFormat},
		{name: "empty", data: nil, format: DefaultFormat},
		{name: "odd length", data: make([]byte, 3), format: DefaultFormat, wantErr: ErrMisaligned},
		{
			name:    "stereo half frame",
			data:    make([]byte, 6),
			format:  Format{SampleRate: 44100, Channels: 2, SampleWidth: 2},
			wantErr: ErrMisaligned,
		},
		{name: "zero rate", data: nil, format: Format{Channels: 1, SampleWidth: 2}, wantErr: ErrInvalidFormat},
		{name: "32-bit", data: nil, format: Format{SampleRate: 8000, Channels: 1, SampleWidth: 4}, wantErr: ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.data, tt.format)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	// 16-bit mono at 24kHz is 48000 bytes per second
	seg, err := New(make([]byte, 48000), DefaultFormat)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if seg.Duration() != time.Second {
		t.Errorf("Expected 1s, got %v", seg.Duration())
	}
	if seg.Frames() != 24000 {
		t.Errorf("Expected 24000 frames, got %d", seg.Frames())
	}
}

func TestSilence(t *testing.T) {
	seg, err := Silence(50*time.Millisecond, DefaultFormat)
	if err != nil {
		t.Fatalf("Silence failed: %v", err)
	}
	// 50ms of 16b 24kHz mono is 2400 bytes
	if seg.Len() != 2400 {
		t.Errorf("Expected 2400 bytes, got %d", seg.Len())
	}
	if bytes.ContainsFunc(seg.Data(), func(r rune) bool { return r != 0 }) {
		t.Error("16-bit silence should be all zero bytes")
	}

	u8, err := Silence(10*time.Millisecond, Format{SampleRate: 8000, Channels: 1, SampleWidth: 1})
	if err != nil {
		t.Fatalf("Silence failed: %v", err)
	}
	for i, b := range u8.Data() {
		if b != 0x80 {
			t.Fatalf("8-bit silence byte %d = %#x, want 0x80", i, b)
		}
	}
}

func TestChunks(t *testing.T) {
	seg, err := New(make([]byte, 48000*2+1000), DefaultFormat) // 2s + 500 frames
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	chunks := seg.Chunks(500 * time.Millisecond)
	if len(chunks) != 5 {
		t.Fatalf("Expected 5 chunks, got %d", len(chunks))
	}
	for i, c := range chunks[:4] {
		if c.Duration() != 500*time.Millisecond {
			t.Errorf("Chunk %d: expected 500ms, got %v", i, c.Duration())
		}
	}
	if last := chunks[4]; last.Frames() != 500 {
		t.Errorf("Expected last chunk of 500 frames, got %d", last.Frames())
	}

	if got := seg.Chunks(10 * time.Second); len(got) != 1 || got[0] != seg {
		t.Error("Chunk longer than the segment should return the segment itself")
	}
}

func TestChunksReassemble(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		frames := rapid.IntRange(0, 20000).Draw(t, "frames")
		chunkMs := rapid.IntRange(1, 1000).Draw(t, "chunkMs")

		data := make([]byte, frames*2)
		for i := range data {
			data[i] = byte(i * 7)
		}
		seg, err := New(data, DefaultFormat)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}

		chunks := seg.Chunks(time.Duration(chunkMs) * time.Millisecond)
		size := DefaultFormat.FramesFor(time.Duration(chunkMs) * time.Millisecond)

		var joined []byte
		for i, c := range chunks {
			if i < len(chunks)-1 && c.Frames() != size {
				t.Fatalf("chunk %d has %d frames, want %d", i, c.Frames(), size)
			}
			joined = append(joined, c.Data()...)
		}
		if !bytes.Equal(joined, data) {
			t.Fatalf("reassembled chunks differ from original")
		}
	})
}

func TestConvertChannels(t *testing.T) {
	mono := Format{SampleRate: 24000, Channels: 1, SampleWidth: 2}
	stereo := Format{SampleRate: 24000, Channels: 2, SampleWidth: 2}

	seg, err := New(generateTone(mono, 20*time.Millisecond, 440), mono)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	up, err := seg.Convert(stereo)
	if err != nil {
		t.Fatalf("Convert to stereo failed: %v", err)
	}
	if up.Frames() != seg.Frames() {
		t.Errorf("Expected %d frames, got %d", seg.Frames(), up.Frames())
	}
	samples := int16Samples(up.Data())
	for i := 0; i < len(samples); i += 2 {
		if samples[i] != samples[i+1] {
			t.Fatalf("Frame %d: channels differ (%d vs %d)", i/2, samples[i], samples[i+1])
		}
	}

	down, err := up.Convert(mono)
	if err != nil {
		t.Fatalf("Convert to mono failed: %v", err)
	}
	assertCloseSamples(t, int16Samples(seg.Data()), int16Samples(down.Data()))
}

func TestConvertAveragesStereo(t *testing.T) {
	stereo := Format{SampleRate: 8000, Channels: 2, SampleWidth: 2}
	data := make([]byte, 4)
	binary.LittleEndian.PutUint16(data[0:], uint16(int16(10000)))
	binary.LittleEndian.PutUint16(data[2:], uint16(0xF830))

	seg, err := New(data, stereo)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	mono, err := seg.Convert(Format{SampleRate: 8000, Channels: 1, SampleWidth: 2})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	assertCloseSamples(t, []int16{4000}, int16Samples(mono.Data()))
}

func TestConvertSampleRate(t *testing.T) {
	src := Format{SampleRate: 48000, Channels: 1, SampleWidth: 2}
	seg, err := New(generateTone(src, time.Second, 440), src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	out, err := seg.Convert(DefaultFormat)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if out.Format() != DefaultFormat {
		t.Errorf("Expected format %v, got %v", DefaultFormat, out.Format())
	}
	if out.Frames() != DefaultFormat.SampleRate {
		t.Errorf("Expected %d frames after resampling, got %d", DefaultFormat.SampleRate, out.Frames())
	}
}

func TestConvertKeepsDurationWithinOneFrame(t *testing.T) {
	rates := []int{8000, 11025, 16000, 22050, 24000, 44100, 48000}
	rapid.Check(t, func(t *rapid.T) {
		src := Format{
			SampleRate:  rapid.SampledFrom(rates).Draw(t, "src"),
			Channels:    rapid.IntRange(1, 2).Draw(t, "channels"),
			SampleWidth: rapid.SampledFrom([]int{1, 2}).Draw(t, "width"),
		}
		dst := src
		dst.SampleRate = rapid.SampledFrom(rates).Draw(t, "dst")
		frames := rapid.IntRange(1, 4000).Draw(t, "frames")

		seg, err := New(make([]byte, frames*src.FrameWidth()), src)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		out, err := seg.Convert(dst)
		if err != nil {
			t.Fatalf("Convert failed: %v", err)
		}

		exact := float64(frames) * float64(dst.SampleRate) / float64(src.SampleRate)
		if diff := math.Abs(float64(out.Frames()) - exact); diff > 1 {
			t.Fatalf("%d frames at %d Hz became %d at %d Hz, expected %.2f",
				frames, src.SampleRate, out.Frames(), dst.SampleRate, exact)
		}
	})
}

func TestConvertSampleWidth(t *testing.T) {
	seg, err := New(generateTone(DefaultFormat, 10*time.Millisecond, 440), DefaultFormat)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	u8 := Format{SampleRate: 24000, Channels: 1, SampleWidth: 1}
	out, err := seg.Convert(u8)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if out.Len() != seg.Frames() {
		t.Errorf("Expected %d bytes, got %d", seg.Frames(), out.Len())
	}
}

func TestConvertSameFormatIsNoop(t *testing.T) {
	seg, _ := New(make([]byte, 8), DefaultFormat)
	out, err := seg.Convert(DefaultFormat)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if out != seg {
		t.Error("Convert to the same format should return the same segment")
	}
}

func TestAppend(t *testing.T) {
	a, _ := New(make([]byte, 2400), DefaultFormat) // 50ms
	b, _ := New(make([]byte, 2400), DefaultFormat)

	joined, err := a.Append(b)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if joined.Duration() != 100*time.Millisecond {
		t.Errorf("Expected 100ms, got %v", joined.Duration())
	}

	stereo44 := Format{SampleRate: 44100, Channels: 2, SampleWidth: 2}
	c, _ := New(make([]byte, stereo44.FramesFor(50*time.Millisecond)*4), stereo44)
	mixed, err := a.Append(c)
	if err != nil {
		t.Fatalf("Append with format change failed: %v", err)
	}
	if diff := cmp.Diff(stereo44, mixed.Format()); diff != "" {
		t.Errorf("Synced format mismatch (-want +got):\n%s", diff)
	}
	if d := mixed.Duration() - 100*time.Millisecond; d > 2*time.Millisecond || d < -2*time.Millisecond {
		t.Errorf("Expected ~100ms, got %v", mixed.Duration())
	}
}

func TestConcat(t *testing.T) {
	if _, err := Concat(); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput, got %v", err)
	}

	parts := make([]*Segment, 3)
	for i := range parts {
		parts[i], _ = New(bytes.Repeat([]byte{byte(i), 0}, 10), DefaultFormat)
	}
	out, err := Concat(parts...)
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}
	if out.Frames() != 30 {
		t.Errorf("Expected 30 frames, got %d", out.Frames())
	}
	if out.Data()[20] != 1 || out.Data()[40] != 2 {
		t.Error("Concat did not preserve order")
	}
}
