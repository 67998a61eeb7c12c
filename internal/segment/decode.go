package segment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// Container identifies an encoded audio file type.
type Container string

const (
	ContainerUnknown Container = ""
	ContainerWAV     Container = "wav"
	ContainerMP3     Container = "mp3"
	ContainerFLAC    Container = "flac"
	ContainerOgg     Container = "ogg"
)

// Sniff guesses the container of data from its leading bytes.
func Sniff(data []byte) Container {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return ContainerWAV
	case bytes.HasPrefix(data, []byte("fLaC")):
		return ContainerFLAC
	case bytes.HasPrefix(data, []byte("OggS")):
		return ContainerOgg
	case bytes.HasPrefix(data, []byte("ID3")):
		return ContainerMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 && (data[1]>>1)&0x03 != 0:
		// MPEG audio frame sync with a non-zero layer (ADTS AAC has layer 0)
		return ContainerMP3
	default:
		return ContainerUnknown
	}
}

// Decoder turns encoded audio files into segments.
type Decoder struct {
	// FFmpegPath is the ffmpeg binary used for containers beep cannot read.
	// Empty disables the fallback.
	FFmpegPath string

	// FallbackFormat is the PCM layout requested from ffmpeg.
	FallbackFormat Format

	// Timeout bounds a single ffmpeg invocation.
	Timeout time.Duration
}

// DefaultDecoder is used by Decode.
var DefaultDecoder = &Decoder{
	FFmpegPath: "ffmpeg",
	FallbackFormat: Format{
		SampleRate:  44100,
		Channels:    2,
		SampleWidth: 2,
	},
	Timeout: 30 * time.Second,
}

// Decode decodes a complete encoded audio file with the default decoder.
func Decode(data []byte) (*Segment, error) {
	return DefaultDecoder.Decode(context.Background(), data)
}

// DecodeReader reads r to the end and decodes it with the default decoder.
func DecodeReader(r io.Reader) (*Segment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	return Decode(data)
}

// Decode decodes a complete encoded audio file.
func (d *Decoder) Decode(ctx context.Context, data []byte) (*Segment, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	container := Sniff(data)
	if container != ContainerUnknown {
		seg, err := decodeWithBeep(container, data)
		if err == nil {
			return seg, nil
		}
		if d.FFmpegPath == "" {
			return nil, fmt.Errorf("failed to decode %s: %w", container, err)
		}
		log.Debug("Native decoder failed, trying ffmpeg", "container", container, "error", err)
	} else if d.FFmpegPath == "" {
		return nil, ErrUnknownFormat
	}

	return d.decodeWithFFmpeg(ctx, data)
}

func decodeWithBeep(container Container, data []byte) (*Segment, error) {
	var (
		st     beep.StreamSeekCloser
		format beep.Format
		err    error
	)

	r := bytes.NewReader(data)
	switch container {
	case ContainerWAV:
		st, format, err = wav.Decode(r)
	case ContainerMP3:
		st, format, err = mp3.Decode(io.NopCloser(r))
	case ContainerFLAC:
		st, format, err = flac.Decode(r)
	case ContainerOgg:
		st, format, err = vorbis.Decode(io.NopCloser(r))
	default:
		return nil, ErrUnknownFormat
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	f := fromBeepFormat(format)
	// beep streams carry at most two channels
	f.Channels = min(max(f.Channels, 1), 2)
	if f.SampleWidth < 1 || f.SampleWidth > 3 {
		f.SampleWidth = 2
	}

	pcm, err := render(st, f, st.Len())
	if err != nil {
		return nil, err
	}
	log.Debug("Decoded audio", "container", container, "format", f, "bytes", len(pcm))
	return New(pcm, f)
}

func (d *Decoder) decodeWithFFmpeg(ctx context.Context, data []byte) (*Segment, error) {
	path, err := exec.LookPath(d.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("%w (ffmpeg not available: %v)", ErrUnknownFormat, err)
	}

	ownTimeout := false
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
		ownTimeout = true
	}

	f := d.FallbackFormat
	cmd := exec.CommandContext(ctx, path,
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-vn",
		"-f", f.FFmpegSampleFormat(),
		"-ar", strconv.Itoa(f.SampleRate),
		"-ac", strconv.Itoa(f.Channels),
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if ownTimeout {
				return nil, fmt.Errorf("ffmpeg decode timed out after %v: %w", d.Timeout, ctxErr)
			}
			return nil, fmt.Errorf("ffmpeg decode interrupted: %w", ctxErr)
		}
		if msg := stderr.String(); msg != "" {
			return nil, fmt.Errorf("ffmpeg decode failed: %w\nstderr: %s", err, msg)
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	pcm := stdout.Bytes()
	// ffmpeg may stop mid-frame on truncated input
	pcm = pcm[:len(pcm)-len(pcm)%f.FrameWidth()]
	log.Debug("Decoded audio with ffmpeg", "format", f, "bytes", len(pcm))
	return New(pcm, f)
}
