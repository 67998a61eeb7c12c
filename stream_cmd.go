package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/dgnsrekt/easyaudiostream/internal/segment"
	"github.com/dgnsrekt/easyaudiostream/pkg/audiostream"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	streamChunk    int
	streamRate     int
	streamChannels int
	streamWidth    int

	streamCmd = &cobra.Command{
		Use:   "stream [-]",
		Short: "Play raw PCM from stdin as it arrives",
		Long: paragraph(fmt.Sprintf("\n%s raw PCM from stdin. Each read is queued as soon as it "+
			"arrives, so a slow producer plays without waiting for the end of input.", keyword("Stream"))),
		Example: paragraph("sox in.wav -t raw -r 22050 -c 1 -b 16 -e signed - | easyaudiostream stream --rate 22050"),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) == 1 && args[0] != "-" {
				return fmt.Errorf("stream only reads stdin, got %q", args[0])
			}
			if term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec
				return errors.New("stdin is a terminal: pipe raw PCM into stream")
			}
			return runStream(os.Stdin)
		},
	}
)

func runStream(r io.Reader) error {
	ctx, cancel := signalContext()
	defer cancel()

	p, err := newPlayer()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	opts := []audiostream.RawOption{
		audiostream.WithFrameRate(streamRate),
		audiostream.WithChannels(streamChannels),
		audiostream.WithSampleWidth(streamWidth),
	}
	format := audiostream.RawFormat(opts...)
	if err := format.Validate(); err != nil {
		return err
	}

	var readErr error
	if err := p.PlayRawStream(ctx, frameChunks(r, streamChunk, format.FrameWidth(), &readErr), opts...); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	if readErr != nil {
		return fmt.Errorf("unable to read stdin: %w", readErr)
	}
	return drain(ctx, p)
}

// frameChunks yields what each read of r returns, cut to whole frames. The
// bytes of a split frame are carried into the next chunk. The first read
// error other than io.EOF is stored in errp.
func frameChunks(r io.Reader, size, frame int, errp *error) iter.Seq[[]byte] {
	size = max(size, frame)
	size += (frame - size%frame) % frame
	return func(yield func([]byte) bool) {
		var carry []byte
		buf := make([]byte, size)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				data := append(carry, buf[:n]...)
				whole := len(data) - len(data)%frame
				if whole > 0 && !yield(data[:whole]) {
					return
				}
				carry = append([]byte(nil), data[whole:]...)
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					*errp = err
				}
				return
			}
		}
	}
}

func init() {
	def := segment.DefaultFormat
	streamCmd.Flags().IntVar(&streamChunk, "chunk", def.BytesPerSecond()/10, "read size in bytes")
	streamCmd.Flags().IntVar(&streamRate, "rate", def.SampleRate, "sample rate in Hz")
	streamCmd.Flags().IntVar(&streamChannels, "channels", def.Channels, "channel count")
	streamCmd.Flags().IntVar(&streamWidth, "width", def.SampleWidth, "bytes per sample (1, 2 or 3)")
}
