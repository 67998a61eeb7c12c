package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/easyaudiostream/internal/segment"
	"github.com/dgnsrekt/easyaudiostream/pkg/audiostream"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	playRaw      bool
	playRate     int
	playChannels int
	playWidth    int

	playCmd = &cobra.Command{
		Use:   "play [FILE|-]...",
		Short: "Play audio files back to back",
		Long: paragraph(fmt.Sprintf("\n%s audio files in order. Files are decoded in parallel and "+
			"queued as a single gapless stream. Use - to read from stdin.", keyword("Play"))),
		Example: paragraph("easyaudiostream play intro.mp3 body.wav\ncat speech.pcm | easyaudiostream play --raw --rate 16000 -"),
		Args:    cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return runPlay(ctx, args)
		},
	}
)

func runPlay(ctx context.Context, args []string) error {
	stdin := 0
	for _, arg := range args {
		if arg == "-" {
			stdin++
		}
	}
	if stdin > 1 {
		return errors.New("stdin can only be read once")
	}

	p, err := newPlayer()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	segs := make([]*audiostream.Segment, len(args))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, arg := range args {
		g.Go(func() error {
			seg, err := loadSegment(gctx, p, arg)
			if err != nil {
				return fmt.Errorf("%s: %w", arg, err)
			}
			segs[i] = seg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, seg := range segs {
		log.Info("Queued", "file", args[i], "duration", seg.Duration().Round(time.Millisecond), "format", seg.Format())
		if err := p.PlaySegment(seg); err != nil {
			return err
		}
	}
	return drain(ctx, p)
}

func loadSegment(ctx context.Context, p *audiostream.Player, arg string) (*audiostream.Segment, error) {
	data, err := readArg(arg)
	if err != nil {
		return nil, err
	}

	if playRaw {
		return segment.New(data, audiostream.RawFormat(
			audiostream.WithFrameRate(playRate),
			audiostream.WithChannels(playChannels),
			audiostream.WithSampleWidth(playWidth),
		))
	}

	if tags := segment.ReadTags(data); !tags.Empty() {
		log.Info("Tags", "file", arg, "title", tags.Title, "artist", tags.Artist, "album", tags.Album)
	}
	return p.Decode(ctx, data)
}

func readArg(arg string) ([]byte, error) {
	if arg == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("unable to read stdin: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	return b, nil
}

func init() {
	def := segment.DefaultFormat
	playCmd.Flags().BoolVar(&playRaw, "raw", false, "treat input as raw little-endian PCM")
	playCmd.Flags().IntVar(&playRate, "rate", def.SampleRate, "raw sample rate in Hz")
	playCmd.Flags().IntVar(&playChannels, "channels", def.Channels, "raw channel count")
	playCmd.Flags().IntVar(&playWidth, "width", def.SampleWidth, "raw bytes per sample (1, 2 or 3)")
}
