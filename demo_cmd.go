package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/easyaudiostream/internal/segment"
	"github.com/dgnsrekt/easyaudiostream/internal/streamsim"
	"github.com/spf13/cobra"
)

var (
	demoMode string

	demoCmd = &cobra.Command{
		Use:   "demo FILE",
		Short: "Play a file as a simulated slow stream",
		Long: paragraph(fmt.Sprintf("\n%s FILE, convert it to 24kHz mono and feed it to the player "+
			"the way a slow producer would: all at once (fast), a second at a time (choppy) or "+
			"a second at a time with periodic stalls (choppy-slow).", keyword("Decode"))),
		Example: paragraph("easyaudiostream demo speech.mp3 --mode choppy-slow"),
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runDemo(args[0])
		},
	}
)

func runDemo(path string) error {
	mode, err := streamsim.ParseMode(demoMode)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to open file: %w", err)
	}

	p, err := newPlayer()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	seg, err := p.Decode(ctx, data)
	if err != nil {
		return err
	}
	seg, err = seg.Convert(segment.DefaultFormat)
	if err != nil {
		return err
	}

	log.Info("Streaming", "file", path, "mode", mode, "duration", seg.Duration())
	if err := p.PlayRawStream(ctx, streamsim.Stream(ctx, mode, seg.Data())); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return drain(ctx, p)
}

func init() {
	names := make([]string, len(streamsim.Modes))
	for i, m := range streamsim.Modes {
		names[i] = string(m)
	}
	demoCmd.Flags().StringVar(&demoMode, "mode", string(streamsim.ModeChoppy), "stream mode: "+strings.Join(names, ", "))
}
