package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/easyaudiostream/internal/ui"
	"github.com/dgnsrekt/easyaudiostream/pkg/audiostream"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	echoMic int
	echoTUI bool

	micsCmd = &cobra.Command{
		Use:   "mics",
		Short: "List microphones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mics, err := audiostream.ListMics()
			if err != nil {
				return err
			}
			for _, m := range mics {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}

	echoCmd = &cobra.Command{
		Use:   "echo",
		Short: "Play the microphone back through the speakers",
		Long: paragraph(fmt.Sprintf("\n%s the microphone into the player until interrupted. "+
			"Use headphones to avoid feedback.", keyword("Echo"))),
		Example: paragraph("easyaudiostream echo --mic 2 --tui"),
		Args:    cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return runEcho(ctx)
		},
	}
)

func runEcho(ctx context.Context) error {
	p, err := newPlayer()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	stream, err := p.OpenMic(ctx, echoMic)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	if !echoTUI || !term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec
		log.Info("Echoing microphone, press Ctrl+C to stop", "mic", echoMic, "format", stream.Format())
		err := p.Echo(ctx, stream)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return runEchoTUI(ctx, p, stream)
}

// runEchoTUI plays the microphone while the meter shows its level.
func runEchoTUI(ctx context.Context, p *audiostream.Player, stream *audiostream.Mic) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	format := stream.Format()
	levels := make(chan float64, 1)
	playErr := make(chan error, 1)

	title := fmt.Sprintf("Echoing microphone %d", echoMic)
	if echoMic < 0 {
		title = "Echoing default microphone"
	}
	prog := tea.NewProgram(ui.NewMeter(title, levels, p.Stats), tea.WithContext(ctx))

	// fail shows err under the meter, which then waits for the user to quit
	fail := func(err error) {
		playErr <- err
		if err != nil {
			prog.Send(ui.ErrorMsg{Err: err})
		}
	}
	go func() {
		defer close(levels)
		for frame := range stream.All() {
			select {
			case levels <- ui.Level(frame, format.SampleWidth):
			default:
			}
			if err := p.PlayRawAudio(frame,
				audiostream.WithFrameRate(format.SampleRate),
				audiostream.WithChannels(format.Channels),
				audiostream.WithSampleWidth(format.SampleWidth),
			); err != nil {
				fail(err)
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
		fail(stream.Err())
	}()

	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("unable to run tui program: %w", err)
	}

	cancel()
	_ = stream.Close()
	select {
	case err := <-playErr:
		return err
	default:
		return nil
	}
}

func init() {
	echoCmd.Flags().IntVarP(&echoMic, "mic", "m", -1, "microphone ID (see mics), -1 for the default")
	echoCmd.Flags().BoolVarP(&echoTUI, "tui", "t", false, "show a level meter")
}
