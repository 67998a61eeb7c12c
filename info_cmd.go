package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/easyaudiostream/internal/playback"
	"github.com/dgnsrekt/easyaudiostream/pkg/audiostream"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show version, audio capabilities and microphones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runInfo(cmd.OutOrStdout())
	},
}

func runInfo(w io.Writer) error {
	caps := playback.DetectCapabilities(cfg.FFplay, cfg.FFmpeg, cfg.Players)
	label := lipgloss.NewStyle().Width(22).Render

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", heading("easyaudiostream "+Version))
	fmt.Fprintf(&b, "%s\n\n", faint(fmt.Sprintf("%s on %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)))

	rows := [][2]string{
		{"audio subsystem", string(caps.Platform.AudioSubsystem)},
		{"oto (cgo) built in", yesNo(caps.Oto)},
		{"PortAudio built in", yesNo(caps.PortAudio)},
		{"ffplay installed", yesNo(caps.FFplay)},
		{"ffmpeg installed", yesNo(caps.FFmpeg)},
		{"fallback players", playersSummary(caps.Players)},
		{"CI detected", yesNo(caps.CI)},
		{"configured backend", keyword(cfg.Backend)},
		{"output format", cfg.Format().String()},
	}
	if cfg.Cache.Enabled {
		dir := cfg.CacheSettings().DiskPath
		rows = append(rows, [2]string{"decode cache", fmt.Sprintf("%s (%s of %d MB)", dir, humanize.Bytes(dirSize(dir)), cfg.Cache.MaxSizeMB)})
	} else {
		rows = append(rows, [2]string{"decode cache", faint("disabled")})
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "%s%s\n", label(r[0]), r[1])
	}
	b.WriteString("\n")

	mics, err := audiostream.ListMics()
	switch {
	case errors.Is(err, audiostream.ErrMicUnavailable):
		b.WriteString(faint("PortAudio is not built in -- mic recording utilities are not enabled.") + "\n")
	case err != nil:
		fmt.Fprintf(&b, "%s\n", bad("Could not list microphones: "+err.Error()))
	default:
		b.WriteString(heading("Microphones on system") + "\n")
		if len(mics) == 0 {
			b.WriteString(faint("none found") + "\n")
		}
		for _, m := range mics {
			line := m.String()
			if m.Default {
				line += " " + keyword("(default)")
			}
			b.WriteString(line + "\n")
		}
	}

	_, err = io.WriteString(w, b.String())
	return err
}

func playersSummary(players []string) string {
	if len(players) == 0 {
		return bad("none")
	}
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = filepath.Base(p)
	}
	return strings.Join(names, ", ")
}

// dirSize sums the sizes of the regular files under dir.
func dirSize(dir string) uint64 {
	var total uint64
	if dir == "" {
		return 0
	}
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += uint64(info.Size()) //nolint:gosec
			}
		}
		return nil
	})
	return total
}
