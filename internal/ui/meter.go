// Package ui renders the terminal level meter shown while echoing the
// microphone.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/easyaudiostream/internal/playback"
	"github.com/dustin/go-humanize"
)

const refreshInterval = 100 * time.Millisecond

// peakDecay is how much the held peak drops per refresh.
const peakDecay = 0.02

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EE6FF8"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"})
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#DDDDDD"})
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A4A4A"))
)

type levelMsg float64

type sourceDoneMsg struct{}

type tickMsg time.Time

// ErrorMsg reports a capture or playback failure to the meter. The meter
// keeps it on screen until the user quits.
type ErrorMsg struct{ Err error }

// Meter is a bubbletea model showing the input level and playback stats.
type Meter struct {
	title  string
	levels <-chan float64
	stats  func() playback.Stats

	bar      progress.Model
	level    float64
	peak     float64
	current  playback.Stats
	finished bool
	err      error
}

// NewMeter returns a meter reading levels until the channel closes. stats
// may be nil.
func NewMeter(title string, levels <-chan float64, stats func() playback.Stats) Meter {
	return Meter{
		title:  title,
		levels: levels,
		stats:  stats,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

// SetError records a failure to show under the meter.
func (m *Meter) SetError(err error) { m.err = err }

func (m Meter) Init() tea.Cmd {
	return tea.Batch(waitForLevel(m.levels), tick())
}

func waitForLevel(levels <-chan float64) tea.Cmd {
	return func() tea.Msg {
		l, ok := <-levels
		if !ok {
			return sourceDoneMsg{}
		}
		return levelMsg(l)
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Meter) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.bar.Width = max(msg.Width-20, 10)

	case levelMsg:
		m.level = float64(msg)
		m.peak = max(m.peak, m.level)
		return m, waitForLevel(m.levels)

	case ErrorMsg:
		m.SetError(msg.Err)
		return m, nil

	case sourceDoneMsg:
		m.finished = true
		m.level = 0
		if m.err != nil {
			return m, nil
		}
		return m, tea.Quit

	case tickMsg:
		m.peak = max(m.peak-peakDecay, m.level)
		if m.stats != nil {
			m.current = m.stats()
		}
		return m, tick()
	}
	return m, nil
}

func (m Meter) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("level"), m.bar.ViewAs(m.level))
	fmt.Fprintf(&b, "%s  %s\n\n", labelStyle.Render("peak"), valueStyle.Render(fmt.Sprintf("%3.0f%%", m.peak*100)))

	if m.current.Backend != "" {
		rows := [][2]string{
			{"backend", m.current.Backend},
			{"played", fmt.Sprintf("%d segments, %s", m.current.SegmentsPlayed, humanize.Bytes(uint64(max(m.current.BytesPlayed, 0))))},
			{"pending", m.current.PendingAudio.Round(time.Millisecond).String()},
			{"underruns", fmt.Sprint(m.current.Underruns)},
		}
		for _, r := range rows {
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-9s", r[0])), valueStyle.Render(r[1]))
		}
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	if m.finished {
		b.WriteString(helpStyle.Render("input closed"))
	} else {
		b.WriteString(helpStyle.Render("q: quit"))
	}
	b.WriteString("\n")
	return b.String()
}
