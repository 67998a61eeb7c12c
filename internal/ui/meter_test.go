package ui

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/easyaudiostream/internal/playback"
)

func TestLevel(t *testing.T) {
	full := make([]byte, 8)
	for i := 0; i < len(full); i += 2 {
		v := int16(math.MaxInt16)
		if i%4 == 2 {
			v = math.MinInt16 + 1
		}
		binary.LittleEndian.PutUint16(full[i:], uint16(v))
	}

	tests := []struct {
		name  string
		pcm   []byte
		width int
		want  float64
	}{
		{"silence 16-bit", make([]byte, 64), 2, 0},
		{"full scale 16-bit", full, 2, 1},
		{"silence 8-bit", []byte{128, 128, 128}, 1, 0},
		{"full scale 8-bit", []byte{0, 0}, 1, 1},
		{"24-bit negative half", []byte{0x00, 0x00, 0xC0}, 3, 0.5},
		{"bad width", []byte{1, 2, 3, 4}, 4, 0},
		{"empty", nil, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Level(tt.pcm, tt.width)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Level() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestMeterTracksLevelAndPeak(t *testing.T) {
	levels := make(chan float64)
	m := NewMeter("mic 0", levels, nil)

	model, cmd := m.Update(levelMsg(0.8))
	if cmd == nil {
		t.Fatal("expected a command waiting for the next level")
	}
	model, _ = model.Update(levelMsg(0.2))
	got := model.(Meter)

	if got.level != 0.2 {
		t.Errorf("level = %f, want 0.2", got.level)
	}
	if got.peak != 0.8 {
		t.Errorf("peak = %f, want 0.8", got.peak)
	}

	model, _ = got.Update(tickMsg{})
	if p := model.(Meter).peak; math.Abs(p-(0.8-peakDecay)) > 1e-9 {
		t.Errorf("peak after tick = %f, want %f", p, 0.8-peakDecay)
	}
}

func TestMeterShowsStats(t *testing.T) {
	stats := func() playback.Stats {
		return playback.Stats{Backend: "ffplay", SegmentsPlayed: 3, BytesPlayed: 4096}
	}
	m := NewMeter("echo", nil, stats)

	model, _ := m.Update(tickMsg{})
	view := model.View()
	for _, want := range []string{"echo", "ffplay", "3 segments", "4.1 kB"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestMeterQuits(t *testing.T) {
	m := NewMeter("echo", nil, nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}

	model, cmd := m.Update(sourceDoneMsg{})
	if cmd == nil {
		t.Fatal("expected quit when the source closes")
	}
	if !model.(Meter).finished {
		t.Error("meter not marked finished")
	}
}

func TestMeterKeepsErrorOnScreen(t *testing.T) {
	m := NewMeter("echo", nil, nil)

	model, _ := m.Update(ErrorMsg{Err: errors.New("device unplugged")})
	if view := model.View(); !strings.Contains(view, "device unplugged") {
		t.Errorf("view missing error:\n%s", view)
	}

	model, cmd := model.Update(sourceDoneMsg{})
	if cmd != nil {
		t.Error("meter quit before the error could be read")
	}
	if !model.(Meter).finished {
		t.Error("meter not marked finished")
	}
	if view := model.View(); !strings.Contains(view, "device unplugged") {
		t.Errorf("error cleared when the source closed:\n%s", view)
	}
}

func TestWaitForLevelClosedChannel(t *testing.T) {
	levels := make(chan float64, 1)
	levels <- 0.5
	close(levels)

	if msg := waitForLevel(levels)(); msg != levelMsg(0.5) {
		t.Errorf("first msg = %#v", msg)
	}
	if _, ok := waitForLevel(levels)().(sourceDoneMsg); !ok {
		t.Error("closed channel did not report done")
	}
}
