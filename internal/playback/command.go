package playback

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/easyaudiostream/internal/segment"
)

// PlayFunc plays one segment to completion.
type PlayFunc func(ctx context.Context, seg *segment.Segment) error

// DefaultPlayers lists the system players tried by the command fallback.
func DefaultPlayers() []string {
	return []string{"ffplay", "afplay", "paplay", "aplay", "play"}
}

// playerArgs returns the arguments to play a WAV file with a known player.
func playerArgs(player, path string) []string {
	switch filepath.Base(player) {
	case "ffplay":
		return []string{"-nodisp", "-autoexit", "-loglevel", "quiet", path}
	case "aplay", "play":
		return []string{"-q", path}
	default:
		return []string{path}
	}
}

// FindPlayer returns the first of players found on PATH.
func FindPlayer(players []string) (string, bool) {
	for _, p := range players {
		if path, err := exec.LookPath(p); err == nil {
			return path, true
		}
	}
	return "", false
}

// CommandPlayer plays segments by writing them to a temporary WAV file and
// running the first available system player on it.
func CommandPlayer(players []string, tempDir string) (PlayFunc, error) {
	player, ok := FindPlayer(players)
	if !ok {
		return nil, fmt.Errorf("%w: none of %v found", ErrBackendUnavailable, players)
	}
	log.Debug("Using command player", "player", player)

	return func(ctx context.Context, seg *segment.Segment) error {
		path, err := seg.WriteTempWAV(tempDir)
		if err != nil {
			return err
		}
		defer os.Remove(path)

		out, err := exec.CommandContext(ctx, player, playerArgs(player, path)...).CombinedOutput()
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("%s failed: %w\noutput: %s", filepath.Base(player), err, out)
		}
		return nil
	}, nil
}

// CommandManager is the last-resort backend. Segments that arrive while a
// batch is playing are merged into one pending segment and played as the
// next batch, so output is choppy between batches.
type CommandManager struct {
	play PlayFunc

	mu         sync.Mutex
	next       *segment.Segment
	nextCount  int64
	playing    bool
	closed     bool
	hasPending chan struct{}

	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}

	queued  atomic.Int64
	played  atomic.Int64
	batches atomic.Int64
	bytes   atomic.Int64
	failed  atomic.Int64
}

// NewCommandManager creates a manager that hands batches to play.
func NewCommandManager(play PlayFunc) *CommandManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &CommandManager{
		play:       play,
		hasPending: make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

func (m *CommandManager) Name() string { return BackendCommand }

// Play merges seg into the pending batch.
func (m *CommandManager) Play(seg *segment.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.startOnce.Do(func() { go m.pump() })

	if m.next == nil {
		m.next = seg
	} else {
		merged, err := m.next.Append(seg)
		if err != nil {
			return err
		}
		m.next = merged
	}
	m.nextCount++
	m.queued.Add(1)

	select {
	case m.hasPending <- struct{}{}:
	default:
	}
	return nil
}

func (m *CommandManager) pump() {
	defer close(m.done)

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.hasPending:
		}

		m.mu.Lock()
		seg, count := m.next, m.nextCount
		m.next, m.nextCount = nil, 0
		m.playing = seg != nil
		m.mu.Unlock()

		if seg == nil {
			continue
		}

		log.Debug("Playing batch", "segments", count, "duration", seg.Duration())
		if err := m.play(m.ctx, seg); err != nil {
			m.failed.Add(1)
			log.Error("Failed to play batch", "backend", BackendCommand, "error", err)
		} else {
			m.played.Add(count)
			m.bytes.Add(int64(seg.Len()))
		}
		m.batches.Add(1)

		m.mu.Lock()
		m.playing = false
		m.mu.Unlock()
	}
}

// Wait blocks until no batch is playing or pending.
func (m *CommandManager) Wait(ctx context.Context) error {
	return waitUntil(ctx, m.done, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.next == nil && !m.playing
	})
}

// Close stops the pump, interrupting the running player.
func (m *CommandManager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.next = nil
	m.mu.Unlock()

	started := true
	m.startOnce.Do(func() { started = false })
	m.cancel()
	if started {
		<-m.done
	}
	return nil
}

// Stats returns playback counters.
func (m *CommandManager) Stats() Stats {
	m.mu.Lock()
	var pending time.Duration
	if m.next != nil {
		pending = m.next.Duration()
	}
	m.mu.Unlock()

	return Stats{
		Backend:        BackendCommand,
		SegmentsQueued: m.queued.Load(),
		SegmentsPlayed: m.played.Load(),
		BytesPlayed:    m.bytes.Load(),
		PendingAudio:   pending,
		Errors:         m.failed.Load(),
	}
}
