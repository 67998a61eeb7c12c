package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/easyaudiostream/pkg/audiostream"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// settleDelay is how long a file must go unmodified before it is played.
const settleDelay = 300 * time.Millisecond

var audioExtensions = []string{".wav", ".mp3", ".flac", ".ogg", ".oga", ".opus", ".m4a", ".aac", ".webm"}

var watchCmd = &cobra.Command{
	Use:   "watch DIR",
	Short: "Play every audio file written to a directory",
	Long: paragraph(fmt.Sprintf("\n%s DIR and play each audio file created in it, in the order "+
		"the files finish being written.", keyword("Watch"))),
	Example: paragraph("easyaudiostream watch ./out"),
	Args:    cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return runWatch(ctx, args[0])
	},
}

func isAudioFile(path string) bool {
	return slices.Contains(audioExtensions, strings.ToLower(filepath.Ext(path)))
}

func runWatch(ctx context.Context, dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("unable to watch: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("unable to watch %s: %w", dir, err)
	}

	p, err := newPlayer()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	ready := make(chan string)
	s := newSettler(settleDelay, ready)
	defer s.stop()

	log.Info("Watching for audio files", "dir", dir)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				if isAudioFile(ev.Name) {
					s.touch(ev.Name)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("Watcher error", "error", err)

		case path := <-ready:
			playFile(ctx, p, path)
		}
	}
}

func playFile(ctx context.Context, p *audiostream.Player, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Error("Unable to read file", "file", path, "error", err)
		return
	}
	if err := p.PlayAudioContext(ctx, data); err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("Unable to play file", "file", path, "error", err)
		}
		return
	}
	log.Info("Queued", "file", filepath.Base(path))
}

// settler reports a path on ready once it has not been touched for delay.
type settler struct {
	delay time.Duration
	ready chan<- string

	done  chan struct{}

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func newSettler(delay time.Duration, ready chan<- string) *settler {
	return &settler{
		delay:  delay,
		ready:  ready,
		done:   make(chan struct{}),
		timers: make(map[string]*time.Timer),
	}
}

func (s *settler) touch(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if t, ok := s.timers[path]; ok && t.Stop() {
		t.Reset(s.delay)
		return
	}

	var t *time.Timer
	t = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		if s.timers[path] != t {
			// replaced by a later touch
			s.mu.Unlock()
			return
		}
		delete(s.timers, path)
		s.mu.Unlock()

		select {
		case s.ready <- path:
		case <-s.done:
		}
	})
	s.timers[path] = t
}

func (s *settler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.done)
	for _, t := range s.timers {
		t.Stop()
	}
}
