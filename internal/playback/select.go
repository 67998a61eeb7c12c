package playback

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// choppyWarning is logged when only the command fallback is left.
const choppyWarning = "You do not have PortAudio or ffmpeg installed. Playback may have choppy output. " +
	"We recommend installing PortAudio or ffmpeg for best playback performance."

// Select builds the manager for backend after inspecting the system.
func Select(backend string, opts Options) (Manager, error) {
	opts = opts.withDefaults()
	return SelectWith(backend, opts, DetectCapabilities(opts.FFplayPath, "", opts.Players))
}

// SelectWith builds the manager for backend using caps instead of inspecting the system.
// "auto" prefers PortAudio, then oto, then ffplay, then the command
// fallback; in CI or with mock audio it picks the null device.
func SelectWith(backend string, opts Options, caps Capabilities) (Manager, error) {
	opts = opts.withDefaults()
	name := strings.ToLower(strings.TrimSpace(backend))
	if name == "" {
		name = BackendAuto
	}

	switch name {
	case BackendAuto:
		return selectAuto(opts, caps)
	case BackendNull:
		return NewStreamManager(NewNullDevice(opts.Format, nil), opts), nil
	case BackendOto:
		if !caps.Oto {
			return nil, fmt.Errorf("%w: %s (built with nocgo)", ErrBackendUnavailable, name)
		}
		return NewStreamManager(NewOtoDevice(opts.Format), opts), nil
	case BackendPortAudio:
		if !caps.PortAudio {
			return nil, fmt.Errorf("%w: %s (rebuild with -tags portaudio)", ErrBackendUnavailable, name)
		}
		return newPortAudio(opts)
	case BackendFFplay:
		if !caps.FFplay {
			return nil, fmt.Errorf("%w: %s not found at %q", ErrBackendUnavailable, name, opts.FFplayPath)
		}
		return NewFFplayManager(nil, opts), nil
	case BackendCommand:
		play, err := CommandPlayer(opts.Players, opts.TempDir)
		if err != nil {
			return nil, err
		}
		return NewCommandManager(play), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

func selectAuto(opts Options, caps Capabilities) (Manager, error) {
	if caps.CI || caps.MockAudio {
		log.Debug("Using null audio backend", "ci", caps.CI, "mock", caps.MockAudio)
		return NewStreamManager(NewNullDevice(opts.Format, nil), opts), nil
	}

	if caps.PortAudio {
		m, err := newPortAudio(opts)
		if err == nil {
			return m, nil
		}
		log.Debug("PortAudio unusable", "error", err)
	}

	if caps.Oto {
		err := tryOto(opts.Format)
		if err == nil {
			return NewStreamManager(NewOtoDevice(opts.Format), opts), nil
		}
		log.Debug("oto unusable", "error", err)
	}

	if caps.FFplay {
		return NewFFplayManager(nil, opts), nil
	}

	if len(caps.Players) > 0 {
		play, err := CommandPlayer(caps.Players, opts.TempDir)
		if err == nil {
			log.Warn(choppyWarning)
			return NewCommandManager(play), nil
		}
	}

	return nil, ErrNoBackend
}
