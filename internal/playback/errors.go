package playback

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Play after Close.
	ErrClosed = errors.New("playback manager is closed")

	// ErrNoBackend is returned when no output backend can be used.
	ErrNoBackend = errors.New("no audio output backend available")

	// ErrUnknownBackend is returned for a backend name Select does not know.
	ErrUnknownBackend = errors.New("unknown audio backend")

	// ErrBackendUnavailable is returned when a named backend is not usable
	// on this system or in this build.
	ErrBackendUnavailable = errors.New("audio backend unavailable")
)

// Error describes a failure of an output device or subprocess.
type Error struct {
	Backend string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapErr(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Backend: backend, Op: op, Err: err}
}
