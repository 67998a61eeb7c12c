//go:build nocgo
// +build nocgo

package playback

import (
	"io"
	"time"

	"github.com/dgnsrekt/easyaudiostream/internal/segment"
)

// otoAvailable reports whether this build links oto.
const otoAvailable = false

// OtoDevice stub for builds without cgo
type OtoDevice struct {
	format segment.Format
}

// NewOtoDevice returns a device that always fails to start.
func NewOtoDevice(format segment.Format) *OtoDevice {
	return &OtoDevice{format: format}
}

func (d *OtoDevice) Name() string { return BackendOto }

func (d *OtoDevice) Format() segment.Format { return d.format }

func (d *OtoDevice) Latency() time.Duration { return 0 }

func (d *OtoDevice) Start(io.Reader) error {
	return wrapErr(BackendOto, "init", ErrBackendUnavailable)
}

func (d *OtoDevice) Close() error { return nil }

func tryOto(segment.Format) error {
	return ErrBackendUnavailable
}
