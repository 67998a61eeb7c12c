package segment

import (
	"fmt"
	"io"
	"os"

	"github.com/gopxl/beep/v2/wav"
)

// WriteWAV encodes the segment as a PCM WAV file.
func (s *Segment) WriteWAV(w io.WriteSeeker) error {
	if err := wav.Encode(w, newPCMStreamer(s.data, s.format), s.format.beepFormat()); err != nil {
		return fmt.Errorf("failed to encode wav: %w", err)
	}
	return nil
}

// WriteTempWAV writes the segment to a new temporary WAV file and returns its
// path. The caller removes the file.
func (s *Segment) WriteTempWAV(dir string) (string, error) {
	f, err := os.CreateTemp(dir, "easyaudiostream-*.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if err := s.WriteWAV(f); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return f.Name(), nil
}
