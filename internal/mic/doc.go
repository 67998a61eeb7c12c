// Package mic records raw PCM from an input device. Capture needs
// PortAudio and is only compiled with the portaudio build tag; other builds
// return ErrUnavailable.
package mic
