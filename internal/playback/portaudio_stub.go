//go:build !portaudio

package playback

// portAudioAvailable reports whether this build links PortAudio.
const portAudioAvailable = false

func newPortAudio(Options) (Manager, error) {
	return nil, wrapErr(BackendPortAudio, "open", ErrBackendUnavailable)
}
