//go:build !portaudio

package mic

// Available reports whether this build can capture audio.
const Available = false

func openSource(Options) (source, error) {
	return nil, ErrUnavailable
}

func listDevices() ([]Device, error) {
	return nil, ErrUnavailable
}
