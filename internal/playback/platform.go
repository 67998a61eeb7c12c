package playback

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Platform represents the current operating system platform
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformDarwin  Platform = "darwin"
	PlatformWindows Platform = "windows"
	PlatformUnknown Platform = "unknown"
)

// AudioSubsystem represents the native audio stack oto will talk to
type AudioSubsystem string

const (
	AudioSubsystemALSA       AudioSubsystem = "alsa"
	AudioSubsystemPulseAudio AudioSubsystem = "pulseaudio"
	AudioSubsystemCoreAudio  AudioSubsystem = "coreaudio"
	AudioSubsystemWASAPI     AudioSubsystem = "wasapi"
	AudioSubsystemNone       AudioSubsystem = "none"
)

// PlatformInfo contains information about the current platform
type PlatformInfo struct {
	OS             Platform
	AudioSubsystem AudioSubsystem
	IsCI           bool
}

// DetectPlatform detects the current platform and audio subsystem.
func DetectPlatform() *PlatformInfo {
	info := &PlatformInfo{
		OS:   getPlatform(),
		IsCI: IsCI(),
	}

	switch info.OS {
	case PlatformLinux:
		info.AudioSubsystem = detectLinuxAudio()
	case PlatformDarwin:
		info.AudioSubsystem = AudioSubsystemCoreAudio
	case PlatformWindows:
		info.AudioSubsystem = AudioSubsystemWASAPI
	default:
		info.AudioSubsystem = AudioSubsystemNone
	}

	log.Debug("Platform detected",
		"os", info.OS,
		"audio", info.AudioSubsystem,
		"is_ci", info.IsCI)

	return info
}

func getPlatform() Platform {
	switch runtime.GOOS {
	case "linux":
		return PlatformLinux
	case "darwin":
		return PlatformDarwin
	case "windows":
		return PlatformWindows
	default:
		return PlatformUnknown
	}
}

func detectLinuxAudio() AudioSubsystem {
	if commandAvailable("pactl") {
		if output, err := exec.Command("pactl", "info").Output(); err == nil &&
			strings.Contains(string(output), "Server Name") {
			return AudioSubsystemPulseAudio
		}
	}
	if _, err := os.Stat("/proc/asound"); err == nil {
		return AudioSubsystemALSA
	}
	if commandAvailable("aplay") {
		return AudioSubsystemALSA
	}
	return AudioSubsystemNone
}

// BufferSize returns the oto buffer size that works well on the platform.
func (p *PlatformInfo) BufferSize() time.Duration {
	switch p.OS {
	case PlatformDarwin:
		return 100 * time.Millisecond
	case PlatformWindows:
		return 80 * time.Millisecond
	case PlatformLinux:
		if p.AudioSubsystem == AudioSubsystemPulseAudio {
			return 60 * time.Millisecond
		}
		return 50 * time.Millisecond
	default:
		return 50 * time.Millisecond
	}
}

// InitRetries returns how often and how far apart device initialisation is
// attempted. CoreAudio and a starting PulseAudio daemon can fail the first
// time.
func (p *PlatformInfo) InitRetries() (int, time.Duration) {
	switch {
	case p.OS == PlatformDarwin:
		return 3, 200 * time.Millisecond
	case p.OS == PlatformWindows:
		return 2, 150 * time.Millisecond
	case p.AudioSubsystem == AudioSubsystemPulseAudio:
		return 2, 100 * time.Millisecond
	default:
		return 1, 100 * time.Millisecond
	}
}

// ReadyTimeout is how long to wait for the device to report ready.
func (p *PlatformInfo) ReadyTimeout() time.Duration {
	if p.OS == PlatformDarwin {
		return 10 * time.Second
	}
	return 5 * time.Second
}

func (p *PlatformInfo) String() string {
	return fmt.Sprintf("Platform{OS: %s, Audio: %s, IsCI: %v}", p.OS, p.AudioSubsystem, p.IsCI)
}

func commandAvailable(command string) bool {
	_, err := exec.LookPath(command)
	return err == nil
}
