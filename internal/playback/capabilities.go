package playback

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"
)

// MockAudioEnv forces the null backend when set to "true".
const MockAudioEnv = "EASYAUDIOSTREAM_MOCK_AUDIO"

// Capabilities describes what this process can use for output.
type Capabilities struct {
	Oto        bool
	PortAudio  bool
	FFplay     bool
	FFplayPath string
	FFmpeg     bool
	FFmpegPath string
	Players    []string
	CI         bool
	MockAudio  bool
	Platform   *PlatformInfo
}

// DetectCapabilities inspects the build, PATH and environment.
func DetectCapabilities(ffplayPath, ffmpegPath string, players []string) Capabilities {
	if ffplayPath == "" {
		ffplayPath = "ffplay"
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if len(players) == 0 {
		players = DefaultPlayers()
	}

	caps := Capabilities{
		Oto:        otoAvailable,
		PortAudio:  portAudioAvailable,
		FFplayPath: ffplayPath,
		FFmpegPath: ffmpegPath,
		CI:         IsCI(),
		MockAudio:  mockAudioRequested(),
		Platform:   DetectPlatform(),
	}
	caps.FFplay = BinaryWorks(ffplayPath)
	caps.FFmpeg = BinaryWorks(ffmpegPath)
	for _, p := range players {
		if path, err := exec.LookPath(p); err == nil {
			caps.Players = append(caps.Players, path)
		}
	}

	log.Debug("Detected audio capabilities",
		"oto", caps.Oto,
		"portaudio", caps.PortAudio,
		"ffplay", caps.FFplay,
		"ffmpeg", caps.FFmpeg,
		"players", len(caps.Players),
		"ci", caps.CI)
	return caps
}

// BinaryWorks reports whether `path -version` exits successfully.
func BinaryWorks(path string) bool {
	if _, err := exec.LookPath(path); err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, path, "-version").Run() == nil
}

// IsCI detects if we're running in a CI environment
func IsCI() bool {
	ciVars := []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"TRAVIS",
		"CIRCLECI",
		"BUILDKITE",
		"DRONE",
		"TEAMCITY_VERSION",
	}

	for _, envVar := range ciVars {
		if val := os.Getenv(envVar); val != "" && val != "false" {
			log.Debug("CI environment detected", "variable", envVar, "value", val)
			return true
		}
	}
	return false
}

func mockAudioRequested() bool {
	return os.Getenv(MockAudioEnv) == "true" || os.Getenv("MOCK_AUDIO") == "true"
}
