package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# output backend: auto, oto, portaudio, ffplay, command or null
backend: "auto"

# output format every segment is converted to
sample_rate: 24000
channels: 1
# bytes per sample: 1 (unsigned), 2 or 3
sample_width: 2

# pump tuning
chunk_size: "500ms"
warm_up: "100ms"
max_ahead: "1s"
idle_interval: "50ms"
# bound on queued audio in bytes, 0 is unbounded
queue_max_bytes: 0

# external binaries
ffplay: "ffplay"
ffmpeg: "ffmpeg"
players: ["ffplay", "afplay", "paplay", "aplay", "play"]
decode_timeout: "30s"

# microphone buffer size in frames
mic_frames_per_buffer: 1200

# decode cache
cache:
  enabled: true
  # defaults to the user cache directory
  # dir: "~/.cache/easyaudiostream"
  # disk budget in MB
  max_size: 512
  # memory budget in MB
  memory: 64
  ttl: "168h"

# debug, info, warn or error
log_level: "info"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the easyaudiostream config file",
	Long:    paragraph(fmt.Sprintf("\n%s the easyaudiostream config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("easyaudiostream config\neasyaudiostream config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		path, err := ensureConfigFile()
		if err != nil {
			return err
		}

		c, err := editor.Cmd("easyaudiostream", path)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", path)
		return nil
	},
}

func init() {
	// an invalid config must still be editable
	configCmd.PersistentPreRunE = func(*cobra.Command, []string) error { return nil }
}

// ensureConfigFile returns the config file path, writing the default config
// there first if it does not exist.
func ensureConfigFile() (string, error) {
	file := configFile
	if file == "" {
		file = viper.GetViper().ConfigFileUsed()
	}
	if file == "" {
		file = defaultConfigPath
	}
	if file == "" {
		return "", errors.New("could not determine config file location")
	}

	if ext := path.Ext(file); ext != ".yaml" && ext != ".yml" {
		return "", fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
			return "", fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(file)
		if err != nil {
			return "", fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return "", fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return "", fmt.Errorf("unable to stat config file: %w", err)
	}
	return file, nil
}
