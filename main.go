// Package main provides the easyaudiostream CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/easyaudiostream/internal/config"
	"github.com/dgnsrekt/easyaudiostream/pkg/audiostream"
	"github.com/joho/godotenv"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile        string
	defaultConfigPath string
	debug             bool
	logPath           string

	// flag overrides, applied only when set on the command line
	backendFlag string
	ffplayFlag  string
	ffmpegFlag  string
	noCache     bool

	// cfg is the effective configuration, resolved before every command.
	cfg config.Config

	rootCmd = &cobra.Command{
		Use:   "easyaudiostream",
		Short: "Play intermittent audio byte streams",
		Long: paragraph(
			fmt.Sprintf("\nPlay audio as it arrives, %s.", keyword("gaps and all")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInfo(cmd.OutOrStdout())
		},
	}
)

// loadConfig resolves cfg from defaults, the config file, the environment
// (including .env) and finally the command-line flags.
func loadConfig(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Could not load .env file", "error", err)
	}

	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	var err error
	cfg, err = config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = backendFlag
	}
	if flags.Changed("ffplay") {
		cfg.FFplay = ffplayFlag
	}
	if flags.Changed("ffmpeg") {
		cfg.FFmpeg = ffmpegFlag
	}
	if noCache {
		cfg.Cache.Enabled = false
	}

	if err := configureLog(cfg.LogLevel, debug, logPath); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Debug("Resolved configuration", "backend", cfg.Backend, "format", cfg.Format(), "config", viper.ConfigFileUsed())
	return nil
}

// newPlayer builds a Player from the resolved configuration.
func newPlayer() (*audiostream.Player, error) {
	return audiostream.New(cfg)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// drain waits for queued audio to play, logging the backend stats.
func drain(ctx context.Context, p *audiostream.Player) error {
	err := p.Wait(ctx)
	s := p.Stats()
	log.Debug("Playback finished",
		"backend", s.Backend,
		"segments", s.SegmentsPlayed,
		"bytes", s.BytesPlayed,
		"underruns", s.Underruns,
		"errors", s.Errors)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	pf.BoolVar(&debug, "debug", false, "log debug output")
	pf.StringVar(&logPath, "log-file", "", "also append logs to this file")
	pf.StringVarP(&backendFlag, "backend", "b", "", "output backend: auto, oto, portaudio, ffplay, command or null")
	pf.StringVar(&ffplayFlag, "ffplay", "", "ffplay binary")
	pf.StringVar(&ffmpegFlag, "ffmpeg", "", "ffmpeg binary used to decode unusual formats")
	pf.BoolVar(&noCache, "no-cache", false, "disable the decode cache")

	rootCmd.AddCommand(infoCmd, playCmd, streamCmd, watchCmd, micsCmd, echoCmd, demoCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, config.AppName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, config.AppName)}, dirs...)
	}

	if c := os.Getenv("EASYAUDIOSTREAM_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(config.AppName)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}
	defaultConfigPath = filepath.Join(dirs[0], config.AppName+".yml")
}
