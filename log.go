package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
)

var logFile *os.File

// setupLog points the default logger at stderr and returns a func that
// closes the log file opened by configureLog, if any.
func setupLog() (func() error, error) {
	log.SetDefault(log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "easyaudiostream",
	}))
	return func() error {
		if logFile == nil {
			return nil
		}
		return logFile.Close()
	}, nil
}

// configureLog applies the level and the optional log file once flags and
// config are known.
func configureLog(level string, debug bool, path string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if debug {
		lvl = log.DebugLevel
	}
	log.SetLevel(lvl)
	if lvl == log.DebugLevel {
		log.SetReportCaller(true)
	}

	if path == "" {
		return nil
	}
	path, err = homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("unable to expand log path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		return fmt.Errorf("unable to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return fmt.Errorf("unable to open log file: %w", err)
	}
	logFile = f
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}
