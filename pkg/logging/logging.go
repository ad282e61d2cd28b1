// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	mu      sync.Mutex
	logFile *os.File
)

// Until ConfigureGlobalLogging runs only errors reach stderr.
func init() {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// ConfigureGlobalLogging installs the global logger.
//
// format "json" writes raw JSON lines, anything else the console writer.
// A non-empty file receives the log instead of stderr; its directory is
// created and the file is appended to. Debug and trace levels add the
// caller. Messages of the standard library logger are forwarded at debug.
func ConfigureGlobalLogging(levelStr, format, file string) error {
	level, err := parseLevel(levelStr)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	var out io.Writer = os.Stderr
	if file != "" {
		f, err := openLogFile(file)
		if err != nil {
			return err
		}
		if logFile != nil {
			_ = logFile.Close()
		}
		logFile, out = f, f
	}
	if !strings.EqualFold(format, "json") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: file != ""}
	}

	lc := zerolog.New(out).Level(level).With().Timestamp()
	if level <= zerolog.DebugLevel {
		lc = lc.Caller()
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = lc.Logger()
	zerolog.DefaultContextLogger = &log.Logger

	stdlog.SetFlags(0)
	stdlog.SetOutput(stdlogBridge{})
	return nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// parseLevel treats an empty level as info.
func parseLevel(s string) (zerolog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

type stdlogBridge struct{}

func (stdlogBridge) Write(p []byte) (int, error) {
	log.Debug().Str("source", "stdlog").Msg(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// Component derives a component logger from the global logger.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// Close releases the log file opened by ConfigureGlobalLogging, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}
