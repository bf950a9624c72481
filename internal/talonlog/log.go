// Package talonlog provides Talon's structured logger: a zerolog-backed
// console sink plus a rotating JSON-lines file sink under the state
// directory, mirroring every event to both.
package talonlog

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const maxLogBytes = 10 * 1024 * 1024

// Logger is the global child-logger-capable logger instance.
var Logger zerolog.Logger

// Level mirrors the teacher's string-enum log level type.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config configures the global logger.
type Config struct {
	Level Level
	// Path is the JSON-lines log file. Defaults to
	// ~/.local/state/talon/talon.log when empty.
	Path string
	// Console is the mirrored human-readable sink, defaulting to stderr.
	Console io.Writer
}

var rotator *rotatingWriter

// Init wires the global Logger to write JSON lines to the rotating file
// sink and a console-formatted copy to Console.
func Init(cfg Config) error {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	case InfoLevel, "":
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	rotator = &rotatingWriter{path: path}

	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}
	consoleWriter := zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}

	zerolog.TimestampFieldName = "timestamp"

	Logger = zerolog.New(zerolog.MultiLevelWriter(rotator, consoleWriter)).With().Timestamp().Logger()
	return nil
}

// DefaultLogPath returns ~/.local/state/talon/talon.log, tilde-expanded.
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "talon.log"
	}
	return filepath.Join(home, ".local", "state", "talon", "talon.log")
}

// WithComponent returns a child logger tagging every event with a
// component name, matching the teacher's pkg/log helper family.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithState tags events with the watchdog's current state label.
func WithState(state string) zerolog.Logger {
	return Logger.With().Str("state", state).Logger()
}

// WithIncident tags events with an escalation-tier incident id.
func WithIncident(incidentID string) zerolog.Logger {
	return Logger.With().Str("incident_id", incidentID).Logger()
}

func Info(msg string)  { Logger.Info().Msg(msg) }
func Debug(msg string) { Logger.Debug().Msg(msg) }
func Warn(msg string)  { Logger.Warn().Msg(msg) }
func Error(msg string) { Logger.Error().Msg(msg) }

func Errorf(msg string, err error) {
	Logger.Error().Err(err).Msg(msg)
}

// rotatingWriter serializes writes to path through a mutex and rotates the
// file to <name>.1 once it crosses maxLogBytes, removing any prior .1.
type rotatingWriter struct {
	mu   sync.Mutex
	path string
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.rotateIfNeeded(); err != nil {
		os.Stderr.WriteString("talon: failed to rotate log: " + err.Error() + "\n")
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		os.Stderr.WriteString("talon: failed to open log file: " + err.Error() + "\n")
		return len(p), nil
	}
	defer f.Close()

	if _, err := f.Write(p); err != nil {
		os.Stderr.WriteString("talon: failed to write log: " + err.Error() + "\n")
	}
	return len(p), nil
}

func (w *rotatingWriter) rotateIfNeeded() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil
	}
	if info.Size() < maxLogBytes {
		return nil
	}

	rotated := w.path + ".1"
	if _, err := os.Stat(rotated); err == nil {
		if err := os.Remove(rotated); err != nil {
			return err
		}
	}
	return os.Rename(w.path, rotated)
}

// TailFile returns the last maxLines lines of path, or "" if it can't be
// read. Used to embed log context in the diagnostic prompt.
func TailFile(path string, maxLines int) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return tailLines(string(raw), maxLines)
}

// TailTalonLog returns the last maxLines lines of the active talon.log.
func TailTalonLog(maxLines int) string {
	path := DefaultLogPath()
	if rotator != nil {
		path = rotator.path
	}
	return TailFile(path, maxLines)
}

func tailLines(content string, maxLines int) string {
	content = strings.TrimRight(content, "\n")
	if content == "" {
		return ""
	}
	lines := strings.Split(content, "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.Join(lines, "\n")
}
