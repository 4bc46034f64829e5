// Package logging builds the zerolog logger used by the sweep. Every message
// goes to a persistent monthly log file; a subset is echoed to the console
// depending on the resolved command-line options.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Options are the resolved console/level settings from the CLI.
type Options struct {
	// Debug lowers the level floor to debug and enables debug echo.
	Debug bool
	// Foreground enables console echo at all. Without it every message goes
	// only to the persistent log.
	Foreground bool
	// Quiet raises the level floor to error and suppresses info echo.
	Quiet bool
}

// Level returns the persistent-log level floor implied by the options.
func (o Options) Level() zerolog.Level {
	switch {
	case o.Quiet:
		return zerolog.ErrorLevel
	case o.Debug:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// FileName returns the monthly log file name for a base name: the current
// year-month prefix keeps one file per calendar month.
func FileName(dir, base string, now time.Time) string {
	return filepath.Join(dir, now.Format("200601")+"-"+base)
}

// Open creates the logger writing to the monthly file under dir. The returned
// closer owns the file handle for the lifetime of one run.
func Open(dir, base string, opts Options) (zerolog.Logger, io.Closer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log directory: %w", err)
	}
	name := FileName(dir, base, time.Now())
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}
	return New(f, os.Stdout, opts), f, nil
}

// New assembles the logger from explicit writers. Split out of Open so tests
// can capture both streams.
func New(file, console io.Writer, opts Options) zerolog.Logger {
	// Persistent log lines are "<timestamp> <message>".
	fw := zerolog.ConsoleWriter{
		Out:          file,
		NoColor:      true,
		TimeFormat:   "20060102-150405",
		PartsOrder:   []string{zerolog.TimestampFieldName, zerolog.MessageFieldName},
		PartsExclude: []string{zerolog.LevelFieldName},
	}
	var w zerolog.LevelWriter = zerolog.MultiLevelWriter(fw)
	if opts.Foreground {
		echo := zerolog.ConsoleWriter{
			Out:          console,
			NoColor:      true,
			PartsOrder:   []string{zerolog.MessageFieldName},
			PartsExclude: []string{zerolog.TimestampFieldName, zerolog.LevelFieldName},
		}
		w = zerolog.MultiLevelWriter(fw, &echoWriter{w: echo, opts: opts})
	}
	return zerolog.New(w).Level(opts.Level()).With().Timestamp().Logger()
}

// echoWriter applies the console echo policy: errors always echo, info
// echoes unless quiet, debug echoes only when debug is on.
type echoWriter struct {
	w    io.Writer
	opts Options
}

func (e *echoWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

func (e *echoWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	switch level {
	case zerolog.ErrorLevel, zerolog.FatalLevel:
		return e.w.Write(p)
	case zerolog.InfoLevel:
		if !e.opts.Quiet {
			return e.w.Write(p)
		}
	case zerolog.DebugLevel:
		if e.opts.Debug {
			return e.w.Write(p)
		}
	}
	return len(p), nil
}
