package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFileName(t *testing.T) {
	now := time.Date(2026, time.August, 24, 10, 0, 0, 0, time.UTC)
	got := FileName("/var/log/nodesync", "sync.log", now)
	want := filepath.Join("/var/log/nodesync", "202608-sync.log")
	if got != want {
		t.Errorf("FileName: got %q, want %q", got, want)
	}
}

func TestPersistentLogLineFormat(t *testing.T) {
	var file, console bytes.Buffer
	log := New(&file, &console, Options{})

	log.Info().Msg("Start execution")

	line := strings.TrimSpace(file.String())
	if !strings.HasSuffix(line, " Start execution") {
		t.Fatalf("expected '<timestamp> <message>' line, got %q", line)
	}
	stamp := strings.TrimSuffix(line, " Start execution")
	if _, err := time.ParseInLocation("20060102-150405", stamp, time.Local); err != nil {
		t.Errorf("timestamp %q does not match layout: %v", stamp, err)
	}
	if console.Len() != 0 {
		t.Errorf("expected no console echo without foreground, got %q", console.String())
	}
}

func TestLevelFloor(t *testing.T) {
	var file, console bytes.Buffer

	log := New(&file, &console, Options{})
	log.Debug().Msg("hidden")
	if strings.Contains(file.String(), "hidden") {
		t.Error("debug message recorded without the debug option")
	}

	file.Reset()
	log = New(&file, &console, Options{Debug: true})
	log.Debug().Msg("visible")
	if !strings.Contains(file.String(), "visible") {
		t.Error("debug message not recorded with the debug option")
	}

	file.Reset()
	log = New(&file, &console, Options{Quiet: true})
	log.Info().Msg("muted")
	log.Error().Msg("kept")
	if strings.Contains(file.String(), "muted") {
		t.Error("info message recorded in quiet mode")
	}
	if !strings.Contains(file.String(), "kept") {
		t.Error("error message missing in quiet mode")
	}
}

func TestEchoPolicy(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		emit func(zerolog.Logger)
		want bool
	}{
		{"error echoes in foreground", Options{Foreground: true}, func(l zerolog.Logger) { l.Error().Msg("m") }, true},
		{"error echoes even when quiet", Options{Foreground: true, Quiet: true}, func(l zerolog.Logger) { l.Error().Msg("m") }, true},
		{"info echoes in foreground", Options{Foreground: true}, func(l zerolog.Logger) { l.Info().Msg("m") }, true},
		{"info suppressed when quiet", Options{Foreground: true, Quiet: true}, func(l zerolog.Logger) { l.Info().Msg("m") }, false},
		{"debug silent by default", Options{Foreground: true}, func(l zerolog.Logger) { l.Debug().Msg("m") }, false},
		{"debug echoes with debug", Options{Foreground: true, Debug: true}, func(l zerolog.Logger) { l.Debug().Msg("m") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var file, console bytes.Buffer
			log := New(&file, &console, tt.opts)
			tt.emit(log)
			if got := console.Len() > 0; got != tt.want {
				t.Errorf("echo: got %v, want %v (console %q)", got, tt.want, console.String())
			}
		})
	}
}

func TestOpenAppendsToMonthlyFile(t *testing.T) {
	dir := t.TempDir()

	log, closer, err := Open(dir, "sync.log", Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	log.Info().Msg("first run")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	log, closer, err = Open(dir, "sync.log", Options{})
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	log.Info().Msg("second run")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	name := FileName(dir, "sync.log", time.Now())
	content, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("reading %s: %v", name, err)
	}
	if !strings.Contains(string(content), "first run") || !strings.Contains(string(content), "second run") {
		t.Errorf("expected both runs appended to the monthly file, got %q", content)
	}
}
