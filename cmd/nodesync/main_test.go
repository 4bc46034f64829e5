package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/3cpo-dev/nodesync/internal/config"
)

func TestRootFlagsRegistered(t *testing.T) {
	root := newRootCmd()
	for flag, shorthand := range map[string]string{
		"debug":      "d",
		"foreground": "f",
		"quiet":      "q",
		"config":     "c",
	} {
		f := root.Flags().Lookup(flag)
		if f == nil {
			t.Fatalf("flag --%s not registered", flag)
		}
		if f.Shorthand != shorthand {
			t.Errorf("flag --%s: shorthand %q, want %q", flag, f.Shorthand, shorthand)
		}
	}
}

func TestHelpExitsCleanly(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--help"})
	if err := root.Execute(); err != nil {
		t.Fatalf("help should not error: %v", err)
	}
	if out.Len() == 0 {
		t.Error("expected usage text")
	}
}

func TestUnknownFlagPrintsUsageAndFails(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--definitely-not-a-flag"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected an error for an unknown flag")
	}
	if !bytes.Contains(out.Bytes(), []byte("Usage:")) {
		t.Errorf("expected usage text on malformed options, got %q", out.String())
	}
}

func TestMissingSettingsFileIsFatal(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml")})
	if err := root.Execute(); err == nil {
		t.Fatal("expected an error for a missing settings file")
	}
}

func TestEmptySettingsDocumentIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("# nothing here\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	root := newRootCmd()
	root.SetArgs([]string{"-c", path})
	err := root.Execute()
	if !errors.Is(err, config.ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}
