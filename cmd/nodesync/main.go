package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/3cpo-dev/nodesync/internal/config"
	"github.com/3cpo-dev/nodesync/internal/core"
	"github.com/3cpo-dev/nodesync/internal/executor"
	"github.com/3cpo-dev/nodesync/internal/history"
	"github.com/3cpo-dev/nodesync/internal/logging"
)

var (
	version   = "1.0.0"
	commit    = ""
	buildDate = ""
)

// Create the root command
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodesync",
		Short: "Sync folders to a set of nodes with rsync over ssh",
		Long:  "Nodesync mirrors configured folders to every reachable node and optionally restarts systemd services on them, logging the whole sweep.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().BoolP("debug", "d", false, "log verbose information")
	cmd.Flags().BoolP("foreground", "f", false, "log to logfile and stdout")
	cmd.Flags().BoolP("quiet", "q", false, "log only errors")
	cmd.Flags().StringP("config", "c", "", "config file path, relative to the executable location")

	// Malformed options still print the usage text.
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		c.Println(err)
		_ = c.Usage()
		return err
	})

	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Create the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nodesync %s (%s) %s\n", version, commit, buildDate)
		},
	}
}

func runSweep(cmd *cobra.Command) error {
	opts := logging.Options{}
	opts.Debug, _ = cmd.Flags().GetBool("debug")
	opts.Foreground, _ = cmd.Flags().GetBool("foreground")
	opts.Quiet, _ = cmd.Flags().GetBool("quiet")
	cfgPath, _ := cmd.Flags().GetString("config")

	exeDir, err := executableDir()
	if err != nil {
		return err
	}
	switch {
	case cfgPath == "":
		cfgPath = filepath.Join(exeDir, "..", "conf", "settings.yaml")
	case !filepath.IsAbs(cfgPath):
		cfgPath = filepath.Join(exeDir, cfgPath)
	}

	// A broken settings file aborts before the logging subsystem exists.
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}

	logger, logFile, err := logging.Open(filepath.Join(exeDir, "..", "log"), cfg.LogFile, opts)
	if err != nil {
		return err
	}
	defer logFile.Close()

	logger.Info().Msg("--------")
	logger.Debug().Msg("Settings file loaded")

	logger.Debug().Msg("Looking for binaries path")
	tools, err := executor.Lookup()
	if err != nil {
		logger.Error().Msgf("%v. Abort execution", err)
		return err
	}

	sweep := core.New(cfg, tools, executor.Local{}, logger)
	if cfg.HistoryFile != "" {
		path := cfg.HistoryFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(exeDir, path)
		}
		store, err := history.Open(path)
		if err != nil {
			// History is best effort; the sweep proceeds without it.
			logger.Error().Msgf("history store: %v", err)
		} else {
			defer store.Close()
			sweep.SetRecorder(store)
		}
	}

	logger.Info().Msg("Start execution")
	sweep.Run(cmd.Context())
	logger.Info().Msg("End execution")
	return nil
}

func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}
	return filepath.Dir(exe), nil
}

// Main entry point
func main() {
	root := newRootCmd()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	root.SetContext(ctx)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
