// Package core implements the node sweep: for every configured node, probe
// reachability, mirror the selected folders, then restart/reload the
// configured services. Failures are contained: a failed probe skips the node,
// a failed folder or service skips only that item. The run itself always
// completes.
package core

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/3cpo-dev/nodesync/internal/config"
	"github.com/3cpo-dev/nodesync/internal/executor"
)

// Operation kinds recorded against the run history.
const (
	OpProbe   = "probe"
	OpSync    = "sync"
	OpService = "service"
)

// Operation is the outcome of one attempted remote operation.
type Operation struct {
	Node   string
	Kind   string
	Target string
	OK     bool
}

// Recorder persists operation outcomes. Recording is best effort; a recorder
// failure never alters the sweep.
type Recorder interface {
	Record(ctx context.Context, op Operation) error
}

// Sweep walks nodes, folders and services in configuration order.
type Sweep struct {
	cfg   *config.Config
	tools executor.Tools
	run   executor.Runner
	log   zerolog.Logger
	rec   Recorder
	sleep func(time.Duration)
}

// New builds a sweep over the resolved configuration.
func New(cfg *config.Config, tools executor.Tools, run executor.Runner, log zerolog.Logger) *Sweep {
	return &Sweep{cfg: cfg, tools: tools, run: run, log: log, sleep: time.Sleep}
}

// SetRecorder attaches an optional run-history recorder.
func (s *Sweep) SetRecorder(rec Recorder) { s.rec = rec }

// Run executes the full sweep. It never returns an error: individual
// failures surface only through the log, and a run with every node down is
// still a completed run.
func (s *Sweep) Run(ctx context.Context) {
	if len(s.cfg.Nodes) == 0 {
		s.log.Info().Msg("Config file has no nodes. Exit")
		return
	}

	s.log.Debug().Msgf("Loaded %d nodes", len(s.cfg.Nodes))
	s.log.Debug().Msgf("Loaded %d folders", len(s.cfg.Folders))
	if s.cfg.EnableServices {
		s.log.Debug().Msgf("Loaded %d services", len(s.cfg.Services))
	}

	for _, node := range s.cfg.Nodes {
		s.runNode(ctx, node)
	}
}

func (s *Sweep) runNode(ctx context.Context, node config.Node) {
	s.log.Info().Msgf("Connecting to %s:%d ...", node.Address, node.Port)
	_, err := s.run.CombinedOutput(ctx, s.tools.SSH, probeArgs(node)...)
	s.record(ctx, Operation{Node: node.ID, Kind: OpProbe, Target: node.Address, OK: err == nil})
	if err != nil {
		s.log.Error().Msgf("... Connection failed. Skipping node %s", node.ID)
		return
	}

	if node.BadSelector {
		// Only the folder phase is skipped for a bad selector; services
		// still run against the node.
		s.log.Error().Msgf("Wrong folders configuration. Skipping folders for node %s", node.ID)
	} else {
		s.syncFolders(ctx, node)
	}

	if s.cfg.EnableServices {
		s.runServices(ctx, node)
	}
}

func (s *Sweep) syncFolders(ctx context.Context, node config.Node) {
	selected := make(map[string]bool, len(node.Folders))
	for _, id := range node.Folders {
		selected[id] = true
	}

	for _, folder := range s.cfg.Folders {
		if !selected[folder.ID] {
			continue
		}
		s.log.Info().Msgf("Syncing %s folder ...", folder.ID)
		out, err := s.run.CombinedOutput(ctx, s.tools.Rsync, rsyncArgs(node, folder)...)
		s.record(ctx, Operation{Node: node.ID, Kind: OpSync, Target: folder.ID, OK: err == nil})
		if err != nil {
			s.log.Error().Msgf("rsync output:\n%s", out)
			s.log.Error().Msgf("Skipped folder %s", folder.ID)
		} else {
			s.log.Debug().Msgf("rsync output:\n%s", out)
			s.log.Info().Msgf("%s successfully synced", folder.ID)
		}
		// Pacing applies after every attempt, failed ones included.
		s.sleep(s.cfg.SleepFolders)
	}
}

func (s *Sweep) runServices(ctx context.Context, node config.Node) {
	for _, svc := range s.cfg.Services {
		s.log.Info().Msgf("Trying service %s %s ...", svc.ID, svc.Method)
		out, err := s.run.CombinedOutput(ctx, s.tools.SSH, serviceArgs(node, svc)...)
		s.record(ctx, Operation{Node: node.ID, Kind: OpService, Target: svc.ID, OK: err == nil})
		if err != nil {
			s.log.Debug().Msgf("command output:\n%s", out)
			s.log.Error().Msgf("... something went wrong. Please check on %s system", node.ID)
		} else {
			s.log.Debug().Msgf("command output:\n%s", out)
			s.log.Info().Msgf("%s successfully %sed", svc.ID, svc.Method)
		}
		s.sleep(s.cfg.SleepServices)
	}
}

func (s *Sweep) record(ctx context.Context, op Operation) {
	if s.rec == nil {
		return
	}
	if err := s.rec.Record(ctx, op); err != nil {
		s.log.Debug().Msgf("history: %v", err)
	}
}

// probeArgs builds the reachability check: a no-op remote command in batch
// mode, so an unauthenticated connection fails fast instead of prompting.
func probeArgs(node config.Node) []string {
	return []string{
		"-o", "BatchMode=yes",
		"-p", strconv.Itoa(node.Port),
		node.User + "@" + node.Address,
		"ls /dev/null > /dev/null",
	}
}

// rsyncArgs builds the archive transfer over ssh for one folder.
func rsyncArgs(node config.Node, folder config.Folder) []string {
	args := []string{
		"-a", "-v",
		"-e", fmt.Sprintf("ssh -o BatchMode=yes -l %s -p %d", node.User, node.Port),
	}
	args = append(args, folder.RsyncOptions...)
	return append(args, folder.Path, node.Address+":"+folder.Dest)
}

// serviceArgs builds the restart/reload command. The remote invocation chains
// the method with a short pause and a status check, so it runs on a forced
// pseudo-terminal.
func serviceArgs(node config.Node, svc config.Service) []string {
	prefix := ""
	if svc.Sudo {
		prefix = "sudo "
	}
	remote := fmt.Sprintf("%ssystemctl %s %s; sleep 2; %ssystemctl is-active %s",
		prefix, svc.Method, svc.Name, prefix, svc.Name)
	return []string{
		"-q", "-t",
		"-o", "BatchMode=yes",
		"-p", strconv.Itoa(node.Port),
		node.User + "@" + node.Address,
		remote,
	}
}
