// Package config loads the nodesync settings document and resolves it into
// immutable, fully-defaulted values. Defaulting happens exactly once, at load
// time, so the sweep never mutates shared state while it runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultLogFile is the fallback base name when log_file is missing or empty.
const DefaultLogFile = "nodesync.log"

// ErrEmptyDocument reports a settings file that parses to nothing at all.
var ErrEmptyDocument = errors.New("settings document is empty")

// Node is a resolved remote host definition.
type Node struct {
	ID      string
	Address string
	Port    int
	User    string
	// Folders holds the resolved folder selection in document order. It is
	// meaningless when BadSelector is set.
	Folders []string
	// BadSelector marks a folders value that is neither "all", null, nor a
	// sequence. The folder phase is skipped for such a node; the service
	// phase still runs.
	BadSelector bool
}

// Folder is a resolved directory synchronization unit, shared read-only
// across every node that selects it.
type Folder struct {
	ID   string
	Path string
	Dest string
	// RsyncOptions is the rsync-options string already tokenized into
	// argument-vector form.
	RsyncOptions []string
}

// Service is a resolved remote service definition.
type Service struct {
	ID     string
	Name   string
	Method string
	Sudo   bool
}

// Config is the resolved settings document.
type Config struct {
	LogFile        string
	HistoryFile    string
	SleepFolders   time.Duration
	SleepServices  time.Duration
	EnableServices bool
	Nodes          []Node
	Folders        []Folder
	Services       []Service
}

type rawNode struct {
	Address string    `yaml:"address"`
	SSHPort int       `yaml:"ssh-port"`
	User    string    `yaml:"user"`
	Folders yaml.Node `yaml:"folders"`
}

type rawFolder struct {
	Path         string  `yaml:"path"`
	Dest         string  `yaml:"dest"`
	RsyncOptions *string `yaml:"rsync-options"`
}

type rawService struct {
	Name   string `yaml:"name"`
	Method string `yaml:"method"`
	Sudo   *bool  `yaml:"sudo"`
}

type rawConfig struct {
	LogFile        string    `yaml:"log_file"`
	HistoryFile    string    `yaml:"history_file"`
	SleepFolders   yaml.Node `yaml:"sleep-time-folders"`
	SleepServices  yaml.Node `yaml:"sleep-time-services"`
	EnableServices bool      `yaml:"enable-services"`
	Nodes          yaml.Node `yaml:"nodes"`
	Folders        yaml.Node `yaml:"folders"`
	Services       yaml.Node `yaml:"services"`
}

// Load reads the YAML settings document from path and resolves it. A missing
// file or an empty/null document is a fatal condition for the caller; an
// absent nodes mapping is not, it just yields an empty node list.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}
	return Parse(content)
}

// Parse resolves an in-memory settings document.
func Parse(content []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 || isNull(doc.Content[0]) {
		return nil, ErrEmptyDocument
	}

	var raw rawConfig
	if err := doc.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return resolve(&raw)
}

func resolve(raw *rawConfig) (*Config, error) {
	cfg := &Config{
		LogFile:        raw.LogFile,
		HistoryFile:    raw.HistoryFile,
		EnableServices: raw.EnableServices,
	}
	if cfg.LogFile == "" {
		cfg.LogFile = DefaultLogFile
	}

	var err error
	if cfg.SleepFolders, err = seconds(&raw.SleepFolders, 1); err != nil {
		return nil, fmt.Errorf("sleep-time-folders: %w", err)
	}
	if cfg.SleepServices, err = seconds(&raw.SleepServices, 1); err != nil {
		return nil, fmt.Errorf("sleep-time-services: %w", err)
	}

	folderIDs, rawFolders, err := orderedEntries[rawFolder](&raw.Folders)
	if err != nil {
		return nil, fmt.Errorf("folders: %w", err)
	}
	for i, f := range rawFolders {
		cfg.Folders = append(cfg.Folders, resolveFolder(folderIDs[i], f))
	}

	nodeIDs, rawNodes, err := orderedEntries[rawNode](&raw.Nodes)
	if err != nil {
		return nil, fmt.Errorf("nodes: %w", err)
	}
	invoker := currentUser()
	for i, n := range rawNodes {
		node, err := resolveNode(nodeIDs[i], n, invoker, folderIDs)
		if err != nil {
			return nil, err
		}
		cfg.Nodes = append(cfg.Nodes, node)
	}

	serviceIDs, rawServices, err := orderedEntries[rawService](&raw.Services)
	if err != nil {
		return nil, fmt.Errorf("services: %w", err)
	}
	for i, s := range rawServices {
		cfg.Services = append(cfg.Services, resolveService(serviceIDs[i], s))
	}

	return cfg, nil
}

func resolveNode(id string, raw rawNode, invoker string, allFolders []string) (Node, error) {
	node := Node{
		ID:      id,
		Address: raw.Address,
		Port:    raw.SSHPort,
		User:    raw.User,
	}
	if node.Port == 0 {
		node.Port = 22
	}
	if node.User == "" {
		node.User = invoker
	}

	sel := &raw.Folders
	switch {
	case sel.Kind == 0 || isNull(sel):
		node.Folders = allFolders
	case sel.Kind == yaml.ScalarNode && sel.Value == "all":
		node.Folders = allFolders
	case sel.Kind == yaml.SequenceNode:
		if err := sel.Decode(&node.Folders); err != nil {
			return Node{}, fmt.Errorf("node %s: folders: %w", id, err)
		}
	default:
		node.BadSelector = true
	}
	return node, nil
}

func resolveFolder(id string, raw rawFolder) Folder {
	folder := Folder{ID: id, Path: raw.Path, Dest: raw.Dest}
	if folder.Dest == "" {
		folder.Dest = folder.Path
	}
	if raw.RsyncOptions != nil {
		folder.RsyncOptions = strings.Fields(*raw.RsyncOptions)
	}
	return folder
}

func resolveService(id string, raw rawService) Service {
	svc := Service{ID: id, Name: raw.Name, Method: raw.Method}
	if raw.Sudo != nil {
		svc.Sudo = *raw.Sudo
	}
	return svc
}

// orderedEntries decodes a YAML mapping into parallel id/value slices,
// preserving document order. A plain map would lose the ordering the sweep
// depends on. Absent and null mappings yield empty slices.
func orderedEntries[T any](n *yaml.Node) ([]string, []T, error) {
	if n.Kind == 0 || isNull(n) {
		return nil, nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("expected a mapping, got %s", n.Tag)
	}
	var ids []string
	var values []T
	for i := 0; i+1 < len(n.Content); i += 2 {
		var id string
		if err := n.Content[i].Decode(&id); err != nil {
			return nil, nil, err
		}
		var v T
		if err := n.Content[i+1].Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", id, err)
		}
		ids = append(ids, id)
		values = append(values, v)
	}
	return ids, values, nil
}

// seconds interprets a sleep setting. Absent, null and empty values fall back
// to the default, matching the settings schema.
func seconds(n *yaml.Node, def int) (time.Duration, error) {
	if n.Kind == 0 || isNull(n) || (n.Kind == yaml.ScalarNode && n.Value == "") {
		return time.Duration(def) * time.Second, nil
	}
	var v int
	if err := n.Decode(&v); err != nil {
		return 0, err
	}
	return time.Duration(v) * time.Second, nil
}

func isNull(n *yaml.Node) bool {
	return n == nil || n.Tag == "!!null"
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}
