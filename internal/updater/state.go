package updater

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ChannelStable = "stable"
	ChannelBeta   = "beta"
)

const stateFile = "update-state.yml"

// ParseChannel returns the canonical channel name. Empty selects stable.
func ParseChannel(channel string) (string, error) {
	switch c := strings.ToLower(strings.TrimSpace(channel)); c {
	case "", ChannelStable:
		return ChannelStable, nil
	case ChannelBeta:
		return ChannelBeta, nil
	default:
		return "", fmt.Errorf("unknown channel %q", channel)
	}
}

// State records what the last update or rollback installed.
type State struct {
	Version         string    `yaml:"version,omitempty"`
	PreviousVersion string    `yaml:"previous_version,omitempty"`
	Channel         string    `yaml:"channel,omitempty"`
	BackupPath      string    `yaml:"backup_path,omitempty"`
	UpdatedAt       time.Time `yaml:"updated_at,omitempty"`
}

// StateStore persists State as YAML inside a directory.
type StateStore struct {
	dir  string
	path string
	mu   sync.Mutex
}

// DefaultStateDir returns ~/.cipherkit.
func DefaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".cipherkit"), nil
}

// NewStateStore creates dir if needed. An empty dir selects DefaultStateDir.
func NewStateStore(dir string) (*StateStore, error) {
	if strings.TrimSpace(dir) == "" {
		var err error
		if dir, err = DefaultStateDir(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir %s: %w", dir, err)
	}
	return &StateStore{dir: dir, path: filepath.Join(dir, stateFile)}, nil
}

func (s *StateStore) Dir() string { return s.dir }

func (s *StateStore) Path() string { return s.path }

// Load returns the zero State when nothing has been saved yet.
func (s *StateStore) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("read update state: %w", err)
	}
	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("parse update state: %w", err)
	}
	return st, nil
}

// Save replaces the state file atomically.
func (s *StateStore) Save(st State) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode update state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "update-state-*.yml")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write update state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("persist update state: %w", err)
	}
	return nil
}
