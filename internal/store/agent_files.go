package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/soyeahso/agentplay/internal/domain"
	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
)

const agentFileExt = ".json"

// AgentFiles persists custom agent configs, one JSON file per agent.
// Files are read leniently (comments and trailing commas are accepted)
// and written as indented JSON.
type AgentFiles struct {
	dir string
}

// NewAgentFiles returns a store rooted at dir. The directory is created on
// first save.
func NewAgentFiles(dir string) *AgentFiles {
	return &AgentFiles{dir: dir}
}

// Dir returns the directory holding agent files.
func (a *AgentFiles) Dir() string { return a.dir }

// Path returns the file path for the named agent.
func (a *AgentFiles) Path(name string) string {
	return filepath.Join(a.dir, name+agentFileExt)
}

// Exists reports whether a file for name is present.
func (a *AgentFiles) Exists(name string) bool {
	_, err := os.Stat(a.Path(name))
	return err == nil
}

// Save writes cfg atomically, replacing any previous file for the same name.
func (a *AgentFiles) Save(cfg domain.AgentConfig) error {
	if err := domain.ValidateAgentName(cfg.Name); err != nil {
		return err
	}
	if err := os.MkdirAll(a.dir, 0o700); err != nil {
		return fmt.Errorf("creating agents directory: %w", err)
	}

	payload, err := json5.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding agent %s: %w", cfg.Name, err)
	}
	payload = append(payload, '\n')

	path := a.Path(cfg.Name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("writing agent %s: %w", cfg.Name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing agent %s: %w", cfg.Name, err)
	}
	return nil
}

// Load reads the config stored for name. The returned config is always
// named after its file. A missing file yields *domain.NotFoundError.
func (a *AgentFiles) Load(name string) (domain.AgentConfig, error) {
	if err := domain.ValidateAgentName(name); err != nil {
		return domain.AgentConfig{}, err
	}
	data, err := os.ReadFile(a.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.AgentConfig{}, &domain.NotFoundError{Name: name}
		}
		return domain.AgentConfig{}, fmt.Errorf("reading agent %s: %w", name, err)
	}

	var cfg domain.AgentConfig
	if err := json5.Unmarshal(data, &cfg); err != nil {
		return domain.AgentConfig{}, fmt.Errorf("parsing agent %s: %w", name, err)
	}
	// The file name is the agent's identity; a stale or hand-edited name
	// field must not detach the agent from the file that backs it.
	cfg.Name = name
	return cfg, nil
}

// Delete removes the file for name. A missing file yields
// *domain.NotFoundError.
func (a *AgentFiles) Delete(name string) error {
	if err := domain.ValidateAgentName(name); err != nil {
		return err
	}
	if err := os.Remove(a.Path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &domain.NotFoundError{Name: name}
		}
		return fmt.Errorf("deleting agent %s: %w", name, err)
	}
	return nil
}

// List returns the names of all stored agents, sorted. A missing directory
// is treated as empty.
func (a *AgentFiles) List() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing agents: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), agentFileExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), agentFileExt)
		if domain.ValidateAgentName(name) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
