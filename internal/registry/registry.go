// Package registry holds the named agent definitions a session can switch
// between: the built-in examples plus custom agents persisted as files.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/agentplay/internal/domain"
	"github.com/soyeahso/agentplay/internal/hooks"
	"github.com/soyeahso/agentplay/internal/logging"
	"github.com/soyeahso/agentplay/internal/store"
	"github.com/soyeahso/agentplay/internal/tools"
)

// Definition is a registered agent: its config plus the tool set built
// from it. Tool state such as counters lives as long as the definition.
type Definition struct {
	Config  domain.AgentConfig
	Tools   *tools.Set
	BuiltIn bool
}

// Registry maps agent names to definitions.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]*Definition
	order []string // built-ins first, then custom agents in registration order
	files *store.AgentFiles
	hooks *hooks.Manager
	log   *logging.Logger
}

// New creates an empty registry. files may be nil, in which case custom
// agents live only in memory.
func New(files *store.AgentFiles, hm *hooks.Manager, log *logging.Logger) *Registry {
	return &Registry{
		defs:  make(map[string]*Definition),
		files: files,
		hooks: hm,
		log:   log.Sub("registry"),
	}
}

// RegisterBuiltins adds the built-in example agents.
func (r *Registry) RegisterBuiltins() error {
	for _, cfg := range Builtins() {
		if _, err := r.add(cfg, true); err != nil {
			return fmt.Errorf("registering built-in %s: %w", cfg.Name, err)
		}
	}
	return nil
}

// Register adds cfg under its name without persisting it.
func (r *Registry) Register(cfg domain.AgentConfig) (*Definition, error) {
	return r.add(cfg, false)
}

// Create registers cfg and writes it to the agent file store. An agent
// whose file already exists counts as a duplicate even if it is not loaded.
func (r *Registry) Create(cfg domain.AgentConfig) (*Definition, error) {
	if r.files != nil && r.files.Exists(cfg.Name) && !r.Has(cfg.Name) {
		return nil, &domain.DuplicateNameError{Name: cfg.Name}
	}
	if cfg.CreatedAt == "" {
		cfg.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	def, err := r.add(cfg, false)
	if err != nil {
		return nil, err
	}
	if r.files != nil {
		if err := r.files.Save(cfg); err != nil {
			r.remove(cfg.Name)
			return nil, err
		}
	}

	r.log.Info().Str("agent", cfg.Name).Str("model", cfg.Model).Int("tools", len(cfg.Tools)).Msg("agent created")
	r.hooks.Emit(context.Background(), hooks.EventAgentCreated, map[string]any{"agent": cfg.Name})
	return def, nil
}

// Load reads a persisted agent and registers it.
func (r *Registry) Load(name string) (*Definition, error) {
	if r.Has(name) {
		return nil, &domain.DuplicateNameError{Name: name}
	}
	if r.files == nil {
		return nil, &domain.NotFoundError{Name: name}
	}

	cfg, err := r.files.Load(name)
	if err != nil {
		return nil, err
	}
	def, err := r.add(cfg, false)
	if err != nil {
		return nil, err
	}

	r.log.Debug().Str("agent", name).Msg("agent loaded")
	r.hooks.Emit(context.Background(), hooks.EventAgentLoaded, map[string]any{"agent": name})
	return def, nil
}

// LoadAll registers every persisted agent not already present and returns
// the names loaded. Files that fail to parse or validate are logged and
// skipped.
func (r *Registry) LoadAll() ([]string, error) {
	if r.files == nil {
		return nil, nil
	}
	names, err := r.files.List()
	if err != nil {
		return nil, err
	}

	var loaded []string
	for _, name := range names {
		if r.Has(name) {
			continue
		}
		if _, err := r.Load(name); err != nil {
			r.log.Warn().Err(err).Str("agent", name).Msg("skipping agent file")
			continue
		}
		loaded = append(loaded, name)
	}
	return loaded, nil
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	if !ok {
		return nil, &domain.NotFoundError{Name: name}
	}
	return def, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[name]
	return ok
}

// List returns all registered names, built-ins first.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Definitions returns all definitions in List order.
func (r *Registry) Definitions() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

// Custom returns the registered non built-in definitions.
func (r *Registry) Custom() []*Definition {
	var out []*Definition
	for _, def := range r.Definitions() {
		if !def.BuiltIn {
			out = append(out, def)
		}
	}
	return out
}

// Delete removes a custom agent from memory and deletes its file. An agent
// that was persisted but never loaded is deleted from disk only.
func (r *Registry) Delete(name string) error {
	r.mu.RLock()
	def, registered := r.defs[name]
	r.mu.RUnlock()

	if registered && def.BuiltIn {
		return &domain.ProtectedEntryError{Name: name}
	}
	if !registered && domain.ValidateAgentName(name) != nil {
		return &domain.NotFoundError{Name: name}
	}

	var fileErr error
	if r.files != nil {
		fileErr = r.files.Delete(name)
	} else {
		fileErr = &domain.NotFoundError{Name: name}
	}

	var nf *domain.NotFoundError
	switch {
	case fileErr == nil:
	case errors.As(fileErr, &nf) && registered:
		// registered in memory only
	default:
		return fileErr
	}

	if registered {
		r.remove(name)
	}
	r.log.Info().Str("agent", name).Msg("agent deleted")
	r.hooks.Emit(context.Background(), hooks.EventAgentDeleted, map[string]any{"agent": name})
	return nil
}

func (r *Registry) add(cfg domain.AgentConfig, builtIn bool) (*Definition, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	set, err := tools.FromSpecs(cfg.Tools)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[cfg.Name]; exists {
		return nil, &domain.DuplicateNameError{Name: cfg.Name}
	}
	def := &Definition{Config: cfg, Tools: set, BuiltIn: builtIn}
	r.defs[cfg.Name] = def
	r.order = append(r.order, cfg.Name)
	return def, nil
}

func (r *Registry) remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.defs, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
}
