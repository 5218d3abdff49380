package llm

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/soyeahso/agentplay/internal/config"
	"github.com/soyeahso/agentplay/internal/logging"
)

// ProviderError is returned when an LLM provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP-like status code (401, 429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Registry manages LLM provider clients and resolves model references to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	aliases  map[string]string // model alias → provider name or "provider:model"
	fallback string            // default provider name
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Debug().Str("provider", name).Msg("registered LLM provider")
}

// Alias maps a bare model name to a provider ("gpt-4o" → "openai") or to a
// full reference ("fast" → "openai:gpt-3.5-turbo").
func (r *Registry) Alias(model, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = target
}

// SetFallback sets the default provider used when no model/provider match is found.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Resolve returns the Client for the given model reference.
func (r *Registry) Resolve(model string) (Client, error) {
	c, _, err := r.ResolveModel(model)
	return c, err
}

// ResolveModel returns the Client for a model reference together with the
// bare model id to send to it. Resolution order: "provider:model" prefix →
// exact provider name → alias → fallback.
func (r *Registry) ResolveModel(model string) (Client, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(model, 0)
}

func (r *Registry) resolveLocked(model string, depth int) (Client, string, error) {
	if depth > 4 {
		return nil, "", fmt.Errorf("alias loop resolving model %q", model)
	}

	if provider, id, ok := strings.Cut(model, ":"); ok {
		if c, ok := r.clients[provider]; ok {
			return c, id, nil
		}
		return nil, "", fmt.Errorf("no LLM provider %q for model %q", provider, model)
	}

	// Direct provider name match
	if c, ok := r.clients[model]; ok {
		return c, "", nil
	}

	// Alias lookup
	if target, ok := r.aliases[model]; ok {
		if strings.Contains(target, ":") {
			return r.resolveLocked(target, depth+1)
		}
		if c, ok := r.clients[target]; ok {
			return c, model, nil
		}
	}

	// Fallback
	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, model, nil
		}
	}

	return nil, "", fmt.Errorf("no LLM provider for model %q", model)
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var builtinAliases = map[string][]string{
	"openai":    {"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-3.5-turbo"},
	"anthropic": {"claude-3-sonnet", "claude-3-haiku", "claude-3-5-sonnet", "sonnet", "haiku", "opus"},
	"ollama":    {"llama3", "llama3.2", "mistral", "qwen2.5"},
}

// NewRegistryFromConfig registers every provider the config has credentials
// for. Ollama and the offline echo provider are always available. The
// fallback is the provider of the configured default model.
func NewRegistryFromConfig(cfg config.Config, log *logging.Logger) *Registry {
	reg := NewRegistry(log)

	if key := cfg.Providers.OpenAI.APIKey; key != "" {
		reg.Register("openai", NewOpenAIClient(key, cfg.Providers.OpenAI.BaseURL))
	}
	if key := cfg.Providers.Anthropic.APIKey; key != "" {
		reg.Register("anthropic", NewAnthropicClient(key, cfg.Providers.Anthropic.BaseURL))
	}
	reg.Register("ollama", NewOllamaAPIClient(cfg.Providers.Ollama.BaseURL, ""))
	reg.Register("echo", NewEchoClient())

	for provider, models := range builtinAliases {
		for _, m := range models {
			reg.Alias(m, provider)
		}
	}
	for alias, target := range cfg.Models.Aliases {
		reg.Alias(alias, target)
	}

	if provider := config.ProviderOf(cfg.DefaultModel); provider != "" {
		reg.SetFallback(provider)
	}
	return reg
}
