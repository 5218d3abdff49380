package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// KnownProviders lists the provider prefixes a model id may carry.
var KnownProviders = []string{"openai", "anthropic", "ollama", "echo"}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.DefaultModel != "" {
		if provider, _, ok := strings.Cut(cfg.DefaultModel, ":"); ok && !slices.Contains(KnownProviders, provider) {
			issues = append(issues, ValidationIssue{
				Path:    "defaultModel",
				Message: fmt.Sprintf("unknown provider %q, must be one of %v", provider, KnownProviders),
			})
		}
	}

	for alias, target := range cfg.Models.Aliases {
		if !strings.Contains(target, ":") {
			issues = append(issues, ValidationIssue{
				Path:    "models.aliases." + alias,
				Message: fmt.Sprintf("target must be provider:model, got %q", target),
			})
		}
	}

	if cfg.Agents.MaxTokens < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "agents.maxTokens",
			Message: fmt.Sprintf("must be >= 0, got %d", cfg.Agents.MaxTokens),
		})
	}
	if t := cfg.Agents.Temperature; t != nil && (*t < 0 || *t > 2) {
		issues = append(issues, ValidationIssue{
			Path:    "agents.temperature",
			Message: fmt.Sprintf("must be 0-2, got %g", *t),
		})
	}

	// Session validation
	if cfg.Session.MaxHistory < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "session.maxHistory",
			Message: fmt.Sprintf("must be >= 0, got %d", cfg.Session.MaxHistory),
		})
	}
	if cfg.Session.ContextMessages < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "session.contextMessages",
			Message: fmt.Sprintf("must be >= 0, got %d", cfg.Session.ContextMessages),
		})
	}

	validStores := []string{"sqlite", "memory"}
	if cfg.Observer.Store != "" && !slices.Contains(validStores, cfg.Observer.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "observer.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Observer.Store),
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}
	if cfg.Logging.ConsoleLevel != "" && !slices.Contains(validLogLevels, cfg.Logging.ConsoleLevel) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleLevel",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.ConsoleLevel),
		})
	}

	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	return issues
}

// ProviderOf returns the provider prefix of a "provider:model" id, or ""
// for a bare model name.
func ProviderOf(model string) string {
	provider, _, ok := strings.Cut(model, ":")
	if !ok {
		return ""
	}
	return provider
}

// CheckCredentials reports whether the provider behind model has what it
// needs to be called. Ollama and echo need no key.
func CheckCredentials(cfg *Config, model string) error {
	switch ProviderOf(model) {
	case "openai":
		if cfg.Providers.OpenAI.APIKey == "" {
			return &ConfigError{Message: "OPENAI_API_KEY is not set (needed for " + model + ")"}
		}
	case "anthropic":
		if cfg.Providers.Anthropic.APIKey == "" {
			return &ConfigError{Message: "ANTHROPIC_API_KEY is not set (needed for " + model + ")"}
		}
	}
	return nil
}
