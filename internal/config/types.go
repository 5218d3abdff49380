package config

// Config is the root configuration for agentplay.
type Config struct {
	DefaultAgent string          `yaml:"defaultAgent,omitempty"`
	DefaultModel string          `yaml:"defaultModel,omitempty"` // "provider:model", used by agents that leave model empty
	Providers    ProvidersConfig `yaml:"providers,omitempty"`
	Models       ModelsConfig    `yaml:"models,omitempty"`
	Agents       AgentsConfig    `yaml:"agents,omitempty"`
	Session      SessionConfig   `yaml:"session,omitempty"`
	Observer     ObserverConfig  `yaml:"observer,omitempty"`
	Logging      LoggingConfig   `yaml:"logging,omitempty"`
}

// ProvidersConfig holds credentials and endpoints for each model provider.
type ProvidersConfig struct {
	OpenAI    ProviderEntry `yaml:"openai,omitempty"`
	Anthropic ProviderEntry `yaml:"anthropic,omitempty"`
	Ollama    ProviderEntry `yaml:"ollama,omitempty"`
}

// ProviderEntry configures a single provider. APIKey may reference ${ENV_VAR}.
type ProviderEntry struct {
	APIKey  string `yaml:"apiKey,omitempty"`
	BaseURL string `yaml:"baseUrl,omitempty"`
}

// ModelsConfig maps short model names to "provider:model" ids.
type ModelsConfig struct {
	Aliases map[string]string `yaml:"aliases,omitempty"`
}

// AgentsConfig defines generation defaults applied to every agent.
type AgentsConfig struct {
	MaxTokens   int      `yaml:"maxTokens,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
}

// SessionConfig defines conversation history behavior.
type SessionConfig struct {
	MaxHistory      int  `yaml:"maxHistory,omitempty"`      // entries kept in memory, 0 = unlimited
	ContextMessages int  `yaml:"contextMessages,omitempty"` // recent entries sent to the engine, 0 = all
	AutoExport      bool `yaml:"autoExport,omitempty"`      // export the conversation when the REPL exits
}

// ObserverConfig controls where finished observations go.
type ObserverConfig struct {
	Store string `yaml:"store,omitempty"` // "sqlite" | "memory"
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleLevel string `yaml:"consoleLevel,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
	MaxSizeMB    int    `yaml:"maxSizeMB,omitempty"`
	MaxBackups   int    `yaml:"maxBackups,omitempty"`
}
