package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultAgent = "chat"
	DefaultModel = "openai:gpt-4o"
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	temp := 0.7
	return Config{
		DefaultAgent: DefaultAgent,
		DefaultModel: DefaultModel,
		Agents: AgentsConfig{
			MaxTokens:   4096,
			Temperature: &temp,
		},
		Session: SessionConfig{
			MaxHistory:      50,
			ContextMessages: 10,
		},
		Observer: ObserverConfig{
			Store: "sqlite",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleLevel: "warn",
			ConsoleStyle: "pretty",
			MaxSizeMB:    10,
			MaxBackups:   3,
		},
	}
}
