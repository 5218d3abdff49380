package domain

import (
	"fmt"
	"regexp"
	"slices"
)

// AgentConfig is the declarative description of an agent. It is the unit
// that is registered, persisted to disk and loaded into a session.
type AgentConfig struct {
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Instructions string     `json:"instructions"`
	Model        string     `json:"model"` // "provider:model", e.g. "openai:gpt-4o"
	DepsType     string     `json:"deps_type,omitempty"`
	OutputType   string     `json:"output_type,omitempty"`
	Template     string     `json:"template,omitempty"`
	Tools        []ToolSpec `json:"tools,omitempty"`
	CreatedAt    string     `json:"created_at,omitempty"` // RFC 3339
}

// ToolNames returns the declared tool names in order.
func (c AgentConfig) ToolNames() []string {
	names := make([]string, len(c.Tools))
	for i, t := range c.Tools {
		names[i] = t.Name
	}
	return names
}

// ToolKind selects the handler a tool is built with.
type ToolKind string

const (
	ToolEcho        ToolKind = "echo"
	ToolFormat      ToolKind = "format"
	ToolCounter     ToolKind = "counter"
	ToolPassthrough ToolKind = "passthrough"
	ToolHistory     ToolKind = "history"
	ToolSearch      ToolKind = "search"
	ToolCredibility ToolKind = "credibility"
	ToolStatistics  ToolKind = "statistics"
	ToolPatterns    ToolKind = "patterns"
	ToolRemember    ToolKind = "remember"
	ToolSynthesize  ToolKind = "synthesize"
	ToolDataLoad    ToolKind = "dataload"
	ToolInsights    ToolKind = "insights"
	ToolRecommend   ToolKind = "recommendations"
)

// ToolKinds lists every supported tool kind.
var ToolKinds = []ToolKind{
	ToolEcho, ToolFormat, ToolCounter, ToolPassthrough,
	ToolHistory, ToolSearch, ToolCredibility, ToolStatistics, ToolPatterns,
	ToolRemember, ToolSynthesize, ToolDataLoad, ToolInsights, ToolRecommend,
}

// Valid reports whether k is a known tool kind.
func (k ToolKind) Valid() bool { return slices.Contains(ToolKinds, k) }

// Normalized maps the empty kind and the legacy "default" kind to
// passthrough.
func (k ToolKind) Normalized() ToolKind {
	if k == "" || k == "default" {
		return ToolPassthrough
	}
	return k
}

// ToolSpec declares one tool an agent can call.
type ToolSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Kind        ToolKind `json:"type"`
	Parameters  []string `json:"parameters,omitempty"`
}

var agentNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// ValidateAgentName checks that name starts with a letter and contains only
// letters, digits and underscores.
func ValidateAgentName(name string) error {
	if !agentNamePattern.MatchString(name) {
		return &ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("%q must start with a letter and contain only letters, numbers, and underscores", name),
		}
	}
	return nil
}

// Validate checks an AgentConfig before it is registered.
func (c AgentConfig) Validate() error {
	if err := ValidateAgentName(c.Name); err != nil {
		return err
	}
	if c.Instructions == "" {
		return &ValidationError{Field: "instructions", Message: "must not be empty"}
	}
	seen := make(map[string]bool, len(c.Tools))
	for _, t := range c.Tools {
		if t.Name == "" {
			return &ValidationError{Field: "tools", Message: "tool name must not be empty"}
		}
		if seen[t.Name] {
			return &ValidationError{Field: "tools", Message: fmt.Sprintf("duplicate tool %q", t.Name)}
		}
		seen[t.Name] = true
		if !t.Kind.Normalized().Valid() {
			return &ValidationError{Field: "tools", Message: fmt.Sprintf("tool %q has unknown type %q", t.Name, t.Kind)}
		}
	}
	return nil
}
