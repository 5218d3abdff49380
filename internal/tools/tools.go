// Package tools implements the closed set of tool kinds an agent can
// declare, and the per-agent Set the execution engine dispatches to.
package tools

import (
	"context"
	"fmt"

	"github.com/soyeahso/agentplay/internal/domain"
)

// Tool is a capability the agent can invoke during a conversation.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string

	// Description returns a human-readable description for the LLM.
	Description() string

	// InputSchema returns the JSON Schema for the tool's input.
	InputSchema() string

	// Execute runs the tool with the given JSON input and returns text output.
	Execute(ctx context.Context, input string) (string, error)
}

// Set holds the tools of one agent, in declaration order.
type Set struct {
	tools map[string]Tool
	order []string
}

// NewSet creates an empty tool set.
func NewSet() *Set {
	return &Set{tools: make(map[string]Tool)}
}

// Add registers a tool. A later tool with the same name replaces the earlier one.
func (s *Set) Add(t Tool) {
	if _, ok := s.tools[t.Name()]; !ok {
		s.order = append(s.order, t.Name())
	}
	s.tools[t.Name()] = t
}

// Get returns a tool by name.
func (s *Set) Get(name string) (Tool, bool) {
	t, ok := s.tools[name]
	return t, ok
}

// Len returns the number of tools.
func (s *Set) Len() int { return len(s.order) }

// Names returns tool names in declaration order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Definitions returns LLM-ready tool definitions in declaration order.
func (s *Set) Definitions() []Def {
	defs := make([]Def, 0, len(s.order))
	for _, name := range s.order {
		t := s.tools[name]
		defs = append(defs, Def{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return defs
}

// Def is a serializable tool definition for passing to the LLM.
type Def struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema string `json:"inputSchema"`
}

// FromSpecs builds a tool set from an agent's declared tools. Tools in one
// set share a notebook, so messages remembered by one agent are visible to
// its history tool and to no other agent.
func FromSpecs(specs []domain.ToolSpec) (*Set, error) {
	set := NewSet()
	nb := &notebook{}
	for _, spec := range specs {
		t, err := build(spec, nb)
		if err != nil {
			return nil, err
		}
		set.Add(t)
	}
	return set, nil
}

// New builds the tool described by spec.
func New(spec domain.ToolSpec) (Tool, error) {
	return build(spec, &notebook{})
}

func build(spec domain.ToolSpec, nb *notebook) (Tool, error) {
	desc := spec.Description
	if desc == "" {
		desc = "Custom tool: " + spec.Name
	}
	base := base{name: spec.Name, desc: desc}

	switch spec.Kind.Normalized() {
	case domain.ToolEcho:
		return &echoTool{base}, nil
	case domain.ToolFormat:
		return &formatTool{base}, nil
	case domain.ToolCounter:
		return &counterTool{base: base}, nil
	case domain.ToolPassthrough:
		return &passthroughTool{base}, nil
	case domain.ToolHistory:
		return &historyTool{base: base, notes: nb}, nil
	case domain.ToolRemember:
		return &rememberTool{base: base, notes: nb}, nil
	case domain.ToolSearch:
		return &searchTool{base}, nil
	case domain.ToolCredibility:
		return &credibilityTool{base}, nil
	case domain.ToolStatistics:
		return &statisticsTool{base}, nil
	case domain.ToolPatterns:
		return &patternsTool{base}, nil
	case domain.ToolSynthesize:
		return &synthesizeTool{base}, nil
	case domain.ToolDataLoad:
		return &dataLoadTool{base}, nil
	case domain.ToolInsights:
		return &listTool{base: base, param: "analysis_results", heading: "Key insights:", items: insights}, nil
	case domain.ToolRecommend:
		return &listTool{base: base, param: "insights", heading: "Recommendations:", items: recommendations}, nil
	default:
		return nil, &domain.ValidationError{
			Field:   "tools",
			Message: fmt.Sprintf("tool %q has unknown type %q", spec.Name, spec.Kind),
		}
	}
}

type base struct {
	name string
	desc string
}

func (b base) Name() string        { return b.name }
func (b base) Description() string { return b.desc }

// decodeInput parses tool input leniently; models routinely emit trailing
// commas, unquoted keys and single quotes. Empty input leaves v untouched.
func decodeInput(input string, v any) error {
	if input == "" || input == "null" {
		return nil
	}
	if err := DecodeLenient([]byte(input), v); err != nil {
		return fmt.Errorf("invalid tool input: %w", err)
	}
	return nil
}
