package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/agentplay/internal/tools"
)

// PromptConfig controls system prompt generation.
type PromptConfig struct {
	AgentName    string
	Instructions string
	OutputType   string
	Tools        []tools.Def
	Now          time.Time // zero means time.Now()
}

// BuildSystemPrompt constructs the system prompt for an agent: its
// instructions, the date, and the tool call protocol when it has tools.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder

	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}

	if cfg.Instructions != "" {
		b.WriteString(strings.TrimSpace(cfg.Instructions))
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Current date: %s\n", now.Format("2006-01-02"))
	if cfg.AgentName != "" {
		fmt.Fprintf(&b, "Agent: %s\n", cfg.AgentName)
	}
	if cfg.OutputType != "" {
		fmt.Fprintf(&b, "Response type: %s\n", cfg.OutputType)
	}

	if len(cfg.Tools) > 0 {
		b.WriteString("\n## Available Tools\n\n")
		b.WriteString("You can call tools by outputting a fenced code block with the language tag `tool_call`:\n\n")
		b.WriteString("```tool_call\n{\"tool\": \"tool_name\", \"input\": {\"param\": \"value\"}}\n```\n\n")
		b.WriteString("After a tool is executed, the result will be provided. You may call multiple tools before giving your final response.\n")
		b.WriteString("When using tools, explain what you're doing.\n\n")
		for _, t := range cfg.Tools {
			fmt.Fprintf(&b, "### %s\n%s\n", t.Name, t.Description)
			if t.InputSchema != "" {
				fmt.Fprintf(&b, "Input schema: %s\n", t.InputSchema)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
