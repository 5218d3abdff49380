package playground

import (
	"context"
	"fmt"
	"strings"

	"github.com/soyeahso/agentplay/internal/registry"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const historyShown = 10

func (p *Playground) printHelp() {
	fmt.Fprint(p.out, `
📋 Available Commands:
  /help or /h          - Show this help message
  /agents or /a        - List available agents
  /switch <agent>      - Switch to different agent
  /history or /hist    - Show conversation history
  /clear               - Clear conversation history
  /info                - Show current agent info
  /observe or /obs     - Toggle detailed observation mode
  /profile             - Show agent performance profile
  /report              - Show observation report for all agents
  /export              - Export conversation to JSON

🎨 Agent Creation:
  /create              - Create a new agent interactively
  /templates           - List available agent templates
  /created             - List your created agents
  /load <name>         - Load a created agent
  /delete <name>       - Delete a created agent
  /agent-info <name>   - Show detailed info about an agent

  /quit or /q          - Exit playground
  <message>            - Send message to current agent
`)
	fmt.Fprintln(p.out, rule)
}

func (p *Playground) listAgents() {
	fmt.Fprintln(p.out, "\n🤖 Available Agents:")

	var builtIn, custom []*registry.Definition
	for _, def := range p.registry.Definitions() {
		if def.BuiltIn {
			builtIn = append(builtIn, def)
		} else {
			custom = append(custom, def)
		}
	}

	printGroup := func(title string, defs []*registry.Definition) {
		if len(defs) == 0 {
			return
		}
		fmt.Fprintf(p.out, "  %s\n", title)
		for _, def := range defs {
			marker := "   "
			if def.Config.Name == p.session.Active() {
				marker = "👉 "
			}
			fmt.Fprintf(p.out, "  %s%s: %s\n", marker, def.Config.Name, describe(def))
		}
	}
	printGroup("📦 Built-in:", builtIn)
	printGroup("🎨 Custom:", custom)
	fmt.Fprintln(p.out, rule)
}

// describe returns the description of an agent, or the start of its
// instructions when it has none.
func describe(def *registry.Definition) string {
	if def.Config.Description != "" {
		return def.Config.Description
	}
	return "Custom agent: " + truncate(def.Config.Instructions, 50)
}

func (p *Playground) switchAgent(name string) {
	prev := p.session.Active()
	if err := p.session.SwitchTo(name); err != nil {
		fmt.Fprintf(p.out, "❌ Unknown agent: %s\n", name)
		fmt.Fprintf(p.out, "Available agents: %s\n", strings.Join(p.registry.List(), ", "))
		return
	}
	if prev == "" {
		fmt.Fprintf(p.out, "🔄 Switched to %s\n", name)
		return
	}
	fmt.Fprintf(p.out, "🔄 Switched from %s to %s\n", prev, name)
}

func (p *Playground) showHistory() {
	history := p.session.History()
	fmt.Fprintf(p.out, "\n📜 Conversation History (%d messages):\n", len(history))
	if len(history) == 0 {
		fmt.Fprintln(p.out, "   No messages yet.")
		return
	}

	shown := history
	if len(shown) > historyShown {
		shown = shown[len(shown)-historyShown:]
	}
	for i, e := range shown {
		fmt.Fprintf(p.out, "  %2d. [%s] %s (%s): %s\n",
			i+1, e.Timestamp.Format("2006-01-02 15:04:05"), e.Role, e.Agent, truncate(e.Text, 100))
	}
	if len(history) > historyShown {
		fmt.Fprintf(p.out, "   ... and %d more messages\n", len(history)-historyShown)
	}
	fmt.Fprintln(p.out, rule)
}

func (p *Playground) showAgentInfo(name string) {
	if name == "" {
		fmt.Fprintln(p.out, "❌ No active agent. Use /switch <agent_name> first.")
		return
	}
	def, err := p.registry.Get(name)
	if err != nil {
		p.printError(err)
		return
	}

	cfg := def.Config
	kind := "custom"
	if def.BuiltIn {
		kind = "built-in"
	}
	fmt.Fprintf(p.out, "\n🤖 Current Agent: %s\n", cfg.Name)
	fmt.Fprintf(p.out, "   Type: %s\n", kind)
	fmt.Fprintf(p.out, "   Model: %s\n", p.modelLabel(cfg.Model))
	fmt.Fprintf(p.out, "   Dependencies: %s\n", orNone(cfg.DepsType))
	fmt.Fprintf(p.out, "   Output Type: %s\n", orNone(cfg.OutputType))
	fmt.Fprintf(p.out, "   Description: %s\n", describe(def))
	if names := cfg.ToolNames(); len(names) > 0 {
		fmt.Fprintf(p.out, "   Tools: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintln(p.out, rule)
}

func (p *Playground) modelLabel(model string) string {
	if model == "" {
		return "(default)"
	}
	return model
}

// showAgentDetails prints the full configuration of a custom agent, or the
// summary for a built-in.
func (p *Playground) showAgentDetails(name string) {
	def, err := p.registry.Get(name)
	if err != nil {
		p.printError(err)
		return
	}
	if def.BuiltIn {
		p.showAgentInfo(name)
		return
	}

	cfg := def.Config
	fmt.Fprintf(p.out, "\n🤖 Agent: %s\n", cfg.Name)
	fmt.Fprintln(p.out, strings.Repeat("=", 40))
	fmt.Fprintf(p.out, "Instructions: %s\n", truncate(cfg.Instructions, 100))
	fmt.Fprintf(p.out, "Model: %s\n", p.modelLabel(cfg.Model))
	fmt.Fprintf(p.out, "Dependencies: %s\n", orNone(cfg.DepsType))
	fmt.Fprintf(p.out, "Output Type: %s\n", orNone(cfg.OutputType))
	if cfg.Template != "" {
		fmt.Fprintf(p.out, "Template: %s\n", cfg.Template)
	}
	fmt.Fprintf(p.out, "Created: %s\n", orNone(shortTime(cfg.CreatedAt)))
	fmt.Fprintf(p.out, "Tools: %d\n", len(cfg.Tools))
	if len(cfg.Tools) > 0 {
		fmt.Fprintln(p.out, "\nTools:")
		for _, t := range cfg.Tools {
			fmt.Fprintf(p.out, "  - %s (%s): %s\n", t.Name, t.Kind.Normalized(), t.Description)
		}
	}
}

func (p *Playground) showProfile() {
	name := p.session.Active()
	fmt.Fprintln(p.out, "📊 Agent Performance Profile:")
	if name == "" {
		fmt.Fprintln(p.out, "   No active agent.")
		return
	}
	prof := p.session.Profile(name)
	if prof.Messages == 0 {
		fmt.Fprintln(p.out, "   No messages from current agent yet.")
		return
	}
	fmt.Fprintf(p.out, "   Messages: %d\n", prof.Messages)
	fmt.Fprintf(p.out, "   Avg Response Time: %.2fs\n", prof.AvgResponse.Seconds())
	fmt.Fprintf(p.out, "   Slowest Response: %.2fs\n", prof.MaxResponse.Seconds())
	fmt.Fprintf(p.out, "   Tokens: %d in / %d out\n", prof.InputTokens, prof.OutputTokens)
	fmt.Fprintf(p.out, "   Tool Calls: %d\n", prof.ToolCalls)

	if p.observer == nil {
		return
	}
	s := p.observer.Summary(name)
	if s.Count == 0 {
		return
	}
	fmt.Fprintf(p.out, "   Observations: %d (%.1f%% errors)\n", s.Count, s.ErrorRate()*100)
	for _, tc := range s.TopTools {
		fmt.Fprintf(p.out, "     %s: %d\n", tc.Tool, tc.Count)
	}
}

func (p *Playground) showReport() {
	if p.observer == nil {
		fmt.Fprintln(p.out, "No observations recorded yet.")
		return
	}
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, p.observer.Report())
}

func (p *Playground) export() {
	path, err := p.session.WriteExport(p.exportDir)
	if err != nil {
		p.printError(err)
		return
	}
	fmt.Fprintf(p.out, "💾 Exported conversation to %s\n", path)
}

func (p *Playground) showTemplates() {
	fmt.Fprintln(p.out, "🎨 Available Agent Templates:")
	fmt.Fprintln(p.out)
	for i, t := range registry.Templates() {
		tools := make([]string, len(t.SuggestedTools))
		for j, k := range t.SuggestedTools {
			tools[j] = string(k)
		}
		fmt.Fprintf(p.out, "%d. %s Agent\n", i+1, title(t.Name))
		fmt.Fprintf(p.out, "   Instructions: %s\n", truncate(t.Instructions, 60))
		fmt.Fprintf(p.out, "   Dependencies: %s\n", t.DepsType)
		fmt.Fprintf(p.out, "   Output: %s\n", t.OutputType)
		fmt.Fprintf(p.out, "   Suggested Tools: %s\n", strings.Join(tools, ", "))
		fmt.Fprintln(p.out)
	}
}

func (p *Playground) showCreated() {
	custom := p.registry.Custom()
	if len(custom) == 0 {
		fmt.Fprintln(p.out, "No custom agents created yet.")
		return
	}
	fmt.Fprintln(p.out, "🤖 Created Agents:")
	fmt.Fprintln(p.out)
	for _, def := range custom {
		cfg := def.Config
		fmt.Fprintf(p.out, "📋 %s\n", cfg.Name)
		fmt.Fprintf(p.out, "   Model: %s\n", p.modelLabel(cfg.Model))
		fmt.Fprintf(p.out, "   Dependencies: %s\n", orNone(cfg.DepsType))
		fmt.Fprintf(p.out, "   Tools: %d tools\n", len(cfg.Tools))
		fmt.Fprintf(p.out, "   Created: %s\n", orNone(shortTime(cfg.CreatedAt)))
		fmt.Fprintln(p.out)
	}
}

func (p *Playground) loadAgent(ctx context.Context, name string) {
	if p.registry.Has(name) {
		fmt.Fprintf(p.out, "⚠️ Agent '%s' is already loaded\n", name)
		return
	}
	if _, err := p.registry.Load(name); err != nil {
		fmt.Fprintf(p.out, "❌ Could not load agent '%s': %v\n", name, err)
		return
	}
	fmt.Fprintf(p.out, "✅ Loaded agent '%s'\n", name)
	if p.confirm(ctx, fmt.Sprintf("🔄 Switch to '%s'?", name)) {
		p.switchAgent(name)
	}
}

func (p *Playground) deleteAgent(ctx context.Context, name string) {
	def, err := p.registry.Get(name)
	if err == nil && def.BuiltIn {
		fmt.Fprintf(p.out, "❌ Cannot delete built-in agent '%s'\n", name)
		return
	}
	if err != nil && (p.files == nil || !p.files.Exists(name)) {
		fmt.Fprintf(p.out, "❌ Agent '%s' not found\n", name)
		return
	}

	if !p.confirm(ctx, fmt.Sprintf("⚠️ Are you sure you want to delete agent '%s'?", name)) {
		fmt.Fprintln(p.out, "❌ Deletion cancelled")
		return
	}
	if err := p.registry.Delete(name); err != nil {
		p.printError(err)
		return
	}

	if p.session.Active() == name {
		p.session.Forget(name)
		if next := p.session.Active(); next != "" {
			fmt.Fprintf(p.out, "🔄 Switching away from '%s' to '%s'\n", name, next)
		}
	}
	fmt.Fprintf(p.out, "✅ Deleted agent '%s'\n", name)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// shortTime trims an RFC 3339 timestamp to seconds without the zone.
func shortTime(ts string) string {
	if len(ts) > 19 {
		return ts[:19]
	}
	return ts
}

func title(s string) string { return cases.Title(language.English).String(s) }
