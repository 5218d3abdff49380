package playground

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/soyeahso/agentplay/internal/domain"
	"github.com/soyeahso/agentplay/internal/registry"
)

// errCancelled ends the wizard without creating anything.
var errCancelled = errors.New("agent creation cancelled")

// customToolKinds is the menu offered for custom tools, in order.
var customToolKinds = []struct {
	kind  domain.ToolKind
	label string
}{
	{domain.ToolEcho, "Echo (returns input)"},
	{domain.ToolFormat, "Format (text formatting)"},
	{domain.ToolCounter, "Counter (simple counter)"},
	{domain.ToolPassthrough, "Passthrough (acknowledges its input)"},
}

// createAgent runs the creation wizard and registers the result.
func (p *Playground) createAgent(ctx context.Context) {
	cfg, err := p.runWizard(ctx)
	if err != nil {
		if errors.Is(err, errCancelled) {
			fmt.Fprintln(p.out, "\n❌ Agent creation cancelled")
			return
		}
		p.printError(err)
		return
	}

	fmt.Fprintln(p.out, "\n8. Creating Agent...")
	def, err := p.registry.Create(cfg)
	if err != nil {
		fmt.Fprintf(p.out, "❌ Error creating agent: %v\n", err)
		return
	}
	fmt.Fprintf(p.out, "✅ Successfully created agent '%s'!\n", def.Config.Name)
	if p.files != nil {
		fmt.Fprintf(p.out, "📄 Configuration saved to %s\n", p.files.Path(def.Config.Name))
	}

	if p.confirm(ctx, fmt.Sprintf("\n🔄 Switch to the new agent '%s'?", def.Config.Name)) {
		p.switchAgent(def.Config.Name)
	}
}

// runWizard asks for every field of a new agent. Invalid input ends the
// wizard with an error; end of input cancels it.
func (p *Playground) runWizard(ctx context.Context) (domain.AgentConfig, error) {
	fmt.Fprintln(p.out, "🎨 Agent Creation Wizard")
	fmt.Fprintln(p.out, strings.Repeat("=", 40))

	// 1. starting point
	templates := registry.Templates()
	fmt.Fprintln(p.out, "\n1. Choose a starting point:")
	fmt.Fprintln(p.out, "   0. Create from scratch")
	for i, t := range templates {
		fmt.Fprintf(p.out, "   %d. %s template\n", i+1, title(t.Name))
	}
	choice, err := p.ask(ctx, fmt.Sprintf("\nEnter choice (0-%d): ", len(templates)))
	if err != nil {
		return domain.AgentConfig{}, err
	}
	tpl := registry.Template{DepsType: "BaseDependencies", OutputType: "AgentResult"}
	if choice != "0" {
		n, err := strconv.Atoi(choice)
		if err != nil || n < 1 || n > len(templates) {
			return domain.AgentConfig{}, &domain.ValidationError{Field: "choice", Message: fmt.Sprintf("%q is not on the menu", choice)}
		}
		tpl = templates[n-1]
		fmt.Fprintf(p.out, "\n✅ Using %s template\n", tpl.Name)
	}

	// 2. name
	fmt.Fprintln(p.out, "\n2. Agent Configuration")
	name, err := p.ask(ctx, "Agent name (e.g., 'my_helper'): ")
	if err != nil {
		return domain.AgentConfig{}, err
	}
	if err := domain.ValidateAgentName(name); err != nil {
		return domain.AgentConfig{}, err
	}
	if p.registry.Has(name) || (p.files != nil && p.files.Exists(name)) {
		return domain.AgentConfig{}, &domain.DuplicateNameError{Name: name}
	}

	// 3. instructions
	fmt.Fprintln(p.out, "\n3. Agent Instructions")
	var instructions string
	if tpl.Instructions != "" {
		fmt.Fprintf(p.out, "Template instructions: %s\n", tpl.Instructions)
		if p.confirm(ctx, "Use template instructions?") {
			instructions = tpl.Instructions
		} else if instructions, err = p.askMultiline(ctx, "Enter custom instructions:"); err != nil {
			return domain.AgentConfig{}, err
		}
	} else if instructions, err = p.askMultiline(ctx, "Enter agent instructions:"); err != nil {
		return domain.AgentConfig{}, err
	}
	if strings.TrimSpace(instructions) == "" {
		return domain.AgentConfig{}, &domain.ValidationError{Field: "instructions", Message: "must not be empty"}
	}

	// 4. model
	fmt.Fprintln(p.out, "\n4. Model Selection")
	model, err := p.choose(ctx, p.models, "", fmt.Sprintf("Choose model (1-%d) [1]: ", len(p.models)))
	if err != nil {
		return domain.AgentConfig{}, err
	}
	if model == "" {
		model = p.models[0]
	}

	// 5. dependencies
	fmt.Fprintln(p.out, "\n5. Dependencies Type")
	deps, err := p.choose(ctx, registry.DepsTypes, tpl.DepsType,
		fmt.Sprintf("Choose dependencies (1-%d) [current]: ", len(registry.DepsTypes)))
	if err != nil {
		return domain.AgentConfig{}, err
	}

	// 6. output
	fmt.Fprintln(p.out, "\n6. Output Type")
	output, err := p.choose(ctx, registry.OutputTypes, tpl.OutputType,
		fmt.Sprintf("Choose output type (1-%d) [current]: ", len(registry.OutputTypes)))
	if err != nil {
		return domain.AgentConfig{}, err
	}

	// 7. tools
	fmt.Fprintln(p.out, "\n7. Tools (optional)")
	var tools []domain.ToolSpec
	if len(tpl.SuggestedTools) > 0 {
		kinds := make([]string, len(tpl.SuggestedTools))
		for i, k := range tpl.SuggestedTools {
			kinds[i] = string(k)
		}
		fmt.Fprintf(p.out, "Suggested tools for this template: %s\n", strings.Join(kinds, ", "))
		if p.confirm(ctx, "Add suggested tools?") {
			for _, k := range tpl.SuggestedTools {
				if spec, ok := registry.PresetTool(k); ok {
					tools = append(tools, spec)
				}
			}
		}
	}
	for p.confirm(ctx, "Add a custom tool?") {
		spec, err := p.askCustomTool(ctx)
		if err != nil {
			if errors.Is(err, errCancelled) {
				return domain.AgentConfig{}, err
			}
			fmt.Fprintf(p.out, "❌ %v\n", err)
			continue
		}
		if slices.ContainsFunc(tools, func(t domain.ToolSpec) bool { return t.Name == spec.Name }) {
			fmt.Fprintf(p.out, "❌ Tool '%s' already added\n", spec.Name)
			continue
		}
		tools = append(tools, spec)
	}

	return domain.AgentConfig{
		Name:         name,
		Description:  "Custom agent: " + truncate(instructions, 50),
		Instructions: instructions,
		Model:        model,
		DepsType:     deps,
		OutputType:   output,
		Template:     tpl.Name,
		Tools:        tools,
	}, nil
}

func (p *Playground) askCustomTool(ctx context.Context) (domain.ToolSpec, error) {
	fmt.Fprintln(p.out, "\n🔧 Custom Tool Creation")
	name, err := p.ask(ctx, "Tool name: ")
	if err != nil {
		return domain.ToolSpec{}, err
	}
	if domain.ValidateAgentName(name) != nil {
		return domain.ToolSpec{}, fmt.Errorf("invalid tool name %q", name)
	}
	desc, err := p.ask(ctx, "Tool description: ")
	if err != nil {
		return domain.ToolSpec{}, err
	}
	if desc == "" {
		desc = "Custom tool: " + name
	}

	fmt.Fprintln(p.out, "\nTool type:")
	for i, k := range customToolKinds {
		fmt.Fprintf(p.out, "%d. %s\n", i+1, k.label)
	}
	choice, err := p.ask(ctx, fmt.Sprintf("Choose type (1-%d): ", len(customToolKinds)))
	if err != nil {
		return domain.ToolSpec{}, err
	}
	kind := domain.ToolEcho
	if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(customToolKinds) {
		kind = customToolKinds[n-1].kind
	}
	return domain.ToolSpec{Name: name, Description: desc, Kind: kind}, nil
}

// ask reads one trimmed line. End of input cancels the wizard.
func (p *Playground) ask(ctx context.Context, prompt string) (string, error) {
	line, err := p.readLine(ctx, prompt)
	if err != nil {
		return "", errCancelled
	}
	return strings.TrimSpace(line), nil
}

// askMultiline reads lines until an empty one.
func (p *Playground) askMultiline(ctx context.Context, prompt string) (string, error) {
	fmt.Fprintln(p.out, prompt)
	fmt.Fprintln(p.out, "(Enter text, then press Enter on empty line to finish)")
	var lines []string
	for {
		line, err := p.readLine(ctx, "  ")
		if err != nil {
			return "", errCancelled
		}
		if strings.TrimSpace(line) == "" {
			return strings.Join(lines, "\n"), nil
		}
		lines = append(lines, line)
	}
}

// choose prints a numbered menu and returns the picked entry. An empty or
// out of range answer keeps current.
func (p *Playground) choose(ctx context.Context, options []string, current, prompt string) (string, error) {
	for i, opt := range options {
		marker := ""
		if opt == current {
			marker = " (current)"
		}
		fmt.Fprintf(p.out, "   %d. %s%s\n", i+1, opt, marker)
	}
	answer, err := p.ask(ctx, prompt)
	if err != nil {
		return "", err
	}
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(options) {
		return options[n-1], nil
	}
	return current, nil
}
