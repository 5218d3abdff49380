// Package agent is the execution engine: it turns an agent definition, a
// prompt and recent history into a provider request, runs the tool-call
// loop and returns the final reply.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/soyeahso/agentplay/internal/domain"
	"github.com/soyeahso/agentplay/internal/llm"
	"github.com/soyeahso/agentplay/internal/logging"
	"github.com/soyeahso/agentplay/internal/observe"
	"github.com/soyeahso/agentplay/internal/registry"
	"github.com/soyeahso/agentplay/internal/tools"
)

// maxToolIterations limits how many tool call rounds one run may take.
const maxToolIterations = 5

// Options are generation defaults applied to every run.
type Options struct {
	DefaultModel string // used when an agent leaves Model empty
	MaxTokens    int
	Temperature  *float64
}

// Reply is the outcome of one run.
type Reply struct {
	Text      string        `json:"text"`
	Model     string        `json:"model"`
	Usage     llm.Usage     `json:"usage"`
	ToolCalls int           `json:"toolCalls"`
	Duration  time.Duration `json:"duration"`
}

// StreamCallback receives text deltas and tool progress during RunStream.
// Event types are "delta", "tool_start", "tool_result" and "tool_error".
type StreamCallback func(event llm.StreamEvent)

// Runner executes agent definitions against the configured providers.
// It holds no per-conversation state.
type Runner struct {
	providers   *llm.Registry
	opts        Options
	countTokens llm.TokenCounter
	log         *logging.Logger
}

// NewRunner creates a runner resolving models through providers.
func NewRunner(providers *llm.Registry, opts Options, log *logging.Logger) *Runner {
	return &Runner{
		providers:   providers,
		opts:        opts,
		countTokens: llm.EstimateTokens,
		log:         log.Sub("agent"),
	}
}

// ModelFor returns the model reference a definition runs with.
func (r *Runner) ModelFor(def *registry.Definition) string {
	if def.Config.Model != "" {
		return def.Config.Model
	}
	return r.opts.DefaultModel
}

// Run sends prompt to the agent with history as prior context and returns
// the final reply once any tool calls have been resolved.
func (r *Runner) Run(ctx context.Context, def *registry.Definition, prompt string, history []domain.ConversationEntry) (*Reply, error) {
	return r.run(ctx, def, prompt, history, nil)
}

// RunStream is Run with text deltas forwarded to cb as they arrive.
func (r *Runner) RunStream(ctx context.Context, def *registry.Definition, prompt string, history []domain.ConversationEntry, cb StreamCallback) (*Reply, error) {
	if cb == nil {
		cb = func(llm.StreamEvent) {}
	}
	return r.run(ctx, def, prompt, history, cb)
}

func (r *Runner) run(ctx context.Context, def *registry.Definition, prompt string, history []domain.ConversationEntry, cb StreamCallback) (*Reply, error) {
	start := time.Now()
	rec := observe.RecorderFrom(ctx)

	model := r.ModelFor(def)
	client, modelID, err := r.providers.ResolveModel(model)
	if err != nil {
		return nil, err
	}
	rec.LogStep("resolve", fmt.Sprintf("%s via provider %s", model, client.Name()))

	ctx = tools.WithHistory(ctx, history)
	system := BuildSystemPrompt(PromptConfig{
		AgentName:    def.Config.Name,
		Instructions: def.Config.Instructions,
		OutputType:   def.Config.OutputType,
		Tools:        def.Tools.Definitions(),
	})

	messages := historyMessages(history)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})

	log := r.log.Sub(def.Config.Name)
	log.Debug().
		Str("model", model).
		Int("history", len(history)).
		Int("promptChars", len(prompt)).
		Msg("running agent")

	var (
		final     *llm.CompletionResponse
		usage     llm.Usage
		toolCalls int
	)
	for i := 0; i < maxToolIterations; i++ {
		req := llm.CompletionRequest{
			Model:       modelID,
			System:      system,
			Messages:    messages,
			MaxTokens:   r.opts.MaxTokens,
			Temperature: r.opts.Temperature,
			Stream:      cb != nil,
		}

		rec.LogStep("model_request", fmt.Sprintf("round %d, %d messages", i+1, len(messages)))
		resp, err := r.complete(ctx, client, req, cb)
		if err != nil {
			rec.LogStep("model_error", err.Error())
			return nil, err
		}
		if resp.Usage == (llm.Usage{}) {
			resp.Usage = r.estimateUsage(modelID, system, messages, resp.Content)
		}
		usage.Add(resp.Usage)
		final = resp

		calls := parseToolCalls(resp.Content)
		if len(calls) == 0 {
			break
		}
		if def.Tools.Len() == 0 {
			log.Debug().Int("toolCalls", len(calls)).Msg("ignoring tool calls from agent without tools")
			break
		}

		log.Debug().Int("toolCalls", len(calls)).Msg("executing tool calls")
		if cb != nil {
			cb(llm.StreamEvent{Type: "tool_start", Content: fmt.Sprintf("Executing %d tool(s)...", len(calls))})
		}

		results := executeToolCalls(ctx, def.Tools, calls, rec)
		toolCalls += len(results)
		if cb != nil {
			for _, tr := range results {
				if tr.Err != nil {
					cb(llm.StreamEvent{Type: "tool_error", Content: fmt.Sprintf("Tool %s failed: %v", tr.Tool, tr.Err)})
				} else {
					cb(llm.StreamEvent{Type: "tool_result", Content: fmt.Sprintf("Tool %s completed", tr.Tool)})
				}
			}
		}

		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
			llm.Message{Role: llm.RoleUser, Content: formatToolResults(results)},
		)
	}

	if final == nil {
		return nil, fmt.Errorf("no response from model %s", model)
	}

	text := stripToolCalls(final.Content)
	if final.Model != "" {
		model = final.Model
	}
	reply := &Reply{
		Text:      text,
		Model:     model,
		Usage:     usage,
		ToolCalls: toolCalls,
		Duration:  time.Since(start),
	}
	rec.LogStep("response", fmt.Sprintf("%d characters, %d input / %d output tokens",
		len(text), usage.InputTokens, usage.OutputTokens))

	log.Info().
		Str("model", reply.Model).
		Int("inputTokens", usage.InputTokens).
		Int("outputTokens", usage.OutputTokens).
		Int("toolCalls", toolCalls).
		Dur("duration", reply.Duration).
		Msg("response generated")
	return reply, nil
}

// complete issues one request, streaming when cb is set.
func (r *Runner) complete(ctx context.Context, client llm.Client, req llm.CompletionRequest, cb StreamCallback) (*llm.CompletionResponse, error) {
	if cb == nil {
		return client.Complete(ctx, req)
	}

	ch, err := client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	var content strings.Builder
	var resp *llm.CompletionResponse
	deltas := &fenceFilter{emit: func(s string) {
		cb(llm.StreamEvent{Type: "delta", Content: s})
	}}
	for evt := range ch {
		switch evt.Type {
		case "delta":
			content.WriteString(evt.Content)
			deltas.write(evt.Content)
		case "done":
			resp = evt.Response
		case "error":
			return nil, fmt.Errorf("stream error: %s", evt.Error)
		}
	}
	deltas.flush()
	if resp == nil {
		resp = &llm.CompletionResponse{Model: req.Model}
	}
	if resp.Content == "" {
		resp.Content = content.String()
	}
	return resp, nil
}

func (r *Runner) estimateUsage(model, system string, messages []llm.Message, output string) llm.Usage {
	in := r.countTokens(model, system)
	for _, m := range messages {
		in += r.countTokens(model, m.Content)
	}
	return llm.Usage{InputTokens: in, OutputTokens: r.countTokens(model, output)}
}

// historyMessages maps conversation entries onto provider roles.
func historyMessages(history []domain.ConversationEntry) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+1)
	for _, e := range history {
		role := llm.RoleUser
		if e.Role == domain.RoleAgent {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: e.Text})
	}
	return msgs
}

// toolCall is a parsed tool invocation from model output.
type toolCall struct {
	Tool  string `json:"tool"`
	Input any    `json:"input"`
}

// toolResult holds the output from executing a tool.
type toolResult struct {
	Tool   string
	Output string
	Err    error
}

// toolCallRe matches ```tool_call\n{...}\n``` blocks in model output.
var toolCallRe = regexp.MustCompile("(?s)```tool_call\\s*\n(\\{.*?\\})\\s*\n\\s*```")

// xmlFuncCallRe matches <function_calls>...</function_calls> blocks some
// models emit instead of the fenced form.
var xmlFuncCallRe = regexp.MustCompile(`(?s)<function_calls>.*?</function_calls>`)

// whitespaceLineRe matches lines containing only horizontal whitespace.
var whitespaceLineRe = regexp.MustCompile(`(?m)^[ \t]+$`)

// blankLineCollapseRe collapses 3+ consecutive newlines to a single blank line.
var blankLineCollapseRe = regexp.MustCompile(`\n{3,}`)

// parseToolCalls extracts tool_call blocks from model output. Bodies are
// decoded leniently; blocks that still fail to parse are skipped.
func parseToolCalls(text string) []toolCall {
	matches := toolCallRe.FindAllStringSubmatch(text, -1)
	var calls []toolCall
	for _, match := range matches {
		if len(match) < 2 {
			continue
		}
		var tc toolCall
		if err := tools.DecodeLenient([]byte(match[1]), &tc); err != nil {
			continue
		}
		if tc.Tool != "" {
			calls = append(calls, tc)
		}
	}
	return calls
}

// executeToolCalls runs each call against set and reports it to rec.
func executeToolCalls(ctx context.Context, set *tools.Set, calls []toolCall, rec observe.Recorder) []toolResult {
	results := make([]toolResult, 0, len(calls))
	for _, tc := range calls {
		input := "{}"
		if tc.Input != nil {
			if data, err := json.Marshal(tc.Input); err == nil {
				input = string(data)
			}
		}

		tool, ok := set.Get(tc.Tool)
		if !ok {
			err := fmt.Errorf("unknown tool: %s", tc.Tool)
			rec.LogToolUsage(tc.Tool, input, "error: "+err.Error(), 0)
			results = append(results, toolResult{Tool: tc.Tool, Err: err})
			continue
		}

		start := time.Now()
		output, err := tool.Execute(ctx, input)
		elapsed := time.Since(start)
		if err != nil {
			rec.LogToolUsage(tc.Tool, input, "error: "+err.Error(), elapsed)
		} else {
			rec.LogToolUsage(tc.Tool, input, output, elapsed)
		}
		results = append(results, toolResult{Tool: tc.Tool, Output: output, Err: err})
	}
	return results
}

// formatToolResults renders tool execution results for the model.
func formatToolResults(results []toolResult) string {
	var b strings.Builder
	b.WriteString("Tool execution results:\n\n")
	for _, r := range results {
		fmt.Fprintf(&b, "### %s\n", r.Tool)
		if r.Err != nil {
			fmt.Fprintf(&b, "Error: %s\n", r.Err)
		} else {
			b.WriteString(r.Output)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// stripToolCalls removes tool_call blocks and XML function_calls blocks
// from a reply, leaving the surrounding text.
func stripToolCalls(text string) string {
	cleaned := toolCallRe.ReplaceAllString(text, "\n\n")
	cleaned = xmlFuncCallRe.ReplaceAllString(cleaned, "\n\n")
	cleaned = whitespaceLineRe.ReplaceAllString(cleaned, "")
	cleaned = blankLineCollapseRe.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}
