package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/soyeahso/agentplay/internal/domain"
	"github.com/soyeahso/agentplay/internal/llm"
	"github.com/soyeahso/agentplay/internal/logging"
	"github.com/soyeahso/agentplay/internal/observe"
	"github.com/soyeahso/agentplay/internal/registry"
	"github.com/soyeahso/agentplay/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func testRunner(mock llm.Client) *Runner {
	reg := llm.NewRegistry(silentLog())
	reg.Register("mock", mock)
	return NewRunner(reg, Options{DefaultModel: "mock:default-model", MaxTokens: 256}, silentLog())
}

func testDef(t *testing.T, cfg domain.AgentConfig) *registry.Definition {
	t.Helper()
	set, err := tools.FromSpecs(cfg.Tools)
	require.NoError(t, err)
	return &registry.Definition{Config: cfg, Tools: set}
}

func plainAgent(t *testing.T) *registry.Definition {
	return testDef(t, domain.AgentConfig{Name: "plain", Instructions: "Be brief."})
}

func toolAgent(t *testing.T) *registry.Definition {
	return testDef(t, domain.AgentConfig{
		Name:         "tooled",
		Instructions: "Use tools.",
		Tools: []domain.ToolSpec{
			{Name: "echo_tool", Description: "Echoes back the input message", Kind: domain.ToolEcho},
			{Name: "recall", Description: "Recent history", Kind: domain.ToolHistory},
		},
	})
}

type recordedTool struct {
	tool, input, output string
}

type recorder struct {
	steps []string
	tools []recordedTool
}

func (r *recorder) LogStep(kind, detail string) { r.steps = append(r.steps, kind) }

func (r *recorder) LogToolUsage(tool, input, output string, _ time.Duration) {
	r.tools = append(r.tools, recordedTool{tool, input, output})
}

func TestRunComplete(t *testing.T) {
	history := []domain.ConversationEntry{
		{Role: domain.RoleUser, Text: "hi"},
		{Role: domain.RoleAgent, Agent: "plain", Text: "hello"},
	}
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			assert.Equal(t, "default-model", req.Model)
			assert.Equal(t, 256, req.MaxTokens)
			assert.True(t, strings.HasPrefix(req.System, "Be brief."))
			assert.NotContains(t, req.System, "Available Tools")
			require.Len(t, req.Messages, 3)
			assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
			assert.Equal(t, llm.RoleAssistant, req.Messages[1].Role)
			assert.Equal(t, "hello", req.Messages[1].Content)
			assert.Equal(t, "how are you?", req.Messages[2].Content)

			return &llm.CompletionResponse{
				Content: "Doing well.",
				Model:   "default-model-2024",
				Usage:   llm.Usage{InputTokens: 20, OutputTokens: 4},
			}, nil
		},
	}

	reply, err := testRunner(mock).Run(context.Background(), plainAgent(t), "how are you?", history)
	require.NoError(t, err)
	assert.Equal(t, "Doing well.", reply.Text)
	assert.Equal(t, "default-model-2024", reply.Model)
	assert.Equal(t, llm.Usage{InputTokens: 20, OutputTokens: 4}, reply.Usage)
	assert.Zero(t, reply.ToolCalls)
}

func TestRunUsesAgentModel(t *testing.T) {
	var seen string
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			seen = req.Model
			return &llm.CompletionResponse{Content: "ok"}, nil
		},
	}
	def := plainAgent(t)
	def.Config.Model = "mock:special"

	r := testRunner(mock)
	assert.Equal(t, "mock:special", r.ModelFor(def))
	reply, err := r.Run(context.Background(), def, "x", nil)
	require.NoError(t, err)
	assert.Equal(t, "special", seen)
	assert.Equal(t, "mock:special", reply.Model)
}

func TestRunUnknownProvider(t *testing.T) {
	def := plainAgent(t)
	def.Config.Model = "nowhere:model"

	_, err := testRunner(&llm.MockClient{ProviderName: "mock"}).Run(context.Background(), def, "x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nowhere")
}

func TestRunEstimatesMissingUsage(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "a reply with several words in it"}, nil
		},
	}
	reply, err := testRunner(mock).Run(context.Background(), plainAgent(t), "count me", nil)
	require.NoError(t, err)
	assert.Positive(t, reply.Usage.InputTokens)
	assert.Positive(t, reply.Usage.OutputTokens)
}

func TestRunToolLoop(t *testing.T) {
	calls := 0
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			calls++
			if calls == 1 {
				assert.Contains(t, req.System, "### echo_tool")
				return &llm.CompletionResponse{
					Content: "Let me echo.\n\n```tool_call\n{tool: 'echo_tool', input: {message: 'ping'}}\n```",
					Usage:   llm.Usage{InputTokens: 10, OutputTokens: 5},
				}, nil
			}
			last := req.Messages[len(req.Messages)-1]
			assert.Equal(t, llm.RoleUser, last.Role)
			assert.Contains(t, last.Content, "### echo_tool\nEcho: ping")
			return &llm.CompletionResponse{
				Content: "The tool said ping.",
				Usage:   llm.Usage{InputTokens: 30, OutputTokens: 6},
			}, nil
		},
	}

	rec := &recorder{}
	ctx := observe.WithRecorder(context.Background(), rec)
	reply, err := testRunner(mock).Run(ctx, toolAgent(t), "echo ping", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, "The tool said ping.", reply.Text)
	assert.Equal(t, 1, reply.ToolCalls)
	assert.Equal(t, llm.Usage{InputTokens: 40, OutputTokens: 11}, reply.Usage)

	require.Len(t, rec.tools, 1)
	assert.Equal(t, "echo_tool", rec.tools[0].tool)
	assert.JSONEq(t, `{"message":"ping"}`, rec.tools[0].input)
	assert.Equal(t, "Echo: ping", rec.tools[0].output)
	assert.Contains(t, rec.steps, "resolve")
	assert.Contains(t, rec.steps, "response")
}

func TestRunToolLoopBounded(t *testing.T) {
	calls := 0
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			calls++
			return &llm.CompletionResponse{
				Content: "again\n```tool_call\n{\"tool\": \"echo_tool\", \"input\": {\"message\": \"x\"}}\n```",
			}, nil
		},
	}

	reply, err := testRunner(mock).Run(context.Background(), toolAgent(t), "loop", nil)
	require.NoError(t, err)
	assert.Equal(t, maxToolIterations, calls)
	assert.Equal(t, maxToolIterations, reply.ToolCalls)
	assert.Equal(t, "again", reply.Text)
}

func TestRunUnknownToolReportsError(t *testing.T) {
	calls := 0
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			calls++
			if calls == 1 {
				return &llm.CompletionResponse{Content: "```tool_call\n{\"tool\": \"teleport\"}\n```"}, nil
			}
			assert.Contains(t, req.Messages[len(req.Messages)-1].Content, "Error: unknown tool: teleport")
			return &llm.CompletionResponse{Content: "Cannot teleport."}, nil
		},
	}

	rec := &recorder{}
	ctx := observe.WithRecorder(context.Background(), rec)
	reply, err := testRunner(mock).Run(ctx, toolAgent(t), "go", nil)
	require.NoError(t, err)
	assert.Equal(t, "Cannot teleport.", reply.Text)
	require.Len(t, rec.tools, 1)
	assert.True(t, strings.HasPrefix(rec.tools[0].output, "error: "))
}

func TestRunToolCallsIgnoredWithoutTools(t *testing.T) {
	calls := 0
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			calls++
			return &llm.CompletionResponse{Content: "Sure.\n```tool_call\n{\"tool\": \"echo_tool\"}\n```"}, nil
		},
	}
	reply, err := testRunner(mock).Run(context.Background(), plainAgent(t), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "Sure.", reply.Text)
}

func TestRunHistoryToolSeesHistory(t *testing.T) {
	history := []domain.ConversationEntry{
		{Role: domain.RoleUser, Text: "my name is Sam"},
		{Role: domain.RoleAgent, Agent: "tooled", Text: "Nice to meet you"},
	}
	calls := 0
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			calls++
			if calls == 1 {
				return &llm.CompletionResponse{Content: "```tool_call\n{\"tool\": \"recall\", \"input\": {\"limit\": 5}}\n```"}, nil
			}
			assert.Contains(t, req.Messages[len(req.Messages)-1].Content, "my name is Sam")
			return &llm.CompletionResponse{Content: "You are Sam."}, nil
		},
	}
	reply, err := testRunner(mock).Run(context.Background(), toolAgent(t), "who am I?", history)
	require.NoError(t, err)
	assert.Equal(t, "You are Sam.", reply.Text)
}

func TestRunLLMError(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, &llm.ProviderError{Provider: "mock", Message: "rate limited", Code: 429}
		},
	}

	rec := &recorder{}
	ctx := observe.WithRecorder(context.Background(), rec)
	_, err := testRunner(mock).Run(ctx, plainAgent(t), "x", nil)
	var pe *llm.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 429, pe.Code)
	assert.Contains(t, rec.steps, "model_error")
}

func TestRunStream(t *testing.T) {
	mock := &llm.MockClient{ProviderName: "mock"}

	var deltas []string
	reply, err := testRunner(mock).RunStream(context.Background(), plainAgent(t), "stream it", nil, func(evt llm.StreamEvent) {
		if evt.Type == "delta" {
			deltas = append(deltas, evt.Content)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"mock "}, deltas)
	assert.Equal(t, "mock stream response", reply.Text)
}

func TestRunStreamToolEvents(t *testing.T) {
	calls := 0
	mock := &llm.MockClient{
		ProviderName: "mock",
		StreamFunc: func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
			calls++
			assert.True(t, req.Stream)
			chunks := []string{"done"}
			if calls == 1 {
				// fence split across chunks
				chunks = []string{"Checking.\n\n``", "`tool_", "call\n{\"tool\": \"echo_tool\", \"input\": {\"message\": \"hi\"}}\n`", "``\n"}
			}
			ch := make(chan llm.StreamEvent, len(chunks)+1)
			for _, c := range chunks {
				ch <- llm.StreamEvent{Type: "delta", Content: c}
			}
			ch <- llm.StreamEvent{Type: "done"}
			close(ch)
			return ch, nil
		},
	}

	var (
		types []string
		text  strings.Builder
	)
	reply, err := testRunner(mock).RunStream(context.Background(), toolAgent(t), "x", nil, func(evt llm.StreamEvent) {
		types = append(types, evt.Type)
		if evt.Type == "delta" {
			text.WriteString(evt.Content)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, "done", reply.Text)
	assert.Equal(t, []string{"delta", "delta", "tool_start", "tool_result", "delta"}, types)
	assert.Equal(t, "Checking.\n\n\ndone", text.String())
	assert.NotContains(t, text.String(), "tool_call")
}

func TestFenceFilter(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   string
	}{
		{"plain", []string{"hello ", "world"}, "hello world"},
		{"other fences kept", []string{"```go\nx := 1\n```"}, "```go\nx := 1\n```"},
		{"whole fence", []string{"a ```tool_call\n{}\n``` b"}, "a  b"},
		{"split open", []string{"a `", "``tool", "_call {} ``` b"}, "a  b"},
		{"two fences", []string{"```tool_call\n{}\n```x```tool_call\n{}\n```"}, "x"},
		{"unterminated", []string{"a ```tool_call\n{\"tool\":"}, "a "},
		{"trailing backtick", []string{"code `"}, "code `"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			f := &fenceFilter{emit: func(s string) { out.WriteString(s) }}
			for _, c := range tt.chunks {
				f.write(c)
			}
			f.flush()
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestRunStreamError(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		StreamFunc: func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
			ch := make(chan llm.StreamEvent, 1)
			ch <- llm.StreamEvent{Type: "error", Error: "connection reset"}
			close(ch)
			return ch, nil
		},
	}
	_, err := testRunner(mock).RunStream(context.Background(), plainAgent(t), "x", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestParseToolCalls(t *testing.T) {
	text := "first\n```tool_call\n{\"tool\": \"a\", \"input\": {\"n\": 1}}\n```\n" +
		"bad\n```tool_call\n{not json at all\n```\n" +
		"lenient\n```tool_call\n{tool: 'b', input: {s: 'x'}}\n```\n" +
		"no tool\n```tool_call\n{\"input\": {}}\n```\n" +
		"apostrophe\n```tool_call\n{\"tool\": \"c\", \"input\": {\"text\": \"don't\"}}\n```"

	calls := parseToolCalls(text)
	require.Len(t, calls, 3)
	assert.Equal(t, "a", calls[0].Tool)
	assert.Equal(t, "b", calls[1].Tool)
	assert.Equal(t, map[string]any{"s": "x"}, calls[1].Input)
	assert.Equal(t, "c", calls[2].Tool)
	assert.Equal(t, map[string]any{"text": "don't"}, calls[2].Input)
	assert.Empty(t, parseToolCalls("plain text"))
}

func TestFormatToolResults(t *testing.T) {
	out := formatToolResults([]toolResult{
		{Tool: "a", Output: "fine"},
		{Tool: "b", Err: errors.New("broken")},
	})
	assert.Equal(t, "Tool execution results:\n\n### a\nfine\n\n### b\nError: broken\n\n", out)
}

func TestStripToolCalls(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"plain text", "Just a normal response.", "Just a normal response."},
		{"markdown preserved", "The weather is **sunny** and `warm`.", "The weather is **sunny** and `warm`."},
		{"code fence preserved", "Example:\n\n```json\n{\"key\": \"value\"}\n```", "Example:\n\n```json\n{\"key\": \"value\"}\n```"},
		{"tool_call block", "Here is my answer.\n\n```tool_call\n{\"tool\": \"echo\", \"input\": {\"text\": \"hi\"}}\n```\n\nDone.", "Here is my answer.\n\nDone."},
		{"xml block", "I'll check.\n\n<function_calls>\n<invoke name=\"x\"/>\n</function_calls>\n\nSunny.", "I'll check.\n\nSunny."},
		{"mixed", "Intro.\n\n```tool_call\n{\"tool\": \"echo\"}\n```\n\n<function_calls>\n<invoke name=\"x\"/>\n</function_calls>\n\nEnd.", "Intro.\n\nEnd."},
		{"whitespace lines", "a\n   \n\t\n\n\nb", "a\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripToolCalls(tt.input))
		})
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	prompt := BuildSystemPrompt(PromptConfig{
		AgentName:    "analyst",
		Instructions: "  You analyse data.  ",
		OutputType:   "AnalysisResult",
		Tools:        []tools.Def{{Name: "calc", Description: "Calculates", InputSchema: `{"type":"object"}`}},
		Now:          now,
	})

	assert.True(t, strings.HasPrefix(prompt, "You analyse data.\n\n"))
	assert.Contains(t, prompt, "Current date: 2025-03-04")
	assert.Contains(t, prompt, "Agent: analyst")
	assert.Contains(t, prompt, "Response type: AnalysisResult")
	assert.Contains(t, prompt, "```tool_call")
	assert.Contains(t, prompt, "### calc\nCalculates\nInput schema: {\"type\":\"object\"}\n")
}

func TestBuildSystemPromptMinimal(t *testing.T) {
	prompt := BuildSystemPrompt(PromptConfig{})
	assert.Contains(t, prompt, "Current date:")
	assert.NotContains(t, prompt, "Available Tools")
	assert.NotContains(t, prompt, "Agent:")
}
