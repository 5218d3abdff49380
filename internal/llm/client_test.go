package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/soyeahso/agentplay/internal/config"
	"github.com/soyeahso/agentplay/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// --- Registry tests ---

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("test-provider", &MockClient{ProviderName: "test-provider"})

	client, err := reg.Resolve("test-provider")
	require.NoError(t, err)
	assert.Equal(t, "test-provider", client.Name())
}

func TestRegistryResolveModelPrefix(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("openai", &MockClient{ProviderName: "openai"})
	reg.Register("ollama", &MockClient{ProviderName: "ollama"})

	client, model, err := reg.ResolveModel("openai:gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openai", client.Name())
	assert.Equal(t, "gpt-4o", model)

	client, model, err = reg.ResolveModel("ollama:llama3.2:3b")
	require.NoError(t, err)
	assert.Equal(t, "ollama", client.Name())
	assert.Equal(t, "llama3.2:3b", model)

	_, _, err = reg.ResolveModel("anthropic:claude-3-sonnet")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `no LLM provider "anthropic"`)
}

func TestRegistryAlias(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("anthropic", &MockClient{ProviderName: "anthropic"})
	reg.Register("openai", &MockClient{ProviderName: "openai"})
	reg.Alias("sonnet", "anthropic")
	reg.Alias("fast", "openai:gpt-3.5-turbo")

	client, model, err := reg.ResolveModel("sonnet")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", client.Name())
	assert.Equal(t, "sonnet", model)

	client, model, err = reg.ResolveModel("fast")
	require.NoError(t, err)
	assert.Equal(t, "openai", client.Name())
	assert.Equal(t, "gpt-3.5-turbo", model)
}

func TestRegistryAliasLoop(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Alias("a", "b:x")
	reg.Register("b", &MockClient{ProviderName: "b"})
	reg.Alias("loop", "loop:x")

	_, _, err := reg.ResolveModel("a")
	require.NoError(t, err)
	_, _, err = reg.ResolveModel("loop")
	assert.Error(t, err)
}

func TestRegistryFallback(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("default-llm", &MockClient{ProviderName: "default-llm"})
	reg.SetFallback("default-llm")

	client, model, err := reg.ResolveModel("unknown-model-xyz")
	require.NoError(t, err)
	assert.Equal(t, "default-llm", client.Name())
	assert.Equal(t, "unknown-model-xyz", model)
}

func TestRegistryResolveNotFound(t *testing.T) {
	reg := NewRegistry(silentLog())

	_, err := reg.Resolve("nonexistent")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM provider")
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("b", &MockClient{ProviderName: "b"})
	reg.Register("a", &MockClient{ProviderName: "a"})
	assert.Equal(t, []string{"a", "b"}, reg.List())
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := config.Defaults()
	reg := NewRegistryFromConfig(cfg, silentLog())
	assert.Equal(t, []string{"echo", "ollama"}, reg.List())

	cfg.Providers.OpenAI.APIKey = "sk-test"
	cfg.Providers.Anthropic.APIKey = "sk-ant-test"
	cfg.Models.Aliases = map[string]string{"local": "ollama:qwen2.5"}
	reg = NewRegistryFromConfig(cfg, silentLog())
	assert.Equal(t, []string{"anthropic", "echo", "ollama", "openai"}, reg.List())

	client, model, err := reg.ResolveModel("gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openai", client.Name())
	assert.Equal(t, "gpt-4o", model)

	client, model, err = reg.ResolveModel("local")
	require.NoError(t, err)
	assert.Equal(t, "ollama", client.Name())
	assert.Equal(t, "qwen2.5", model)

	// default model is openai:gpt-4o, so unknown bare names go to openai
	client, _, err = reg.ResolveModel("something-else")
	require.NoError(t, err)
	assert.Equal(t, "openai", client.Name())
}

// --- MockClient tests ---

func TestMockClientComplete(t *testing.T) {
	mock := &MockClient{
		ProviderName: "test",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return &CompletionResponse{
				Content: "The answer is 42",
				Usage:   Usage{InputTokens: 10, OutputTokens: 5},
			}, nil
		},
	}

	resp, err := mock.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "What is the answer?"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42", resp.Content)
	assert.Equal(t, 10, resp.Usage.InputTokens)
}

func TestMockClientStream(t *testing.T) {
	mock := &MockClient{ProviderName: "test"}

	ch, err := mock.Stream(context.Background(), CompletionRequest{})
	require.NoError(t, err)

	var events []StreamEvent
	for evt := range ch {
		events = append(events, evt)
	}

	assert.Len(t, events, 2)
	assert.Equal(t, "delta", events[0].Type)
	assert.Equal(t, "done", events[1].Type)
}

func TestMockClientCompleteError(t *testing.T) {
	mock := &MockClient{
		ProviderName: "test",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return nil, &ProviderError{Provider: "test", Message: "rate limited", Code: 429}
		},
	}

	_, err := mock.Complete(context.Background(), CompletionRequest{})
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, 429, provErr.Code)
}

// --- Echo provider ---

func TestEchoClient(t *testing.T) {
	client := NewEchoClient()
	assert.Equal(t, "echo", client.Name())

	resp, err := client.Complete(context.Background(), CompletionRequest{
		Model: "test",
		Messages: []Message{
			{Role: RoleUser, Content: "first"},
			{Role: RoleAssistant, Content: "You said: first"},
			{Role: RoleUser, Content: " hi "},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "You said: hi", resp.Content)
	assert.Equal(t, "test", resp.Model)
	assert.Positive(t, resp.Usage.OutputTokens)

	ch, err := client.Stream(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.NoError(t, err)
	var last StreamEvent
	for evt := range ch {
		last = evt
	}
	assert.Equal(t, "done", last.Type)
	assert.Equal(t, "echo", last.Response.Model)
}

func TestEchoClientCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEchoClient().Complete(ctx, CompletionRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

// --- Ollama ---

func TestOllamaComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		fmt.Fprint(w, `{"model":"llama3.2","response":"pong","done":true,"prompt_eval_count":12,"eval_count":3}`)
	}))
	defer srv.Close()

	temp := 0.2
	client := NewOllamaAPIClient(srv.URL+"/", "")
	resp, err := client.Complete(context.Background(), CompletionRequest{
		Model:       "qwen2.5",
		System:      "Be brief.",
		Messages:    []Message{{Role: RoleUser, Content: "ping"}},
		Temperature: &temp,
		MaxTokens:   64,
	})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Content)
	assert.Equal(t, "qwen2.5", resp.Model)
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, 3, resp.Usage.OutputTokens)

	assert.Equal(t, "qwen2.5", got["model"])
	assert.Equal(t, false, got["stream"])
	assert.Contains(t, got["prompt"], "System: Be brief.")
	options, ok := got["options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.2, options["temperature"])
	assert.Equal(t, float64(64), options["num_predict"])
}

func TestOllamaCompleteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaAPIClient(srv.URL, "missing").Complete(context.Background(), CompletionRequest{})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 404, pe.Code)
	assert.Equal(t, "model not found", pe.Message)
}

func TestOllamaStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"Hel","done":false}`)
		fmt.Fprintln(w, `{"response":"lo","done":false}`)
		fmt.Fprintln(w, `{"response":"","done":true,"prompt_eval_count":4,"eval_count":2}`)
	}))
	defer srv.Close()

	ch, err := NewOllamaAPIClient(srv.URL, "llama3.2").Stream(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	var deltas []string
	var done *CompletionResponse
	for evt := range ch {
		switch evt.Type {
		case "delta":
			deltas = append(deltas, evt.Content)
		case "done":
			done = evt.Response
		}
	}
	assert.Equal(t, []string{"Hel", "lo"}, deltas)
	require.NotNil(t, done)
	assert.Equal(t, "Hello", done.Content)
	assert.Equal(t, "llama3.2", done.Model)
	assert.Equal(t, 2, done.Usage.OutputTokens)
}

func TestOllamaBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:11434", NewOllamaAPIClient("", "").baseURL)
	assert.Equal(t, "http://gpu-box:11434", NewOllamaAPIClient("gpu-box:11434", "").baseURL)
	assert.Equal(t, "llama3.2", NewOllamaAPIClient("", "").model)
}

// --- SDK-backed providers against local fakes ---

func TestOpenAIComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &body))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-2024",
			"choices":[{"index":0,"message":{"role":"assistant","content":"hi there"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":9,"completion_tokens":2,"total_tokens":11}}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient("sk-test", srv.URL+"/")
	assert.Equal(t, "openai", client.Name())

	resp, err := client.Complete(context.Background(), CompletionRequest{
		Model:     "gpt-4o",
		System:    "Be kind.",
		Messages:  []Message{{Role: RoleUser, Content: "hello"}, {Role: RoleAssistant, Content: "hey"}, {Role: RoleUser, Content: "again"}},
		MaxTokens: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content)
	assert.Equal(t, "gpt-4o-2024", resp.Model)
	assert.Equal(t, 9, resp.Usage.InputTokens)
	assert.Equal(t, 2, resp.Usage.OutputTokens)

	assert.Equal(t, "gpt-4o", body["model"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 4)
}

func TestOpenAICompleteAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("sk-bad", srv.URL+"/").Complete(context.Background(), CompletionRequest{Model: "gpt-4o"})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "openai", pe.Provider)
	assert.Equal(t, 401, pe.Code)
}

func TestAnthropicComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &body))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-sonnet-20240229",
			"content":[{"type":"text","text":"bonjour"}],"stop_reason":"end_turn",
			"usage":{"input_tokens":7,"output_tokens":1}}`)
	}))
	defer srv.Close()

	client := NewAnthropicClient("sk-ant-test", srv.URL+"/")
	resp, err := client.Complete(context.Background(), CompletionRequest{
		Model:    "claude-3-sonnet",
		System:   "Speak French.",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "bonjour", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 7, resp.Usage.InputTokens)

	assert.Equal(t, "claude-3-sonnet-20240229", body["model"])
	assert.Equal(t, float64(anthropicDefaultMaxTokens), body["max_tokens"])
}

func TestAnthropicMessagesMergeRoles(t *testing.T) {
	msgs := anthropicMessages([]Message{
		{Role: RoleUser, Content: "a"},
		{Role: RoleUser, Content: "b"},
		{Role: RoleAssistant, Content: "c"},
		{Role: "tool", Content: "d"},
	})
	assert.Len(t, msgs, 3)
}

// --- Misc ---

func TestProviderErrorFormat(t *testing.T) {
	tests := []struct {
		err  ProviderError
		want string
	}{
		{ProviderError{Provider: "a", Message: "fail", Code: 500}, "a: 500 fail"},
		{ProviderError{Provider: "b", Message: "oops"}, "b: oops"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error(), fmt.Sprintf("%+v", tt.err))
	}
}

func TestUsageAdd(t *testing.T) {
	u := Usage{InputTokens: 1, OutputTokens: 2}
	u.Add(Usage{InputTokens: 10, OutputTokens: 20})
	assert.Equal(t, Usage{InputTokens: 11, OutputTokens: 22}, u)
}

func TestApproxTokens(t *testing.T) {
	assert.Equal(t, 0, approxTokens(""))
	assert.Equal(t, 1, approxTokens("abc"))
	assert.Equal(t, 2, approxTokens("abcdefgh"))
	assert.Equal(t, 0, EstimateTokens("gpt-4o", ""))
}

func TestCompletionRequestJSON(t *testing.T) {
	temp := 0.7
	req := CompletionRequest{
		Model:       "gpt-4o",
		System:      "You are helpful.",
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		MaxTokens:   1024,
		Temperature: &temp,
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded CompletionRequest
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, req.Model, decoded.Model)
	assert.Equal(t, req.Messages[0].Content, decoded.Messages[0].Content)
}
