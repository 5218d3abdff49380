package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient calls the OpenAI Chat Completions API through the official SDK.
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient creates a client. baseURL may be empty for the public API
// or point at any OpenAI-compatible endpoint.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{client: openai.NewClient(opts...)}
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string { return "openai" }

// Complete sends a non-streaming chat completion.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := c.client.Chat.Completions.New(ctx, openAIParams(req))
	if err != nil {
		return nil, openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: "openai", Message: "no choices returned"}
	}

	ch0 := resp.Choices[0]
	return &CompletionResponse{
		Content:    ch0.Message.Content,
		StopReason: ch0.FinishReason,
		Model:      resp.Model,
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
		Duration: time.Since(start),
	}, nil
}

// Stream sends a streaming chat completion and forwards text deltas.
func (c *OpenAIClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, openAIParams(req))
	events := make(chan StreamEvent, 32)

	go func() {
		defer close(events)
		defer stream.Close()

		start := time.Now()
		var content strings.Builder
		var model, stop string
		for stream.Next() {
			chunk := stream.Current()
			if chunk.Model != "" {
				model = chunk.Model
			}
			for _, ch := range chunk.Choices {
				if ch.Delta.Content != "" {
					content.WriteString(ch.Delta.Content)
					events <- StreamEvent{Type: "delta", Content: ch.Delta.Content}
				}
				if ch.FinishReason != "" {
					stop = ch.FinishReason
				}
			}
		}
		if err := stream.Err(); err != nil {
			events <- StreamEvent{Type: "error", Error: openAIError(err).Error()}
			return
		}
		events <- StreamEvent{
			Type: "done",
			Response: &CompletionResponse{
				Content:    content.String(),
				StopReason: stop,
				Model:      model,
				Duration:   time.Since(start),
			},
		}
	}()
	return events, nil
}

func openAIParams(req CompletionRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	return params
}

func openAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: "openai", Code: apiErr.StatusCode, Message: apiErr.Error()}
	}
	return fmt.Errorf("openai: %w", err)
}
