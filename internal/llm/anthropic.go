package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultMaxTokens = 4096

// anthropicModelIDs maps short names to dated API model ids.
var anthropicModelIDs = map[string]string{
	"claude-3-sonnet":   "claude-3-sonnet-20240229",
	"claude-3-haiku":    "claude-3-haiku-20240307",
	"claude-3-5-sonnet": "claude-3-5-sonnet-20241022",
	"sonnet":            "claude-sonnet-4-20250514",
	"haiku":             "claude-3-5-haiku-20241022",
	"opus":              "claude-opus-4-20250514",
}

// AnthropicClient calls the Anthropic Messages API through the official SDK.
type AnthropicClient struct {
	client anthropic.Client
}

// NewAnthropicClient creates a client. baseURL may be empty.
func NewAnthropicClient(apiKey, baseURL string) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicClient{client: anthropic.NewClient(opts...)}
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string { return "anthropic" }

// Complete sends a non-streaming Messages request.
func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := c.client.Messages.New(ctx, anthropicParams(req))
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{Provider: "anthropic", Code: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}

	return &CompletionResponse{
		Content:    text.String(),
		StopReason: string(resp.StopReason),
		Model:      string(resp.Model),
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
		Duration: time.Since(start),
	}, nil
}

// Stream completes the request and delivers it as a single delta followed
// by done.
func (c *AnthropicClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	resp, err := c.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	events := make(chan StreamEvent, 2)
	events <- StreamEvent{Type: "delta", Content: resp.Content}
	events <- StreamEvent{Type: "done", Response: resp}
	close(events)
	return events, nil
}

func anthropicParams(req CompletionRequest) anthropic.MessageNewParams {
	model := req.Model
	if id, ok := anthropicModelIDs[model]; ok {
		model = id
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  anthropicMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	return params
}

// anthropicMessages converts history, merging consecutive turns of the same
// role since the API requires strict alternation.
func anthropicMessages(msgs []Message) []anthropic.MessageParam {
	type turn struct {
		role string
		text []string
	}
	var turns []turn
	for _, m := range msgs {
		role := RoleUser
		if m.Role == RoleAssistant {
			role = RoleAssistant
		}
		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].text = append(turns[n-1].text, m.Content)
			continue
		}
		turns = append(turns, turn{role: role, text: []string{m.Content}})
	}

	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(strings.Join(t.text, "\n\n"))
		if t.role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}
