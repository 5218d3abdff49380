package llm

import (
	"context"
	"fmt"
	"strings"
)

// EchoClient is an offline provider that answers with the last user
// message. It lets the playground run without any credentials.
type EchoClient struct{}

// NewEchoClient creates an echo provider.
func NewEchoClient() *EchoClient { return &EchoClient{} }

// Name returns the provider name.
func (EchoClient) Name() string { return "echo" }

// Complete replies with the most recent user message.
func (EchoClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			last = req.Messages[i].Content
			break
		}
	}
	model := req.Model
	if model == "" {
		model = "echo"
	}
	content := fmt.Sprintf("You said: %s", strings.TrimSpace(last))
	return &CompletionResponse{
		Content: content,
		Model:   model,
		Usage: Usage{
			InputTokens:  approxTokens(req.System) + approxTokens(last),
			OutputTokens: approxTokens(content),
		},
	}, nil
}

// Stream delivers the Complete result as one delta.
func (e EchoClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	resp, err := e.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan StreamEvent, 2)
	ch <- StreamEvent{Type: "delta", Content: resp.Content}
	ch <- StreamEvent{Type: "done", Response: resp}
	close(ch)
	return ch, nil
}
