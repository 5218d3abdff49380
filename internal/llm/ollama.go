package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	ollamaDefaultURL   = "http://localhost:11434"
	ollamaDefaultModel = "llama3.2"
)

// OllamaAPIClient is a direct HTTP client for the Ollama generate API.
type OllamaAPIClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaAPIClient creates a new Ollama API client.
// baseURL should be like "http://localhost:11434"; model is used when a
// request does not name one.
func NewOllamaAPIClient(baseURL, model string) *OllamaAPIClient {
	if baseURL == "" {
		baseURL = ollamaDefaultURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if model == "" {
		model = ollamaDefaultModel
	}

	return &OllamaAPIClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Complete sends a non-streaming completion request to Ollama API.
func (o *OllamaAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := o.modelFor(req)
	payload, err := json.Marshal(o.buildBody(req, model, false))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/api/generate", o.baseURL), strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: "ollama", Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: "ollama", Code: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	var result ollamaAPIResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &CompletionResponse{
		Content: result.Response,
		Model:   model,
		Usage: Usage{
			InputTokens:  result.PromptEvalCount,
			OutputTokens: result.EvalCount,
		},
		Duration: time.Since(start),
	}, nil
}

// Stream sends a streaming completion request to Ollama API.
func (o *OllamaAPIClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	model := o.modelFor(req)
	payload, err := json.Marshal(o.buildBody(req, model, true))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	eventChan := make(chan StreamEvent)
	go o.streamRequest(ctx, eventChan, payload, model)
	return eventChan, nil
}

// Name returns the provider name.
func (o *OllamaAPIClient) Name() string {
	return "ollama"
}

func (o *OllamaAPIClient) modelFor(req CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return o.model
}

func (o *OllamaAPIClient) buildBody(req CompletionRequest, model string, stream bool) map[string]any {
	body := map[string]any{
		"model":  model,
		"prompt": o.buildPrompt(req),
		"stream": stream,
	}
	options := map[string]any{}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if len(options) > 0 {
		body["options"] = options
	}
	return body
}

func (o *OllamaAPIClient) buildPrompt(req CompletionRequest) string {
	var prompt strings.Builder

	if req.System != "" {
		prompt.WriteString("System: ")
		prompt.WriteString(req.System)
		prompt.WriteString("\n\n")
	}

	for _, msg := range req.Messages {
		if msg.Role != "user" {
			prompt.WriteString(fmt.Sprintf("%s: ", msg.Role))
		}
		prompt.WriteString(msg.Content)
		prompt.WriteString("\n\n")
	}

	return prompt.String()
}

func (o *OllamaAPIClient) streamRequest(ctx context.Context, eventChan chan StreamEvent, payload []byte, model string) {
	defer close(eventChan)

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/api/generate", o.baseURL), strings.NewReader(string(payload)))
	if err != nil {
		eventChan <- StreamEvent{Type: "error", Error: fmt.Sprintf("request creation failed: %v", err)}
		return
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		eventChan <- StreamEvent{Type: "error", Error: fmt.Sprintf("request failed: %v", err)}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		eventChan <- StreamEvent{Type: "error", Error: fmt.Sprintf("API error (%d): %s", resp.StatusCode, string(body))}
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	var fullContent strings.Builder
	var usage Usage

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		var event ollamaStreamEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}

		if event.Response != "" {
			fullContent.WriteString(event.Response)
			eventChan <- StreamEvent{
				Type:    "delta",
				Content: event.Response,
			}
		}
		if event.Done {
			usage = Usage{InputTokens: event.PromptEvalCount, OutputTokens: event.EvalCount}
		}
	}

	// Send completion event
	eventChan <- StreamEvent{
		Type: "done",
		Response: &CompletionResponse{
			Content: fullContent.String(),
			Model:   model,
			Usage:   usage,
		},
	}
}

// API Response structures

type ollamaAPIResponse struct {
	Model           string `json:"model"`
	CreatedAt       string `json:"created_at"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	TotalDuration   int64  `json:"total_duration"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

type ollamaStreamEvent = ollamaAPIResponse
