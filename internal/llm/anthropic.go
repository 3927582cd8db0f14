package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL    = "https://api.anthropic.com"
	anthropicVersion  = "2023-06-01"
	maxErrorBodyBytes = 4 << 10
)

// AnthropicConfig configures AnthropicClient.
type AnthropicConfig struct {
	BaseURL        string
	Model          string
	Timeout        time.Duration
	PostMaxTokens  int
	ImageMaxTokens int
	HTTPClient     *http.Client
}

// AnthropicClient calls the Messages API. It never retries.
type AnthropicClient struct {
	client    *http.Client
	baseURL   string
	model     string
	maxTokens map[Mode]int
}

// NewAnthropicClient creates a client with defaults filled in.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &AnthropicClient{
		client:  client,
		baseURL: baseURL,
		model:   cfg.Model,
		maxTokens: map[Mode]int{
			ModePost:  positiveOr(cfg.PostMaxTokens, 2000),
			ModeImage: positiveOr(cfg.ImageMaxTokens, 500),
		},
	}
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// StatusError reports a non-2xx answer from the API.
type StatusError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("anthropic: status %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("anthropic: status %d", e.StatusCode)
}

// Complete implements Capability.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Credential == "" {
		return nil, ErrNoCredential
	}
	if c.model == "" {
		return nil, errors.New("anthropic: model is required")
	}
	maxTokens, ok := c.maxTokens[req.Mode]
	if !ok {
		return nil, fmt.Errorf("anthropic: unknown mode %q", req.Mode)
	}

	payload, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    req.SystemPrompt,
		Messages:  []message{{Role: "user", Content: req.UserPrompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("anthropic: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", req.Credential)
	httpReq.Header.Set("Anthropic-Version", anthropicVersion)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var apiErr apiErrorBody
		if json.Unmarshal(body, &apiErr) == nil {
			statusErr.Type = apiErr.Error.Type
			statusErr.Message = apiErr.Error.Message
		}
		return nil, statusErr
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}
	return &out, nil
}
