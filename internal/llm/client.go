// Package llm provides a chat-completion client for OpenAI-compatible
// providers, with token usage and cost accounting.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/OptivexIQ/optivexiq-sub002/internal/constants"
)

// CallOptions configures a single chat-completion call.
type CallOptions struct {
	Temperature float64       // Default: 0.2
	MaxTokens   int           // Default: 4096
	Timeout     time.Duration // Default: 60s
	JSONMode    bool          // Request JSON response format
}

// DefaultCallOptions returns the standard options for prompt-module calls.
func DefaultCallOptions() CallOptions {
	return CallOptions{
		Temperature: constants.LLMDefaultTemperature,
		MaxTokens:   constants.LLMDefaultMaxTokens,
		Timeout:     constants.LLMRequestTimeout,
		JSONMode:    true,
	}
}

// CallResult holds a completion plus its token usage.
type CallResult struct {
	Content          string
	InputTokens      int
	OutputTokens     int
	FinishReason     string
	EstimatedCostUSD float64
}

// IsTruncated reports whether the response hit the max_tokens limit.
func (r *CallResult) IsTruncated() bool {
	return r.FinishReason == "length"
}

// Config holds provider connection settings and per-million-token rates
// used for cost estimation.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	CostPerMInputUSD  float64
	CostPerMOutputUSD float64
}

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	cfg    Config
	logger *slog.Logger
}

// NewClient creates a chat-completion client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{cfg: cfg, logger: logger.With("component", "llm")}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.cfg.Model
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Call sends a system+user message pair and returns the completion.
func (c *Client) Call(ctx context.Context, system, user string, opts CallOptions) (*CallResult, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured")
	}

	if opts.Temperature == 0 {
		opts.Temperature = constants.LLMDefaultTemperature
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = constants.LLMDefaultMaxTokens
	}
	if opts.Timeout == 0 {
		opts.Timeout = constants.LLMRequestTimeout
	}

	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSONMode {
		reqBody.ResponseFormat = &respFormat{Type: "json_object"}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	apiURL := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/chat/completions"

	c.logger.Debug("making LLM API request",
		"model", c.cfg.Model,
		"prompt_length", len(system)+len(user),
		"max_tokens", opts.MaxTokens,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	client := &http.Client{Timeout: opts.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	result, err := parseChatResponse(body)
	if err != nil {
		return nil, err
	}

	result.EstimatedCostUSD = c.estimateCost(result.InputTokens, result.OutputTokens)

	if result.IsTruncated() {
		c.logger.Warn("LLM output truncated",
			"model", c.cfg.Model,
			"output_tokens", result.OutputTokens,
			"max_tokens", opts.MaxTokens,
		)
	}

	return result, nil
}

func parseChatResponse(body []byte) (*CallResult, error) {
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("response contained no choices")
	}

	return &CallResult{
		Content:      parsed.Choices[0].Message.Content,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
		FinishReason: parsed.Choices[0].FinishReason,
	}, nil
}

func (c *Client) estimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*c.cfg.CostPerMInputUSD +
		float64(outputTokens)/1e6*c.cfg.CostPerMOutputUSD
}
