// internal/common/llm/client.go
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

var (
	ErrModelTimeout = errors.New("MODEL_TIMEOUT")
	ErrModelCall    = errors.New("MODEL_CALL_FAILED")
)

// Config holds the OpenAI-compatible endpoint settings. Timeout bounds one
// Complete call and stacks with whatever deadline the caller's context has.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// Logger interface definition
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Client speaks the chat-completions protocol against an OpenAI-compatible
// endpoint. One request per Complete call; retry policy belongs to callers.
type Client struct {
	config *Config
	client *http.Client
	logger Logger
}

func NewClient(config *Config, log Logger) *Client {
	return &Client{
		config: config,
		client: &http.Client{
			// Rely only on context for timeouts
		},
		logger: log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends one chat-completion request and returns the first choice's
// content. Context cancellation and deadlines map to ErrModelTimeout.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	reqBody := chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	body, _ := json.Marshal(reqBody)
	url := strings.TrimSuffix(c.config.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelCall, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ErrModelTimeout
		}
		return "", fmt.Errorf("%w: %v", ErrModelCall, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr chatResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != nil {
			return "", fmt.Errorf("%w: %s", ErrModelCall, apiErr.Error.Message)
		}
		return "", fmt.Errorf("%w: status %d", ErrModelCall, resp.StatusCode)
	}

	var apiResponse chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", fmt.Errorf("%w: decode error: %v", ErrModelCall, err)
	}

	if len(apiResponse.Choices) == 0 {
		return "", fmt.Errorf("%w: response contained no choices", ErrModelCall)
	}

	c.logger.Debug("completion received", map[string]interface{}{
		"model":  c.config.Model,
		"length": len(apiResponse.Choices[0].Message.Content),
	})

	return apiResponse.Choices[0].Message.Content, nil
}
