package openai

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

	"calltriage/internal/providers"
)

const maxErrorBody = 512

// Config controls the chat-completions collaborator.
type Config struct {
	APIKey       string
	APIBaseURL   string
	Model        string
	Temperature  float64
	Timeout      time.Duration
	MaxRetries   uint64
	RetryBackoff time.Duration
}

// Client implements note generation and contextual classification over the
// OpenAI chat-completions API.
type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config, client *http.Client) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, client: client}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete sends one system+user exchange and returns the assistant text.
func (c *Client) complete(ctx context.Context, system string, user string, maxTokens int) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", errors.New("OPENAI_API_KEY is not configured")
	}
	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}
	endpoint := strings.TrimRight(strings.TrimSpace(c.cfg.APIBaseURL), "/") + "/chat/completions"

	var response chatResponse
	err = providers.Retry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return providers.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("chat request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode/100 != 2 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return &providers.StatusError{Service: "openai", Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			return providers.Permanent(fmt.Errorf("failed to decode chat response: %w", err))
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", errors.New("chat response has no choices")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
