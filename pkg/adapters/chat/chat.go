// Package chat implements the model capabilities over any OpenAI-compatible
// chat-completions endpoint. Local inference servers and hosted providers
// both speak this dialect, which keeps the engine deployment-agnostic.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/packhound/packhound/internal/sanitize"
	"github.com/packhound/packhound/pkg/domain"
	"github.com/packhound/packhound/pkg/ports"
	"github.com/packhound/packhound/pkg/schema"
)

// Config holds the connection settings for one model endpoint.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// DefaultConfig returns settings for a local OpenAI-compatible server.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:8000/v1",
		Model:       "qwen3-32b",
		Timeout:     10 * time.Minute,
		Temperature: 0.6,
	}
}

// Client talks to a single chat-completions endpoint with fixed sampling
// settings. It satisfies both ports.Reasoner and ports.Formatter; use
// separate clients when reasoning and structured output run on different
// models.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, ignoring cfg.Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a Client for the given endpoint.
func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends one conversation and returns the raw assistant content.
func (c *Client) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	msgs := make([]chatMessage, len(messages))
	for i, m := range messages {
		msgs[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    msgs,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat: encode request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("chat: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("chat: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat: %s returned %d: %s", c.cfg.Model, resp.StatusCode, truncateBody(data))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("chat: decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("chat: %s: %s", parsed.Error.Type, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat: %s returned no choices", c.cfg.Model)
	}
	return parsed.Choices[0].Message.Content, nil
}

// Reason implements ports.Reasoner.
func (c *Client) Reason(ctx context.Context, p ports.Prompt) (string, error) {
	msgs := make([]domain.Message, 0, 2)
	if p.System != "" {
		msgs = append(msgs, domain.Message{Role: "system", Content: p.System})
	}
	msgs = append(msgs, domain.Message{Role: "user", Content: p.User})
	return c.Complete(ctx, msgs)
}

// Format implements ports.Formatter. The model's answer is stripped of
// reasoning preambles and markdown fences before strict decoding, so only
// genuine shape violations surface as schema mismatches.
func (c *Client) Format(ctx context.Context, prompt string, out any) error {
	raw, err := c.Complete(ctx, []domain.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return err
	}
	obj := schema.ExtractObject(sanitize.Clean(raw))
	if obj == "" {
		return fmt.Errorf("%w: no JSON object in model output", domain.ErrSchemaMismatch)
	}
	return schema.Decode([]byte(obj), out)
}

func truncateBody(b []byte) string {
	const max = 512
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
